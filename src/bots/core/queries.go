package core

import (
	"context"
	"fmt"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/result"
)

// QueryList runs query_<type>_list.
func (b *Bot) QueryList(ctx context.Context, t bid.EntityType, vars Vars) ([]result.Record, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", bid.ErrInvalidType, t)
	}
	return b.List(ctx, listOp(t), Rules(t), vars)
}

// QueryNode runs query_<type> for id, which may be a handle or a raw id.
func (b *Bot) QueryNode(ctx context.Context, t bid.EntityType, id any) (result.Record, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", bid.ErrInvalidType, t)
	}
	return b.Node(ctx, nodeOp(t), Rules(t), Vars{"id": id})
}

// Fetch runs the node query matching the handle's own type.
func (b *Bot) Fetch(ctx context.Context, h bid.BID) (result.Record, error) {
	return b.QueryNode(ctx, h.Type, h)
}

func (b *Bot) QueryUserList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.User, vars)
}

func (b *Bot) QueryPersonList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Person, vars)
}

func (b *Bot) QueryBotList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Bot, vars)
}

func (b *Bot) QueryNonprofitList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Nonprofit, vars)
}

func (b *Bot) QueryDonationList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Donation, vars)
}

func (b *Bot) QueryTransactionList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Transaction, vars)
}

func (b *Bot) QueryNewsList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.News, vars)
}

func (b *Bot) QueryEventList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Event, vars)
}

func (b *Bot) QueryPostList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Post, vars)
}

func (b *Bot) QueryCommentList(ctx context.Context, vars Vars) ([]result.Record, error) {
	return b.QueryList(ctx, bid.Comment, vars)
}

func (b *Bot) QueryUser(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.User, id)
}

func (b *Bot) QueryPerson(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Person, id)
}

func (b *Bot) QueryBot(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Bot, id)
}

func (b *Bot) QueryNonprofit(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Nonprofit, id)
}

func (b *Bot) QueryDonation(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Donation, id)
}

func (b *Bot) QueryTransaction(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Transaction, id)
}

func (b *Bot) QueryNews(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.News, id)
}

func (b *Bot) QueryEvent(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Event, id)
}

func (b *Bot) QueryPost(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Post, id)
}

func (b *Bot) QueryComment(ctx context.Context, id any) (result.Record, error) {
	return b.QueryNode(ctx, bid.Comment, id)
}
