package core

import (
	"context"

	"github.com/stake-plus/ibots/src/bots/bid"
)

// CreatePost publishes a post as this bot.
func (b *Bot) CreatePost(ctx context.Context, title, description string) (bid.BID, error) {
	return b.CreateReturning(ctx, "create_post", bid.Post, Vars{"title": title, "description": description})
}

// CreateComment replies to an entry.
func (b *Bot) CreateComment(ctx context.Context, parent any, description string) (bid.BID, error) {
	return b.CreateReturning(ctx, "create_comment", bid.Comment, Vars{"parent": parent, "description": description})
}

// CreateDonation donates amount cents to target.
func (b *Bot) CreateDonation(ctx context.Context, target any, amount int64, description string) (bid.BID, error) {
	return b.CreateReturning(ctx, "create_donation", bid.Donation, Vars{"target": target, "amount": amount, "description": description})
}

// CreateTransaction sends amount cents to target.
func (b *Bot) CreateTransaction(ctx context.Context, target any, amount int64, description string) (bid.BID, error) {
	return b.CreateReturning(ctx, "create_transaction", bid.Transaction, Vars{"target": target, "amount": amount, "description": description})
}

// CreateLike likes an entry. Liking twice has no further effect.
func (b *Bot) CreateLike(ctx context.Context, target any) (bool, error) {
	return b.Create(ctx, "create_like", Vars{"target": target})
}

func (b *Bot) DeleteLike(ctx context.Context, target any) (bool, error) {
	return b.Delete(ctx, "delete_like", Vars{"target": target})
}

// CreateFollow follows a user. Following twice has no further effect.
func (b *Bot) CreateFollow(ctx context.Context, target any) (bool, error) {
	return b.Create(ctx, "create_follow", Vars{"target": target})
}

func (b *Bot) DeleteFollow(ctx context.Context, target any) (bool, error) {
	return b.Delete(ctx, "delete_follow", Vars{"target": target})
}

// UpdateBot replaces this bot's biography.
func (b *Bot) UpdateBot(ctx context.Context, description string) (bool, error) {
	return b.Update(ctx, "update_bot", Vars{"id": b.BID, "description": description})
}
