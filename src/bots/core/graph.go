package core

import (
	"context"
	"fmt"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/result"
)

// maxChainDepth bounds CommentChain and CommentTree recursion.
const maxChainDepth = 64

// Thread is one comment with its replies.
type Thread struct {
	Comment result.Record `json:"comment"`
	Replies []Thread      `json:"replies"`
}

// CommentChain returns the root entry followed by every comment leading to
// id, which is last.
func (b *Bot) CommentChain(ctx context.Context, id any) ([]result.Record, error) {
	return b.commentChain(ctx, id, 0)
}

func (b *Bot) commentChain(ctx context.Context, id any, depth int) ([]result.Record, error) {
	if depth > maxChainDepth {
		return nil, fmt.Errorf("core: comment chain deeper than %d", maxChainDepth)
	}
	comment, err := b.QueryComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, nil
	}
	parent, ok := comment.BID("parent")
	if !ok {
		return []result.Record{comment}, nil
	}
	var chain []result.Record
	if parent.Type == bid.Comment {
		chain, err = b.commentChain(ctx, parent, depth+1)
	} else {
		var root result.Record
		root, err = b.Fetch(ctx, parent)
		if root != nil {
			chain = []result.Record{root}
		}
	}
	if err != nil {
		return nil, err
	}
	return append(chain, comment), nil
}

// CommentTree returns the conversation under root, replies nested.
func (b *Bot) CommentTree(ctx context.Context, root any) ([]Thread, error) {
	return b.commentTree(ctx, root, 0)
}

func (b *Bot) commentTree(ctx context.Context, root any, depth int) ([]Thread, error) {
	if depth > maxChainDepth {
		return nil, fmt.Errorf("core: comment tree deeper than %d", maxChainDepth)
	}
	comments, err := b.QueryCommentList(ctx, Vars{"has_parent": root})
	if err != nil {
		return nil, err
	}
	out := make([]Thread, 0, len(comments))
	for _, c := range comments {
		own, _ := c.BID("bid")
		replies, err := b.commentTree(ctx, own, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, Thread{Comment: c, Replies: replies})
	}
	return out, nil
}

// AppLink returns the in-app link for an entity.
func (b *Bot) AppLink(ctx context.Context, id any) (string, error) {
	raw := fmt.Sprint(id)
	if h, err := bid.From(id); err == nil {
		raw = h.ID
	}
	return b.transport.AppLink(ctx, raw)
}
