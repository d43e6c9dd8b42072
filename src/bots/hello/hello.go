// Package hello is the greeting bot: it introduces itself with one post and
// replies once to everybody who comments on it.
package hello

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/bots/result"
	"github.com/stake-plus/ibots/src/logging"
)

const (
	Class = "hello"

	DefaultTitle       = "Hello, world!"
	DefaultDescription = "Nice to meet everyone."
	DefaultGreeting    = "Hi, %s"

	postKey = "post_bid"
)

func init() {
	core.RegisterClass(Class, New, "hello_bot", "hellobot")
}

// Bot is the hello logic.
type Bot struct {
	title       string
	description string
	greeting    string
	policy      *bluemonday.Policy
}

// New returns hello logic with the default texts.
func New() core.Logic {
	return &Bot{
		title:       DefaultTitle,
		description: DefaultDescription,
		greeting:    DefaultGreeting,
		policy:      bluemonday.StrictPolicy(),
	}
}

// Start accepts title, description and greeting overrides.
func (h *Bot) Start(_ context.Context, b *core.Bot, args map[string]any) error {
	if v, ok := args["title"].(string); ok && v != "" {
		h.title = v
	}
	if v, ok := args["description"].(string); ok && v != "" {
		h.description = v
	}
	if v, ok := args["greeting"].(string); ok && v != "" {
		if !strings.Contains(v, "%s") {
			return fmt.Errorf("hello: greeting %q has no %%s", v)
		}
		h.greeting = v
	}
	b.Logger().Info().Str("title", h.title).Msg("Starting")
	return nil
}

func (h *Bot) Run(ctx context.Context, b *core.Bot) error {
	post, err := h.ensurePost(ctx, b)
	if err != nil {
		return err
	}
	for {
		if err := h.greet(ctx, b, post); err != nil {
			if !logging.IsTransient(err) {
				return err
			}
			b.Logger().Warn().Err(err).Msg("greeting pass failed, retrying after wait")
		}
		if err := b.Wait(ctx, core.WaitOptions{}); err != nil {
			return err
		}
	}
}

// Command logs instructions without acting on them.
func (h *Bot) Command(_ context.Context, b *core.Bot, instruction string) (any, error) {
	b.Logger().Info().Str("instruction", instruction).Msg("command")
	return nil, nil
}

// ensurePost returns this bot's introduction post, creating it only when
// neither state nor the remote has one.
func (h *Bot) ensurePost(ctx context.Context, b *core.Bot) (bid.BID, error) {
	if raw, ok := b.State[postKey].(string); ok {
		if post, err := bid.Parse(raw); err == nil && post.Type == bid.Post {
			return post, nil
		}
		b.Logger().Warn().Str(postKey, raw).Msg("ignoring malformed stored post")
	}

	posts, err := b.QueryPostList(ctx, core.Vars{"by_user": b.BID})
	if err != nil {
		return bid.BID{}, err
	}
	var post bid.BID
	if len(posts) > 0 {
		post, _ = posts[0].BID("bid")
	}
	if post.IsZero() {
		post, err = b.CreatePost(ctx, h.title, h.description)
		if err != nil {
			return bid.BID{}, err
		}
	}

	b.State[postKey] = post.String()
	if err := b.SaveState(ctx); err != nil {
		return bid.BID{}, err
	}
	return post, nil
}

// greet replies to every comment on post that has no reply from this bot yet.
func (h *Bot) greet(ctx context.Context, b *core.Bot, post bid.BID) error {
	comments, err := b.QueryCommentList(ctx, core.Vars{"has_parent": post})
	if err != nil {
		return err
	}
	for _, c := range comments {
		author, ok := c.BID("user")
		if !ok || author == b.BID {
			continue
		}
		own, _ := c.BID("bid")
		replied, err := h.replied(ctx, b, own)
		if err != nil {
			return err
		}
		if replied {
			continue
		}
		user, err := b.QueryUser(ctx, author)
		if err != nil {
			return err
		}
		if _, err := b.CreateComment(ctx, own, fmt.Sprintf(h.greeting, h.displayName(user))); err != nil {
			return err
		}
	}
	return nil
}

func (h *Bot) replied(ctx context.Context, b *core.Bot, comment bid.BID) (bool, error) {
	replies, err := b.QueryCommentList(ctx, core.Vars{"has_parent": comment})
	if err != nil {
		return false, err
	}
	for _, r := range replies {
		if u, ok := r.BID("user"); ok && u == b.BID {
			return true, nil
		}
	}
	return false, nil
}

func (h *Bot) displayName(user result.Record) string {
	for _, key := range []string{"first_name", "name", "username"} {
		if name := strings.TrimSpace(h.policy.Sanitize(user.String(key))); name != "" {
			return name
		}
	}
	return "friend"
}
