// Package tester is a smoke-test bot. It reads one page of every entity type
// once, records how many rows came back, then idles while answering commands.
package tester

import (
	"context"
	"fmt"
	"strings"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/core"
)

const Class = "tester"

var listed = []bid.EntityType{
	bid.User, bid.Person, bid.Bot, bid.Nonprofit,
	bid.Donation, bid.Transaction, bid.News, bid.Event, bid.Post, bid.Comment,
}

func init() {
	core.RegisterClass(Class, New, "test", "test_bot")
}

type Bot struct {
	pageSize int
}

func New() core.Logic { return &Bot{pageSize: 1} }

// Start accepts page_size.
func (t *Bot) Start(_ context.Context, b *core.Bot, args map[string]any) error {
	switch v := args["page_size"].(type) {
	case int:
		t.pageSize = v
	case int64:
		t.pageSize = int(v)
	case float64:
		t.pageSize = int(v)
	}
	if t.pageSize <= 0 {
		return fmt.Errorf("tester: page_size must be positive, got %d", t.pageSize)
	}
	b.Logger().Info().Int("page_size", t.pageSize).Msg("Starting")
	return nil
}

func (t *Bot) Run(ctx context.Context, b *core.Bot) error {
	b.Logger().Info().Msg("Running")

	counts := make(map[string]any, len(listed))
	for _, typ := range listed {
		recs, err := b.QueryList(ctx, typ, core.Vars{"first": t.pageSize})
		if err != nil {
			b.Logger().Warn().Err(err).Str("type", string(typ)).Msg("list failed")
			counts[string(typ)] = -1
			continue
		}
		counts[string(typ)] = len(recs)
	}
	b.State["counts"] = counts
	if err := b.SaveState(ctx); err != nil {
		return err
	}

	for {
		if err := b.Wait(ctx, core.WaitOptions{ExitAny: true}); err != nil {
			return err
		}
		b.Logger().Debug().Msg("activity observed")
	}
}

// Command echoes instructions. "resource:<name>:<instruction>" forwards to a
// wired resource instead.
func (t *Bot) Command(ctx context.Context, b *core.Bot, instruction string) (any, error) {
	b.Logger().Info().Str("instruction", instruction).Msg("Executing")
	if rest, ok := strings.CutPrefix(instruction, "resource:"); ok {
		name, inner, found := strings.Cut(rest, ":")
		if !found {
			return nil, fmt.Errorf("tester: want resource:<name>:<instruction>, got %q", instruction)
		}
		r, err := b.Resource(name)
		if err != nil {
			return nil, err
		}
		return r.Command(ctx, inner)
	}
	return "Executing " + instruction, nil
}
