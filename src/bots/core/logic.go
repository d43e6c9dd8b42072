package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logic is a bot strategy. Run owns the bot's loop and is expected to call
// Bot.Wait between polling cycles; Command answers operator instructions
// while the bot is running.
type Logic interface {
	Run(ctx context.Context, b *Bot) error
	Command(ctx context.Context, b *Bot, instruction string) (any, error)
}

// Starter is implemented by logic that needs configuration before Run.
type Starter interface {
	Start(ctx context.Context, b *Bot, args map[string]any) error
}

// Resource is an operator-facing collaborator shared between bots. Bots may
// call Command concurrently; implementations serialize themselves.
type Resource interface {
	Command(ctx context.Context, instruction string) (any, error)
}

// ClassFactory builds a fresh Logic value.
type ClassFactory func() Logic

var (
	classesMu sync.RWMutex
	classes   = map[string]ClassFactory{}
)

// RegisterClass registers a bot class under one or more names.
func RegisterClass(name string, factory ClassFactory, aliases ...string) {
	classesMu.Lock()
	defer classesMu.Unlock()

	all := append([]string{name}, aliases...)
	for _, n := range all {
		classes[strings.ToLower(n)] = factory
	}
}

// NewLogic returns a fresh Logic for class.
func NewLogic(class string) (Logic, error) {
	key := strings.ToLower(strings.TrimSpace(class))

	classesMu.RLock()
	factory := classes[key]
	if factory == nil {
		// Dotted import paths such as "bots.hello_bot.HelloBot" match on
		// their last segment.
		if i := strings.LastIndex(key, "."); i >= 0 {
			factory = classes[key[i+1:]]
		}
	}
	classesMu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return factory(), nil
}

// Classes lists registered class names.
func Classes() []string {
	classesMu.RLock()
	defer classesMu.RUnlock()

	out := make([]string, 0, len(classes))
	for k := range classes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
