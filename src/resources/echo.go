package resources

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/logging"
)

const defaultEchoHistory = 50

func init() {
	Register("echo", NewEcho)
}

// Echo acknowledges every instruction and keeps a bounded history of them.
// "history" returns that history instead of being recorded.
type Echo struct {
	mu      *sync.Mutex
	prefix  string
	limit   int
	history []string
	log     zerolog.Logger
}

// NewEcho is the echo Factory. Args: prefix (default "echo"), history.
func NewEcho(mu *sync.Mutex, args map[string]any) (core.Resource, error) {
	e := &Echo{
		mu:     mu,
		prefix: stringArg(args, "prefix"),
		limit:  defaultEchoHistory,
		log:    logging.ForComponent("resource.echo"),
	}
	if e.prefix == "" {
		e.prefix = "echo"
	}
	if n, ok := intArg(args, "history"); ok && n > 0 {
		e.limit = n
	}
	return e, nil
}

func (e *Echo) Command(_ context.Context, instruction string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	instruction = strings.TrimSpace(instruction)
	if instruction == "history" {
		out := make([]string, len(e.history))
		copy(out, e.history)
		return out, nil
	}

	e.history = append(e.history, instruction)
	if len(e.history) > e.limit {
		e.history = e.history[len(e.history)-e.limit:]
	}
	e.log.Info().Str("instruction", instruction).Msg("resource command")
	return e.prefix + ": " + instruction, nil
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
