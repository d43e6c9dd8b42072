// Package state persists each bot's JSON state document. A document is owned
// by exactly one bot worker; stores do not arbitrate between writers.
package state

import (
	"context"
	"errors"
	"strings"
)

// ErrNotExist is returned by Load when a bot has no stored state yet.
var ErrNotExist = errors.New("state: not found")

// Store loads and saves raw state documents keyed by bot name.
type Store interface {
	Load(ctx context.Context, bot string) ([]byte, error)
	Save(ctx context.Context, bot string, data []byte) error
	Delete(ctx context.Context, bot string) error
}

func sanitizeSegment(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}

	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '\\' || r == '.':
			b.WriteRune('-')
		}
	}

	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
