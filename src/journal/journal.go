// Package journal records the remote calls each bot makes: a small in-memory
// ring reported by status and inspections, optionally mirrored to a Sink.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/ibots/src/logging"
)

// DefaultSize is the number of calls kept in memory per bot.
const DefaultSize = 10

// Entry is one remote call.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Bot       string    `gorm:"size:64;index" json:"bot"`
	Time      time.Time `gorm:"index" json:"time"`
	Kind      string    `gorm:"size:16" json:"kind"`
	Operation string    `gorm:"size:64" json:"operation"`
	Variables string    `gorm:"type:text" json:"variables,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
}

// TableName pins the journal table name.
func (Entry) TableName() string { return "ibots_journal" }

// Sink receives every entry after it is added to the ring.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// History is implemented by sinks that can return what they stored.
type History interface {
	Recent(ctx context.Context, bot string, limit int) ([]Entry, error)
}

// Journal is a bounded, concurrency-safe ring of recent entries.
type Journal struct {
	mu      sync.Mutex
	bot     string
	entries []Entry
	next    int
	full    bool
	sink    Sink
	log     zerolog.Logger
}

// New returns a journal for bot holding the last size entries.
func New(bot string, size int, sink Sink) *Journal {
	if size <= 0 {
		size = DefaultSize
	}
	return &Journal{
		bot:     bot,
		entries: make([]Entry, size),
		sink:    sink,
		log:     logging.ForComponent("journal").With().Str("bot", bot).Logger(),
	}
}

// Restore seeds an empty ring from the sink's history, when it keeps one.
func (j *Journal) Restore(ctx context.Context) error {
	h, ok := j.sink.(History)
	if !ok {
		return nil
	}
	recent, err := h.Recent(ctx, j.bot, len(j.entries))
	if err != nil {
		return fmt.Errorf("journal: restore %s: %w", j.bot, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.next != 0 || j.full {
		return nil
	}
	for i := len(recent) - 1; i >= 0; i-- {
		j.entries[j.next] = recent[i]
		j.next = (j.next + 1) % len(j.entries)
		if j.next == 0 {
			j.full = true
		}
	}
	return nil
}

// Record stamps e with the bot name (and time when unset), keeps it, and
// forwards it to the sink. Sink failures are logged and never returned.
func (j *Journal) Record(ctx context.Context, e Entry) {
	e.Bot = j.bot
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	j.mu.Lock()
	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	j.mu.Unlock()

	if j.sink == nil {
		return
	}
	if err := j.sink.Record(ctx, e); err != nil {
		j.log.Warn().Err(err).Str("operation", e.Operation).Msg("journal sink failed")
	}
}

// Entries returns the retained entries, oldest first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.full {
		out := make([]Entry, j.next)
		copy(out, j.entries[:j.next])
		return out
	}
	out := make([]Entry, 0, len(j.entries))
	out = append(out, j.entries[j.next:]...)
	out = append(out, j.entries[:j.next]...)
	return out
}
