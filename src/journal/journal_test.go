package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *memorySink) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

func TestRingKeepsNewestInOrder(t *testing.T) {
	j := New("greeter", 3, nil)
	assert.Empty(t, j.Entries())

	for i := 0; i < 5; i++ {
		j.Record(context.Background(), Entry{Operation: fmt.Sprintf("op%d", i), OK: true})
	}
	got := j.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "op2", got[0].Operation)
	assert.Equal(t, "op4", got[2].Operation)
	for _, e := range got {
		assert.Equal(t, "greeter", e.Bot)
		assert.False(t, e.Time.IsZero())
	}
}

func TestPartialRing(t *testing.T) {
	j := New("greeter", 0, nil)
	j.Record(context.Background(), Entry{Operation: "a"})
	j.Record(context.Background(), Entry{Operation: "b"})
	got := j.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Operation)
}

func TestSinkFailuresAreSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	j := New("greeter", 2, sink)
	j.Record(context.Background(), Entry{Operation: "create_post", Kind: "create"})

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "greeter", sink.entries[0].Bot)
	assert.Len(t, j.Entries(), 1)
}

type historySink struct {
	memorySink
	recent []Entry
	err    error
}

func (s *historySink) Recent(_ context.Context, bot string, limit int) ([]Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Entry
	for _, e := range s.recent {
		if e.Bot == bot && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRestoreSeedsFromHistory(t *testing.T) {
	sink := &historySink{recent: []Entry{
		{Bot: "greeter", Operation: "c"},
		{Bot: "other", Operation: "x"},
		{Bot: "greeter", Operation: "b"},
		{Bot: "greeter", Operation: "a"},
	}}
	j := New("greeter", 2, sink)
	require.NoError(t, j.Restore(context.Background()))

	got := j.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Operation)
	assert.Equal(t, "c", got[1].Operation)

	j.Record(context.Background(), Entry{Operation: "d"})
	got = j.Entries()
	assert.Equal(t, "c", got[0].Operation)
	assert.Equal(t, "d", got[1].Operation)
}

func TestRestoreWithoutHistory(t *testing.T) {
	j := New("greeter", 2, &memorySink{})
	require.NoError(t, j.Restore(context.Background()))
	assert.Empty(t, j.Entries())

	failing := New("greeter", 2, &historySink{err: errors.New("db down")})
	assert.Error(t, failing.Restore(context.Background()))
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "ibots_journal", Entry{}.TableName())
}
