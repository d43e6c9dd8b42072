package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/result"
	"github.com/stake-plus/ibots/src/journal"
)

const (
	ConnectionConnected    = "connected"
	ConnectionDisconnected = "disconnected"

	maxInspections = 5
)

// statusQuery bypasses the catalog so a status probe never recurses through
// the journaled operation path.
const statusQuery = `query Status($id: ID!) {
  person(id: $id) {
    id
    username
    name
    balance
  }
}`

// Report is a bot's connectivity snapshot.
type Report struct {
	Connection string          `json:"API Connection"`
	Identity   string          `json:"Logged in as,omitempty"`
	Balance    string          `json:"Balance,omitempty"`
	Recent     []journal.Entry `json:"Recent calls,omitempty"`
}

// Status probes the remote endpoint directly. A failed probe is reported as
// disconnected, never as an error.
func (b *Bot) Status(ctx context.Context) Report {
	rep := Report{Connection: ConnectionDisconnected, Recent: b.journal.Entries()}
	resp, err := b.transport.ExecuteRaw(ctx, statusQuery, map[string]any{"id": b.BID.ID})
	if err != nil || resp == nil {
		b.log.Debug().Err(err).Msg("status probe failed")
		return rep
	}
	person, _ := resp.Data["person"].(map[string]any)
	if person == nil {
		return rep
	}
	rec := result.Record(person)
	rep.Connection = ConnectionConnected
	rep.Identity = fmt.Sprintf("%s (%s)", rec.String("username"), rec.String("name"))
	if cents, ok := rec.Int("balance"); ok {
		rep.Balance = FormatCents(cents)
	}
	return rep
}

// FormatCents renders integer cents as dollars, e.g. 1234 as "$12.34".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Inspection is a point-in-time view of a bot's live variables, taken from
// inside its own worker when an operator asks to interact with it.
type Inspection struct {
	ID          string          `json:"id"`
	Bot         string          `json:"bot"`
	BID         bid.BID         `json:"bid"`
	Taken       time.Time       `json:"taken"`
	State       map[string]any  `json:"state"`
	Waits       int64           `json:"waits"`
	Wakes       int64           `json:"wakes"`
	Stopping    bool            `json:"stopping"`
	RecentCalls []journal.Entry `json:"recent_calls"`
}

// Inspect snapshots the bot and retains the snapshot. It must run on the
// bot's own worker since it reads State.
func (b *Bot) Inspect() Inspection {
	insp := Inspection{
		ID:          uuid.NewString(),
		Bot:         b.Name,
		BID:         b.BID,
		Taken:       time.Now().UTC(),
		State:       copyState(b.State),
		Waits:       b.waits.Load(),
		Wakes:       b.wakes.Load(),
		Stopping:    b.stop.Load(),
		RecentCalls: b.journal.Entries(),
	}

	b.inspectMu.Lock()
	b.inspections = append(b.inspections, insp)
	if len(b.inspections) > maxInspections {
		b.inspections = b.inspections[len(b.inspections)-maxInspections:]
	}
	b.inspectMu.Unlock()
	return insp
}

// Inspections returns retained snapshots, oldest first. Safe from any
// goroutine.
func (b *Bot) Inspections() []Inspection {
	b.inspectMu.Lock()
	defer b.inspectMu.Unlock()
	out := make([]Inspection, len(b.inspections))
	copy(out, b.inspections)
	return out
}

func copyState(st map[string]any) map[string]any {
	raw, err := json.Marshal(st)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}
