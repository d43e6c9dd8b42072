// Package waiter bridges the remote activity tracker, which can only be
// polled, to the bot loops that block waiting for activity.
//
// At any moment there is exactly one current Signal. When the tracker
// changes, the current Signal fires and is replaced by a fresh one, so a
// loop that captured a Signal before the trigger always observes it, and
// observes it once no matter how many triggers follow.
package waiter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/ibots/src/logging"
)

// DefaultInterval is how often Run polls the tracker.
const DefaultInterval = 10 * time.Second

// Signal is a single-use wake-up: it fires at most once and never resets.
type Signal struct {
	done chan struct{}
}

func newSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Done is closed when the signal fires.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Poller returns the current tracker body.
type Poller interface {
	Poll(ctx context.Context) (string, error)
}

// Waiter owns the current Signal. Only Run (or Trigger) replaces it; any
// number of readers may call Current concurrently.
type Waiter struct {
	mu       sync.Mutex
	current  *Signal
	poller   Poller
	interval time.Duration
	log      zerolog.Logger
}

// New returns a waiter that polls p every interval once Run is started.
func New(p Poller, interval time.Duration) *Waiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Waiter{
		current:  newSignal(),
		poller:   p,
		interval: interval,
		log:      logging.ForComponent("waiter"),
	}
}

// Current returns the signal the next trigger will fire.
func (w *Waiter) Current() *Signal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Trigger fires the current signal and installs a fresh one.
func (w *Waiter) Trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.current.done)
	w.current = newSignal()
}

// Run polls until ctx is done, triggering whenever the tracker body changes.
// Poll errors are logged and the previous body is kept.
func (w *Waiter) Run(ctx context.Context) {
	if w.poller == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last string
	for {
		body, err := w.poller.Poll(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			w.log.Warn().Err(err).Msg("tracker poll failed")
		case body != last:
			w.log.Debug().Str("tracker", body).Msg("activity detected")
			last = body
			w.Trigger()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until sig fires, d elapses or ctx is done, and reports whether
// sig fired.
func Wait(ctx context.Context, sig *Signal, d time.Duration) bool {
	if sig.Fired() {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-sig.Done():
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return sig.Fired()
	}
}
