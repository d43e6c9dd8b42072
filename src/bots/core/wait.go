package core

import (
	"context"
	"fmt"
	"time"

	"github.com/stake-plus/ibots/src/bots/result"
	"github.com/stake-plus/ibots/src/bots/waiter"
)

// WaitOptions tunes Wait.
type WaitOptions struct {
	// Timeout returns control after this long even if nothing happened.
	// Zero waits indefinitely.
	Timeout time.Duration
	// ExitAny returns on any remote activity instead of only on activity that
	// left unseen notifications for this bot.
	ExitAny bool
}

// Wait suspends the bot until remote activity concerns it, the timeout
// elapses, or a stop is requested. Each pass, in order: a stop request saves
// state and returns ErrStopped; an interact request records an inspection
// and clears the flag; otherwise the bot blocks on the current wait signal
// for one slice. A fired signal returns when ExitAny is set or the notifier
// reports unseen notifications (which are then marked seen); anything else
// re-enters the wait on the freshest signal.
func (b *Bot) Wait(ctx context.Context, opts WaitOptions) error {
	start := time.Now()
	b.waits.Add(1)
	sig := b.waiter.Current()

	for {
		if b.stop.Load() || ctx.Err() != nil {
			if err := b.SaveState(context.WithoutCancel(ctx)); err != nil {
				b.log.Error().Err(err).Msg("failed to save state on stop")
			}
			return ErrStopped
		}

		if b.interact.CompareAndSwap(true, false) {
			insp := b.Inspect()
			b.log.Info().Str("inspection", insp.ID).Interface("state", insp.State).
				Int64("waits", insp.Waits).Int64("wakes", insp.Wakes).Msg("interactive inspection")
		}

		if waiter.Wait(ctx, sig, b.waitSlice) {
			b.wakes.Add(1)
			if opts.ExitAny {
				return nil
			}
			unseen, err := b.checkNotifier(ctx)
			if err != nil {
				b.log.Warn().Err(err).Msg("notifier check failed")
			} else if unseen {
				return nil
			}
			sig = b.waiter.Current()
		}

		if opts.Timeout > 0 && time.Since(start) >= opts.Timeout {
			return nil
		}
	}
}

// checkNotifier reports whether this bot has unseen notifications and, if
// so, marks them seen.
func (b *Bot) checkNotifier(ctx context.Context) (bool, error) {
	op, err := b.ops.Lookup("_notifier")
	if err != nil {
		return false, err
	}
	resp, err := b.call(ctx, kindNode, op, Vars{"id": b.BID})
	if err != nil {
		return false, err
	}
	top, err := result.Unwrap(resp.Data)
	if err != nil {
		return false, err
	}
	notifier, _ := result.Collapse(top).(map[string]any)
	count, ok := result.Record(notifier).Int("unseen_count")
	if !ok {
		return false, fmt.Errorf("core: _notifier: %w: unseen_count missing", result.ErrShape)
	}
	if count <= 0 {
		return false, nil
	}

	upd, err := b.ops.Lookup("_notifier_update")
	if err != nil {
		return true, err
	}
	if _, err := b.call(ctx, kindUpdate, upd, Vars{"id": b.BID, "last_seen": time.Now().UTC().Format(time.RFC3339)}); err != nil {
		b.log.Warn().Err(err).Msg("failed to mark notifications seen")
	}
	return true, nil
}
