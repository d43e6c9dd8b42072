package webclient

import (
	"context"
	"time"

	"github.com/stake-plus/ibots/src/logging"
)

type AttemptFunc func() (status int, body []byte, err error)

// DoWithRetry retries the attempt function on 429/5xx responses and transient
// errors. Other errors are returned immediately.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	log := logging.ForComponent("webclient")
	delay := initialDelay
	for i := 0; i < attempts; i++ {
		status, body, err := fn()
		if err == nil && status != 429 && status < 500 {
			return status, body, nil
		}
		if err != nil && !logging.IsTransient(err) {
			return status, body, err
		}
		if i == attempts-1 {
			return status, body, err
		}
		log.Debug().Err(err).Int("status", status).Int("attempt", i+1).Dur("delay", delay).Msg("retrying request")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return 0, nil, context.DeadlineExceeded
}
