package llm

import (
	"context"
	log "log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn up to attempts times with no delay between tries. It stops
// early when ctx is done or fn returns a backoff.Permanent error.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1)), ctx)

	try := 0
	return backoff.RetryNotify(func() error {
		try++
		return fn()
	}, b, func(err error, _ time.Duration) {
		log.Warn("LLM call failed, retrying", "attempt", try, "of", attempts, "err", err)
	})
}
