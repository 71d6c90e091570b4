package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adamancini/strata/internal/logging"
)

const maxRetryInterval = time.Minute

// newBackOff returns the delay policy between git attempts: initialDelay,
// then doubling, with no jitter, for attempts-1 retries.
func newBackOff(ctx context.Context, attempts int, initialDelay time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// acquireWithRetry runs the acquirer until it succeeds or the attempts are
// used up. dir is emptied before every retry. The returned error joins the
// failure of every attempt.
func (s *Source) acquireWithRetry(ctx context.Context, dir string) error {
	log := logging.FromContext(ctx)

	var errs []error
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			if err := resetDir(dir); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := s.acquirer.Acquire(ctx, s.URL, dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Debug("git acquisition failed, retrying", "url", s.URL, "attempt", attempt, "next", next, "err", err)
	}

	err := backoff.RetryNotifyWithTimer(op, newBackOff(ctx, s.attempts, s.initialDelay), notify, s.timer)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(append([]error{ctxErr}, errs...)...)
	}
	if len(errs) == 0 {
		return err
	}
	return fmt.Errorf("failed after %d attempts: %w", attempt, errors.Join(errs...))
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to reset %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to reset %s: %w", dir, err)
	}
	return nil
}
