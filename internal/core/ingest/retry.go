package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-rag/config"
	"portfolio-rag/pkg/logger"
)

var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

// RetryPolicy bounds how often a collaborator call is retried. Every attempt
// gets its own CallTimeout; an attempt that times out is retried like any
// other failure. Only cancellation of the parent context stops early.
type RetryPolicy struct {
	MaxAttempts int
	// BaseDelay doubles after every failed attempt.
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

// Do runs op until it succeeds or the attempts are spent. It returns the
// number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts <= 0 {
		return 0, ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = p.call(ctx, op)
		if lastErr == nil {
			if attempt > 1 {
				logger.For(config.ModuleUpserter).WithField("attempt", attempt).Debug("succeeded after retry")
			}
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		logger.For(config.ModuleUpserter).WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": p.MaxAttempts,
			"error":        lastErr.Error(),
		}).Warn("attempt failed")

		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return p.MaxAttempts, lastErr
}

func (p RetryPolicy) call(ctx context.Context, op func(ctx context.Context) error) error {
	if p.CallTimeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
	defer cancel()
	err := op(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("call timed out after %s: %w", p.CallTimeout, err)
	}
	return err
}

// backoff is BaseDelay * 2^(attempt-1).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
