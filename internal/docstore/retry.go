package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/backoff/v2"
	log "github.com/sirupsen/logrus"
)

// RetryConfig bounds how often a conflicting transaction is re-run.
type RetryConfig struct {
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 250 * time.Millisecond,
	}
}

func (c RetryConfig) policy() backoff.Policy {
	// zero means unlimited to the backoff controller
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.MinBackoff <= 0 {
		return backoff.Constant(
			backoff.WithInterval(time.Millisecond),
			backoff.WithMaxRetries(c.MaxRetries),
		)
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = c.MinBackoff
	}
	return backoff.Exponential(
		backoff.WithMinInterval(c.MinBackoff),
		backoff.WithMaxInterval(c.MaxBackoff),
		backoff.WithJitterFactor(0.2),
		backoff.WithMaxRetries(c.MaxRetries),
	)
}

// withRetry runs attempt under the retry policy. Errors for which retryable
// reports false are returned as is; exhausting the policy yields ErrConflict.
func withRetry(ctx context.Context, cfg RetryConfig, attempt func() error, retryable func(error) bool) error {
	b := cfg.policy().Start(ctx)

	var (
		lastErr error
		n       int
	)
	for backoff.Continue(b) {
		n++
		lastErr = attempt()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		log.Debugf("docstore: transaction attempt %d conflicted: %v", n, lastErr)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if lastErr == nil {
		return ErrConflict
	}
	if errors.Is(lastErr, ErrConflict) {
		return fmt.Errorf("%w after %d attempts", lastErr, n)
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConflict, n, lastErr)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
