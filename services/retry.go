// Package services holds the built-in services every run can depend on.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/retry"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultTryTimeout  = 2 * time.Minute
	DefaultTryInterval = 500 * time.Millisecond
)

// Retry repeats a check until it passes or a deadline expires. Tests use it to
// wait for eventually consistent state.
type Retry struct {
	log      log.Logger
	timeout  time.Duration
	interval time.Duration
}

// NewRetry creates the retry service. Zero values select the defaults.
func NewRetry(logger log.Logger, timeout, interval time.Duration) *Retry {
	if timeout <= 0 {
		timeout = DefaultTryTimeout
	}
	if interval <= 0 {
		interval = DefaultTryInterval
	}
	return &Retry{log: logger, timeout: timeout, interval: interval}
}

// Try calls fn until it succeeds or the default timeout expires
func (r *Retry) Try(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.TryForTime(ctx, r.timeout, fn)
}

// TryForTime calls fn until it succeeds or timeout expires. The last error
// returned by fn is included in the timeout error.
func (r *Retry) TryForTime(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	attempt := 0
	_, err := retry.Do(ctx, math.MaxInt32, retry.Fixed(r.interval), func() (struct{}, error) {
		attempt++
		lastErr = fn(ctx)
		if lastErr != nil {
			r.log.Debug("Retrying", "attempt", attempt, "err", lastErr)
		}
		return struct{}{}, lastErr
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, lastErr)
	}
	return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
}
