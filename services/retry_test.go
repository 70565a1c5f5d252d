package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryEventuallySucceeds(t *testing.T) {
	r := NewRetry(log.NewLogger(log.DiscardHandler()), time.Second, time.Millisecond)
	calls := 0
	err := r.Try(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestTryForTimeTimesOut(t *testing.T) {
	r := NewRetry(log.NewLogger(log.DiscardHandler()), 0, 5*time.Millisecond)
	notYet := errors.New("not yet")

	start := time.Now()
	err := r.TryForTime(context.Background(), 50*time.Millisecond, func(context.Context) error {
		return notYet
	})
	require.ErrorIs(t, err, notYet)
	assert.Contains(t, err.Error(), "timed out after 50ms")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewRetryDefaults(t *testing.T) {
	r := NewRetry(log.NewLogger(log.DiscardHandler()), 0, 0)
	assert.Equal(t, DefaultTryTimeout, r.timeout)
	assert.Equal(t, DefaultTryInterval, r.interval)
}
