package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo_BackoffSchedule(t *testing.T) {
	var waits []time.Duration
	calls := 0
	cfg := Config{
		Attempts: 3,
		Sleep: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	assert.EqualError(t, err, "transient")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDo_StopsOnSuccessAndNonRetryable(t *testing.T) {
	noSleep := func(context.Context, time.Duration) error { return nil }
	calls := 0
	err := Do(context.Background(), Config{Attempts: 3, Sleep: noSleep}, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("once")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	fatal := errors.New("fatal")
	calls = 0
	err = Do(context.Background(), Config{
		Attempts:  3,
		Sleep:     noSleep,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(ctx context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{Attempts: 2}, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
