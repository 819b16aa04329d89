package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForImmediateSuccess(t *testing.T) {
	ok := waitFor(context.Background(), time.Second, time.Millisecond, func() bool { return true })
	assert.True(t, ok)
}

func TestWaitForEventualSuccess(t *testing.T) {
	var n atomic.Int32
	ok := waitFor(context.Background(), time.Second, time.Millisecond, func() bool {
		return n.Add(1) >= 5
	})
	assert.True(t, ok)
}

func TestWaitForTimeout(t *testing.T) {
	start := time.Now()
	ok := waitFor(context.Background(), 50*time.Millisecond, 5*time.Millisecond, func() bool { return false })
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := waitFor(ctx, time.Second, time.Millisecond, func() bool { return false })
	assert.False(t, ok)
}

func TestRunWithTimeoutCompletes(t *testing.T) {
	err := runWithTimeout(time.Second, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRunWithTimeoutPropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := runWithTimeout(time.Second, func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestRunWithTimeoutGivesUp(t *testing.T) {
	err := runWithTimeout(20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
