package acceptor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerTestLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestDefaultTestScheduler_RunOnce(t *testing.T) {
	callCount := 0
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, schedulerTestLogger())
	scheduler.RegisterCallback(func() error {
		callCount++
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	require.NoError(t, err)

	// In run-once mode the callback runs inline, exactly once.
	assert.Equal(t, 1, callCount)

	// Wait a bit to make sure no more calls happen.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, callCount)
}

func TestDefaultTestScheduler_Periodic(t *testing.T) {
	callChan := make(chan struct{}, 10)
	expectedCalls := 4

	scheduler := NewDefaultTestScheduler(10*time.Millisecond, false, schedulerTestLogger())
	scheduler.RegisterCallback(func() error {
		callChan <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := scheduler.Start(ctx)
	require.NoError(t, err)

	for i := 0; i < expectedCalls; i++ {
		select {
		case <-callChan:
		case <-time.After(1 * time.Second):
			t.Fatalf("Timed out waiting for callback execution %d/%d", i+1, expectedCalls)
		}
	}

	err = scheduler.Stop()
	require.NoError(t, err)
	assert.True(t, scheduler.Stopped())

	// Drain any run that was already in flight when Stop was called, then
	// verify no further runs fire.
	time.Sleep(50 * time.Millisecond)
	for len(callChan) > 0 {
		<-callChan
	}
	select {
	case <-callChan:
		t.Fatal("Expected no more calls after stopping")
	case <-time.After(50 * time.Millisecond):
	}

	err = scheduler.WaitForShutdown(ctx)
	assert.NoError(t, err)
}

func TestDefaultTestScheduler_CallbackError(t *testing.T) {
	expectedError := errors.New("suite run failed")

	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, schedulerTestLogger())
	scheduler.RegisterCallback(func() error {
		return expectedError
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// In run-once mode the callback error propagates out of Start.
	err := scheduler.Start(ctx)
	assert.Error(t, err)
	assert.Equal(t, expectedError, err)
}

func TestDefaultTestScheduler_NoCallback(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, schedulerTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "callback must be registered")
}

func TestDefaultTestScheduler_AlreadyStopped(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, schedulerTestLogger())
	scheduler.RegisterCallback(func() error {
		return nil
	})

	err := scheduler.Stop()
	assert.NoError(t, err, "Stop should be idempotent")

	err = scheduler.Stop()
	assert.NoError(t, err, "Second stop should also succeed")
}

func TestDefaultTestScheduler_WaitForShutdown(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, false, schedulerTestLogger())
	scheduler.RegisterCallback(func() error {
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	require.NoError(t, err)

	err = scheduler.Stop()
	require.NoError(t, err)

	err = scheduler.WaitForShutdown(ctx)
	assert.NoError(t, err, "WaitForShutdown should succeed after stopping")
}
