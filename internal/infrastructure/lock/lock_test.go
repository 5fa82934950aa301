package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func runKeepAlive(ctx context.Context, extend func(context.Context) (bool, error)) chan error {
	done := make(chan error, 1)
	go func() {
		done <- keepAlive(ctx, 5*time.Millisecond, extend)
	}()
	return done
}

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	done := runKeepAlive(ctx, func(context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Expected nil after stop, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("Expected at least 3 renewals, got %d", got)
	}
}

func TestKeepAliveReportsLostLease(t *testing.T) {
	var calls int32
	done := runKeepAlive(context.Background(), func(context.Context) (bool, error) {
		// a transient error first, then the key belongs to someone else
		if atomic.AddInt32(&calls, 1) == 1 {
			return false, errors.New("connection reset")
		}
		return false, nil
	})

	select {
	case err := <-done:
		if !errors.Is(err, ErrLeaseLost) {
			t.Errorf("Expected ErrLeaseLost, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected keepAlive to stop once the lease was lost")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 renewal attempts, got %d", got)
	}
}
