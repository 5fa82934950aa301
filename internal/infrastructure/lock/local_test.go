package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "upsert")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected at most 1 concurrent holder, got %d", maxActive)
	}
}

func TestLocalLockerHonorsContext(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	// Other keys are independent
	other, err := locker.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("Expected independent key to lock, got %v", err)
	}
	_ = other(context.Background())
}

func TestLocalUnlockIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, _ := locker.Lock(ctx, "k")
	_ = unlock(ctx)
	_ = unlock(ctx)

	done := make(chan struct{})
	go func() {
		u, _ := locker.Lock(ctx, "k")
		_ = u(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected lock to be free after unlock")
	}
}
