package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired is returned when a lock could not be taken before the wait ran out
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLeaseLost is returned on unlock when the lease expired or changed hands while held
	ErrLeaseLost = errors.New("lock lease lost")
)

// Unlock releases a held lock
type Unlock func(ctx context.Context) error

// keepAlive calls extend every interval until ctx ends. It returns ErrLeaseLost
// as soon as extend reports the lease is gone. Extend errors are retried on the
// next tick.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error)) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			held, err := extend(ctx)
			if err != nil {
				continue
			}
			if !held {
				return ErrLeaseLost
			}
		}
	}
}
