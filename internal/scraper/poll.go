package scraper

import (
	"context"
	"time"
)

// PollFunc performs one poll iteration and reports whether the remote side signalled completion
type PollFunc func(ctx context.Context, iteration int) (done bool, err error)

// PollOutcome summarizes a poll loop
type PollOutcome struct {
	Iterations int
	Completed  bool
}

// PollUntilDone calls poll at most maxIterations times, sleeping interval
// between non-terminal iterations. Reaching the cap is not an error; the
// outcome reports Completed=false.
func PollUntilDone(ctx context.Context, maxIterations int, interval time.Duration, poll PollFunc) (PollOutcome, error) {
	var outcome PollOutcome
	for i := 1; i <= maxIterations; i++ {
		outcome.Iterations = i

		done, err := poll(ctx, i)
		if err != nil {
			return outcome, err
		}
		if done {
			outcome.Completed = true
			return outcome, nil
		}

		if i < maxIterations {
			if err := sleep(ctx, interval); err != nil {
				return outcome, err
			}
		}
	}
	return outcome, nil
}
