package scraper

import (
	"context"
	"fmt"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/pkg/logger"
	"flightscout-service/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// SourceResult is the full output of one successful source
type SourceResult struct {
	Source string               `json:"source"`
	Result *entity.ScrapeResult `json:"result"`
}

// SourceError is the failure of one source
type SourceError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

// Error returns the failure message
func (e SourceError) Error() string {
	return e.Err.Error()
}

// RunAllResult holds every source's outcome, in source order
type RunAllResult struct {
	Results []SourceResult `json:"results"`
	Errors  []SourceError  `json:"errors"`
}

// Observer receives per-source progress while RunAll executes.
// Methods may be called concurrently for different sources.
type Observer interface {
	PhaseStarted(ctx context.Context, source string, phase Phase)
	SourceSucceeded(ctx context.Context, source string, result *entity.ScrapeResult)
	SourceFailed(ctx context.Context, source string, err error)
}

// Coordinator runs sources concurrently, isolating their failures
type Coordinator struct {
	logger   logger.Logger
	metrics  *metrics.Metrics
	deadline time.Duration
}

// NewCoordinator creates a coordinator. A positive deadline bounds each source's run.
func NewCoordinator(log logger.Logger, m *metrics.Metrics, deadline time.Duration) *Coordinator {
	return &Coordinator{
		logger:   log,
		metrics:  m,
		deadline: deadline,
	}
}

// RunAll scrapes every source and waits for all of them to settle
func (c *Coordinator) RunAll(ctx context.Context, params entity.FlightSearchParams, sources []Source) RunAllResult {
	return c.RunAllObserved(ctx, params, sources, nil)
}

// RunAllObserved is RunAll reporting progress to obs, which may be nil
func (c *Coordinator) RunAllObserved(ctx context.Context, params entity.FlightSearchParams, sources []Source, obs Observer) RunAllResult {
	type outcome struct {
		result *entity.ScrapeResult
		err    error
	}
	outcomes := make([]outcome, len(sources))

	// every task returns nil so one failure never cancels its siblings
	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			result, err := c.runOne(ctx, src, params, obs)
			outcomes[i] = outcome{result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var all RunAllResult
	for i, o := range outcomes {
		name := sources[i].Name()
		if o.err != nil {
			all.Errors = append(all.Errors, SourceError{Source: name, Err: o.err})
			continue
		}
		all.Results = append(all.Results, SourceResult{Source: name, Result: o.result})
	}

	c.logger.Info("All sources settled",
		"sources", len(sources),
		"succeeded", len(all.Results),
		"failed", len(all.Errors))
	return all
}

func (c *Coordinator) runOne(ctx context.Context, src Source, params entity.FlightSearchParams, obs Observer) (result *entity.ScrapeResult, err error) {
	name := src.Name()
	started := time.Now()

	// observer calls use the parent context so they still run after a source deadline
	runCtx := ctx
	if c.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{Source: name, Phase: "run", Err: fmt.Errorf("panic: %v", r)}
			result = nil
		}

		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.metrics.ObserveScrape(name, outcome, time.Since(started))

		if obs == nil {
			return
		}
		if err != nil {
			obs.SourceFailed(ctx, name, err)
		} else {
			obs.SourceSucceeded(ctx, name, result)
		}
	}()

	var hook PhaseHook
	if obs != nil {
		hook = func(_ context.Context, source string, phase Phase) {
			obs.PhaseStarted(ctx, source, phase)
		}
	}
	return Scrape(runCtx, src, params, c.logger, hook)
}
