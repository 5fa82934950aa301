package scraper

import (
	"context"
	"fmt"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/pkg/logger"
)

// PhaseHook is told when a source enters a phase
type PhaseHook func(ctx context.Context, source string, phase Phase)

// Scrape runs both phases of src. Parameters are validated before any
// network call. A panic inside a phase is reported as that phase's error.
func Scrape(ctx context.Context, src Source, params entity.FlightSearchParams, log logger.Logger, onPhase PhaseHook) (*entity.ScrapeResult, error) {
	name := src.Name()
	log = log.With("source", name)
	started := time.Now()

	if onPhase != nil {
		onPhase(ctx, name, Phase1)
	}
	log.Info("Phase 1 started",
		"from", params.DepartureAirport,
		"to", params.ArrivalAirport,
		"date", params.DepartureDate)

	if err := ValidateParams(params); err != nil {
		log.Warn("Rejected search params", "phase", Phase1, "error", err)
		return nil, &PhaseError{Source: name, Phase: Phase1, Err: err}
	}

	var session *Session
	err := guard(func() (err error) {
		session, err = src.ExecutePhase1(ctx, params)
		return err
	})
	if err == nil && session == nil {
		err = fmt.Errorf("no session returned")
	}
	if err != nil {
		log.Error("Phase 1 failed", "phase", Phase1, "error", err)
		return nil, &PhaseError{Source: name, Phase: Phase1, Err: err}
	}
	log.Info("Phase 1 completed", "elapsed", time.Since(started))

	if onPhase != nil {
		onPhase(ctx, name, Phase2)
	}
	phase2Started := time.Now()

	var result *entity.ScrapeResult
	err = guard(func() (err error) {
		result, err = src.ExecutePhase2(ctx, params, session)
		return err
	})
	if err == nil && result == nil {
		err = fmt.Errorf("no result returned")
	}
	if err != nil {
		log.Error("Phase 2 failed", "phase", Phase2, "error", err)
		return nil, &PhaseError{Source: name, Phase: Phase2, Err: err}
	}

	log.Info("Phase 2 completed",
		"flights", len(result.Flights),
		"bundles", len(result.Bundles),
		"bookingOptions", len(result.BookingOptions),
		"trailingFragment", result.TrailingFragment,
		"elapsed", time.Since(phase2Started))

	return result, nil
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
