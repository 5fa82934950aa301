// Package scraper defines the two-phase source protocol and runs sources.
//
// Phase 1 bootstraps a session with the remote site. Phase 2 uses that
// session to fetch results, either in one response or through a bounded
// poll loop. Every failure leaving a source is a *PhaseError naming the
// source and the phase.
package scraper

import (
	"context"
	"fmt"
	"net/http"

	"flightscout-service/internal/domain/entity"
)

// Phase names a step of the scrape protocol
type Phase string

// Protocol phases
const (
	Phase1 Phase = "phase1"
	Phase2 Phase = "phase2"
)

// Session is the state Phase 1 hands to Phase 2
type Session struct {
	Token   string
	Cookies []*http.Cookie
	Values  map[string]string
}

// Source is one travel-search site
type Source interface {
	Name() string
	ExecutePhase1(ctx context.Context, params entity.FlightSearchParams) (*Session, error)
	ExecutePhase2(ctx context.Context, params entity.FlightSearchParams, session *Session) (*entity.ScrapeResult, error)
}

// PhaseError attributes a failure to a source and phase
type PhaseError struct {
	Source string
	Phase  Phase
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
