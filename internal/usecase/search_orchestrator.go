package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/logger"

	"github.com/google/uuid"
)

// SourceRegistry provides the scrapers a search runs against
type SourceRegistry interface {
	Sources() []scraper.Source
}

// SourceFailure reports why one source contributed nothing
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// SearchOutcome summarizes one finished search run
type SearchOutcome struct {
	SessionID        string               `json:"sessionId"`
	Status           entity.SessionStatus `json:"status"`
	Upsert           UpsertResult         `json:"upsert"`
	Failures         []SourceFailure      `json:"failures"`
	TrailingFragment bool                 `json:"trailingFragment"`
}

// SearchOrchestrator runs a search across all sources, stores the merged
// results and keeps the session and scrape log up to date.
type SearchOrchestrator struct {
	coordinator *scraper.Coordinator
	registry    SourceRegistry
	pipeline    *UpsertPipeline
	tracker     *SessionTracker
	logRepo     repository.ScrapeLogRepository
	logger      logger.Logger
	wg          sync.WaitGroup
}

// NewSearchOrchestrator creates a new search orchestrator
func NewSearchOrchestrator(
	coordinator *scraper.Coordinator,
	registry SourceRegistry,
	pipeline *UpsertPipeline,
	tracker *SessionTracker,
	logRepo repository.ScrapeLogRepository,
	logger logger.Logger,
) *SearchOrchestrator {
	return &SearchOrchestrator{
		coordinator: coordinator,
		registry:    registry,
		pipeline:    pipeline,
		tracker:     tracker,
		logRepo:     logRepo,
		logger:      logger,
	}
}

// StartSearch validates params, opens a session and runs the search in the
// background. The returned session is the initial, all idle state.
func (o *SearchOrchestrator) StartSearch(ctx context.Context, params entity.FlightSearchParams) (*entity.ScrapeSession, error) {
	if err := scraper.ValidateParams(params); err != nil {
		return nil, err
	}

	sources := o.registry.Sources()
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	session, err := o.tracker.Start(ctx, uuid.NewString(), params, sourceNames(sources))
	if err != nil {
		return nil, err
	}

	// the search outlives the request that started it
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, session.SessionID, params, sources)
	}()

	return session, nil
}

// Search runs a search to completion in the caller's goroutine
func (o *SearchOrchestrator) Search(ctx context.Context, params entity.FlightSearchParams) (*SearchOutcome, error) {
	sources := o.registry.Sources()
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}

	session, err := o.tracker.Start(ctx, uuid.NewString(), params, sourceNames(sources))
	if err != nil {
		return nil, err
	}
	return o.run(ctx, session.SessionID, params, sources), nil
}

// Wait blocks until every background search has finished
func (o *SearchOrchestrator) Wait() {
	o.wg.Wait()
}

func (o *SearchOrchestrator) run(ctx context.Context, sessionID string, params entity.FlightSearchParams, sources []scraper.Source) *SearchOutcome {
	log := o.logger.With("sessionId", sessionID)
	started := time.Now()

	obs := &sessionObserver{orchestrator: o, sessionID: sessionID, logger: log}
	all := o.coordinator.RunAllObserved(ctx, params, sources, obs)

	outcome := &SearchOutcome{SessionID: sessionID}
	for _, e := range all.Errors {
		outcome.Failures = append(outcome.Failures, SourceFailure{Source: e.Source, Error: e.Err.Error()})
	}

	results := make([]*entity.ScrapeResult, 0, len(all.Results))
	for _, r := range all.Results {
		results = append(results, r.Result)
	}
	merged := MergeResults(results...)
	outcome.TrailingFragment = merged.TrailingFragment
	if merged.TrailingFragment {
		log.Warn("Batch includes results delivered with the terminal poll response")
	}

	if len(all.Results) > 0 {
		outcome.Upsert = o.pipeline.Upsert(ctx, merged)
	} else {
		outcome.Upsert = UpsertResult{Message: "no source produced results"}
	}

	for _, r := range all.Results {
		records := r.Result.RecordCount()
		if outcome.Upsert.Success {
			msg := fmt.Sprintf("Stored %d records", records)
			o.updateSource(ctx, log, sessionID, r.Source, entity.SourceUpdate{
				Status:           entity.SourceCompleted,
				Message:          &msg,
				RecordsProcessed: &records,
			})
			o.writeLog(ctx, log, &entity.ScrapeLog{
				SessionID:        sessionID,
				Source:           r.Source,
				Event:            entity.LogEventSuccess,
				Phase:            string(scraper.Phase2),
				Message:          outcome.Upsert.Message,
				RecordsProcessed: records,
			})
			continue
		}

		errMsg := outcome.Upsert.Message
		o.updateSource(ctx, log, sessionID, r.Source, entity.SourceUpdate{
			Status: entity.SourceError,
			Error:  &errMsg,
		})
		o.writeLog(ctx, log, &entity.ScrapeLog{
			SessionID: sessionID,
			Source:    r.Source,
			Event:     entity.LogEventFailure,
			Message:   "Storing results failed: " + errMsg,
		})
	}

	if session, err := o.tracker.Get(ctx, sessionID); err == nil {
		outcome.Status = session.Status
	} else {
		log.Error("Failed to read back session", "error", err)
	}

	log.Info("Search finished",
		"status", outcome.Status,
		"succeeded", len(all.Results),
		"failed", len(all.Errors),
		"upsertSuccess", outcome.Upsert.Success,
		"elapsed", time.Since(started))
	return outcome
}

func (o *SearchOrchestrator) updateSource(ctx context.Context, log logger.Logger, sessionID, source string, su entity.SourceUpdate) {
	_, err := o.tracker.Update(ctx, entity.SessionUpdate{
		SessionID: sessionID,
		Sources:   map[string]entity.SourceUpdate{source: su},
	})
	if err != nil {
		log.Error("Failed to update session", "source", source, "error", err)
	}
}

func (o *SearchOrchestrator) writeLog(ctx context.Context, log logger.Logger, entry *entity.ScrapeLog) {
	if o.logRepo == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	if err := o.logRepo.Insert(ctx, entry); err != nil {
		log.Error("Failed to write scrape log", "source", entry.Source, "event", entry.Event, "error", err)
	}
}

func sourceNames(sources []scraper.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}

// sessionObserver mirrors coordinator progress into the session and scrape log
type sessionObserver struct {
	orchestrator *SearchOrchestrator
	sessionID    string
	logger       logger.Logger
}

func (s *sessionObserver) PhaseStarted(ctx context.Context, source string, phase scraper.Phase) {
	status := entity.SourcePhase1
	msg := "Acquiring search session"
	if phase == scraper.Phase2 {
		status = entity.SourcePhase2
		msg = "Extracting results"
	}
	s.orchestrator.updateSource(ctx, s.logger, s.sessionID, source, entity.SourceUpdate{Status: status, Message: &msg})

	if phase == scraper.Phase1 {
		s.orchestrator.writeLog(ctx, s.logger, &entity.ScrapeLog{
			SessionID: s.sessionID,
			Source:    source,
			Event:     entity.LogEventStart,
			Phase:     string(phase),
			Message:   "Scrape started",
		})
	}
}

func (s *sessionObserver) SourceSucceeded(ctx context.Context, source string, result *entity.ScrapeResult) {
	records := result.RecordCount()
	msg := fmt.Sprintf("Extracted %d records", records)
	s.orchestrator.updateSource(ctx, s.logger, s.sessionID, source, entity.SourceUpdate{
		Message:          &msg,
		RecordsProcessed: &records,
	})
}

func (s *sessionObserver) SourceFailed(ctx context.Context, source string, err error) {
	errMsg := err.Error()
	s.orchestrator.updateSource(ctx, s.logger, s.sessionID, source, entity.SourceUpdate{
		Status: entity.SourceError,
		Error:  &errMsg,
	})

	phase := ""
	var phaseErr *scraper.PhaseError
	if errors.As(err, &phaseErr) {
		phase = string(phaseErr.Phase)
	}
	s.orchestrator.writeLog(ctx, s.logger, &entity.ScrapeLog{
		SessionID: s.sessionID,
		Source:    source,
		Event:     entity.LogEventError,
		Phase:     phase,
		Message:   errMsg,
	})
}
