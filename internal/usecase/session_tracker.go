package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
	"flightscout-service/pkg/logger"
)

// SessionPublisher receives every persisted session update
type SessionPublisher interface {
	Publish(ctx context.Context, session *entity.ScrapeSession, update entity.SessionUpdate) error
}

// DeriveOverallStatus computes the session status from the source states.
// It is recomputed from scratch on every update.
func DeriveOverallStatus(sources map[string]entity.SourceProgress) entity.SessionStatus {
	if len(sources) == 0 {
		return entity.SessionFailed
	}

	succeeded := 0
	for _, p := range sources {
		if !p.Status.IsTerminal() {
			return entity.SessionInProgress
		}
		if p.Status == entity.SourceCompleted {
			succeeded++
		}
	}

	switch succeeded {
	case len(sources):
		return entity.SessionCompleted
	case 0:
		return entity.SessionFailed
	default:
		return entity.SessionPartialSuccess
	}
}

// SessionTracker merges partial source updates into persisted sessions
type SessionTracker struct {
	repo      repository.ScrapeSessionRepository
	publisher SessionPublisher
	logger    logger.Logger
	mu        sync.Mutex
	now       func() time.Time
}

// NewSessionTracker creates a new session tracker. publisher may be nil.
func NewSessionTracker(repo repository.ScrapeSessionRepository, publisher SessionPublisher, logger logger.Logger) *SessionTracker {
	return &SessionTracker{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Start creates a session with every source idle
func (t *SessionTracker) Start(ctx context.Context, sessionID string, params entity.FlightSearchParams, sources []string) (*entity.ScrapeSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	session := &entity.ScrapeSession{
		SessionID: sessionID,
		Params:    params,
		Sources:   make(map[string]entity.SourceProgress, len(sources)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, name := range sources {
		session.Sources[name] = entity.SourceProgress{Status: entity.SourceIdle, UpdatedAt: now}
	}
	session.Status = DeriveOverallStatus(session.Sources)

	if err := t.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	t.logger.Info("Scrape session started", "sessionId", sessionID, "sources", sources)
	return session, nil
}

// Update applies a partial update, re-derives the overall status, persists
// the session and publishes the change.
func (t *SessionTracker) Update(ctx context.Context, update entity.SessionUpdate) (*entity.ScrapeSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, err := t.repo.FindBySessionID(ctx, update.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", update.SessionID, err)
	}

	now := t.now()
	if session.Sources == nil {
		session.Sources = make(map[string]entity.SourceProgress)
	}
	for name, su := range update.Sources {
		progress, ok := session.Sources[name]
		if !ok {
			progress.Status = entity.SourceIdle
		}

		if su.Status != "" {
			if progress.Status.IsTerminal() && su.Status != progress.Status {
				t.logger.Warn("Ignoring status change of finished source",
					"sessionId", update.SessionID,
					"source", name,
					"from", progress.Status,
					"to", su.Status)
			} else {
				progress.Status = su.Status
			}
		}
		if su.Message != nil {
			progress.Message = *su.Message
		}
		if su.RecordsProcessed != nil {
			progress.RecordsProcessed = *su.RecordsProcessed
		}
		if su.Error != nil {
			progress.Error = *su.Error
		}
		progress.UpdatedAt = now
		session.Sources[name] = progress
	}

	session.Status = DeriveOverallStatus(session.Sources)
	session.UpdatedAt = now
	if session.Status != entity.SessionInProgress && session.CompletedAt == nil {
		session.CompletedAt = &now
	}

	if err := t.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", update.SessionID, err)
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, session, update); err != nil {
			t.logger.Warn("Failed to publish session update", "sessionId", update.SessionID, "error", err)
		}
	}
	return session, nil
}

// Get returns one session
func (t *SessionTracker) Get(ctx context.Context, sessionID string) (*entity.ScrapeSession, error) {
	return t.repo.FindBySessionID(ctx, sessionID)
}

// ListRecent returns the most recently created sessions, newest first
func (t *SessionTracker) ListRecent(ctx context.Context, limit int) ([]*entity.ScrapeSession, error) {
	if limit <= 0 {
		limit = 20
	}
	return t.repo.FindRecent(ctx, limit)
}
