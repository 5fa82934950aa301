package repository

import (
	"context"

	"flightscout-service/internal/domain/entity"
)

// ScrapeSessionRepository defines the interface for session persistence
type ScrapeSessionRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*entity.ScrapeSession, error)
	FindRecent(ctx context.Context, limit int) ([]*entity.ScrapeSession, error)
	Save(ctx context.Context, session *entity.ScrapeSession) error
}

// ScrapeLogRepository defines the interface for the scraping log
type ScrapeLogRepository interface {
	Insert(ctx context.Context, log *entity.ScrapeLog) error
	FindBySessionID(ctx context.Context, sessionID string) ([]*entity.ScrapeLog, error)
}
