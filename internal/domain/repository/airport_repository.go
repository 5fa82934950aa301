package repository

import (
	"context"

	"flightscout-service/internal/domain/entity"
)

// AirportRepository defines the interface for airport lookups
type AirportRepository interface {
	GetByIATACode(ctx context.Context, code string) (*entity.Airport, error)
}
