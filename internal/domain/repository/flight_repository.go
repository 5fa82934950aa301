package repository

import (
	"context"

	"flightscout-service/internal/domain/entity"
)

// FlightRepository defines the interface for flight operations
type FlightRepository interface {
	FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Flight, error)
	Create(ctx context.Context, flight *entity.Flight) error
}

// BundleRepository defines the interface for bundle operations
type BundleRepository interface {
	FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Bundle, error)
	FindBySearchID(ctx context.Context, searchID string) ([]*entity.Bundle, error)
	Create(ctx context.Context, bundle *entity.Bundle) error
}

// BookingOptionRepository defines the interface for booking option operations
type BookingOptionRepository interface {
	FindByTargetID(ctx context.Context, targetID uint) ([]*entity.BookingOption, error)
	Create(ctx context.Context, option *entity.BookingOption) error
	// Replace overwrites the option stored under option.UniqueID
	Replace(ctx context.Context, option *entity.BookingOption) error
}
