package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// FlightModel GORM model for stored flights
type FlightModel struct {
	ID                 uint   `gorm:"primaryKey"`
	UniqueID           string `gorm:"column:unique_id;not null;uniqueIndex:uq_flights_unique_id"`
	FlightNumber       string `gorm:"column:flight_number;index"`
	DepartureAirportID uint   `gorm:"column:departure_airport_id;not null"`
	ArrivalAirportID   uint   `gorm:"column:arrival_airport_id;not null"`
	DepartureDateTime  int64  `gorm:"column:departure_date_time"`
	ArrivalDateTime    int64  `gorm:"column:arrival_date_time"`
	ConnectionDuration *int   `gorm:"column:connection_duration_from_previous_flight"`
	CreatedAt          time.Time
}

// TableName overrides the default table name
func (FlightModel) TableName() string {
	return "flights"
}

// BundleModel GORM model for stored bundles
type BundleModel struct {
	ID                uint          `gorm:"primaryKey"`
	UniqueID          string        `gorm:"column:unique_id;not null;uniqueIndex:uq_bundles_unique_id"`
	SearchID          string        `gorm:"column:search_id;index"`
	OutboundFlightIDs pq.Int64Array `gorm:"column:outbound_flight_ids;type:bigint[]"`
	InboundFlightIDs  pq.Int64Array `gorm:"column:inbound_flight_ids;type:bigint[]"`
	CreatedAt         time.Time
}

// TableName overrides the default table name
func (BundleModel) TableName() string {
	return "bundles"
}

// BookingOptionModel GORM model for stored booking options
type BookingOptionModel struct {
	ID          uint    `gorm:"primaryKey"`
	UniqueID    string  `gorm:"column:unique_id;not null;uniqueIndex:uq_booking_options_unique_id"`
	TargetID    uint    `gorm:"column:target_id;index;not null"`
	Agency      string  `gorm:"column:agency"`
	Price       float64 `gorm:"column:price;type:numeric(12,2)"`
	Currency    string  `gorm:"column:currency;size:3"`
	LinkToBook  string  `gorm:"column:link_to_book"`
	ExtractedAt int64   `gorm:"column:extracted_at"`
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (BookingOptionModel) TableName() string {
	return "booking_options"
}

// MigrateFlightStore creates or updates the flight store tables and their unique indexes
func MigrateFlightStore(db *gorm.DB) error {
	return db.AutoMigrate(&AirportModel{}, &FlightModel{}, &BundleModel{}, &BookingOptionModel{})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Is(err, gorm.ErrDuplicatedKey)
	}
	return pgErr.Code == "23505"
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	default:
		return err
	}
}

func toInt64s(ids []uint) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func toUints(ids pq.Int64Array) []uint {
	out := make([]uint, len(ids))
	for i, id := range ids {
		out[i] = uint(id)
	}
	return out
}

// GormFlightRepository implements the FlightRepository interface
type GormFlightRepository struct {
	db *gorm.DB
}

// NewGormFlightRepository creates a new GORM flight repository
func NewGormFlightRepository(db *gorm.DB) repository.FlightRepository {
	return &GormFlightRepository{db: db}
}

// FindByUniqueID finds a flight by its content-addressed id
func (r *GormFlightRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Flight, error) {
	var m FlightModel
	if err := r.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return &entity.Flight{
		ID:                                   m.ID,
		UniqueID:                             m.UniqueID,
		FlightNumber:                         m.FlightNumber,
		DepartureAirportID:                   m.DepartureAirportID,
		ArrivalAirportID:                     m.ArrivalAirportID,
		DepartureDateTime:                    m.DepartureDateTime,
		ArrivalDateTime:                      m.ArrivalDateTime,
		ConnectionDurationFromPreviousFlight: m.ConnectionDuration,
		CreatedAt:                            m.CreatedAt,
	}, nil
}

// Create inserts a flight and assigns its storage id
func (r *GormFlightRepository) Create(ctx context.Context, flight *entity.Flight) error {
	m := FlightModel{
		UniqueID:           flight.UniqueID,
		FlightNumber:       flight.FlightNumber,
		DepartureAirportID: flight.DepartureAirportID,
		ArrivalAirportID:   flight.ArrivalAirportID,
		DepartureDateTime:  flight.DepartureDateTime,
		ArrivalDateTime:    flight.ArrivalDateTime,
		ConnectionDuration: flight.ConnectionDurationFromPreviousFlight,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateError(err)
	}
	flight.ID = m.ID
	flight.CreatedAt = m.CreatedAt
	return nil
}

// GormBundleRepository implements the BundleRepository interface
type GormBundleRepository struct {
	db *gorm.DB
}

// NewGormBundleRepository creates a new GORM bundle repository
func NewGormBundleRepository(db *gorm.DB) repository.BundleRepository {
	return &GormBundleRepository{db: db}
}

func bundleFromModel(m *BundleModel) *entity.Bundle {
	return &entity.Bundle{
		ID:                m.ID,
		UniqueID:          m.UniqueID,
		SearchID:          m.SearchID,
		OutboundFlightIDs: toUints(m.OutboundFlightIDs),
		InboundFlightIDs:  toUints(m.InboundFlightIDs),
		CreatedAt:         m.CreatedAt,
	}
}

// FindByUniqueID finds a bundle by its content-addressed id
func (r *GormBundleRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*entity.Bundle, error) {
	var m BundleModel
	if err := r.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return bundleFromModel(&m), nil
}

// FindBySearchID lists bundles stored for one search
func (r *GormBundleRepository) FindBySearchID(ctx context.Context, searchID string) ([]*entity.Bundle, error) {
	var models []BundleModel
	if err := r.db.WithContext(ctx).Where("search_id = ?", searchID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}

	bundles := make([]*entity.Bundle, 0, len(models))
	for i := range models {
		bundles = append(bundles, bundleFromModel(&models[i]))
	}
	return bundles, nil
}

// Create inserts a bundle and assigns its storage id
func (r *GormBundleRepository) Create(ctx context.Context, bundle *entity.Bundle) error {
	m := BundleModel{
		UniqueID:          bundle.UniqueID,
		SearchID:          bundle.SearchID,
		OutboundFlightIDs: toInt64s(bundle.OutboundFlightIDs),
		InboundFlightIDs:  toInt64s(bundle.InboundFlightIDs),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateError(err)
	}
	bundle.ID = m.ID
	bundle.CreatedAt = m.CreatedAt
	return nil
}

// GormBookingOptionRepository implements the BookingOptionRepository interface
type GormBookingOptionRepository struct {
	db *gorm.DB
}

// NewGormBookingOptionRepository creates a new GORM booking option repository
func NewGormBookingOptionRepository(db *gorm.DB) repository.BookingOptionRepository {
	return &GormBookingOptionRepository{db: db}
}

// FindByTargetID lists the booking options of a bundle
func (r *GormBookingOptionRepository) FindByTargetID(ctx context.Context, targetID uint) ([]*entity.BookingOption, error) {
	var models []BookingOptionModel
	if err := r.db.WithContext(ctx).Where("target_id = ?", targetID).Order("price").Find(&models).Error; err != nil {
		return nil, err
	}

	options := make([]*entity.BookingOption, 0, len(models))
	for _, m := range models {
		options = append(options, &entity.BookingOption{
			ID:          m.ID,
			UniqueID:    m.UniqueID,
			TargetID:    m.TargetID,
			Agency:      m.Agency,
			Price:       m.Price,
			Currency:    m.Currency,
			LinkToBook:  m.LinkToBook,
			ExtractedAt: m.ExtractedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return options, nil
}

// Create inserts a booking option and assigns its storage id
func (r *GormBookingOptionRepository) Create(ctx context.Context, option *entity.BookingOption) error {
	m := BookingOptionModel{
		UniqueID:    option.UniqueID,
		TargetID:    option.TargetID,
		Agency:      option.Agency,
		Price:       option.Price,
		Currency:    option.Currency,
		LinkToBook:  option.LinkToBook,
		ExtractedAt: option.ExtractedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateError(err)
	}
	option.ID = m.ID
	option.UpdatedAt = m.UpdatedAt
	return nil
}

// Replace overwrites the stored option with the same unique id
func (r *GormBookingOptionRepository) Replace(ctx context.Context, option *entity.BookingOption) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&BookingOptionModel{}).
		Where("unique_id = ?", option.UniqueID).
		Updates(map[string]interface{}{
			"target_id":    option.TargetID,
			"agency":       option.Agency,
			"price":        option.Price,
			"currency":     option.Currency,
			"link_to_book": option.LinkToBook,
			"extracted_at": option.ExtractedAt,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}

	var m BookingOptionModel
	if err := r.db.WithContext(ctx).Select("id").Where("unique_id = ?", option.UniqueID).First(&m).Error; err != nil {
		return translateError(err)
	}
	option.ID = m.ID
	option.UpdatedAt = now
	return nil
}
