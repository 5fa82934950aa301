package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormAirportRepository implements the AirportRepository interface
type GormAirportRepository struct {
	db *gorm.DB
}

// NewGormAirportRepository creates a new GORM airport repository
func NewGormAirportRepository(db *gorm.DB) repository.AirportRepository {
	return &GormAirportRepository{
		db: db,
	}
}

// AirportModel GORM model for the airport reference table
type AirportModel struct {
	ID          uint           `gorm:"primaryKey"`
	AirportCode string         `gorm:"column:airportcode;size:3;uniqueIndex"`
	AirportName string         `gorm:"column:airport_name"`
	CityCode    string         `gorm:"column:citycode"`
	CityName    string         `gorm:"column:cityname"`
	GmtTz       string         `gorm:"column:gmttz"`
	TzName      string         `gorm:"column:tzname"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (AirportModel) TableName() string {
	return "m_airport_list"
}

// GetByIATACode finds an airport by its IATA code
func (r *GormAirportRepository) GetByIATACode(ctx context.Context, code string) (*entity.Airport, error) {
	var airport AirportModel
	result := r.db.WithContext(ctx).Where("airportcode = ?", strings.ToUpper(code)).First(&airport)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, result.Error
	}

	// Convert GORM model to domain entity
	return &entity.Airport{
		ID:        airport.ID,
		IATACode:  airport.AirportCode,
		Name:      airport.AirportName,
		CityCode:  airport.CityCode,
		CityName:  airport.CityName,
		GmtTz:     airport.GmtTz,
		TzName:    airport.TzName,
		CreatedAt: airport.CreatedAt,
		UpdatedAt: airport.UpdatedAt,
		DeletedAt: airport.DeletedAt,
	}, nil
}
