package entity

import (
	"time"

	"gorm.io/gorm"
)

// Airport represents an airport reference row with its UTC offset
type Airport struct {
	ID        uint
	IATACode  string
	Name      string
	CityCode  string
	CityName  string
	GmtTz     string
	TzName    string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}
