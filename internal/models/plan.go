package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan represents a subscription plan a client can buy.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name         string          `gorm:"type:varchar(255);not null;uniqueIndex"` // Unique plan name.
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`  // Plan price.
	DurationDays int             `gorm:"not null;default:0"`                     // Coverage length in days.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
