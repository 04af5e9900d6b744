package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense records an operating cost of the business.
type Expense struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string          `gorm:"type:varchar(255);not null"`            // Expense description.
	Cost decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Expense amount.

	CreatedAt time.Time `gorm:"not null;index"` // Creation timestamp.
}
