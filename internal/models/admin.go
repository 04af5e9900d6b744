package models

import "time"

// Admin represents a staff account that receives operational reports.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name   string `gorm:"type:varchar(150);not null;uniqueIndex"` // Display name.
	Email  string `gorm:"type:varchar(150);not null;uniqueIndex"` // Email address.
	Active bool   `gorm:"not null;default:true"`                  // Whether the admin receives reports.

	Password string `gorm:"type:varchar(255);not null;default:''" json:"-"` // Bcrypt hash; empty disables password login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
