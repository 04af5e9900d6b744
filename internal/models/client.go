package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClientStatus represents the informational subscription state of a client.
type ClientStatus int

// ClientStatus constants define client subscription states.
const (
	// ClientStatusInactive marks a client without a current paid subscription.
	ClientStatusInactive ClientStatus = 1
	// ClientStatusActive marks a client whose last successful payment extended the expiry.
	ClientStatusActive ClientStatus = 2
)

// String returns the display name of the status.
func (s ClientStatus) String() string {
	switch s {
	case ClientStatusInactive:
		return "Inactive"
	case ClientStatusActive:
		return "Active"
	default:
		return fmt.Sprintf("ClientStatus(%d)", int(s))
	}
}

// ParseClientStatus parses a case-insensitive status name.
func ParseClientStatus(raw string) (ClientStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return ClientStatusActive, nil
	case "inactive", "expired":
		return ClientStatusInactive, nil
	default:
		return 0, fmt.Errorf("unknown client status %q", raw)
	}
}

// Client represents a gym member and its subscription state.
type Client struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FirstName string `gorm:"type:varchar(150);not null"`                     // Given name.
	LastName  string `gorm:"type:varchar(150);not null"`                     // Family name.
	Email     string `gorm:"type:varchar(150);not null;uniqueIndex"`         // Email address.
	Phone     string `gorm:"type:varchar(20);not null;uniqueIndex"`          // Phone number.
	Password  string `gorm:"type:varchar(255);not null;default:''" json:"-"` // Bcrypt hash; empty disables password login.

	PlanID *uint64 `gorm:"index"`             // Current plan ID.
	Plan   *Plan   `gorm:"foreignKey:PlanID"` // Current plan.

	Expiry *time.Time   `gorm:"index"`              // Subscription expiry.
	Status ClientStatus `gorm:"not null;default:1"` // Informational subscription status.

	LastPaymentDate   *time.Time          // Reconciliation date of the latest successful payment.
	LastPaymentAmount decimal.NullDecimal `gorm:"type:decimal(10,2)"` // Amount of the latest successful payment.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// FullName joins the first and last name.
func (c *Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
