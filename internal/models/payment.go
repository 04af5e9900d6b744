package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentMethod represents how a payment was made.
type PaymentMethod int

// PaymentMethod constants define supported payment channels.
const (
	// PaymentMethodCash is a payment recorded by an admin at the front desk.
	PaymentMethodCash PaymentMethod = 1
	// PaymentMethodMobileMoney is an M-PESA STK push payment.
	PaymentMethodMobileMoney PaymentMethod = 2
)

// String returns the display name of the method.
func (m PaymentMethod) String() string {
	switch m {
	case PaymentMethodCash:
		return "Cash"
	case PaymentMethodMobileMoney:
		return "M-PESA"
	default:
		return fmt.Sprintf("PaymentMethod(%d)", int(m))
	}
}

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus int

// PaymentStatus constants define payment lifecycle states.
const (
	// PaymentStatusPending marks a payment awaiting confirmation.
	PaymentStatusPending PaymentStatus = 1
	// PaymentStatusSuccess marks a confirmed payment.
	PaymentStatusSuccess PaymentStatus = 2
	// PaymentStatusFailed marks a rejected or cancelled payment.
	PaymentStatusFailed PaymentStatus = 3
)

// String returns the display name of the status.
func (s PaymentStatus) String() string {
	switch s {
	case PaymentStatusPending:
		return "Pending"
	case PaymentStatusSuccess:
		return "Success"
	case PaymentStatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("PaymentStatus(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus parses a case-insensitive status name.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return PaymentStatusPending, nil
	case "success":
		return PaymentStatusSuccess, nil
	case "failed":
		return PaymentStatusFailed, nil
	default:
		return 0, fmt.Errorf("unknown payment status %q", raw)
	}
}

// Payment records a single payment attempt and its resolution.
type Payment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClientID uint64 `gorm:"not null;index"`      // Paying client ID.
	Client   Client `gorm:"foreignKey:ClientID"` // Paying client.

	PlanID uint64 `gorm:"not null;index"`    // Purchased plan ID.
	Plan   Plan   `gorm:"foreignKey:PlanID"` // Purchased plan.

	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Paid amount.
	Method      PaymentMethod   `gorm:"not null"`                              // Payment channel.
	PhoneNumber string          `gorm:"type:varchar(20);not null"`             // Paying phone number.

	ProviderRequestID *string `gorm:"type:varchar(120);uniqueIndex"` // Gateway checkout request ID.
	MerchantRequestID string  `gorm:"type:varchar(120)"`             // Gateway merchant request ID.
	ProviderReceipt   *string `gorm:"type:varchar(120);uniqueIndex"` // Gateway receipt number.

	Status          PaymentStatus  `gorm:"not null;default:1;index"` // Current payment status.
	ResultCode      *int           // Gateway result code.
	ResultDesc      string         `gorm:"type:text"` // Gateway result description.
	CallbackPayload datatypes.JSON // Raw gateway callback.
	ReconciledAt    *time.Time     // Time the payment reached a terminal state.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
