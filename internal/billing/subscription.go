package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UpdatedClientState is the client subscription state written by a successful payment.
type UpdatedClientState struct {
	ClientID          uint64
	Name              string
	Email             string
	PlanID            uint64
	PlanName          string
	PreviousExpiry    *time.Time
	Expiry            time.Time
	Status            models.ClientStatus
	LastPaymentDate   time.Time
	LastPaymentAmount decimal.Decimal
}

// ApplySuccessfulPayment extends the client's subscription inside tx. The client row is read
// with FOR UPDATE so the expiry it stacks on is the latest committed value.
func ApplySuccessfulPayment(
	ctx context.Context,
	tx *gorm.DB,
	clientID uint64,
	plan models.Plan,
	amount decimal.Decimal,
	reconciliationDate time.Time,
) (UpdatedClientState, error) {
	if plan.ID == 0 || plan.DurationDays <= 0 {
		return UpdatedClientState{}, fmt.Errorf("%w: plan duration must be positive", ErrValidation)
	}

	var client models.Client
	errFind := tx.WithContext(ctx).Clauses(dbutil.ForUpdate()).Take(&client, clientID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return UpdatedClientState{}, ErrClientNotFound
		}
		return UpdatedClientState{}, fmt.Errorf("billing: lock client: %w", errFind)
	}

	at := reconciliationDate.UTC()
	newExpiry := ComputeNewExpiry(client.Expiry, at, plan.DurationDays)

	errUpdate := tx.WithContext(ctx).Model(&models.Client{}).
		Where("id = ?", client.ID).
		Updates(map[string]any{
			"plan_id":             plan.ID,
			"expiry":              newExpiry,
			"status":              models.ClientStatusActive,
			"last_payment_date":   at,
			"last_payment_amount": decimal.NullDecimal{Decimal: amount, Valid: true},
		}).Error
	if errUpdate != nil {
		return UpdatedClientState{}, fmt.Errorf("billing: update client subscription: %w", errUpdate)
	}

	return UpdatedClientState{
		ClientID:          client.ID,
		Name:              client.FullName(),
		Email:             client.Email,
		PlanID:            plan.ID,
		PlanName:          plan.Name,
		PreviousExpiry:    client.Expiry,
		Expiry:            newExpiry,
		Status:            models.ClientStatusActive,
		LastPaymentDate:   at,
		LastPaymentAmount: amount,
	}, nil
}
