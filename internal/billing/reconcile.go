package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconciliationOutcome is the effect a callback had on the ledger.
type ReconciliationOutcome int

// ReconciliationOutcome constants.
const (
	// OutcomeApplied marks a successful payment whose subscription update was committed.
	OutcomeApplied ReconciliationOutcome = 1
	// OutcomeFailed marks a payment recorded as failed without client changes.
	OutcomeFailed ReconciliationOutcome = 2
	// OutcomeAlreadyProcessed marks a replayed callback for a terminal payment.
	OutcomeAlreadyProcessed ReconciliationOutcome = 3
)

// String returns the outcome name.
func (o ReconciliationOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	default:
		return fmt.Sprintf("ReconciliationOutcome(%d)", int(o))
	}
}

// CallbackResult is a parsed gateway payment-result callback.
type CallbackResult struct {
	ProviderRequestID string          // Checkout request ID issued at initiation.
	MerchantRequestID string          // Merchant request ID.
	ResultCode        int             // 0 on success.
	ResultDesc        string          // Provider description.
	Receipt           string          // Receipt number; success only.
	Amount            decimal.Decimal // Confirmed amount; success only.
	PhoneNumber       string          // Confirmed phone; success only.
	Payload           []byte          // Raw callback body.
	ReceivedAt        time.Time       // Delivery time.
}

// Succeeded reports whether the provider accepted the payment.
func (c CallbackResult) Succeeded() bool { return c.ResultCode == 0 }

// Validate checks the fields the engine relies on.
func (c CallbackResult) Validate() error {
	if strings.TrimSpace(c.ProviderRequestID) == "" {
		return fmt.Errorf("%w: provider request id is required", ErrValidation)
	}
	if !c.Succeeded() {
		return nil
	}
	switch {
	case strings.TrimSpace(c.Receipt) == "":
		return fmt.Errorf("%w: receipt is required on success", ErrValidation)
	case !c.Amount.IsPositive():
		return fmt.Errorf("%w: confirmed amount is required on success", ErrValidation)
	case strings.TrimSpace(c.PhoneNumber) == "":
		return fmt.Errorf("%w: confirmed phone number is required on success", ErrValidation)
	}
	return nil
}

// Reconcile applies a gateway callback to its pending payment exactly once. The terminal
// transition and the subscription update commit in one transaction.
func (s *Service) Reconcile(ctx context.Context, cb CallbackResult) (ReconciliationOutcome, error) {
	if errValidate := cb.Validate(); errValidate != nil {
		return 0, errValidate
	}
	requestID := strings.TrimSpace(cb.ProviderRequestID)
	fields := log.Fields{"provider_request_id": requestID, "result_code": cb.ResultCode}

	payment, errFind := s.ledger.FindByProviderRequestID(ctx, requestID)
	if errFind != nil {
		if errors.Is(errFind, ErrNotFound) {
			log.WithFields(fields).Warn("billing: orphan callback ignored")
			return 0, fmt.Errorf("%w: %s", ErrOrphanCallback, requestID)
		}
		return 0, errFind
	}
	if payment.Status.IsTerminal() {
		log.WithFields(fields).Info("billing: duplicate callback ignored")
		return OutcomeAlreadyProcessed, nil
	}

	at := cb.ReceivedAt.UTC()
	if cb.ReceivedAt.IsZero() {
		at = s.now().UTC()
	}
	code := cb.ResultCode
	resolution := Resolution{
		Receipt:     cb.Receipt,
		Amount:      cb.Amount,
		PhoneNumber: cb.PhoneNumber,
		ResultCode:  &code,
		ResultDesc:  cb.ResultDesc,
		Payload:     cb.Payload,
		At:          at,
	}

	unlock := s.locks.Lock(payment.ClientID)
	defer unlock()

	var (
		outcome ReconciliationOutcome
		state   *UpdatedClientState
	)
	errTx := withConflictRetry(ctx, func() error {
		outcome, state = 0, nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ledger := s.ledger.WithTx(tx)
			locked, errLock := ledger.findByProviderRequestID(ctx, requestID, true)
			if errLock != nil {
				return errLock
			}
			if locked.Status.IsTerminal() {
				outcome = OutcomeAlreadyProcessed
				return nil
			}

			if !cb.Succeeded() {
				if errMark := ledger.MarkTerminal(ctx, &locked, models.PaymentStatusFailed, resolution); errMark != nil {
					return errMark
				}
				outcome = OutcomeFailed
				return nil
			}

			if errMark := ledger.MarkTerminal(ctx, &locked, models.PaymentStatusSuccess, resolution); errMark != nil {
				return errMark
			}
			var plan models.Plan
			if errPlan := tx.WithContext(ctx).Take(&plan, locked.PlanID).Error; errPlan != nil {
				if errors.Is(errPlan, gorm.ErrRecordNotFound) {
					return ErrPlanNotFound
				}
				return fmt.Errorf("billing: load plan: %w", errPlan)
			}
			updated, errApply := ApplySuccessfulPayment(ctx, tx, locked.ClientID, plan, locked.Amount, at)
			if errApply != nil {
				return errApply
			}
			state = &updated
			outcome = OutcomeApplied
			return nil
		})
	})
	if errTx != nil {
		if errors.Is(errTx, ErrAlreadyTerminal) {
			log.WithFields(fields).Info("billing: duplicate callback ignored")
			return OutcomeAlreadyProcessed, nil
		}
		log.WithError(errTx).WithFields(fields).Error("billing: reconcile failed")
		return 0, errTx
	}

	fields["outcome"] = outcome.String()
	fields["payment_id"] = payment.ID
	log.WithFields(fields).Info("billing: callback reconciled")

	if state != nil {
		s.notifyExpiry(*state)
	}
	return outcome, nil
}
