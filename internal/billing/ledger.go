package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentLedger stores payment attempts and guards their state transitions.
type PaymentLedger struct {
	db *gorm.DB
}

// NewPaymentLedger constructs a PaymentLedger backed by GORM.
func NewPaymentLedger(db *gorm.DB) *PaymentLedger { return &PaymentLedger{db: db} }

// WithTx returns a ledger bound to the given transaction.
func (l *PaymentLedger) WithTx(tx *gorm.DB) *PaymentLedger { return &PaymentLedger{db: tx} }

// Resolution carries the gateway-confirmed fields written when a payment turns terminal.
type Resolution struct {
	Receipt     string          // Provider receipt; only stored on success.
	Amount      decimal.Decimal // Confirmed amount; zero keeps the initiated amount.
	PhoneNumber string          // Confirmed phone; empty keeps the initiated phone.
	ResultCode  *int            // Provider result code.
	ResultDesc  string          // Provider result description.
	Payload     []byte          // Raw callback body.
	At          time.Time       // Reconciliation time.
}

// PaymentFilter narrows ledger listings.
type PaymentFilter struct {
	ClientID *uint64
	Status   *models.PaymentStatus
	Method   *models.PaymentMethod
	From     *time.Time
	To       *time.Time
	Limit    int
}

// RecordCashPayment stores a cash payment with the operator-supplied status.
func (l *PaymentLedger) RecordCashPayment(
	ctx context.Context,
	client *models.Client,
	plan models.Plan,
	amount decimal.Decimal,
	reconciliationDate time.Time,
	result models.PaymentStatus,
) (models.Payment, error) {
	if client == nil || client.ID == 0 {
		return models.Payment{}, fmt.Errorf("%w: client is required", ErrValidation)
	}
	if plan.ID == 0 {
		return models.Payment{}, fmt.Errorf("%w: plan is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return models.Payment{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	switch result {
	case models.PaymentStatusPending, models.PaymentStatusSuccess, models.PaymentStatusFailed:
	default:
		return models.Payment{}, fmt.Errorf("%w: unsupported payment status %d", ErrValidation, int(result))
	}

	at := reconciliationDate.UTC()
	payment := models.Payment{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		Amount:      amount,
		Method:      models.PaymentMethodCash,
		PhoneNumber: client.Phone,
		Status:      result,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if result.IsTerminal() {
		payment.ReconciledAt = &at
	}
	if errCreate := l.db.WithContext(ctx).Create(&payment).Error; errCreate != nil {
		return models.Payment{}, fmt.Errorf("billing: record cash payment: %w", errCreate)
	}
	return payment, nil
}

// RecordMobileMoneyInitiation stores a pending mobile-money payment keyed by the provider request id.
func (l *PaymentLedger) RecordMobileMoneyInitiation(
	ctx context.Context,
	client *models.Client,
	plan models.Plan,
	amount decimal.Decimal,
	phone string,
	providerRequestID string,
	merchantRequestID string,
) (models.Payment, error) {
	providerRequestID = strings.TrimSpace(providerRequestID)
	phone = strings.TrimSpace(phone)
	switch {
	case client == nil || client.ID == 0:
		return models.Payment{}, fmt.Errorf("%w: client is required", ErrValidation)
	case plan.ID == 0:
		return models.Payment{}, fmt.Errorf("%w: plan is required", ErrValidation)
	case !amount.IsPositive():
		return models.Payment{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case phone == "":
		return models.Payment{}, fmt.Errorf("%w: phone number is required", ErrValidation)
	case providerRequestID == "":
		return models.Payment{}, fmt.Errorf("%w: provider request id is required", ErrValidation)
	}

	var existing int64
	if errCount := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("provider_request_id = ?", providerRequestID).
		Count(&existing).Error; errCount != nil {
		return models.Payment{}, fmt.Errorf("billing: check request id: %w", errCount)
	}
	if existing > 0 {
		return models.Payment{}, ErrDuplicateRequestID
	}

	payment := models.Payment{
		ClientID:          client.ID,
		PlanID:            plan.ID,
		Amount:            amount,
		Method:            models.PaymentMethodMobileMoney,
		PhoneNumber:       phone,
		ProviderRequestID: &providerRequestID,
		MerchantRequestID: strings.TrimSpace(merchantRequestID),
		Status:            models.PaymentStatusPending,
	}
	if errCreate := l.db.WithContext(ctx).Create(&payment).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return models.Payment{}, ErrDuplicateRequestID
		}
		return models.Payment{}, fmt.Errorf("billing: record initiation: %w", errCreate)
	}
	return payment, nil
}

// FindByProviderRequestID loads a payment by its gateway request id.
func (l *PaymentLedger) FindByProviderRequestID(ctx context.Context, id string) (models.Payment, error) {
	return l.findByProviderRequestID(ctx, id, false)
}

func (l *PaymentLedger) findByProviderRequestID(ctx context.Context, id string, lock bool) (models.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Payment{}, fmt.Errorf("%w: provider request id is required", ErrValidation)
	}
	q := l.db.WithContext(ctx)
	if lock {
		q = q.Clauses(dbutil.ForUpdate())
	}
	var payment models.Payment
	if errFind := q.Where("provider_request_id = ?", id).Take(&payment).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Payment{}, ErrPaymentNotFound
		}
		return models.Payment{}, fmt.Errorf("billing: find payment: %w", errFind)
	}
	return payment, nil
}

// MarkTerminal moves a pending payment to Success or Failed exactly once.
func (l *PaymentLedger) MarkTerminal(ctx context.Context, payment *models.Payment, status models.PaymentStatus, res Resolution) error {
	if payment == nil || payment.ID == 0 {
		return fmt.Errorf("%w: payment is required", ErrValidation)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal status", ErrValidation, status)
	}
	if payment.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}

	at := res.At.UTC()
	if res.At.IsZero() {
		at = time.Now().UTC()
	}
	updates := map[string]any{
		"status":        status,
		"result_code":   res.ResultCode,
		"result_desc":   strings.TrimSpace(res.ResultDesc),
		"reconciled_at": at,
	}
	var receipt *string
	if status == models.PaymentStatusSuccess {
		if r := strings.TrimSpace(res.Receipt); r != "" {
			var taken int64
			if errCount := l.db.WithContext(ctx).Model(&models.Payment{}).
				Where("provider_receipt = ? AND id <> ?", r, payment.ID).
				Count(&taken).Error; errCount != nil {
				return fmt.Errorf("billing: check receipt: %w", errCount)
			}
			if taken > 0 {
				return duplicateReceiptError(r)
			}
			receipt = &r
			updates["provider_receipt"] = r
		}
		if res.Amount.IsPositive() {
			updates["amount"] = res.Amount
		}
		if phone := strings.TrimSpace(res.PhoneNumber); phone != "" {
			updates["phone_number"] = phone
		}
	}
	if len(res.Payload) > 0 {
		updates["callback_payload"] = datatypes.JSON(res.Payload)
	}

	result := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		if receipt != nil && dbutil.IsUniqueViolation(result.Error) {
			return duplicateReceiptError(*receipt)
		}
		return fmt.Errorf("billing: mark terminal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}

	payment.Status = status
	payment.ResultCode = res.ResultCode
	payment.ResultDesc = strings.TrimSpace(res.ResultDesc)
	payment.ReconciledAt = &at
	if receipt != nil {
		payment.ProviderReceipt = receipt
	}
	if v, ok := updates["amount"]; ok {
		payment.Amount = v.(decimal.Decimal)
	}
	if v, ok := updates["phone_number"]; ok {
		payment.PhoneNumber = v.(string)
	}
	if len(res.Payload) > 0 {
		payment.CallbackPayload = datatypes.JSON(res.Payload)
	}
	return nil
}

// duplicateReceiptError rejects a receipt already recorded on another payment. The payment
// stays Pending so a corrected callback can still resolve it.
func duplicateReceiptError(receipt string) error {
	return fmt.Errorf("%w: receipt %q already recorded on another payment", ErrValidation, receipt)
}

// ListForClient returns the client's payments, newest first.
func (l *PaymentLedger) ListForClient(ctx context.Context, clientID uint64) ([]models.Payment, error) {
	return l.List(ctx, PaymentFilter{ClientID: &clientID})
}

// List returns payments matching the filter, newest first.
func (l *PaymentLedger) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	q := l.db.WithContext(ctx).Model(&models.Payment{}).Preload("Plan").Preload("Client")
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		q = q.Where("method = ?", *filter.Method)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var payments []models.Payment
	if errFind := q.Order("created_at DESC, id DESC").Find(&payments).Error; errFind != nil {
		return nil, fmt.Errorf("billing: list payments: %w", errFind)
	}
	return payments, nil
}
