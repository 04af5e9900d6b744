package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GatewayResponse is the synchronous acknowledgement of a push-payment request.
type GatewayResponse struct {
	ProviderRequestID string // Gateway checkout request ID.
	MerchantRequestID string // Gateway merchant request ID.
	Description       string // Gateway response description.
	CustomerMessage   string // Message shown to the customer.
}

// Gateway initiates mobile-money push payments.
type Gateway interface {
	Initiate(ctx context.Context, phone string, amount decimal.Decimal) (GatewayResponse, error)
}

// Limiter throttles payment initiations per client.
type Limiter interface {
	AllowInitiation(ctx context.Context, clientID uint64) (bool, error)
}

// defaultGatewayTimeout bounds a gateway call when no timeout is configured.
const defaultGatewayTimeout = 30 * time.Second

// notifyTimeout bounds a single notification delivery.
const notifyTimeout = 30 * time.Second

// Options configures a Service.
type Options struct {
	Gateway        Gateway
	Notifier       notify.Notifier
	Limiter        Limiter
	GatewayTimeout time.Duration
	Now            func() time.Time
}

// Service records payments and applies their effect on client subscriptions.
type Service struct {
	db             *gorm.DB
	catalog        *PlanCatalog
	ledger         *PaymentLedger
	locks          *ClientLocks
	gateway        Gateway
	notifier       notify.Notifier
	limiter        Limiter
	gatewayTimeout time.Duration
	now            func() time.Time
	goFn           func(func())
}

// NewService constructs a Service.
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:             db,
		catalog:        NewPlanCatalog(db),
		ledger:         NewPaymentLedger(db),
		locks:          NewClientLocks(),
		gateway:        opts.Gateway,
		notifier:       opts.Notifier,
		limiter:        opts.Limiter,
		gatewayTimeout: opts.GatewayTimeout,
		now:            opts.Now,
		goFn:           func(fn func()) { go fn() },
	}
	if s.gatewayTimeout <= 0 {
		s.gatewayTimeout = defaultGatewayTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Catalog returns the plan catalog.
func (s *Service) Catalog() *PlanCatalog { return s.catalog }

// Ledger returns the payment ledger.
func (s *Service) Ledger() *PaymentLedger { return s.ledger }

// CashPaymentInput describes a front-desk cash payment.
type CashPaymentInput struct {
	Phone       string               // Client phone number.
	PlanName    string               // Subscription plan name.
	Status      models.PaymentStatus // Operator-supplied result.
	Amount      *decimal.Decimal     // Amount; defaults to the plan price.
	PaymentDate *time.Time           // Payment date; defaults to now.
}

// PaymentResult is a recorded payment and, for a successful payment, the new client state.
type PaymentResult struct {
	Payment models.Payment
	Client  *UpdatedClientState
}

// RecordCash records a cash payment and, when successful, extends the client's subscription
// in the same transaction.
func (s *Service) RecordCash(ctx context.Context, in CashPaymentInput) (PaymentResult, error) {
	if strings.TrimSpace(in.Phone) == "" {
		return PaymentResult{}, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	client, errClient := s.findClientByPhone(ctx, in.Phone)
	if errClient != nil {
		return PaymentResult{}, errClient
	}
	plan, errPlan := s.catalog.Lookup(ctx, in.PlanName)
	if errPlan != nil {
		return PaymentResult{}, errPlan
	}
	amount := plan.Price
	if in.Amount != nil {
		amount = *in.Amount
	}
	at := s.now().UTC()
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		at = in.PaymentDate.UTC()
	}

	unlock := s.locks.Lock(client.ID)
	defer unlock()

	var result PaymentResult
	errTx := withConflictRetry(ctx, func() error {
		result = PaymentResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			payment, errRecord := s.ledger.WithTx(tx).RecordCashPayment(ctx, &client, plan, amount, at, in.Status)
			if errRecord != nil {
				return errRecord
			}
			result.Payment = payment
			if in.Status != models.PaymentStatusSuccess {
				return nil
			}
			state, errApply := ApplySuccessfulPayment(ctx, tx, client.ID, plan, amount, at)
			if errApply != nil {
				return errApply
			}
			result.Client = &state
			return nil
		})
	})
	if errTx != nil {
		return PaymentResult{}, errTx
	}

	log.WithFields(log.Fields{
		"payment_id": result.Payment.ID,
		"client_id":  client.ID,
		"plan":       plan.Name,
		"status":     in.Status.String(),
	}).Info("billing: cash payment recorded")

	if result.Client != nil {
		s.notifyExpiry(*result.Client)
	}
	return result, nil
}

// InitiationInput describes a mobile-money push payment request.
type InitiationInput struct {
	ClientID    uint64 // Paying client.
	PlanName    string // Subscription plan name.
	PhoneNumber string // Phone to push the payment prompt to.
}

// InitiateMobileMoney asks the gateway to push a payment prompt and records the pending payment.
func (s *Service) InitiateMobileMoney(ctx context.Context, in InitiationInput) (models.Payment, GatewayResponse, error) {
	phone, errPhone := NormalizePhone(in.PhoneNumber)
	if errPhone != nil {
		return models.Payment{}, GatewayResponse{}, errPhone
	}
	if s.gateway == nil {
		return models.Payment{}, GatewayResponse{}, fmt.Errorf("%w: mobile money gateway is not configured", ErrExternalService)
	}

	var client models.Client
	if errFind := s.db.WithContext(ctx).Take(&client, in.ClientID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Payment{}, GatewayResponse{}, ErrClientNotFound
		}
		return models.Payment{}, GatewayResponse{}, fmt.Errorf("billing: load client: %w", errFind)
	}
	plan, errPlan := s.catalog.Lookup(ctx, in.PlanName)
	if errPlan != nil {
		return models.Payment{}, GatewayResponse{}, errPlan
	}

	if s.limiter != nil {
		allowed, errLimit := s.limiter.AllowInitiation(ctx, client.ID)
		if errLimit != nil {
			log.WithError(errLimit).WithField("client_id", client.ID).Warn("billing: rate limiter unavailable")
		} else if !allowed {
			return models.Payment{}, GatewayResponse{}, ErrRateLimited
		}
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	resp, errInitiate := s.gateway.Initiate(gwCtx, phone, plan.Price)
	if errInitiate != nil {
		if !errors.Is(errInitiate, ErrExternalService) {
			errInitiate = fmt.Errorf("%w: %v", ErrExternalService, errInitiate)
		}
		log.WithError(errInitiate).WithField("client_id", client.ID).Warn("billing: mobile money initiation failed")
		return models.Payment{}, GatewayResponse{}, errInitiate
	}
	if strings.TrimSpace(resp.ProviderRequestID) == "" {
		return models.Payment{}, GatewayResponse{}, fmt.Errorf("%w: gateway returned no request id", ErrExternalService)
	}

	payment, errRecord := s.ledger.RecordMobileMoneyInitiation(ctx, &client, plan, plan.Price, phone, resp.ProviderRequestID, resp.MerchantRequestID)
	if errRecord != nil {
		return models.Payment{}, GatewayResponse{}, errRecord
	}

	log.WithFields(log.Fields{
		"payment_id":          payment.ID,
		"client_id":           client.ID,
		"plan":                plan.Name,
		"provider_request_id": resp.ProviderRequestID,
	}).Info("billing: mobile money payment initiated")
	return payment, resp, nil
}

// findClientByPhone resolves a client by any stored form of the phone number.
func (s *Service) findClientByPhone(ctx context.Context, phone string) (models.Client, error) {
	var client models.Client
	errFind := s.db.WithContext(ctx).Where("phone IN ?", phoneCandidates(phone)).Take(&client).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Client{}, ErrClientNotFound
		}
		return models.Client{}, fmt.Errorf("billing: find client: %w", errFind)
	}
	return client, nil
}

// notifyExpiry tells the client about the new expiry without blocking the caller.
func (s *Service) notifyExpiry(state UpdatedClientState) {
	if s.notifier == nil || strings.TrimSpace(state.Email) == "" {
		return
	}
	subject := "Subscription Payment Confirmation"
	message := fmt.Sprintf(
		"Dear %s,\n\nWe have received your payment of KES %s for the %s plan.\nYour subscription is now active until %s.\n\nThank you for training with FitFlow.",
		state.Name,
		state.LastPaymentAmount.StringFixed(2),
		state.PlanName,
		state.Expiry.Format("January 2, 2006"),
	)
	notifier := s.notifier
	s.goFn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if !notifier.Notify(ctx, state.Email, subject, message) {
			log.WithField("client_id", state.ClientID).Warn("billing: expiry notification not delivered")
		}
	})
}
