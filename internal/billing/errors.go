package billing

import "errors"

// Sentinel errors returned by the billing engine.
var (
	ErrValidation          = errors.New("billing: validation failed")
	ErrNotFound            = errors.New("billing: not found")
	ErrDuplicateRequestID  = errors.New("billing: duplicate provider request id")
	ErrAlreadyTerminal     = errors.New("billing: payment already terminal")
	ErrOrphanCallback      = errors.New("billing: callback has no matching payment")
	ErrExternalService     = errors.New("billing: external service failure")
	ErrConcurrencyConflict = errors.New("billing: concurrency conflict")
	ErrRateLimited         = errors.New("billing: rate limited")

	ErrClientNotFound  error = &notFoundError{what: "client"}
	ErrPlanNotFound    error = &notFoundError{what: "plan"}
	ErrPaymentNotFound error = &notFoundError{what: "payment"}
)

// notFoundError names the missing entity while still matching ErrNotFound.
type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string { return "billing: " + e.what + " not found" }

func (e *notFoundError) Unwrap() error { return ErrNotFound }
