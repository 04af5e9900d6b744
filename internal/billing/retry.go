package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	dbutil "github.com/fitflow/billing/internal/db"
	log "github.com/sirupsen/logrus"
)

// maxConflictRetries bounds retries of a transaction that hit lock contention.
const maxConflictRetries = 3

// newConflictBackOff returns the retry schedule for contended transactions.
func newConflictBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, maxConflictRetries), ctx)
}

// withConflictRetry runs op, retrying contention failures and surfacing them as ErrConcurrencyConflict.
func withConflictRetry(ctx context.Context, op func() error) error {
	attempt := 0
	errRetry := backoff.Retry(func() error {
		attempt++
		errOp := op()
		if errOp == nil {
			return nil
		}
		if dbutil.IsConflict(errOp) {
			log.WithError(errOp).WithField("attempt", attempt).Debug("billing: transaction conflict, retrying")
			return errOp
		}
		return backoff.Permanent(errOp)
	}, newConflictBackOff(ctx))
	if errRetry != nil && dbutil.IsConflict(errRetry) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, errRetry)
	}
	return errRetry
}
