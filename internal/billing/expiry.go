package billing

import "time"

// ComputeNewExpiry returns the expiry produced by a payment of durationDays reconciled on
// reconciliationDate. A subscription whose expiry date is on or after the reconciliation date
// stacks from the current expiry; a lapsed or missing expiry restarts at the reconciliation
// date's UTC midnight.
func ComputeNewExpiry(current *time.Time, reconciliationDate time.Time, durationDays int) time.Time {
	day := truncateToDay(reconciliationDate)
	if current != nil && !truncateToDay(*current).Before(day) {
		return current.UTC().AddDate(0, 0, durationDays)
	}
	return day.AddDate(0, 0, durationDays)
}

// truncateToDay returns midnight UTC of t's UTC calendar date.
func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
