package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDuration = errors.New("duration must be at least one month")

// NextExpiry computes the expiry produced by paying for months more months.
// The baseline is the current expiry, or now when there is none or it has
// already passed, so the result is never earlier than max(now, previous).
func NextExpiry(previous *time.Time, now time.Time, months int) (time.Time, error) {
	if months < 1 {
		return time.Time{}, ErrInvalidDuration
	}
	baseline := now
	if previous != nil && !previous.IsZero() && previous.After(now) {
		baseline = *previous
	}
	return baseline.AddDate(0, months, 0), nil
}

// DurationLabel renders a month count for display on a payment.
func DurationLabel(months int) string {
	if months == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", months)
}
