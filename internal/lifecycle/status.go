package lifecycle

import (
	"time"
)

// PaymentStatus is the derived subscription state of a client.
type PaymentStatus string

const (
	StatusPaid     PaymentStatus = "paid"
	StatusExpiring PaymentStatus = "expiring"
	StatusExpired  PaymentStatus = "expired"
	StatusUnknown  PaymentStatus = "unknown"
)

// DefaultExpiringThreshold is the canonical "expiring soon" window in days.
const DefaultExpiringThreshold = 7

// Classifier derives PaymentStatus from an expiry date. One Classifier is
// built from configuration and shared by every caller, so the threshold is
// the same everywhere.
type Classifier struct {
	ThresholdDays int
	Location      *time.Location
}

func NewClassifier(thresholdDays int, loc *time.Location) Classifier {
	if thresholdDays < 0 {
		thresholdDays = DefaultExpiringThreshold
	}
	if loc == nil {
		loc = time.UTC
	}
	return Classifier{ThresholdDays: thresholdDays, Location: loc}
}

// DaysLeft is the whole-day difference between expiry and now.
func (c Classifier) DaysLeft(expiry, now time.Time) int {
	return DaysBetween(now, expiry, c.Location)
}

// Classify returns expired when the expiry day is before today, expiring
// when it is 0..ThresholdDays days away, paid beyond that, and unknown
// when there is no expiry at all.
func (c Classifier) Classify(expiry *time.Time, now time.Time) PaymentStatus {
	if expiry == nil || expiry.IsZero() {
		return StatusUnknown
	}
	diff := c.DaysLeft(*expiry, now)
	switch {
	case diff < 0:
		return StatusExpired
	case diff <= c.ThresholdDays:
		return StatusExpiring
	default:
		return StatusPaid
	}
}
