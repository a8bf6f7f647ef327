package lifecycle

import (
	"time"
)

// DefaultCheckInCadence is the number of days between two check-ins.
const DefaultCheckInCadence = 7

// NextCheckIn suggests the next check-in date from the most recent actual
// submission. Time of day is kept from the submission.
func NextCheckIn(lastSubmitted time.Time, cadenceDays int) time.Time {
	if cadenceDays <= 0 {
		cadenceDays = DefaultCheckInCadence
	}
	return lastSubmitted.AddDate(0, 0, cadenceDays)
}

// SuggestCheckIn is NextCheckIn over an optional latest submission. With no
// submission yet, the client is due from enrollment.
func SuggestCheckIn(latest *time.Time, enrolledAt time.Time, cadenceDays int) time.Time {
	if latest == nil || latest.IsZero() {
		return enrolledAt
	}
	return NextCheckIn(*latest, cadenceDays)
}
