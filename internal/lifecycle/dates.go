package lifecycle

import (
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// timeConverter is any timestamp wrapper exposing a conversion to time.Time
// (primitive.DateTime among others).
type timeConverter interface {
	Time() time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToDate normalizes the timestamp representations found in stored documents
// into a time.Time. It never panics; ok is false for absent or invalid input
// and callers must check it before formatting or doing arithmetic.
//
// Numbers are read as Unix epoch milliseconds. Maps with "seconds" or
// "_seconds" keys are read as exported backend timestamps.
func ToDate(v any) (t time.Time, ok bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return ToDate(*x)
	case primitive.DateTime:
		return x.Time(), true
	case *primitive.DateTime:
		if x == nil {
			return time.Time{}, false
		}
		return x.Time(), true
	case primitive.Timestamp:
		if x.T == 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(x.T), 0).UTC(), true
	case string:
		return parseDateString(x)
	case int64:
		return time.UnixMilli(x).UTC(), true
	case int32:
		return time.UnixMilli(int64(x)).UTC(), true
	case int:
		return time.UnixMilli(int64(x)).UTC(), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(x)).UTC(), true
	case map[string]any:
		return fromSecondsMap(x)
	case primitive.M:
		return fromSecondsMap(map[string]any(x))
	case timeConverter:
		t := x.Time()
		return t, !t.IsZero()
	}
	return time.Time{}, false
}

// ToDatePtr is ToDate returning nil for the absent case.
func ToDatePtr(v any) *time.Time {
	t, ok := ToDate(v)
	if !ok {
		return nil
	}
	return &t
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromSecondsMap(m map[string]any) (time.Time, bool) {
	raw, found := m["seconds"]
	if !found {
		raw, found = m["_seconds"]
	}
	if !found {
		return time.Time{}, false
	}
	var sec int64
	switch n := raw.(type) {
	case int64:
		sec = n
	case int32:
		sec = int64(n)
	case int:
		sec = int64(n)
	case float64:
		sec = int64(n)
	default:
		return time.Time{}, false
	}
	nsRaw, found := m["nanoseconds"]
	if !found {
		nsRaw = m["_nanoseconds"]
	}
	var nsec int64
	switch n := nsRaw.(type) {
	case int64:
		nsec = n
	case int32:
		nsec = int64(n)
	case int:
		nsec = int64(n)
	case float64:
		nsec = int64(n)
	}
	return time.Unix(sec, nsec).UTC(), true
}

// civilDay returns midnight UTC of t's calendar date in loc, so differences
// between two civil days are exact multiples of 24h.
func civilDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the whole-day difference to-from with time of day ignored.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	return int(civilDay(to, loc).Sub(civilDay(from, loc)).Hours() / 24)
}
