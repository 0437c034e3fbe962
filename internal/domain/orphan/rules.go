package orphan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackdateStep is the gap kept between consecutive backdated history rows.
const BackdateStep = time.Millisecond

// compositeNamespace scopes derived composite ids; changing it re-keys every group.
var compositeNamespace = uuid.MustParse("7b0c5a53-3f0e-4b59-9c3f-5f0c2f4c9a10")

// BackdateTimestamps walks rows in the given order and caps each one at a running
// floor that starts at floor and drops by BackdateStep per row. No row moves forward
// and no two returned values are equal when the input was capped.
func BackdateTimestamps(current []time.Time, floor time.Time) []time.Time {
	out := make([]time.Time, len(current))
	running := floor
	for i, ts := range current {
		if ts.After(running) {
			ts = running
		}
		out[i] = ts.UTC()
		running = running.Add(-BackdateStep)
	}
	return out
}

// ExpiresAt returns now+ttl in UTC, or nil when ttl is absent or zero and the
// action never expires. A negative ttl yields an instant already in the past.
func ExpiresAt(now time.Time, ttl *time.Duration) *time.Time {
	if ttl == nil || *ttl == 0 {
		return nil
	}
	at := now.Add(*ttl).UTC().Truncate(time.Millisecond)
	return &at
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts unix milliseconds or one of the supported date layouts.
// Zone-less layouts are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return FromMillis(ms), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}

func ToMillis(ts time.Time) int64 {
	return ts.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// CompositeID derives the grouping key for reports of one subject within one org.
func CompositeID(orgID uint64, edipi string, unit string) string {
	key := fmt.Sprintf("%d|%s|%s", orgID, strings.TrimSpace(edipi), strings.ToLower(strings.TrimSpace(unit)))
	return uuid.NewSHA1(compositeNamespace, []byte(key)).String()
}
