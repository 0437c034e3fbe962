package orphan

import (
	"errors"
	"testing"
	"time"

	"rosterrecon/internal/errs"
)

func TestBackdateTimestampsCapsAtFloorAndSeparatesRows(t *testing.T) {
	floor := FromMillis(100)
	got := BackdateTimestamps([]time.Time{FromMillis(200), FromMillis(300), FromMillis(50)}, floor)

	want := []int64{100, 99, 50}
	for i, ts := range got {
		if ToMillis(ts) != want[i] {
			t.Fatalf("row %d = %d, want %d", i, ToMillis(ts), want[i])
		}
	}
}

func TestBackdateTimestampsNeverMovesForward(t *testing.T) {
	floor := FromMillis(1_000)
	in := []time.Time{FromMillis(10), FromMillis(999), FromMillis(5_000), FromMillis(997)}
	got := BackdateTimestamps(in, floor)

	seen := map[int64]struct{}{}
	for i := range got {
		if got[i].After(in[i]) {
			t.Fatalf("row %d moved forward: %v -> %v", i, in[i], got[i])
		}
		if got[i].After(floor) {
			t.Fatalf("row %d above floor: %v", i, got[i])
		}
		seen[ToMillis(got[i])] = struct{}{}
	}
	if len(seen) != len(got) {
		t.Fatalf("duplicate timestamps in %v", got)
	}
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

	if ExpiresAt(now, nil) != nil {
		t.Fatalf("ExpiresAt(nil ttl) should never expire")
	}
	zero := time.Duration(0)
	if ExpiresAt(now, &zero) != nil {
		t.Fatalf("ExpiresAt(0) should never expire")
	}

	ttl := time.Minute
	got := ExpiresAt(now, &ttl)
	if got == nil {
		t.Fatalf("ExpiresAt() = nil")
	}
	if got.Location() != time.UTC {
		t.Fatalf("ExpiresAt() location = %v, want UTC", got.Location())
	}
	if !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("ExpiresAt() = %v, want %v", got, now.Add(time.Minute))
	}

	past := -time.Minute
	got = ExpiresAt(now, &past)
	if got == nil || !got.Before(now) {
		t.Fatalf("ExpiresAt(-1m) = %v, want an instant before %v", got, now)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{in: "1700000000000", want: 1_700_000_000_000},
		{in: "2024-01-02T03:04:05Z", want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()},
		{in: "2024-01-02T03:04:05", want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()},
		{in: "2024-01-02", want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error = %v", tc.in, err)
		}
		if got.UnixMilli() != tc.want {
			t.Fatalf("ParseTimestamp(%q) = %d, want %d", tc.in, got.UnixMilli(), tc.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("ParseTimestamp(bad) error = %v, want invalid argument", err)
	}
}

func TestParseActionType(t *testing.T) {
	if got, err := ParseActionType(" Claim "); err != nil || got != ActionClaim {
		t.Fatalf("ParseActionType(claim) = %q, %v", got, err)
	}
	if got, err := ParseActionType("ignore"); err != nil || got != ActionIgnore {
		t.Fatalf("ParseActionType(ignore) = %q, %v", got, err)
	}
	if _, err := ParseActionType("snooze"); !errors.Is(err, ErrInvalidActionType) || !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("ParseActionType(snooze) error = %v", err)
	}
	if _, err := ParseActionType(""); !errors.Is(err, ErrActionTypeRequired) {
		t.Fatalf("ParseActionType(empty) error = %v", err)
	}
}

func TestChangeTypeOrderingPutsDeletedFirst(t *testing.T) {
	if !(ChangeDeleted > ChangeChanged && ChangeChanged > ChangeAdded) {
		t.Fatalf("change types must sort added < changed < deleted")
	}
}

func TestCompositeIDStableAndScoped(t *testing.T) {
	a := CompositeID(1, "1234567890", "Alpha Co")
	if a != CompositeID(1, " 1234567890 ", "alpha co") {
		t.Fatalf("CompositeID should ignore surrounding space and unit case")
	}
	if a == CompositeID(2, "1234567890", "Alpha Co") {
		t.Fatalf("CompositeID should differ across orgs")
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("(201) 555-0123", "us"); got != "+12015550123" {
		t.Fatalf("NormalizePhone() = %q", got)
	}
	if got := NormalizePhone("  ext 12 ", "US"); got != "ext 12" {
		t.Fatalf("NormalizePhone(invalid) = %q", got)
	}
	if got := NormalizePhone("", "US"); got != "" {
		t.Fatalf("NormalizePhone(empty) = %q", got)
	}
}
