package availability

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

// 2026-01-28 is a Wednesday.
var wednesday = Date{Year: 2026, Month: time.January, Day: 28}

func rule(start, end string) Rule {
	return Rule{
		ID:         "rule-1",
		StaffID:    "staff-1",
		LocationID: "loc-1",
		DayOfWeek:  3,
		StartTime:  start,
		EndTime:    end,
		Active:     true,
	}
}

func request(date Date, now time.Time) Request {
	return Request{StaffID: "staff-1", LocationID: "loc-1", Date: date, Now: now}
}

func slotStrings(slots []Clock) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	return out
}

// earlier day, so no past-slot filtering applies
var dayBefore = time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)

func TestGenerate_Windows(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{name: "aligned", start: "09:00", end: "11:00", want: []string{"09:00", "09:30", "10:00", "10:30"}},
		{name: "unaligned start", start: "09:10", end: "10:00", want: []string{"09:10", "09:40"}},
		{name: "last slot runs past end", start: "09:00", end: "09:45", want: []string{"09:00", "09:30"}},
		{name: "single digit hour", start: "9:00", end: "10:00", want: []string{"09:00", "09:30"}},
		{name: "until midnight", start: "23:00", end: "24:00", want: []string{"23:00", "23:30"}},
		{name: "hour rollover", start: "09:45", end: "11:00", want: []string{"09:45", "10:15", "10:45"}},
	}

	g := NewGenerator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := g.Generate([]Rule{rule(tc.start, tc.end)}, request(wednesday, dayBefore))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := slotStrings(slots); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGenerate_NoAvailability(t *testing.T) {
	inactive := rule("09:00", "11:00")
	inactive.Active = false
	otherDay := rule("09:00", "11:00")
	otherDay.DayOfWeek = 4
	otherLocation := rule("09:00", "11:00")
	otherLocation.LocationID = "loc-2"
	otherStaff := rule("09:00", "11:00")
	otherStaff.StaffID = "staff-2"

	tests := []struct {
		name  string
		rules []Rule
	}{
		{name: "no rules", rules: nil},
		{name: "zero length window", rules: []Rule{rule("10:00", "10:00")}},
		{name: "inverted window", rules: []Rule{rule("11:00", "10:00")}},
		{name: "inactive rule", rules: []Rule{inactive}},
		{name: "other weekday", rules: []Rule{otherDay}},
		{name: "other location", rules: []Rule{otherLocation}},
		{name: "other staff", rules: []Rule{otherStaff}},
	}

	g := NewGenerator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := g.Generate(tc.rules, request(wednesday, dayBefore))
			if !errors.Is(err, ErrNoAvailability) {
				t.Fatalf("expected ErrNoAvailability, got %v", err)
			}
			if len(slots) != 0 {
				t.Fatalf("expected no slots, got %v", slotStrings(slots))
			}
		})
	}
}

func TestGenerate_TodaySkipsPast(t *testing.T) {
	g := NewGenerator(nil)
	now := time.Date(2026, 1, 28, 9, 15, 0, 0, time.UTC)

	slots, err := g.Generate([]Rule{rule("09:00", "10:00")}, request(wednesday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"09:30"}) {
		t.Fatalf("expected [09:30], got %v", got)
	}
}

func TestGenerate_TodayExcludesSlotEqualToNow(t *testing.T) {
	g := NewGenerator(nil)
	now := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)

	slots, err := g.Generate([]Rule{rule("09:00", "10:30")}, request(wednesday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"10:00"}) {
		t.Fatalf("expected [10:00], got %v", got)
	}
}

func TestGenerate_TodayAllElapsed(t *testing.T) {
	g := NewGenerator(nil)
	now := time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC)

	slots, err := g.Generate([]Rule{rule("09:00", "10:00")}, request(wednesday, now))
	if !errors.Is(err, ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability, got %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slotStrings(slots))
	}
}

func TestGenerate_TodayUsesNowLocation(t *testing.T) {
	g := NewGenerator(nil)
	bogota := time.FixedZone("COT", -5*60*60)
	// 09:15 local; 14:15 UTC. Comparison happens in the caller's zone.
	now := time.Date(2026, 1, 28, 9, 15, 0, 0, bogota)

	slots, err := g.Generate([]Rule{rule("09:00", "10:00")}, request(wednesday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"09:30"}) {
		t.Fatalf("expected [09:30], got %v", got)
	}
}

func TestGenerate_TodayComparesWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	g := NewGenerator(nil)
	// 2026-11-01 is a Sunday; clocks fall back at 02:00 EDT. 06:10 UTC is 01:10 EST,
	// the second pass through the repeated hour.
	now := time.Date(2026, 11, 1, 6, 10, 0, 0, time.UTC).In(ny)
	sunday := Date{Year: 2026, Month: time.November, Day: 1}
	r := rule("00:30", "02:30")
	r.DayOfWeek = 0

	slots, err := g.Generate([]Rule{r}, request(sunday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"01:30", "02:00"}) {
		t.Fatalf("expected [01:30 02:00], got %v", got)
	}
}

func TestGenerate_TodayIgnoresSecondsPastSlot(t *testing.T) {
	g := NewGenerator(nil)
	now := time.Date(2026, 1, 28, 9, 29, 59, 999, time.UTC)

	slots, err := g.Generate([]Rule{rule("09:00", "10:30")}, request(wednesday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"09:30", "10:00"}) {
		t.Fatalf("expected [09:30 10:00], got %v", got)
	}
}

func TestGenerate_PastDateNotRejected(t *testing.T) {
	g := NewGenerator(nil)
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	slots, err := g.Generate([]Rule{rule("09:00", "10:00")}, request(wednesday, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slotStrings(slots))
	}
}

func TestGenerate_MalformedRule(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		field string
	}{
		{name: "non numeric hour", start: "ab:00", end: "10:00", field: "start time"},
		{name: "non numeric minute", start: "09:00", end: "10:xx", field: "end time"},
		{name: "missing separator", start: "0900", end: "10:00", field: "start time"},
		{name: "empty end", start: "09:00", end: "", field: "end time"},
		{name: "minute out of range", start: "09:75", end: "10:00", field: "start time"},
		{name: "signed hour", start: "+9:00", end: "10:00", field: "start time"},
		{name: "past midnight", start: "09:00", end: "24:30", field: "end time"},
	}

	g := NewGenerator(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slots, err := g.Generate([]Rule{rule(tc.start, tc.end)}, request(wednesday, dayBefore))
			if !errors.Is(err, ErrMalformedRule) {
				t.Fatalf("expected ErrMalformedRule, got %v", err)
			}
			if errors.Is(err, ErrNoAvailability) {
				t.Fatal("malformed rule must not be reported as no availability")
			}
			var mErr *MalformedRuleError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected *MalformedRuleError, got %T", err)
			}
			if mErr.RuleID != "rule-1" || mErr.Field != tc.field {
				t.Fatalf("unexpected error details: %+v", mErr)
			}
			if slots != nil {
				t.Fatalf("expected nil slots, got %v", slotStrings(slots))
			}
		})
	}
}

func TestGenerate_MalformedOtherRulesIgnored(t *testing.T) {
	broken := rule("xx", "yy")
	broken.DayOfWeek = 1

	g := NewGenerator(nil)
	slots, err := g.Generate([]Rule{broken, rule("09:00", "10:00")}, request(wednesday, dayBefore))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slotStrings(slots))
	}
}

func TestGenerate_DuplicateRulesFirstMatchWins(t *testing.T) {
	first := rule("09:00", "10:00")
	second := rule("14:00", "16:00")
	second.ID = "rule-2"

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	g := NewGenerator(logger)

	slots, err := g.Generate([]Rule{first, second}, request(wednesday, dayBefore))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !reflect.DeepEqual(got, []string{"09:00", "09:30"}) {
		t.Fatalf("expected first rule's slots, got %v", got)
	}
	logged := buf.String()
	if !strings.Contains(logged, `"level":"WARN"`) || !strings.Contains(logged, `"rule_id":"rule-1"`) {
		t.Fatalf("expected duplicate warning naming rule-1, got %q", logged)
	}
}

func TestGenerate_InactiveDuplicateNotWarned(t *testing.T) {
	inactive := rule("14:00", "16:00")
	inactive.Active = false

	var buf bytes.Buffer
	g := NewGenerator(slog.New(slog.NewJSONHandler(&buf, nil)))
	if _, err := g.Generate([]Rule{rule("09:00", "10:00"), inactive}, request(wednesday, dayBefore)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %q", buf.String())
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	g := NewGenerator(nil)
	rules := []Rule{rule("09:00", "12:00")}
	now := time.Date(2026, 1, 28, 10, 5, 0, 0, time.UTC)

	first, err1 := g.Generate(rules, request(wednesday, now))
	second, err2 := g.Generate(rules, request(wednesday, now))
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %v and %v", slotStrings(first), slotStrings(second))
	}
}

func TestGenerate_SundayIsZero(t *testing.T) {
	sunday := Date{Year: 2026, Month: time.February, Day: 1}
	r := rule("10:00", "11:00")
	r.DayOfWeek = 0

	g := NewGenerator(nil)
	slots, err := g.Generate([]Rule{r}, request(sunday, dayBefore))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slotStrings(slots))
	}
}
