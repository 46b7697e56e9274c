package availability

import (
	"errors"
	"fmt"
)

// Rule is a recurring weekly window in which a staff member can be booked at a location.
type Rule struct {
	ID         string
	StaffID    string
	LocationID string
	DayOfWeek  int // 0 = Sunday
	StartTime  string
	EndTime    string
	Active     bool
}

func (r Rule) matches(staffID, locationID string, weekday int) bool {
	return r.Active && r.StaffID == staffID && r.LocationID == locationID && r.DayOfWeek == weekday
}

// ErrNoAvailability is a valid, displayable outcome: nothing can be booked that day.
var ErrNoAvailability = errors.New("no availability for the requested day")

// ErrMalformedRule marks rules whose times cannot be parsed.
var ErrMalformedRule = errors.New("malformed availability rule")

// MalformedRuleError names the rule and field whose time could not be parsed.
type MalformedRuleError struct {
	RuleID string
	Field  string
	Value  string
	Err    error
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("availability rule %q: invalid %s %q: %v", e.RuleID, e.Field, e.Value, e.Err)
}

func (e *MalformedRuleError) Unwrap() error {
	return e.Err
}

func (e *MalformedRuleError) Is(target error) bool {
	return target == ErrMalformedRule
}
