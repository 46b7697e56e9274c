package availability

import (
	"log/slog"
	"time"
)

// SlotStep is the fixed grid between consecutive slot starts.
const SlotStep = 30 * time.Minute

// Request selects the staff member, location and date to generate slots for.
// Now is supplied by the caller; the generator never reads the wall clock.
type Request struct {
	StaffID    string
	LocationID string
	Date       Date
	Now        time.Time
}

// Generator expands availability rules into bookable slots.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator returns a Generator logging to logger; nil discards logs.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{logger: logger}
}

// Generate returns the bookable start times for req.Date under the first active rule
// matching the staff member, location and weekday.
//
// Slots start at the rule's start time and advance by SlotStep while the slot start is
// before the rule's end time. When req.Date is the calendar day of req.Now, only slots
// strictly after req.Now are kept. An empty result is reported as ErrNoAvailability;
// unparseable rule times are reported as a *MalformedRuleError.
func (g *Generator) Generate(rules []Rule, req Request) ([]Clock, error) {
	rule, ok := g.selectRule(rules, req)
	if !ok {
		return nil, ErrNoAvailability
	}

	start, err := ParseClock(rule.StartTime)
	if err != nil {
		return nil, &MalformedRuleError{RuleID: rule.ID, Field: "start time", Value: rule.StartTime, Err: err}
	}
	end, err := ParseClock(rule.EndTime)
	if err != nil {
		return nil, &MalformedRuleError{RuleID: rule.ID, Field: "end time", Value: rule.EndTime, Err: err}
	}
	if !start.Before(end) {
		return nil, ErrNoAvailability
	}

	// Wall-clock comparison: a slot at HH:MM:00 is after now only if its minute is
	// later than now's, whatever now's seconds are.
	today := DateOf(req.Now) == req.Date
	nowMinutes := ClockOf(req.Now).Minutes()
	var slots []Clock
	for c := start; c.Before(end); c = c.Add(SlotStep) {
		if today && c.Minutes() <= nowMinutes {
			continue
		}
		slots = append(slots, c)
	}
	if len(slots) == 0 {
		return nil, ErrNoAvailability
	}
	return slots, nil
}

func (g *Generator) selectRule(rules []Rule, req Request) (Rule, bool) {
	weekday := int(req.Date.Weekday())
	var (
		chosen     Rule
		found      bool
		duplicates int
	)
	for _, r := range rules {
		if !r.matches(req.StaffID, req.LocationID, weekday) {
			continue
		}
		if !found {
			chosen = r
			found = true
			continue
		}
		duplicates++
	}
	if duplicates > 0 {
		g.logger.Warn("duplicate active availability rules; using first match",
			"staff_id", req.StaffID,
			"location_id", req.LocationID,
			"weekday", weekday,
			"rule_id", chosen.ID,
			"duplicates", duplicates,
		)
	}
	return chosen, found
}
