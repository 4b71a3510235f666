package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrUnsupportedRecurrence is returned for recurrence shapes that have no
// RRULE equivalent here.
var ErrUnsupportedRecurrence = errors.New("unsupported recurrence")

// PatternedRecurrence describes how a series master repeats.
type PatternedRecurrence struct {
	Pattern RecurrencePattern `json:"pattern"`
	Range   RecurrenceRange   `json:"range"`
}

type RecurrencePattern struct {
	// Type is daily, weekly, absoluteMonthly, relativeMonthly,
	// absoluteYearly or relativeYearly.
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	Month          int      `json:"month"`
	DayOfMonth     int      `json:"dayOfMonth"`
	DaysOfWeek     []string `json:"daysOfWeek"`
	FirstDayOfWeek string   `json:"firstDayOfWeek"`
	// Index is first, second, third, fourth or last.
	Index string `json:"index"`
}

type RecurrenceRange struct {
	// Type is endDate, noEnd or numbered.
	Type                string `json:"type"`
	StartDate           string `json:"startDate"`
	EndDate             string `json:"endDate"`
	NumberOfOccurrences int    `json:"numberOfOccurrences"`
	// RecurrenceTimeZone is the zone StartDate and EndDate are expressed in.
	RecurrenceTimeZone string `json:"recurrenceTimeZone"`
}

var weekdays = map[string]rrule.Weekday{
	"monday":    rrule.MO,
	"tuesday":   rrule.TU,
	"wednesday": rrule.WE,
	"thursday":  rrule.TH,
	"friday":    rrule.FR,
	"saturday":  rrule.SA,
	"sunday":    rrule.SU,
}

var weekIndexes = map[string]int{
	"":       1,
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"last":   -1,
}

// RecurrenceRule converts r to an RRULE value (without the "RRULE:" prefix
// and without DTSTART). An end date is read in the range's own time zone,
// falling back to loc (UTC when nil).
func RecurrenceRule(r *PatternedRecurrence, loc *time.Location) (string, error) {
	if r == nil {
		return "", nil
	}
	if r.Range.RecurrenceTimeZone != "" {
		loc = sourceLocation(r.Range.RecurrenceTimeZone)
	}
	if loc == nil {
		loc = time.UTC
	}
	opt, err := recurrenceOption(r, loc)
	if err != nil {
		return "", err
	}
	// NewRRule validates the option bounds (BYSETPOS, BYMONTHDAY, ...).
	if _, err := rrule.NewRRule(*opt); err != nil {
		return "", fmt.Errorf("rrule: %w", err)
	}
	return opt.RRuleString(), nil
}

func recurrenceOption(r *PatternedRecurrence, loc *time.Location) (*rrule.ROption, error) {
	p := r.Pattern
	opt := &rrule.ROption{Interval: p.Interval}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}

	if p.FirstDayOfWeek != "" {
		wd, err := parseWeekday(p.FirstDayOfWeek)
		if err != nil {
			return nil, err
		}
		opt.Wkst = wd
	}

	switch strings.ToLower(p.Type) {
	case "daily":
		opt.Freq = rrule.DAILY
	case "weekly":
		opt.Freq = rrule.WEEKLY
		days, err := parseWeekdays(p.DaysOfWeek)
		if err != nil {
			return nil, err
		}
		opt.Byweekday = days
	case "absolutemonthly":
		opt.Freq = rrule.MONTHLY
		if p.DayOfMonth == 0 {
			return nil, fmt.Errorf("%w: absoluteMonthly without dayOfMonth", ErrUnsupportedRecurrence)
		}
		opt.Bymonthday = []int{p.DayOfMonth}
	case "relativemonthly":
		opt.Freq = rrule.MONTHLY
		if err := applyRelative(opt, p); err != nil {
			return nil, err
		}
	case "absoluteyearly":
		opt.Freq = rrule.YEARLY
		if p.Month == 0 || p.DayOfMonth == 0 {
			return nil, fmt.Errorf("%w: absoluteYearly without month/dayOfMonth", ErrUnsupportedRecurrence)
		}
		opt.Bymonth = []int{p.Month}
		opt.Bymonthday = []int{p.DayOfMonth}
	case "relativeyearly":
		opt.Freq = rrule.YEARLY
		if p.Month == 0 {
			return nil, fmt.Errorf("%w: relativeYearly without month", ErrUnsupportedRecurrence)
		}
		opt.Bymonth = []int{p.Month}
		if err := applyRelative(opt, p); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: pattern %q", ErrUnsupportedRecurrence, p.Type)
	}

	switch strings.ToLower(r.Range.Type) {
	case "", "noend":
	case "enddate":
		end, err := time.ParseInLocation(dateLayout, r.Range.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("range endDate %q: %w", r.Range.EndDate, err)
		}
		// The end date is inclusive, through the last second of that day.
		opt.Until = end.AddDate(0, 0, 1).Add(-time.Second)
	case "numbered":
		if r.Range.NumberOfOccurrences <= 0 {
			return nil, fmt.Errorf("%w: numbered range without count", ErrUnsupportedRecurrence)
		}
		opt.Count = r.Range.NumberOfOccurrences
	default:
		return nil, fmt.Errorf("%w: range %q", ErrUnsupportedRecurrence, r.Range.Type)
	}

	return opt, nil
}

// applyRelative handles "the <index> <weekday(s)>" patterns, expressed as
// BYDAY plus BYSETPOS.
func applyRelative(opt *rrule.ROption, p RecurrencePattern) error {
	days, err := parseWeekdays(p.DaysOfWeek)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		return fmt.Errorf("%w: relative pattern without daysOfWeek", ErrUnsupportedRecurrence)
	}
	idx, ok := weekIndexes[strings.ToLower(p.Index)]
	if !ok {
		return fmt.Errorf("%w: index %q", ErrUnsupportedRecurrence, p.Index)
	}
	opt.Byweekday = days
	opt.Bysetpos = []int{idx}
	return nil
}

func parseWeekdays(names []string) ([]rrule.Weekday, error) {
	out := make([]rrule.Weekday, 0, len(names))
	for _, name := range names {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		out = append(out, wd)
	}
	return out, nil
}

func parseWeekday(name string) (rrule.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return rrule.Weekday{}, fmt.Errorf("%w: weekday %q", ErrUnsupportedRecurrence, name)
	}
	return wd, nil
}
