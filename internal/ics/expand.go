package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetprep/internal/log"
	"meetprep/internal/model"
)

const defaultMaxOccurrences = 500

// Occurrence is one concrete instance of a meeting.
type Occurrence struct {
	MeetingID int
	Start     time.Time
	End       time.Time
}

// ExpandConfig bounds an expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps occurrences per meeting. Zero means 500.
	MaxOccurrences int
}

// ExpandOccurrences returns the occurrences of meetings inside the window,
// in input order. Meetings without a recurrence contribute themselves when
// they overlap the window. A meeting whose RRULE cannot be parsed is treated
// as a single instance.
func ExpandOccurrences(meetings []model.Meeting, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	out := make([]Occurrence, 0, len(meetings))
	for _, m := range meetings {
		if m.Recurrence == "" {
			if overlaps(m.Start, m.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, Occurrence{MeetingID: m.ID, Start: m.Start, End: m.End})
			}
			continue
		}

		r, err := ruleFor(m)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "meeting_id", m.ID, "rrule", m.Recurrence)
			if overlaps(m.Start, m.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, Occurrence{MeetingID: m.ID, Start: m.Start, End: m.End})
			}
			continue
		}

		loc := m.Start.Location()
		dur := m.End.Sub(m.Start)
		// Instances that started up to one duration before the window may
		// still be running inside it.
		starts := r.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)
		n := 0
		for _, s := range starts {
			if !overlaps(s, s.Add(dur), cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			if n == cfg.MaxOccurrences {
				appLog.Warn("expand: occurrences truncated", "meeting_id", m.ID, "cap", cfg.MaxOccurrences)
				break
			}
			out = append(out, Occurrence{MeetingID: m.ID, Start: s, End: s.Add(dur)})
			n++
		}
	}
	return out, nil
}

// NextOccurrence returns the first instance of m that has not ended at
// now. For a non-recurring meeting that is m itself, if it is not over.
func NextOccurrence(m model.Meeting, now time.Time) (Occurrence, bool) {
	single := Occurrence{MeetingID: m.ID, Start: m.Start, End: m.End}
	if m.Recurrence == "" {
		return single, now.Before(m.End)
	}
	r, err := ruleFor(m)
	if err != nil {
		appLog.Error("next occurrence: failed to parse RRULE", err, "meeting_id", m.ID, "rrule", m.Recurrence)
		return single, now.Before(m.End)
	}
	dur := m.End.Sub(m.Start)
	// An instance that started before now but is still running counts.
	s := r.After(now.Add(-dur).In(m.Start.Location()), false)
	if s.IsZero() {
		return Occurrence{}, false
	}
	return Occurrence{MeetingID: m.ID, Start: s, End: s.Add(dur)}, true
}

func ruleFor(m model.Meeting) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(m.Recurrence)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = m.Start
	return rrule.NewRRule(*opt)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
