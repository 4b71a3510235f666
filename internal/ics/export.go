// Package ics renders meetings as an iCalendar feed and expands recurring
// meetings into concrete occurrences.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "meetprep/internal/log"
	"meetprep/internal/model"
)

const defaultProductID = "-//meetprep//Meeting Prep//EN"

// ExportOptions controls calendar-level properties of an export.
type ExportOptions struct {
	ProductID string
	// Name is written as X-WR-CALNAME when non-empty.
	Name string
	// Now is the DTSTAMP of every event. Zero means time.Now.
	Now time.Time
}

// WriteCalendar renders meetings as an iCalendar document and streams it
// to w.
func WriteCalendar(w io.Writer, meetings []model.Meeting, opts ExportOptions) error {
	return build(meetings, opts).SerializeTo(w)
}

func build(meetings []model.Meeting, opts ExportOptions) *ical.Calendar {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, m := range meetings {
		ev := cal.AddEvent(eventUID(m))
		ev.SetDtStampTime(opts.Now)
		ev.SetStartAt(m.Start)
		ev.SetEndAt(m.End)
		ev.SetSummary(m.Subject)
		if m.Location != "" {
			ev.SetLocation(m.Location)
		}
		if desc := description(m); desc != "" {
			ev.SetDescription(desc)
		}
		if url, err := model.JoinTarget(m); err == nil {
			ev.SetURL(url)
		}
		if m.IsCancelled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
		if p := priority(m.Importance); p > 0 {
			ev.SetPriority(p)
		}
		if m.Recurrence != "" {
			ev.AddRrule(m.Recurrence)
		}
	}

	appLog.Debug("ics export built", "event_count", len(meetings))
	return cal
}

func eventUID(m model.Meeting) string {
	if m.GraphID != "" {
		return m.GraphID
	}
	return fmt.Sprintf("meetprep-%d", m.ID)
}

// description joins the event body, the prep notes and the checklist.
func description(m model.Meeting) string {
	var parts []string
	if s := strings.TrimSpace(m.Description); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(m.PrepNotes); s != "" {
		parts = append(parts, "Prep notes:\n"+s)
	}
	if len(m.ChecklistItems) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Checklist (%d/%d):", m.CompletedCount(), len(m.ChecklistItems))
		for _, it := range m.ChecklistItems {
			mark := " "
			if it.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "\n[%s] %s", mark, it.Text)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

// priority maps importance onto RFC 5545 PRIORITY (1 highest, 9 lowest).
func priority(imp model.Importance) int {
	switch imp {
	case model.ImportanceHigh:
		return 1
	case model.ImportanceLow:
		return 9
	default:
		return 0
	}
}
