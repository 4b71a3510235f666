package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	appLog "meetprep/internal/log"
	"meetprep/internal/model"
)

// Checklist texts attached by the normalizer.
const (
	ItemReviewAgenda       = "Review meeting agenda"
	ItemDiscussionPoints   = "Prepare discussion points"
	ItemPresentationSlides = "Review presentation slides"
	ItemTestMeetingLink    = "Test meeting link before joining"
	ItemPrepareFallback    = "Prepare for meeting"
)

const (
	defaultLocation  = "No location"
	fallbackLocation = "Unknown location"
	fallbackSubject  = "Untitled Meeting"
	fallbackDuration = time.Hour

	// Offset-less wall clock, e.g. 2026-10-20T09:00:00.0000000. Fractional
	// seconds are accepted by time.Parse even though the layout omits them.
	wallClockLayout = "2006-01-02T15:04:05"
	dateLayout      = "2006-01-02"
)

var (
	ErrMissingSubject  = errors.New("missing subject")
	ErrMissingDateTime = errors.New("missing date-time")
)

// Normalizer turns provider events into model.Meeting records.
// The zero value is ready to use.
type Normalizer struct {
	// Location is the display timezone. nil means time.Local.
	Location *time.Location
	// Now supplies the start time of placeholder meetings. nil means time.Now.
	Now func() time.Time
}

// Normalize is a convenience wrapper around a zero Normalizer.
func Normalize(p *Payload) []model.Meeting {
	var n Normalizer
	return n.Normalize(p)
}

// NormalizeJSON decodes and normalizes data. A payload that cannot be
// decoded yields an empty slice.
func NormalizeJSON(data []byte) []model.Meeting {
	var n Normalizer
	return n.NormalizeJSON(data)
}

// NormalizeJSON decodes data and normalizes it. Decode failures are logged
// and produce an empty slice.
func (n *Normalizer) NormalizeJSON(data []byte) []model.Meeting {
	p, err := Decode(data)
	if err != nil {
		appLog.Error("calendar payload rejected", err, "bytes", len(data))
		return []model.Meeting{}
	}
	return n.Normalize(p)
}

// Normalize maps every event of p to a Meeting whose ID is its 1-based
// position. An event that cannot be normalized is replaced by a placeholder
// meeting; it never drops the rest of the batch.
func (n *Normalizer) Normalize(p *Payload) []model.Meeting {
	if p == nil || len(p.Value) == 0 {
		appLog.Debug("no meeting data found")
		return []model.Meeting{}
	}

	meetings := make([]model.Meeting, 0, len(p.Value))
	placeholders := 0
	for i, raw := range p.Value {
		m, err := n.normalizeEvent(i, raw)
		if err != nil {
			appLog.Warn("event could not be normalized; using placeholder",
				"index", i,
				"err", err,
			)
			m = n.placeholder(i, raw)
			placeholders++
		}
		meetings = append(meetings, m)
	}

	appLog.Debug("normalized meetings", "count", len(meetings), "placeholders", placeholders)
	return meetings
}

func (n *Normalizer) normalizeEvent(i int, raw json.RawMessage) (model.Meeting, error) {
	var ev RawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.Meeting{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Subject == nil {
		return model.Meeting{}, ErrMissingSubject
	}
	start, err := n.parseDateTime(ev.Start)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("start: %w", err)
	}
	end, err := n.parseDateTime(ev.End)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("end: %w", err)
	}

	location := defaultLocation
	if ev.Location != nil && ev.Location.DisplayName != "" {
		location = ev.Location.DisplayName
	}

	m := model.Meeting{
		ID:               i + 1,
		GraphID:          ev.ID,
		Subject:          *ev.Subject,
		Start:            start,
		End:              end,
		Location:         location,
		Attendees:        filterAttendees(ev.Attendees),
		Description:      ev.BodyPreview,
		IsOrganizer:      ev.IsOrganizer,
		Importance:       parseImportance(ev.Importance),
		IsCancelled:      ev.IsCancelled,
		OnlineMeetingURL: resolveMeetingURL(ev, location),
		WebLink:          ev.WebLink,
		PrepNotes:        "",
		ChecklistItems:   defaultChecklist(*ev.Subject, ev.hasOnlineIndicator()),
	}

	if ev.Recurrence != nil {
		rule, err := RecurrenceRule(ev.Recurrence, sourceLocation(ev.Start.TimeZone))
		if err != nil {
			appLog.Warn("recurrence ignored", "graph_id", ev.ID, "err", err)
		} else {
			m.Recurrence = rule
		}
	}

	return m, nil
}

// placeholder builds the minimal meeting used when an event is malformed.
// Whatever identifying fields can still be read are kept.
func (n *Normalizer) placeholder(i int, raw json.RawMessage) model.Meeting {
	var loose struct {
		ID      any `json:"id"`
		Subject any `json:"subject"`
		Start   struct {
			DateTime any `json:"dateTime"`
			TimeZone any `json:"timeZone"`
		} `json:"start"`
		End struct {
			DateTime any `json:"dateTime"`
			TimeZone any `json:"timeZone"`
		} `json:"end"`
	}
	// Best effort: a partial or failed decode leaves zero values behind.
	_ = json.Unmarshal(raw, &loose)

	graphID, _ := loose.ID.(string)
	if graphID == "" {
		graphID = fmt.Sprintf("unknown-%d", i)
	}
	subject, _ := loose.Subject.(string)
	if subject == "" {
		subject = fallbackSubject
	}

	start, err := n.parseDateTime(looseDateTime(loose.Start.DateTime, loose.Start.TimeZone))
	if err != nil {
		start = n.now().In(n.location())
	}
	end, err := n.parseDateTime(looseDateTime(loose.End.DateTime, loose.End.TimeZone))
	if err != nil {
		end = start.Add(fallbackDuration)
	}

	checklist := []model.ChecklistItem{{ID: 1, Text: ItemPrepareFallback}}

	return model.Meeting{
		ID:             i + 1,
		GraphID:        graphID,
		Subject:        subject,
		Start:          start,
		End:            end,
		Location:       fallbackLocation,
		Attendees:      []string{},
		Importance:     model.ImportanceNormal,
		PrepNotes:      "",
		ChecklistItems: checklist,
	}
}

func looseDateTime(dateTime, timeZone any) *DateTimeTimeZone {
	s, _ := dateTime.(string)
	tz, _ := timeZone.(string)
	return &DateTimeTimeZone{DateTime: s, TimeZone: tz}
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// parseDateTime accepts RFC 3339 values and offset-less wall clock values
// interpreted in dt.TimeZone. The result is in the display location.
func (n *Normalizer) parseDateTime(dt *DateTimeTimeZone) (time.Time, error) {
	if dt == nil || strings.TrimSpace(dt.DateTime) == "" {
		return time.Time{}, ErrMissingDateTime
	}
	s := strings.TrimSpace(dt.DateTime)

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(n.location()), nil
	}

	src := sourceLocation(dt.TimeZone)
	t, err := time.ParseInLocation(wallClockLayout, s, src)
	if err != nil {
		var derr error
		t, derr = time.ParseInLocation(dateLayout, s, src)
		if derr != nil {
			return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
		}
	}
	return t.In(n.location()), nil
}

// sourceLocation resolves the zone an event's wall clock is expressed in.
// TODO: map Windows zone names ("Pacific Standard Time") to IANA names
// instead of falling back to UTC.
func sourceLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Debug("unknown event timezone; assuming UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

// filterAttendees keeps display names, dropping empty names and rooms or
// resource calendars.
func filterAttendees(attendees []Attendee) []string {
	out := make([]string, 0, len(attendees))
	for _, a := range attendees {
		name := a.EmailAddress.Name
		if name == "" || strings.Contains(name, "Room") || strings.Contains(name, "resource.calendar") {
			continue
		}
		out = append(out, name)
	}
	return out
}

func defaultChecklist(subject string, online bool) []model.ChecklistItem {
	items := []model.ChecklistItem{
		{ID: 1, Text: ItemReviewAgenda},
		{ID: 2, Text: ItemDiscussionPoints},
	}
	if strings.Contains(cases.Fold().String(subject), "presentation") {
		items = append(items, model.ChecklistItem{ID: 3, Text: ItemPresentationSlides})
	}
	if online {
		items = append(items, model.ChecklistItem{ID: 4, Text: ItemTestMeetingLink})
	}
	return items
}

// resolveMeetingURL picks the join URL: explicit join URL, then the legacy
// onlineMeetingUrl field, then a location that is itself a link.
func resolveMeetingURL(ev RawEvent, location string) string {
	switch {
	case ev.OnlineMeeting != nil && ev.OnlineMeeting.JoinURL != "":
		return ev.OnlineMeeting.JoinURL
	case ev.OnlineMeetingURL != "":
		return ev.OnlineMeetingURL
	case strings.Contains(location, "https://"):
		return location
	default:
		return ""
	}
}

func parseImportance(s string) model.Importance {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return model.ImportanceNormal
	}
	return model.Importance(s)
}
