package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Importance mirrors the calendar provider's importance flag.
// Values other than the known ones are kept verbatim.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// ErrNoMeetingLink is returned by JoinTarget when a meeting has neither an
// online meeting URL nor a web link.
var ErrNoMeetingLink = errors.New("no online meeting link available")

// ChecklistItem is a single preparation task attached to a meeting.
type ChecklistItem struct {
	// ID is unique within the owning meeting.
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Meeting is the normalized view of one calendar event, plus the
// user-authored preparation state (notes and checklist).
type Meeting struct {
	// ID is the 1-based position in the source collection. It is assigned
	// once at normalization time and never re-derived.
	ID int `json:"id"`
	// GraphID is the provider's event identifier.
	GraphID string `json:"graph_id"`

	Subject     string    `json:"subject"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	Description string    `json:"description"`

	IsOrganizer bool       `json:"is_organizer"`
	Importance  Importance `json:"importance"`
	IsCancelled bool       `json:"is_cancelled"`

	// OnlineMeetingURL is empty when no join URL could be resolved.
	OnlineMeetingURL string `json:"online_meeting_url,omitempty"`
	WebLink          string `json:"web_link"`

	// Recurrence is an RRULE value for series masters, empty otherwise.
	Recurrence string `json:"recurrence,omitempty"`

	PrepNotes      string          `json:"prep_notes"`
	ChecklistItems []ChecklistItem `json:"checklist_items"`
}

// Clone returns a deep copy so callers can't mutate shared slices.
func (m Meeting) Clone() Meeting {
	out := m
	if m.Attendees != nil {
		out.Attendees = append([]string(nil), m.Attendees...)
	}
	if m.ChecklistItems != nil {
		out.ChecklistItems = append([]ChecklistItem(nil), m.ChecklistItems...)
	}
	return out
}

// CompletedCount returns how many checklist items are done.
func (m Meeting) CompletedCount() int {
	n := 0
	for _, it := range m.ChecklistItems {
		if it.Completed {
			n++
		}
	}
	return n
}

// NextChecklistID returns max(existing ids)+1, or 1 for an empty checklist.
func (m Meeting) NextChecklistID() int {
	maxID := 0
	for _, it := range m.ChecklistItems {
		if it.ID > maxID {
			maxID = it.ID
		}
	}
	return maxID + 1
}

// SortByStart returns a copy of meetings ordered ascending by Start.
// Meetings with equal starts keep their source order.
func SortByStart(meetings []Meeting) []Meeting {
	out := make([]Meeting, len(meetings))
	for i, m := range meetings {
		out[i] = m.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// TimeRemaining formats the time until m starts relative to now:
// "In progress" once started, otherwise "{h}h {m}m" or "{m}m".
func TimeRemaining(m Meeting, now time.Time) string {
	if !now.Before(m.Start) {
		return "In progress"
	}
	diff := m.Start.Sub(now)
	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// JoinTarget picks the link a user should open to join m.
func JoinTarget(m Meeting) (string, error) {
	if m.OnlineMeetingURL != "" {
		return m.OnlineMeetingURL, nil
	}
	if m.WebLink != "" {
		return m.WebLink, nil
	}
	return "", ErrNoMeetingLink
}
