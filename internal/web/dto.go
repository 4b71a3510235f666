package web

import (
	"time"

	"meetprep/internal/ics"
	"meetprep/internal/model"
	"meetprep/internal/session"
)

// stateResponse is the JSON response shape for /api/state and for the
// connection endpoints.
type stateResponse struct {
	State        session.State `json:"state"`
	Connected    bool          `json:"connected"`
	Connecting   bool          `json:"connecting"`
	Loading      bool          `json:"loading"`
	Error        string        `json:"error,omitempty"`
	ConnectionID string        `json:"connection_id,omitempty"`
	Now          time.Time     `json:"now"`
	Meetings     []meetingDTO  `json:"meetings"`
	SelectedID   int           `json:"selected_id,omitempty"`
	Selected     *meetingDTO   `json:"selected,omitempty"`
}

// meetingDTO adds the derived views to a meeting.
type meetingDTO struct {
	model.Meeting
	TimeRemaining  string     `json:"time_remaining"`
	CompletedCount int        `json:"completed_count"`
	ChecklistTotal int        `json:"checklist_total"`
	NextOccurrence *time.Time `json:"next_occurrence,omitempty"`
}

type joinResponse struct {
	URL string `json:"url"`
}

type occurrenceDTO struct {
	MeetingID int       `json:"meeting_id"`
	Subject   string    `json:"subject"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type occurrencesResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
	RangeStart  time.Time       `json:"range_start"`
	RangeEnd    time.Time       `json:"range_end"`
}

func toMeetingDTO(m model.Meeting, now time.Time) meetingDTO {
	dto := meetingDTO{
		Meeting:        m,
		TimeRemaining:  model.TimeRemaining(m, now),
		CompletedCount: m.CompletedCount(),
		ChecklistTotal: len(m.ChecklistItems),
	}
	if m.ChecklistItems == nil {
		dto.ChecklistItems = []model.ChecklistItem{}
	}
	if m.Attendees == nil {
		dto.Attendees = []string{}
	}
	if m.Recurrence != "" {
		if occ, ok := ics.NextOccurrence(m, now); ok {
			start := occ.Start
			dto.NextOccurrence = &start
		}
	}
	return dto
}

func toStateResponse(snap session.Snapshot) stateResponse {
	resp := stateResponse{
		State:        snap.State,
		Connected:    snap.State == session.Connected,
		Connecting:   snap.State == session.Connecting,
		Loading:      snap.Loading,
		Error:        snap.Error,
		ConnectionID: snap.ConnectionID,
		Now:          snap.Now,
		Meetings:     make([]meetingDTO, 0, len(snap.Meetings)),
		SelectedID:   snap.SelectedID,
	}
	for _, m := range snap.Meetings {
		resp.Meetings = append(resp.Meetings, toMeetingDTO(m, snap.Now))
	}
	if m, ok := snap.Selected(); ok {
		sel := toMeetingDTO(m, snap.Now)
		resp.Selected = &sel
	}
	return resp
}
