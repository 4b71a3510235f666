package graph

import (
	"encoding/json"
	"testing"
	"time"

	"meetprep/internal/model"
)

func payloadOf(t *testing.T, events ...string) *Payload {
	t.Helper()
	p := &Payload{}
	for _, e := range events {
		p.Value = append(p.Value, json.RawMessage(e))
	}
	return p
}

func checklistTexts(items []model.ChecklistItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func hasText(items []model.ChecklistItem, text string) bool {
	for _, it := range items {
		if it.Text == text {
			return true
		}
	}
	return false
}

const standupEvent = `{
	"id": "AAMk-standup",
	"subject": "Daily standup",
	"bodyPreview": "Yesterday / today / blockers",
	"start": {"dateTime": "2026-10-20T09:00:00.0000000", "timeZone": "UTC"},
	"end": {"dateTime": "2026-10-20T09:15:00.0000000", "timeZone": "UTC"},
	"location": {"displayName": "Room 4.01"},
	"attendees": [
		{"emailAddress": {"name": "Ada Lovelace", "address": "ada@example.com"}},
		{"emailAddress": {"name": "Room 4.01", "address": "room401@example.com"}},
		{"emailAddress": {"name": "", "address": "ghost@example.com"}},
		{"emailAddress": {"name": "projector@resource.calendar.example.com"}},
		{"emailAddress": {"name": "Grace Hopper", "address": "grace@example.com"}}
	],
	"isOrganizer": true,
	"importance": "normal",
	"isCancelled": false,
	"webLink": "https://outlook.example/standup"
}`

func TestNormalizeEmptyPayload(t *testing.T) {
	tests := []struct {
		name string
		p    *Payload
	}{
		{"nil payload", nil},
		{"missing value", &Payload{}},
		{"empty value", &Payload{Value: []json.RawMessage{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.p)
			if got == nil || len(got) != 0 {
				t.Errorf("Normalize() = %#v, want empty non-nil slice", got)
			}
		})
	}

	for _, body := range []string{"", "null", `{}`, `{"value": []}`} {
		if got := NormalizeJSON([]byte(body)); len(got) != 0 {
			t.Errorf("NormalizeJSON(%q) returned %d meetings", body, len(got))
		}
	}
}

func TestNormalizeJSONRejectsBrokenPayload(t *testing.T) {
	if _, err := Decode([]byte(`{"value": [`)); err == nil {
		t.Fatal("Decode should fail on truncated JSON")
	}
	if got := NormalizeJSON([]byte(`{"value": [`)); len(got) != 0 {
		t.Errorf("broken payload should yield no meetings, got %d", len(got))
	}
}

func TestNormalizeIDsFollowPosition(t *testing.T) {
	p := payloadOf(t, standupEvent, standupEvent, standupEvent)
	got := Normalize(p)
	if len(got) != len(p.Value) {
		t.Fatalf("got %d meetings, want %d", len(got), len(p.Value))
	}
	for i, m := range got {
		if m.ID != i+1 {
			t.Errorf("meeting %d has id %d", i, m.ID)
		}
	}
}

func TestNormalizeFields(t *testing.T) {
	n := Normalizer{Location: time.UTC}
	got := n.Normalize(payloadOf(t, standupEvent))
	m := got[0]

	if m.GraphID != "AAMk-standup" || m.Subject != "Daily standup" {
		t.Errorf("identity fields wrong: %+v", m)
	}
	wantStart := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	if !m.Start.Equal(wantStart) || !m.End.Equal(wantStart.Add(15*time.Minute)) {
		t.Errorf("times = %s..%s", m.Start, m.End)
	}
	if m.Location != "Room 4.01" {
		t.Errorf("Location = %q", m.Location)
	}
	wantAttendees := []string{"Ada Lovelace", "Grace Hopper"}
	if len(m.Attendees) != len(wantAttendees) {
		t.Fatalf("Attendees = %v, want %v", m.Attendees, wantAttendees)
	}
	for i := range wantAttendees {
		if m.Attendees[i] != wantAttendees[i] {
			t.Errorf("Attendees = %v, want %v", m.Attendees, wantAttendees)
		}
	}
	if m.Description != "Yesterday / today / blockers" || !m.IsOrganizer || m.IsCancelled {
		t.Errorf("flags/description wrong: %+v", m)
	}
	if m.Importance != model.ImportanceNormal {
		t.Errorf("Importance = %q", m.Importance)
	}
	if m.OnlineMeetingURL != "" {
		t.Errorf("no online indicator expected, got %q", m.OnlineMeetingURL)
	}
	if m.WebLink != "https://outlook.example/standup" {
		t.Errorf("WebLink = %q", m.WebLink)
	}
	if m.PrepNotes != "" {
		t.Errorf("PrepNotes should start empty")
	}
	texts := checklistTexts(m.ChecklistItems)
	if len(texts) != 2 || texts[0] != ItemReviewAgenda || texts[1] != ItemDiscussionPoints {
		t.Errorf("checklist = %v", texts)
	}
}

func TestNormalizeRoomOnlyAttendees(t *testing.T) {
	ev := `{"subject": "Sync", "start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T11:00:00"},
		"attendees": [{"emailAddress": {"name": "Room 4"}}]}`
	m := Normalize(payloadOf(t, ev))[0]
	if m.Attendees == nil || len(m.Attendees) != 0 {
		t.Errorf("Attendees = %#v, want empty", m.Attendees)
	}
	if m.Location != defaultLocation {
		t.Errorf("Location = %q, want %q", m.Location, defaultLocation)
	}
}

func TestNormalizePresentationChecklist(t *testing.T) {
	for _, subject := range []string{"Quarterly PRESENTATION", "presentation dry-run", "Board Presentation"} {
		ev := `{"subject": "` + subject + `", "start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T11:00:00"}}`
		m := Normalize(payloadOf(t, ev))[0]
		if !hasText(m.ChecklistItems, ItemPresentationSlides) {
			t.Errorf("subject %q: checklist %v lacks slides item", subject, checklistTexts(m.ChecklistItems))
		}
		for _, it := range m.ChecklistItems {
			if it.Text == ItemPresentationSlides && it.ID != 3 {
				t.Errorf("slides item id = %d, want 3", it.ID)
			}
		}
	}
}

func TestNormalizeOnlineIndicators(t *testing.T) {
	base := `"subject": "Call", "start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T11:00:00"}`
	tests := []struct {
		name     string
		extra    string
		wantItem bool
		wantURL  string
	}{
		{"none", ``, false, ""},
		{"flag only", `, "isOnlineMeeting": true`, true, ""},
		{"legacy url", `, "onlineMeetingUrl": "https://legacy.example/j/1"`, true, "https://legacy.example/j/1"},
		{"join url", `, "onlineMeeting": {"joinUrl": "https://teams.example/j/2"}`, true, "https://teams.example/j/2"},
		{
			"join url beats legacy url",
			`, "onlineMeetingUrl": "https://legacy.example/j/1", "onlineMeeting": {"joinUrl": "https://teams.example/j/2"}`,
			true, "https://teams.example/j/2",
		},
		{"location link", `, "location": {"displayName": "https://zoom.example/j/3"}`, false, "https://zoom.example/j/3"},
		{
			"legacy url beats location",
			`, "onlineMeetingUrl": "https://legacy.example/j/1", "location": {"displayName": "https://zoom.example/j/3"}`,
			true, "https://legacy.example/j/1",
		},
		{"plain http location ignored", `, "location": {"displayName": "http://intranet/room"}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Normalize(payloadOf(t, `{`+base+tt.extra+`}`))[0]
			if got := hasText(m.ChecklistItems, ItemTestMeetingLink); got != tt.wantItem {
				t.Errorf("link item present = %v, want %v (%v)", got, tt.wantItem, checklistTexts(m.ChecklistItems))
			}
			if m.OnlineMeetingURL != tt.wantURL {
				t.Errorf("OnlineMeetingURL = %q, want %q", m.OnlineMeetingURL, tt.wantURL)
			}
		})
	}
}

func TestNormalizePlaceholder(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	n := Normalizer{Location: time.UTC, Now: func() time.Time { return now }}

	good := `{"id": "ok", "subject": "Fine", "start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T11:00:00"}}`
	tests := []struct {
		name        string
		raw         string
		wantGraphID string
		wantSubject string
		wantStart   time.Time
		wantEnd     time.Time
	}{
		{
			name:        "missing subject keeps id and times",
			raw:         `{"id": "x1", "start": {"dateTime": "2026-10-21T08:00:00"}, "end": {"dateTime": "2026-10-21T08:30:00"}}`,
			wantGraphID: "x1",
			wantSubject: fallbackSubject,
			wantStart:   time.Date(2026, 10, 21, 8, 0, 0, 0, time.UTC),
			wantEnd:     time.Date(2026, 10, 21, 8, 30, 0, 0, time.UTC),
		},
		{
			name:        "missing end gets one hour window",
			raw:         `{"subject": "Half", "start": {"dateTime": "2026-10-21T08:00:00"}}`,
			wantGraphID: "unknown-1",
			wantSubject: "Half",
			wantStart:   time.Date(2026, 10, 21, 8, 0, 0, 0, time.UTC),
			wantEnd:     time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC),
		},
		{
			name:        "garbage start falls back to now",
			raw:         `{"id": "x3", "subject": "Bad", "start": {"dateTime": "tomorrow-ish"}, "end": {"dateTime": "never"}}`,
			wantGraphID: "x3",
			wantSubject: "Bad",
			wantStart:   now,
			wantEnd:     now.Add(time.Hour),
		},
		{
			name:        "wrong field types",
			raw:         `{"id": 42, "subject": ["not", "a", "string"], "attendees": "nobody"}`,
			wantGraphID: "unknown-1",
			wantSubject: fallbackSubject,
			wantStart:   now,
			wantEnd:     now.Add(time.Hour),
		},
		{
			name:        "not an object",
			raw:         `"just a string"`,
			wantGraphID: "unknown-1",
			wantSubject: fallbackSubject,
			wantStart:   now,
			wantEnd:     now.Add(time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(payloadOf(t, good, tt.raw, good))
			if len(got) != 3 {
				t.Fatalf("batch size = %d, want 3", len(got))
			}
			if got[0].Subject != "Fine" || got[2].Subject != "Fine" {
				t.Errorf("neighbouring events should be unaffected")
			}
			m := got[1]
			if m.ID != 2 {
				t.Errorf("ID = %d, want 2", m.ID)
			}
			if m.GraphID != tt.wantGraphID {
				t.Errorf("GraphID = %q, want %q", m.GraphID, tt.wantGraphID)
			}
			if m.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", m.Subject, tt.wantSubject)
			}
			if !m.Start.Equal(tt.wantStart) || !m.End.Equal(tt.wantEnd) {
				t.Errorf("window = %s..%s, want %s..%s", m.Start, m.End, tt.wantStart, tt.wantEnd)
			}
			if m.Location != fallbackLocation || m.Importance != model.ImportanceNormal || m.OnlineMeetingURL != "" {
				t.Errorf("placeholder defaults wrong: %+v", m)
			}
			if len(m.ChecklistItems) != 1 || m.ChecklistItems[0].ID != 1 || m.ChecklistItems[0].Text != ItemPrepareFallback {
				t.Errorf("placeholder checklist = %+v", m.ChecklistItems)
			}
		})
	}
}

func TestNormalizeTimezones(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	n := Normalizer{Location: time.UTC}

	tests := []struct {
		name string
		dt   DateTimeTimeZone
		want time.Time
	}{
		{"rfc3339 with offset", DateTimeTimeZone{DateTime: "2026-10-20T10:00:00+02:00"}, time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)},
		{"wall clock utc", DateTimeTimeZone{DateTime: "2026-10-20T10:00:00.0000000", TimeZone: "UTC"}, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)},
		{"wall clock iana", DateTimeTimeZone{DateTime: "2026-10-20T10:00:00", TimeZone: "Europe/Oslo"}, time.Date(2026, 10, 20, 10, 0, 0, 0, oslo)},
		{"windows zone name assumed utc", DateTimeTimeZone{DateTime: "2026-10-20T10:00:00", TimeZone: "Pacific Standard Time"}, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)},
		{"date only", DateTimeTimeZone{DateTime: "2026-10-20"}, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := tt.dt
			got, err := n.parseDateTime(&dt)
			if err != nil {
				t.Fatalf("parseDateTime: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("result not in display location: %s", got.Location())
			}
		})
	}
}

func TestNormalizeImportance(t *testing.T) {
	tests := map[string]model.Importance{
		"":       model.ImportanceNormal,
		"High":   model.ImportanceHigh,
		"low":    model.ImportanceLow,
		"urgent": model.Importance("urgent"),
	}
	for in, want := range tests {
		if got := parseImportance(in); got != want {
			t.Errorf("parseImportance(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSeriesMasterRecurrence(t *testing.T) {
	ev := `{"subject": "Weekly 1:1", "type": "seriesMaster",
		"start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T10:30:00"},
		"recurrence": {"pattern": {"type": "weekly", "interval": 1, "daysOfWeek": ["tuesday"]}, "range": {"type": "noEnd"}}}`
	bad := `{"subject": "Odd", "start": {"dateTime": "2026-10-20T10:00:00"}, "end": {"dateTime": "2026-10-20T10:30:00"},
		"recurrence": {"pattern": {"type": "hourly"}}}`

	got := Normalize(payloadOf(t, ev, bad))
	if got[0].Recurrence == "" {
		t.Errorf("series master should carry an RRULE")
	}
	if got[1].Recurrence != "" || got[1].Subject != "Odd" {
		t.Errorf("unsupported recurrence must not turn the event into a placeholder: %+v", got[1])
	}
}
