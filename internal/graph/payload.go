package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the envelope of a calendar events response ({"value": [...]}).
// Events are kept raw so that one malformed entry can be handled without
// failing the whole batch.
type Payload struct {
	Context string            `json:"@odata.context,omitempty"`
	Value   []json.RawMessage `json:"value"`
}

// DateTimeTimeZone is the provider's wall-clock + zone pair.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Location struct {
	DisplayName string `json:"displayName"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Attendee struct {
	Type         string       `json:"type"`
	EmailAddress EmailAddress `json:"emailAddress"`
}

type OnlineMeetingInfo struct {
	JoinURL string `json:"joinUrl"`
}

// RawEvent is a single calendar event as delivered by the provider.
type RawEvent struct {
	ID      string  `json:"id"`
	Subject *string `json:"subject"`
	// Type is "singleInstance", "occurrence", "exception" or "seriesMaster".
	Type        string            `json:"type"`
	BodyPreview string            `json:"bodyPreview"`
	Start       *DateTimeTimeZone `json:"start"`
	End         *DateTimeTimeZone `json:"end"`
	Location    *Location         `json:"location"`
	Attendees   []Attendee        `json:"attendees"`

	IsOrganizer bool   `json:"isOrganizer"`
	Importance  string `json:"importance"`
	IsCancelled bool   `json:"isCancelled"`

	IsOnlineMeeting  bool               `json:"isOnlineMeeting"`
	OnlineMeetingURL string             `json:"onlineMeetingUrl"`
	OnlineMeeting    *OnlineMeetingInfo `json:"onlineMeeting"`
	WebLink          string             `json:"webLink"`

	Recurrence *PatternedRecurrence `json:"recurrence"`
}

// Decode parses a raw payload. An empty body or a JSON null decodes to an
// empty Payload without error.
func Decode(data []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decode calendar payload: %w", err)
	}
	return &p, nil
}

// hasOnlineIndicator reports whether any of the provider's online meeting
// markers is set.
func (ev RawEvent) hasOnlineIndicator() bool {
	return ev.IsOnlineMeeting || ev.OnlineMeetingURL != "" ||
		(ev.OnlineMeeting != nil && ev.OnlineMeeting.JoinURL != "")
}
