// Package session holds the in-memory meeting prep state: connection
// status, the normalized meeting list, the selection and the user's notes
// and checklists.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"meetprep/internal/fixture"
	"meetprep/internal/graph"
	appLog "meetprep/internal/log"
	"meetprep/internal/model"
)

// User-facing messages stored in Snapshot.Error.
const (
	MsgConnectFailed = "Failed to connect to Outlook. Please try again."
	MsgLoadFailed    = "Failed to load meetings. Please try again."
	MsgFetchFailed   = "Failed to fetch meetings. Please try again."
	MsgNoMeetings    = "No meetings found in your calendar."
)

var (
	ErrMeetingNotFound       = errors.New("meeting not found")
	ErrChecklistItemNotFound = errors.New("checklist item not found")
	ErrEmptyItemText         = errors.New("checklist item text is empty")
	ErrBusy                  = errors.New("connect or refresh already in progress")
	ErrNotConnected          = errors.New("not connected")
	ErrAlreadyConnected      = errors.New("already connected")
)

// State is the connection state.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
)

// Options configures a Store. Zero fields get working defaults: a
// zero-latency simulated connector, the embedded fixture, a Normalizer in
// time.Local and time.Now.
type Options struct {
	Connector  Connector
	Source     fixture.Source
	Normalizer *graph.Normalizer
	Now        func() time.Time
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	State        State
	Loading      bool
	Error        string
	ConnectionID string
	Now          time.Time
	// Meetings is sorted by start time.
	Meetings []model.Meeting
	// SelectedID is 0 when nothing is selected.
	SelectedID int
}

// Selected returns the selected meeting of the snapshot, if any.
func (s Snapshot) Selected() (model.Meeting, bool) {
	for _, m := range s.Meetings {
		if m.ID == s.SelectedID {
			return m, true
		}
	}
	return model.Meeting{}, false
}

// Store is safe for concurrent use. The meeting list is the only copy of
// meeting data; the selection is an id resolved on read.
type Store struct {
	connector  Connector
	source     fixture.Source
	normalizer *graph.Normalizer
	clock      func() time.Time

	mu           sync.RWMutex
	state        State
	loading      bool
	errMsg       string
	connectionID string
	meetings     []model.Meeting // source order
	selectedID   int
	now          time.Time
}

// New returns a disconnected Store.
func New(opts Options) *Store {
	s := &Store{
		connector:  opts.Connector,
		source:     opts.Source,
		normalizer: opts.Normalizer,
		clock:      opts.Now,
		state:      Disconnected,
	}
	if s.connector == nil {
		s.connector = SimulatedConnector{}
	}
	if s.source == nil {
		s.source = fixture.Embedded()
	}
	if s.normalizer == nil {
		s.normalizer = &graph.Normalizer{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.now = s.clock()
	return s
}

// Connect performs one handshake attempt and loads the meeting list. On
// failure the store returns to Disconnected with a user-facing error
// message; there is no retry.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == Connecting || s.loading:
		s.mu.Unlock()
		return ErrBusy
	case s.state == Connected:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = Connecting
	s.errMsg = ""
	s.mu.Unlock()

	appLog.Info("connecting to calendar")

	id, err := s.connector.Handshake(ctx)
	if err != nil {
		s.fail(MsgConnectFailed)
		appLog.Error("calendar handshake failed", err)
		return fmt.Errorf("connect: %w", err)
	}

	meetings, err := s.load(ctx)
	if err != nil {
		s.fail(MsgLoadFailed)
		appLog.Error("failed to load meetings", err, "connection_id", id)
		return fmt.Errorf("connect: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Connected
	s.connectionID = id
	s.meetings = meetings
	s.selectedID = firstByStart(meetings)
	if len(meetings) == 0 {
		s.errMsg = MsgNoMeetings
	}
	appLog.Info("connected", "connection_id", id, "meetings", len(meetings))
	return nil
}

func (s *Store) fail(msg string) {
	s.mu.Lock()
	s.state = Disconnected
	s.errMsg = msg
	s.mu.Unlock()
}

// Refresh reloads the meeting list, replacing it wholesale. Notes and
// checklist changes on the old list are discarded. The selection follows
// the previously selected event when it still exists, otherwise it moves
// to the earliest meeting.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connecting || s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != Connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	meetings, err := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.errMsg = MsgFetchFailed
		appLog.Error("refresh failed; keeping previous meetings", err, "meetings", len(s.meetings))
		return fmt.Errorf("refresh: %w", err)
	}

	var prevGraphID string
	if m, ok := s.find(s.selectedID); ok {
		prevGraphID = m.GraphID
	}
	s.meetings = meetings
	s.selectedID = firstByStart(meetings)
	if prevGraphID != "" {
		for _, m := range meetings {
			if m.GraphID == prevGraphID {
				s.selectedID = m.ID
				break
			}
		}
	}
	if len(meetings) == 0 {
		s.errMsg = MsgNoMeetings
	}
	appLog.Info("meetings refreshed", "meetings", len(meetings), "selected", s.selectedID)
	return nil
}

func (s *Store) load(ctx context.Context) ([]model.Meeting, error) {
	data, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	// An undecodable payload is an empty calendar, not a failed load.
	return s.normalizer.NormalizeJSON(data), nil
}

// Disconnect drops the connection, the meetings and the selection.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Connecting || s.loading {
		return ErrBusy
	}
	if s.state == Disconnected {
		return nil
	}
	appLog.Info("disconnected", "connection_id", s.connectionID)
	s.state = Disconnected
	s.connectionID = ""
	s.meetings = nil
	s.selectedID = 0
	s.errMsg = ""
	return nil
}

// DismissError clears the user-facing error message.
func (s *Store) DismissError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *Store) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.find(id); !ok {
		return ErrMeetingNotFound
	}
	s.selectedID = id
	return nil
}

// SetPrepNotes replaces the notes of meeting id.
func (s *Store) SetPrepNotes(id int, notes string) error {
	return s.update(id, func(m *model.Meeting) error {
		m.PrepNotes = notes
		return nil
	})
}

// ToggleChecklistItem flips the completed flag and returns the new item.
func (s *Store) ToggleChecklistItem(id, itemID int) (model.ChecklistItem, error) {
	var out model.ChecklistItem
	err := s.update(id, func(m *model.Meeting) error {
		for i := range m.ChecklistItems {
			if m.ChecklistItems[i].ID == itemID {
				m.ChecklistItems[i].Completed = !m.ChecklistItems[i].Completed
				out = m.ChecklistItems[i]
				return nil
			}
		}
		return ErrChecklistItemNotFound
	})
	return out, err
}

// AddChecklistItem appends a new item to meeting id. The item id is one
// past the highest id currently in that meeting, so ids freed by removal
// at the end are handed out again.
func (s *Store) AddChecklistItem(id int, text string) (model.ChecklistItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChecklistItem{}, ErrEmptyItemText
	}
	var out model.ChecklistItem
	err := s.update(id, func(m *model.Meeting) error {
		out = model.ChecklistItem{ID: m.NextChecklistID(), Text: text}
		m.ChecklistItems = append(m.ChecklistItems, out)
		return nil
	})
	return out, err
}

func (s *Store) RemoveChecklistItem(id, itemID int) error {
	return s.update(id, func(m *model.Meeting) error {
		for i, it := range m.ChecklistItems {
			if it.ID == itemID {
				m.ChecklistItems = append(m.ChecklistItems[:i:i], m.ChecklistItems[i+1:]...)
				return nil
			}
		}
		return ErrChecklistItemNotFound
	})
}

// update applies fn to meeting id under the write lock. fn must leave the
// meeting untouched when it returns an error.
func (s *Store) update(id int, fn func(m *model.Meeting) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.meetings {
		if s.meetings[i].ID == id {
			return fn(&s.meetings[i])
		}
	}
	return ErrMeetingNotFound
}

// Join returns the link to open for meeting id.
func (s *Store) Join(id int) (string, error) {
	m, err := s.Meeting(id)
	if err != nil {
		return "", err
	}
	return model.JoinTarget(m)
}

// Meetings returns copies of all meetings ordered by start time.
func (s *Store) Meetings() []model.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.SortByStart(s.meetings)
}

func (s *Store) Meeting(id int) (model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.find(id)
	if !ok {
		return model.Meeting{}, ErrMeetingNotFound
	}
	return m.Clone(), nil
}

// Selected returns the selected meeting, if any.
func (s *Store) Selected() (model.Meeting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.find(s.selectedID)
	if !ok {
		return model.Meeting{}, false
	}
	return m.Clone(), true
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Tick advances the clock used for time-remaining views.
func (s *Store) Tick(now time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// TickNow advances the clock to the store's time source.
func (s *Store) TickNow() {
	s.Tick(s.clock())
}

// Now returns the time of the last tick.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:        s.state,
		Loading:      s.loading,
		Error:        s.errMsg,
		ConnectionID: s.connectionID,
		Now:          s.now,
		Meetings:     model.SortByStart(s.meetings),
		SelectedID:   s.selectedID,
	}
}

// find expects s.mu to be held.
func (s *Store) find(id int) (model.Meeting, bool) {
	if id == 0 {
		return model.Meeting{}, false
	}
	for _, m := range s.meetings {
		if m.ID == id {
			return m, true
		}
	}
	return model.Meeting{}, false
}

func firstByStart(meetings []model.Meeting) int {
	if len(meetings) == 0 {
		return 0
	}
	return model.SortByStart(meetings)[0].ID
}
