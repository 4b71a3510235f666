package schedule

import (
	"context"
	"testing"
	"time"

	"meetprep/internal/fixture"
	"meetprep/internal/session"
)

type counter struct {
	loads int
}

func (c *counter) Load(ctx context.Context) ([]byte, error) {
	c.loads++
	return []byte(`{"value": []}`), nil
}

func TestNewValidatesSpecs(t *testing.T) {
	store := session.New(session.Options{})
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		jobs    int
	}{
		{"clock only", Config{Clock: "@every 1m"}, false, 1},
		{"clock and refresh", Config{Clock: "@every 1m", Refresh: "*/15 * * * *"}, false, 2},
		{"missing clock", Config{}, true, 0},
		{"bad clock", Config{Clock: "every minute"}, true, 0},
		{"bad refresh", Config{Clock: "@every 1m", Refresh: "61 * * * *"}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(store, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(s.cron.Entries()) != tt.jobs {
				t.Errorf("jobs = %d, want %d", len(s.cron.Entries()), tt.jobs)
			}
		})
	}

	if _, err := New(nil, Config{Clock: "@every 1m"}); err == nil {
		t.Error("nil store should be rejected")
	}
}

func TestTickAdvancesClock(t *testing.T) {
	now := time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	store := session.New(session.Options{Now: func() time.Time { return now }})
	s, err := New(store, Config{Clock: "@every 1m"})
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Minute)
	s.tick()
	if !store.Now().Equal(now) {
		t.Errorf("Now = %s, want %s", store.Now(), now)
	}
}

func TestRefreshOnlyWhileConnected(t *testing.T) {
	src := &counter{}
	store := session.New(session.Options{Source: src})
	s, err := New(store, Config{Clock: "@every 1m", Refresh: "@every 5m"})
	if err != nil {
		t.Fatal(err)
	}

	s.refresh()
	if src.loads != 0 {
		t.Fatalf("refresh ran while disconnected")
	}

	if err := store.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.refresh()
	if src.loads != 2 {
		t.Errorf("loads = %d, want 2 (connect + refresh)", src.loads)
	}
}

func TestStartStop(t *testing.T) {
	store := session.New(session.Options{Source: fixture.Static(`{}`)})
	s, err := New(store, Config{Clock: "@every 1s"})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not complete")
	}
}
