// Package schedule runs the periodic jobs of a session: the clock tick
// that drives "time remaining" and the optional automatic refresh.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "meetprep/internal/log"
	"meetprep/internal/session"
)

const refreshTimeout = 30 * time.Second

// Config holds cron specs. Descriptors such as "@every 1m" are accepted.
type Config struct {
	// Clock is required.
	Clock string
	// Refresh is optional; empty disables automatic refresh.
	Refresh string
	// Location is the zone cron specs are evaluated in. nil means time.Local.
	Location *time.Location
}

// Scheduler owns a cron instance bound to one store.
type Scheduler struct {
	cron  *cron.Cron
	store *session.Store
}

// New validates the specs and registers the jobs. Nothing runs until Start.
func New(store *session.Store, cfg Config) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("schedule: store is nil")
	}
	if cfg.Clock == "" {
		return nil, errors.New("schedule: clock spec is empty")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		store: store,
	}

	if _, err := s.cron.AddFunc(cfg.Clock, s.tick); err != nil {
		return nil, fmt.Errorf("schedule: clock spec %q: %w", cfg.Clock, err)
	}
	if cfg.Refresh != "" {
		if _, err := s.cron.AddFunc(cfg.Refresh, s.refresh); err != nil {
			return nil, fmt.Errorf("schedule: refresh spec %q: %w", cfg.Refresh, err)
		}
	}

	appLog.Info("scheduler configured", "clock", cfg.Clock, "refresh", cfg.Refresh, "jobs", len(s.cron.Entries()))
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) tick() {
	s.store.TickNow()
}

// refresh reloads meetings while connected. Ticks that find the store
// disconnected or busy are skipped.
func (s *Scheduler) refresh() {
	if s.store.State() != session.Connected {
		appLog.Debug("scheduled refresh skipped; not connected")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	err := s.store.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotConnected):
		appLog.Debug("scheduled refresh skipped", "reason", err.Error())
	default:
		appLog.Error("scheduled refresh failed", err)
	}
}

// cronLogger routes cron's own logging into the app logger. Routine
// messages are debug-level.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
