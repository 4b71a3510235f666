package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrHandshakeFailed is returned by a SimulatedConnector configured to fail.
var ErrHandshakeFailed = errors.New("calendar handshake failed")

// Connector performs the handshake with the calendar provider and returns an
// identifier for the resulting connection.
type Connector interface {
	Handshake(ctx context.Context) (string, error)
}

// SimulatedConnector stands in for a real provider sign-in: it waits for
// Latency and then succeeds (or fails when Fail is set).
type SimulatedConnector struct {
	Latency time.Duration
	Fail    bool
}

func (c SimulatedConnector) Handshake(ctx context.Context) (string, error) {
	if c.Latency > 0 {
		timer := time.NewTimer(c.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Fail {
		return "", ErrHandshakeFailed
	}
	return uuid.NewString(), nil
}
