package debounce

import (
	"time"

	"golang.org/x/xerrors"
)

// DefaultDelay is the inactivity window used when none is configured.
const DefaultDelay = 1000 * time.Millisecond

// ResolveDelay returns d, or DefaultDelay when d is zero. Negative windows are rejected.
func ResolveDelay(d time.Duration) (time.Duration, error) {
	switch {
	case d == 0:
		return DefaultDelay, nil
	case d < 0:
		return 0, xerrors.Errorf("inactivity delay must be positive, got %s", d)
	default:
		return d, nil
	}
}

// State is the observable state of an aggregator.
type State int

const (
	// Idle: no pending clicks, no timer armed.
	Idle State = iota
	// Pending: at least one click waiting for the inactivity timer.
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}
