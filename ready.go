package thankyou

import (
	"context"
	"sync"
)

// ReadyEvent is the name hosts use when relaying the readiness signal to
// their own event system.
const ReadyEvent = "merkitbocou-ready"

// Signal is a one-shot broadcast: once fired it stays fired.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns an unfired signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Broadcast fires the signal. Later calls do nothing.
func (s *Signal) Broadcast() {
	s.once.Do(func() { close(s.ch) })
}

// Done is closed once the signal fired.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether Broadcast was called.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loaded fires when the first client finished loading.
var loaded = NewSignal()

// Ready is closed once the library is loaded, i.e. the first Client was
// constructed successfully. It is process-wide.
func Ready() <-chan struct{} {
	return loaded.Done()
}

// WaitReady blocks until Ready is closed or ctx is done.
func WaitReady(ctx context.Context) error {
	return loaded.Wait(ctx)
}
