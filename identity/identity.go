// Package identity provides the opaque user id attached to every payload.
package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Provider returns a stable session identifier.
type Provider interface {
	UserID() string
}

// Session generates its id lazily on first use and keeps it for its lifetime.
// One Session is shared by every widget of a client.
type Session struct {
	mu     sync.Mutex
	userID string
}

// NewSession creates an empty session. The id is generated on first UserID call.
func NewSession() *Session {
	return &Session{}
}

// UserID returns the session id, generating "user-<uuid>" the first time.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		s.userID = "user-" + uuid.NewString()
	}
	return s.userID
}

// SetUserID overrides the session id (e.g. with an id known to the host page).
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// Static is a fixed id, handy for tests and for hosts that manage ids themselves.
type Static string

func (s Static) UserID() string { return string(s) }
