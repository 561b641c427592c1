// Package rotation picks the label a thank-you button shows after a click.
package rotation

import (
	"math/rand/v2"
	"sync"

	"golang.org/x/xerrors"
)

// DefaultMessages is the rotation pool used when a button configures none.
var DefaultMessages = []string{"Mais de rien !", "Avec plaisir !", "Pas de souci !", "Tu régales !"}

// Source is the randomness a rotation draws from.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// NewSource returns a seeded PCG source. Both the rotation and the float
// offsets of a client draw from it.
func NewSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// lockedSource makes a *rand.Rand safe to share between widgets.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Rotation holds the pool and whether the first message was shown.
// It is not safe for concurrent use; the owning button serializes calls.
type Rotation struct {
	messages []string
	shown    bool
	rnd      Source
}

// New creates a rotation over messages. The pool must not be empty.
func New(messages []string, rnd Source) (*Rotation, error) {
	if len(messages) == 0 {
		return nil, xerrors.New("rotation pool must not be empty")
	}
	if rnd == nil {
		return nil, xerrors.New("random source required")
	}
	pool := make([]string, len(messages))
	copy(pool, messages)
	return &Rotation{messages: pool, rnd: rnd}, nil
}

// Next returns the label to display and whether it changed.
// The first call always yields messages[0]. Later calls show a uniformly
// chosen message half of the time (draw >= 0.5); otherwise ok is false and
// the caller keeps the current label.
func (r *Rotation) Next() (message string, ok bool) {
	if !r.shown {
		r.shown = true
		return r.messages[0], true
	}
	if r.rnd.Float64() < 0.5 {
		return "", false
	}
	return r.messages[r.rnd.IntN(len(r.messages))], true
}

// Shown reports whether the first message has been displayed.
func (r *Rotation) Shown() bool {
	return r.shown
}

// Messages returns a copy of the pool.
func (r *Rotation) Messages() []string {
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
