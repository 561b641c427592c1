// Package component defines the signals widgets send to their presenter.
//
// Widgets own their state; a presenter only receives events describing what
// changed and renders them however the host likes (DOM, terminal, nothing).
package component

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Kind identifies a presentation event.
type Kind string

const (
	// KindMounted: the widget attached; Text holds its stylesheet.
	KindMounted Kind = "mounted"
	// KindFloat: one "+1" floats up from the button; Offset is a horizontal nudge in px.
	KindFloat Kind = "float"
	// KindLabel: the button label changes to Text.
	KindLabel Kind = "label"
	// KindToggle: the message box becomes Visible (or hidden).
	KindToggle Kind = "toggle"
	// KindText: the message box content changes to Text.
	KindText Kind = "text"
	// KindPrompt: inline validation prompt with Text.
	KindPrompt Kind = "prompt"
	// KindBanner: a transient confirmation banner with Text.
	KindBanner Kind = "banner"
	// KindBannerCleared: the banner went away.
	KindBannerCleared Kind = "banner-cleared"
	// KindUnmounted: the widget detached.
	KindUnmounted Kind = "unmounted"
)

// Event is one presentation update for a widget.
type Event struct {
	Widget  string
	Kind    Kind
	Text    string
	Visible bool
	Offset  float64
}

// Presenter renders widget events. Calls arrive from the goroutine handling
// the interaction, or from timer and submission goroutines. No widget lock is
// held during Present, so a presenter may read widget state.
type Presenter interface {
	Present(e Event)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(e Event)

func (f PresenterFunc) Present(e Event) { f(e) }

// Nop discards every event.
var Nop Presenter = PresenterFunc(func(Event) {})

// View is what a Recorder knows about one widget.
type View struct {
	Mounted    bool
	Stylesheet string
	Label      string
	Floats     int
	Visible    bool
	Text       string
	Prompt     string
	Banner     string
	UpdatedAt  time.Time
}

// Recorder keeps the last rendered state of every widget and the raw event log.
type Recorder struct {
	mu     sync.Mutex
	clock  quartz.Clock
	views  map[string]*View
	events []Event
}

// NewRecorder creates an empty recorder stamping updates with clock
// (the real clock when nil).
func NewRecorder(clock quartz.Clock) *Recorder {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Recorder{clock: clock, views: make(map[string]*View)}
}

func (r *Recorder) Present(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	v, ok := r.views[e.Widget]
	if !ok {
		v = &View{}
		r.views[e.Widget] = v
	}
	v.UpdatedAt = r.clock.Now()

	switch e.Kind {
	case KindMounted:
		v.Mounted = true
		v.Stylesheet = e.Text
	case KindUnmounted:
		v.Mounted = false
	case KindFloat:
		v.Floats++
	case KindLabel:
		v.Label = e.Text
	case KindToggle:
		v.Visible = e.Visible
	case KindText:
		v.Text = e.Text
	case KindPrompt:
		v.Prompt = e.Text
	case KindBanner:
		v.Banner = e.Text
		v.Prompt = ""
	case KindBannerCleared:
		v.Banner = ""
	}
}

// View returns a copy of the widget's state.
func (r *Recorder) View(widget string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[widget]
	if !ok {
		return View{}, false
	}
	return *v, true
}

// Events returns the events recorded for widget, or all events when widget is empty.
func (r *Recorder) Events(widget string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if widget == "" || e.Widget == widget {
			out = append(out, e)
		}
	}
	return out
}
