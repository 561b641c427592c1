package thankyou

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"

	"github.com/st-keller/thankyou-client/component"
	"github.com/st-keller/thankyou-client/debounce"
	"github.com/st-keller/thankyou-client/rotation"
)

// ButtonConfig configures a ThankYouButton. Zero values take the defaults.
type ButtonConfig struct {
	Selector        string `validate:"required"`
	Emoji           string
	Label           string
	APIURL          string // "/thank-you/"
	ProjectName     string `validate:"min=3,max=100,slug"` // "default-project"
	DevID           int    `validate:"gte=0"`
	InactivityDelay time.Duration
	Styles          string
	Messages        []string `validate:"dive,required"` // rotation.DefaultMessages
}

func (c ButtonConfig) withDefaults() ButtonConfig {
	if c.Emoji == "" {
		c.Emoji = "👍"
	}
	if c.Label == "" {
		c.Label = "Dire merci"
	}
	if c.APIURL == "" {
		c.APIURL = "/thank-you/"
	}
	if c.ProjectName == "" {
		c.ProjectName = "default-project"
	}
	if c.InactivityDelay == 0 {
		c.InactivityDelay = debounce.DefaultDelay
	}
	if len(c.Messages) == 0 {
		c.Messages = rotation.DefaultMessages
	}
	return c
}

// floatSpread is the width in px over which "+1" floats are scattered.
const floatSpread = 20

// ThankYouButton is a reaction button. Each click floats a "+1", may rotate
// the label, and counts toward the current batch; the batch is reported once
// clicks stop for the inactivity delay.
type ThankYouButton struct {
	id     string
	config ButtonConfig
	client *Client
	logger slog.Logger
	agg    *debounce.Aggregator

	mu       sync.Mutex
	rotation *rotation.Rotation
	label    string
	detached bool
}

// NewThankYouButton attaches a thank-you button to config.Selector.
// It returns a *ConfigurationError when the selector is missing or unknown.
func (c *Client) NewThankYouButton(config ButtonConfig) (*ThankYouButton, error) {
	config = config.withDefaults()
	if config.Selector == "" {
		return nil, &ConfigurationError{Field: "Selector", Reason: "required to attach the thank-you button"}
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	rot, err := rotation.New(config.Messages, c.random)
	if err != nil {
		return nil, &ConfigurationError{Field: "Messages", Reason: "invalid rotation pool", Err: err}
	}
	s, err := c.sinkFor(config.APIURL)
	if err != nil {
		return nil, err
	}

	id := c.newWidgetID("thank-you")
	agg, err := debounce.New(debounce.Config{
		Delay:       config.InactivityDelay,
		Clock:       c.clock,
		Logger:      c.logger.With(slog.F("widget", id)),
		Sink:        s,
		Identity:    c.identity,
		ProjectName: config.ProjectName,
		DevID:       config.DevID,
		Metrics:     c.metrics,
	})
	if err != nil {
		return nil, &ConfigurationError{Field: "InactivityDelay", Reason: "invalid", Err: err}
	}

	if err := c.attach(config.Selector, id); err != nil {
		return nil, err
	}

	b := &ThankYouButton{
		id:       id,
		config:   config,
		client:   c,
		logger:   c.logger.Named("button").With(slog.F("widget", id)),
		agg:      agg,
		rotation: rot,
		label:    config.Label,
	}

	if err := c.trackButton(b); err != nil {
		c.registry.Detach(config.Selector, id)
		agg.Stop()
		return nil, err
	}

	c.present(
		component.Event{
			Widget: id,
			Kind:   component.KindMounted,
			Text:   component.Stylesheet(component.ThankYouStyles, config.Styles),
		},
		component.Event{Widget: id, Kind: component.KindLabel, Text: config.Label},
	)

	b.logger.Debug(context.Background(), "thank-you button attached",
		slog.F("selector", config.Selector),
		slog.F("project", config.ProjectName),
		slog.F("inactivity_delay", agg.Delay().String()),
	)

	return b, nil
}

// ID returns the widget id.
func (b *ThankYouButton) ID() string {
	return b.id
}

// Emoji returns the configured emoji.
func (b *ThankYouButton) Emoji() string {
	return b.config.Emoji
}

// Label returns the label currently displayed.
func (b *ThankYouButton) Label() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label
}

// Click handles one user click: it counts it toward the current batch and
// triggers exactly one presentation update (a float, plus a label change when
// the rotation says so). It returns ErrDetached once the button is gone.
func (b *ThankYouButton) Click() error {
	events, err := b.click()
	if err != nil {
		return err
	}
	b.client.present(events...)
	return nil
}

// click updates the button state and returns the events to present.
func (b *ThankYouButton) click() ([]component.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.detached {
		return nil, ErrDetached
	}

	b.agg.Click()

	offset := b.client.random.Float64()*floatSpread - floatSpread/2
	events := []component.Event{{Widget: b.id, Kind: component.KindFloat, Offset: offset}}

	if msg, ok := b.rotation.Next(); ok {
		b.label = msg
		events = append(events, component.Event{Widget: b.id, Kind: component.KindLabel, Text: msg})
	}
	return events, nil
}

// Pending returns the clicks not yet reported.
func (b *ThankYouButton) Pending() int {
	return b.agg.Pending()
}

// State returns whether a batch is pending.
func (b *ThankYouButton) State() debounce.State {
	return b.agg.State()
}

// Flush reports the pending batch without waiting for the inactivity delay.
func (b *ThankYouButton) Flush() {
	b.agg.Flush()
}

// Wait blocks until the button's in-flight reports have returned.
func (b *ThankYouButton) Wait() {
	b.agg.Wait()
}

// Detach unmounts the button. Pending clicks are reported right away and the
// session is discarded; later clicks return ErrDetached.
func (b *ThankYouButton) Detach() {
	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return
	}
	b.detached = true
	b.mu.Unlock()

	b.agg.Stop()
	b.client.registry.Detach(b.config.Selector, b.id)
	b.client.forgetButton(b.id)
	b.client.present(component.Event{Widget: b.id, Kind: component.KindUnmounted})
	b.logger.Debug(context.Background(), "thank-you button detached")
}
