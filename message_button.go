package thankyou

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/st-keller/thankyou-client/component"
	"github.com/st-keller/thankyou-client/sink"
	"github.com/st-keller/thankyou-client/types"
)

// BannerDuration is how long the confirmation banner stays up after a send.
const BannerDuration = 2 * time.Second

// User-facing strings of the message button.
const (
	PromptEmptyMessage   = "Veuillez écrire un message avant d'envoyer."
	PromptMessageTooLong = "Votre message est trop long."
	BannerSent           = "Message envoyé avec succès !"
	BannerFailed         = "Erreur dans l’envoi du message !"
)

// MessageConfig configures a MessageButton. Zero values take the defaults.
type MessageConfig struct {
	Selector    string `validate:"required"`
	APIURL      string // "/send-message/"
	ProjectName string `validate:"min=3,max=100,slug"` // "default-project"
	DevID       int    `validate:"gte=0"`
	Placeholder string
	Styles      string
}

func (c MessageConfig) withDefaults() MessageConfig {
	if c.APIURL == "" {
		c.APIURL = "/send-message/"
	}
	if c.ProjectName == "" {
		c.ProjectName = "default-project"
	}
	if c.Placeholder == "" {
		c.Placeholder = "Écrivez votre message..."
	}
	return c
}

// MessageButton toggles a text box; its content is sent immediately on Send,
// without batching.
type MessageButton struct {
	id     string
	config MessageConfig
	client *Client
	logger slog.Logger
	sink   sink.Sink

	mu        sync.Mutex
	visible   bool
	text      string
	banner    *quartz.Timer
	bannerGen uint64
	detached  bool

	inflight sync.WaitGroup
}

// NewMessageButton attaches a message button to config.Selector.
// It returns a *ConfigurationError when the selector is missing or unknown.
func (c *Client) NewMessageButton(config MessageConfig) (*MessageButton, error) {
	config = config.withDefaults()
	if config.Selector == "" {
		return nil, &ConfigurationError{Field: "Selector", Reason: "required to attach the message button"}
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	s, err := c.sinkFor(config.APIURL)
	if err != nil {
		return nil, err
	}

	id := c.newWidgetID("message")
	if err := c.attach(config.Selector, id); err != nil {
		return nil, err
	}

	b := &MessageButton{
		id:     id,
		config: config,
		client: c,
		logger: c.logger.Named("message").With(slog.F("widget", id)),
		sink:   s,
	}

	if err := c.trackMessage(b); err != nil {
		c.registry.Detach(config.Selector, id)
		return nil, err
	}

	c.present(component.Event{
		Widget: id,
		Kind:   component.KindMounted,
		Text:   component.Stylesheet(component.MessageStyles, config.Styles),
	})

	return b, nil
}

// ID returns the widget id.
func (b *MessageButton) ID() string {
	return b.id
}

// Placeholder returns the text box placeholder.
func (b *MessageButton) Placeholder() string {
	return b.config.Placeholder
}

// Toggle shows or hides the text box and send control. It returns the new visibility.
func (b *MessageButton) Toggle() bool {
	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return false
	}
	b.visible = !b.visible
	visible := b.visible
	b.mu.Unlock()

	b.client.present(component.Event{Widget: b.id, Kind: component.KindToggle, Visible: visible})
	return visible
}

// Visible reports whether the text box is shown.
func (b *MessageButton) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// SetText replaces the text box content, as typing would.
func (b *MessageButton) SetText(text string) {
	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return
	}
	b.text = text
	b.mu.Unlock()

	b.client.present(component.Event{Widget: b.id, Kind: component.KindText, Text: text})
}

// Text returns the text box content.
func (b *MessageButton) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Send validates the text and submits it in the background. An empty (after
// trimming) or over-long message is blocked with ErrEmptyMessage or
// ErrMessageTooLong and an inline prompt; no request is made.
//
// Whatever the network outcome, the text box is then cleared and hidden and a
// confirmation banner is shown for BannerDuration. Cancelling ctx does not
// abort a submission already started.
func (b *MessageButton) Send(ctx context.Context) error {
	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return ErrDetached
	}
	message := strings.TrimSpace(b.text)

	switch {
	case message == "":
		b.mu.Unlock()
		b.reject(ctx, "empty", PromptEmptyMessage)
		return ErrEmptyMessage
	case utf8.RuneCountInString(message) > types.MaxMessageLength:
		b.mu.Unlock()
		b.reject(ctx, "too_long", PromptMessageTooLong)
		return ErrMessageTooLong
	}

	payload := types.MessagePayload{
		UserID:      b.client.identity.UserID(),
		ProjectName: b.config.ProjectName,
		DevID:       b.config.DevID,
		Message:     message,
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	go b.submit(context.WithoutCancel(ctx), payload)
	return nil
}

func (b *MessageButton) reject(ctx context.Context, reason, prompt string) {
	b.client.metrics.RecordRejection(string(types.KindMessage), reason)
	b.client.present(component.Event{Widget: b.id, Kind: component.KindPrompt, Text: prompt})
	b.logger.Debug(ctx, "message send blocked", slog.F("reason", reason))
}

func (b *MessageButton) submit(ctx context.Context, payload types.MessagePayload) {
	defer b.inflight.Done()

	err := payload.Validate()
	if err == nil {
		err = b.sink.Submit(ctx, payload)
	} else {
		b.logger.Warn(ctx, "message payload rejected before sending", slog.Error(err))
	}

	banner := BannerSent
	if err != nil {
		banner = BannerFailed
	}

	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return
	}
	b.text = ""
	b.visible = false
	b.armBannerLocked()
	b.mu.Unlock()

	b.client.present(
		component.Event{Widget: b.id, Kind: component.KindText, Text: ""},
		component.Event{Widget: b.id, Kind: component.KindToggle, Visible: false},
		component.Event{Widget: b.id, Kind: component.KindBanner, Text: banner},
	)
}

// armBannerLocked arms the timer that clears the banner. A newer banner
// supersedes an older one's timer.
func (b *MessageButton) armBannerLocked() {
	if b.banner != nil {
		b.banner.Stop()
	}
	b.bannerGen++
	gen := b.bannerGen
	b.banner = b.client.clock.AfterFunc(BannerDuration, func() { b.clearBanner(gen) }, "message", "banner")
}

func (b *MessageButton) clearBanner(gen uint64) {
	b.mu.Lock()
	if gen != b.bannerGen || b.detached {
		b.mu.Unlock()
		return
	}
	b.banner = nil
	b.mu.Unlock()

	b.client.present(component.Event{Widget: b.id, Kind: component.KindBannerCleared})
}

// Wait blocks until in-flight sends have finished.
func (b *MessageButton) Wait() {
	b.inflight.Wait()
}

// Detach unmounts the button. In-flight sends still complete but no longer
// touch the presenter.
func (b *MessageButton) Detach() {
	b.mu.Lock()
	if b.detached {
		b.mu.Unlock()
		return
	}
	b.detached = true
	if b.banner != nil {
		b.banner.Stop()
		b.banner = nil
	}
	b.mu.Unlock()

	b.client.registry.Detach(b.config.Selector, b.id)
	b.client.forgetMessage(b.id)
	b.client.present(component.Event{Widget: b.id, Kind: component.KindUnmounted})
}
