// Package types defines the payloads the widgets send to the feedback backend.
package types

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/xerrors"
)

// MaxMessageLength is the longest message the backend accepts (in characters).
const MaxMessageLength = 5000

// Kind names a payload family, used for logging and metrics labels.
type Kind string

const (
	KindClicks  Kind = "clicks"
	KindMessage Kind = "message"
)

// Payload is anything a widget hands to a sink.
type Payload interface {
	Kind() Kind
	Validate() error
}

// ClickPayload is one flushed batch of thank-you clicks.
type ClickPayload struct {
	UserID      string `json:"userId" validate:"required,min=3,max=50,slug"`
	ProjectName string `json:"projectName" validate:"required,min=3,max=100,slug"`
	DevID       int    `json:"devId" validate:"gte=0"`
	Clicks      int    `json:"clicks" validate:"min=1"`
}

func (ClickPayload) Kind() Kind { return KindClicks }

// Validate checks the payload against the backend schema.
// A payload with zero clicks is never valid.
func (p ClickPayload) Validate() error {
	return validate(p)
}

// MessagePayload is a single free-text message, sent without batching.
type MessagePayload struct {
	UserID      string `json:"userId" validate:"required,min=3,max=50,slug"`
	ProjectName string `json:"projectName" validate:"required,min=3,max=100,slug"`
	DevID       int    `json:"devId" validate:"gte=0"`
	Message     string `json:"message" validate:"required,max=5000"`
}

func (MessagePayload) Kind() Kind { return KindMessage }

// Validate checks the payload against the backend schema.
func (p MessagePayload) Validate() error {
	return validate(p)
}

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// Validator returns the shared validator with the "slug" rule registered.
// Config structs elsewhere in the module reuse it.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		validateInst = v
	})
	return validateInst
}

// IsSlug reports whether s only holds letters, digits, dashes and underscores.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

func validate(p Payload) error {
	if err := Validator().Struct(p); err != nil {
		return xerrors.Errorf("invalid %s payload: %w", p.Kind(), err)
	}
	return nil
}
