package thankyou

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ConfigurationError is returned by constructors when a widget or client
// cannot be set up. It is not recoverable: fix the configuration.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("thankyou: invalid configuration: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("thankyou: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Validation errors returned by MessageButton.Send. The send is blocked and
// the presenter gets an inline prompt; nothing reaches the network.
var (
	ErrEmptyMessage   = xerrors.New("message is empty")
	ErrMessageTooLong = xerrors.New("message is too long")
)

// ErrDetached is returned when a detached widget is used.
var ErrDetached = xerrors.New("widget is detached")
