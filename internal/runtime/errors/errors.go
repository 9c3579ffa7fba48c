package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrNetworkRequired         = sterrors.New("unitcast: network is required")
	ErrHandlerRequired         = sterrors.New("unitcast: handler function is required")
	ErrPayloadRequired         = sterrors.New("unitcast: payload is required")
	ErrPayloadTypeUnregistered = sterrors.New("unitcast: payload type is not registered")
	ErrConfigRequired          = sterrors.New("unitcast: configuration is required")
	ErrLoggerRequired          = sterrors.New("unitcast: logger is required")
	ErrTransportUnavailable    = sterrors.New("unitcast: transport is unavailable")
	ErrNetworkClosed           = sterrors.New("unitcast: network is closed")
	ErrAlreadyStarted          = sterrors.New("unitcast: network already started")
	ErrFeedbackIDMissing       = sterrors.New("unitcast: feedback request carries no id")
)

// ConfigValidationError reports a configuration that can never produce a
// working network. It is returned once at construction and never retried.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("unitcast: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
