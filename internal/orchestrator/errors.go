package orchestrator

import (
	"errors"
	"fmt"

	"github.com/soyeahso/callbridge/internal/telephony"
)

var (
	ErrMissingPhoneNumber = errors.New("outbound phone number is not configured")
	ErrMissingBaseURL     = errors.New("public base URL is not configured")
	ErrMissingCredentials = errors.New("telephony credentials are not configured")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrSessionExists      = errors.New("session already exists")
)

// ConfigurationError means the process is not set up to place calls.
// Nothing was created and no provider request was made.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProviderError wraps a failed call-creation request. The session it was
// made for is left pending.
type ProviderError struct {
	CallID string
	Code   int // provider error code, 0 if unknown
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider error for call %s (code %d): %v", e.CallID, e.Code, e.Err)
	}
	return fmt.Sprintf("provider error for call %s: %v", e.CallID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(callID string, err error) *ProviderError {
	return &ProviderError{CallID: callID, Code: telephony.ErrorCode(err), Err: err}
}

func errorf(sentinel error, msg string) error {
	return fmt.Errorf("%w: %s", sentinel, msg)
}
