// Package telephony talks to the voice provider: placing calls over the
// REST API, rendering call-control markup, and checking webhook signatures.
package telephony

import (
	"context"
	"errors"

	twclient "github.com/twilio/twilio-go/client"
)

// CallRequest describes an outbound call to place.
type CallRequest struct {
	To                string
	From              string
	CallControlURL    string // fetched by the provider when the callee answers
	StatusCallbackURL string
	Events            []string
}

// CallResult is what the provider returns for an accepted call.
type CallResult struct {
	CallSID string
	Status  string
}

// CallCreator places outbound calls.
type CallCreator interface {
	CreateCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// ErrorCode extracts the provider error code from err, or 0.
func ErrorCode(err error) int {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Code
	}
	return 0
}
