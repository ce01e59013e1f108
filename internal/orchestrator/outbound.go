package orchestrator

import (
	"context"
	"net/url"
	"strings"

	"github.com/soyeahso/callbridge/internal/hooks"
	"github.com/soyeahso/callbridge/internal/session"
	"github.com/soyeahso/callbridge/internal/telephony"
)

// CallOptions are the optional parts of an outbound call.
type CallOptions struct {
	AgentType string
	Metadata  map[string]string
}

// OutboundCall identifies a call accepted by the provider.
type OutboundCall struct {
	CallID  string `json:"callId"`
	CallSID string `json:"callSid"`
}

// InitiateOutboundCall registers a pending session for callID and asks the
// provider to dial phoneNumber. On success the session is initiated and
// carries the provider's call SID. If the provider request fails the
// session stays pending so a late success can still be reconciled.
func (o *Orchestrator) InitiateOutboundCall(ctx context.Context, phoneNumber, callID, businessID string, opts CallOptions) (OutboundCall, error) {
	if err := o.checkOutboundConfig(); err != nil {
		return OutboundCall{}, err
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return OutboundCall{}, errorf(ErrInvalidArgument, "phone number is required")
	}
	if strings.TrimSpace(callID) == "" {
		return OutboundCall{}, errorf(ErrInvalidArgument, "callId is required")
	}

	log := o.log.With("callId", callID)

	_, created := o.registry.Insert(session.Session{
		CallID:      callID,
		BusinessID:  businessID,
		PhoneNumber: phoneNumber,
		AgentType:   opts.AgentType,
		Metadata:    opts.Metadata,
		Direction:   session.DirectionOutbound,
		Status:      session.StatusPending,
	})
	if !created {
		return OutboundCall{}, ErrSessionExists
	}

	ids := correlation(callID, businessID)
	req := telephony.CallRequest{
		To:                phoneNumber,
		From:              o.cfg.Telephony.PhoneNumber,
		CallControlURL:    o.callbackURL("/twilio/voice", ids),
		StatusCallbackURL: o.callbackURL("/twilio/status", ids),
		Events:            o.statusEvents(),
	}

	if timeout := o.cfg.Telephony.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info().Str("to", phoneNumber).Str("businessId", businessID).Msg("placing outbound call")

	res, err := o.calls.CreateCall(ctx, req)
	if err != nil {
		perr := newProviderError(callID, err)
		log.Error().Err(err).Int("code", perr.Code).Msg("call creation failed, session left pending")
		return OutboundCall{}, perr
	}

	s, outcome := o.registry.Transition(callID, session.StatusInitiated, session.Patch{
		CallSID: session.String(res.CallSID),
	})

	log.Info().
		Str("callSid", res.CallSID).
		Str("status", string(s.Status)).
		Stringer("outcome", outcome).
		Msg("outbound call initiated")

	if outcome == session.OutcomeApplied {
		o.emit(hooks.EventCallInitiated, s)
	}

	return OutboundCall{CallID: callID, CallSID: res.CallSID}, nil
}

func (o *Orchestrator) checkOutboundConfig() error {
	switch {
	case o.cfg.Telephony.PhoneNumber == "":
		return &ConfigurationError{Err: ErrMissingPhoneNumber}
	case o.cfg.Telephony.PublicBaseURL == "":
		return &ConfigurationError{Err: ErrMissingBaseURL}
	case o.calls == nil:
		return &ConfigurationError{Err: ErrMissingCredentials}
	}
	return nil
}

func (o *Orchestrator) statusEvents() []string {
	if len(o.cfg.Telephony.StatusCallbackEvents) > 0 {
		return o.cfg.Telephony.StatusCallbackEvents
	}
	return []string{"initiated", "ringing", "answered", "completed"}
}

// correlation builds the query that lets stateless webhooks find their session.
func correlation(callID, businessID string) url.Values {
	q := url.Values{}
	q.Set("callId", callID)
	q.Set("businessId", businessID)
	return q
}

func (o *Orchestrator) callbackURL(path string, q url.Values) string {
	base := strings.TrimRight(o.cfg.Telephony.PublicBaseURL, "/")
	return base + path + "?" + q.Encode()
}
