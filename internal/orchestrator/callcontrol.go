package orchestrator

import (
	"net/url"
	"strings"

	"github.com/soyeahso/callbridge/internal/session"
	"github.com/soyeahso/callbridge/internal/telephony"
)

const defaultFallbackMessage = "We're sorry, we could not connect your call. Please try again later. Goodbye."

// MediaStreamPath is where the provider opens the media WebSocket.
const MediaStreamPath = "/media-stream"

// CallControlResponse returns the markup the provider fetches when a call is
// answered. A known session moves to streaming and gets a <Connect><Stream>
// document pointing at the media WebSocket. An unknown callId gets an
// apology and a hangup. It never panics.
func (o *Orchestrator) CallControlResponse(callID string) (doc string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("callId", callID).Interface("panic", r).Msg("call-control generation panicked")
			doc = telephony.FallbackResponse
		}
	}()

	log := o.log.With("callId", callID)

	s, ok := o.registry.Get(callID)
	if !ok {
		log.Warn().Msg("call-control requested for unknown session, hanging up")
		return o.hangup()
	}

	wsURL, err := o.mediaStreamURL(s)
	if err != nil {
		log.Error().Err(err).Msg("cannot build media stream URL, hanging up")
		return o.hangup()
	}

	prev := s.Status
	s, outcome := o.registry.Transition(callID, session.StatusStreaming, session.Patch{})
	if outcome == session.OutcomeMissing {
		log.Warn().Msg("session evicted during call-control, hanging up")
		return o.hangup()
	}
	o.emitStreaming(prev, s)

	doc, err = telephony.StreamResponse(telephony.StreamSpec{
		URL:  wsURL,
		Name: callID,
		Parameters: []telephony.Parameter{
			{Name: "callId", Value: s.CallID},
			{Name: "businessId", Value: s.BusinessID},
			{Name: "agentType", Value: s.AgentType},
			{Name: "direction", Value: string(s.Direction)},
			{Name: "from", Value: o.fromNumber(s)},
			{Name: "callSid", Value: s.CallSID},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("rendering stream markup failed")
		return telephony.FallbackResponse
	}

	log.Info().
		Str("callSid", s.CallSID).
		Str("status", string(s.Status)).
		Stringer("outcome", outcome).
		Msg("call-control issued")

	return doc
}

// InboundCall describes a call the provider delivered to our number.
type InboundCall struct {
	CallSID    string
	From       string
	To         string
	BusinessID string
	AgentType  string
}

// AcceptInboundCall registers an initiated inbound session under a fresh
// callId and returns its call-control markup. A retried webhook for a
// CallSid we already track reuses that session.
func (o *Orchestrator) AcceptInboundCall(call InboundCall) (callID, doc string) {
	var meta map[string]string
	if call.To != "" {
		meta = map[string]string{"to": call.To}
	}

	s, created := o.registry.InsertByCallSID(session.Session{
		CallID:      o.newID(),
		BusinessID:  call.BusinessID,
		PhoneNumber: call.From,
		AgentType:   call.AgentType,
		Metadata:    meta,
		CallSID:     call.CallSID,
		Direction:   session.DirectionInbound,
		Status:      session.StatusInitiated,
	})
	callID = s.CallID

	switch {
	case callID == "":
		o.log.Error().Str("callSid", call.CallSID).Msg("generated callId already in use, hanging up")
		return "", o.hangup()
	case created:
		o.log.Info().
			Str("callId", callID).
			Str("callSid", call.CallSID).
			Str("from", call.From).
			Msg("inbound call accepted")
	default:
		o.log.Info().
			Str("callId", callID).
			Str("callSid", call.CallSID).
			Msg("repeated inbound webhook, reusing session")
	}

	return callID, o.CallControlResponse(callID)
}

// CallIDForSID resolves the provider's call SID to our callId.
func (o *Orchestrator) CallIDForSID(callSID string) (string, bool) {
	s, ok := o.registry.FindByCallSID(callSID)
	return s.CallID, ok
}

func (o *Orchestrator) hangup() string {
	msg := o.cfg.Telephony.FallbackMessage
	if msg == "" {
		msg = defaultFallbackMessage
	}
	doc, err := telephony.HangupResponse(msg)
	if err != nil {
		o.log.Error().Err(err).Msg("rendering hangup markup failed")
		return telephony.FallbackResponse
	}
	return doc
}

// mediaStreamURL points the provider at our media WebSocket on the public host.
func (o *Orchestrator) mediaStreamURL(s session.Session) (string, error) {
	base, err := url.Parse(o.cfg.Telephony.PublicBaseURL)
	if err != nil {
		return "", err
	}
	if base.Host == "" {
		return "", ErrMissingBaseURL
	}

	scheme := "wss"
	if base.Scheme == "http" {
		scheme = "ws"
	}

	q := correlation(s.CallID, s.BusinessID)
	if s.AgentType != "" {
		q.Set("agentType", s.AgentType)
	}
	q.Set("direction", string(s.Direction))
	if s.CallSID != "" {
		q.Set("callSid", s.CallSID)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     base.Host,
		Path:     strings.TrimRight(base.Path, "/") + MediaStreamPath,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// fromNumber is the calling party: the remote caller for inbound calls and
// our configured number for outbound ones.
func (o *Orchestrator) fromNumber(s session.Session) string {
	if s.Direction == session.DirectionInbound {
		return s.PhoneNumber
	}
	return o.cfg.Telephony.PhoneNumber
}
