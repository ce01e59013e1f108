package orchestrator

import (
	"github.com/soyeahso/callbridge/internal/session"
)

// StreamConnected records that the media WebSocket for callID is up.
// Unknown sessions are not recreated.
func (o *Orchestrator) StreamConnected(callID, streamSID string) {
	log := o.log.With("callId", callID)

	var p session.Patch
	if streamSID != "" {
		p.StreamSID = session.String(streamSID)
	}

	prev, _ := o.registry.Get(callID)
	s, outcome := o.registry.Transition(callID, session.StatusStreaming, p)

	switch outcome {
	case session.OutcomeMissing:
		log.Warn().Str("streamSid", streamSID).Msg("media stream for unknown session")
		return
	case session.OutcomeAbsorbed:
		log.Warn().
			Str("streamSid", streamSID).
			Str("status", string(s.Status)).
			Msg("media stream for finished session")
		return
	}

	log.Info().
		Str("callSid", s.CallSID).
		Str("streamSid", streamSID).
		Str("status", string(s.Status)).
		Msg("media stream connected")

	o.emitStreaming(prev.Status, s)
}

// StreamClosed completes the session unless it already finished.
func (o *Orchestrator) StreamClosed(callID string) {
	log := o.log.With("callId", callID)

	s, outcome := o.registry.Transition(callID, session.StatusCompleted, session.Patch{})

	switch outcome {
	case session.OutcomeMissing:
		log.Debug().Msg("media stream closed for unknown session")
	case session.OutcomeAbsorbed:
		log.Debug().Str("status", string(s.Status)).Msg("media stream closed after session finished")
	default:
		log.Info().
			Str("callSid", s.CallSID).
			Str("status", string(s.Status)).
			Msg("media stream closed")
		o.emit(terminalEvent(s.Status), s)
	}
}
