package orchestrator

import (
	"github.com/soyeahso/callbridge/internal/session"
)

// StatusDetails are the optional fields of a status callback.
type StatusDetails struct {
	CallSID         string
	RecordingURL    string
	DurationSeconds int
}

// HandleCallStatusUpdate folds a provider status callback into the session.
// Unknown callIds are expected after cleanup and are ignored. Terminal
// sessions absorb the update.
func (o *Orchestrator) HandleCallStatusUpdate(callID, rawStatus string, details StatusDetails) {
	log := o.log.With("callId", callID)

	next := session.MapProviderStatus(rawStatus)

	var p session.Patch
	if details.CallSID != "" {
		p.CallSID = session.String(details.CallSID)
	}
	if details.RecordingURL != "" {
		p.RecordingURL = session.String(details.RecordingURL)
	}
	if details.DurationSeconds > 0 {
		p.DurationSeconds = session.Int(details.DurationSeconds)
	}

	prev, _ := o.registry.Get(callID)
	s, outcome := o.registry.Transition(callID, next, p)

	switch outcome {
	case session.OutcomeMissing:
		log.Debug().Str("rawStatus", rawStatus).Msg("status callback for unknown session ignored")
		return
	case session.OutcomeAbsorbed:
		log.Debug().
			Str("rawStatus", rawStatus).
			Str("status", string(s.Status)).
			Msg("status callback for finished session ignored")
		return
	}

	log.Info().
		Str("callSid", s.CallSID).
		Str("rawStatus", rawStatus).
		Str("status", string(s.Status)).
		Stringer("outcome", outcome).
		Msg("call status updated")

	if event := terminalEvent(s.Status); event != "" {
		o.emit(event, s)
		return
	}
	o.emitStreaming(prev.Status, s)
}
