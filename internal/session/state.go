package session

import "strings"

// IsTerminal reports whether s absorbs every further transition.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses in the lifecycle lattice.
func rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusInitiated:
		return 1
	case StatusStreaming:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return -1
	}
}

// Advance joins current with next. Terminal states absorb everything, and
// non-terminal states only move forward. The bool is false when next was
// not taken.
func Advance(current, next Status) (Status, bool) {
	if IsTerminal(current) {
		return current, false
	}
	if rank(next) < rank(current) {
		return current, false
	}
	return next, true
}

// MapProviderStatus normalizes a raw Twilio call status into a session status.
// It is total: unknown values map to StatusPending.
func MapProviderStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return StatusCompleted
	case "failed", "busy", "no-answer", "canceled":
		return StatusFailed
	case "ringing", "in-progress", "answered", "queued", "initiated":
		return StatusStreaming
	default:
		return StatusPending
	}
}

// Outcome describes what Transition did.
type Outcome int

const (
	// OutcomeApplied means the status moved (or was refreshed) and fields merged.
	OutcomeApplied Outcome = iota
	// OutcomeHeld means the target was behind the current status; fields merged, status kept.
	OutcomeHeld
	// OutcomeAbsorbed means the session is terminal; nothing changed.
	OutcomeAbsorbed
	// OutcomeMissing means no session exists for the callId.
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeHeld:
		return "held"
	case OutcomeAbsorbed:
		return "absorbed"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Transition atomically moves callID towards next and merges p.
// Terminal sessions are left untouched, including LastUpdatedAt, so late
// events cannot extend the cleanup grace window. p.Status is ignored.
func (r *Registry) Transition(callID string, next Status, p Patch) (Session, Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callID]
	if !ok {
		return Session{}, OutcomeMissing
	}
	if IsTerminal(s.Status) {
		return s.clone(), OutcomeAbsorbed
	}

	status, moved := Advance(s.Status, next)
	p.Status = &status
	p.apply(s)
	r.touch(s)

	if !moved {
		return s.clone(), OutcomeHeld
	}
	return s.clone(), OutcomeApplied
}
