// Package session holds the in-memory state that binds a telephony call leg
// to a realtime AI speech session for the lifetime of one call.
package session

import (
	"maps"
	"time"
)

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInitiated Status = "initiated"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AllStatuses lists every defined status in lattice order.
var AllStatuses = []Status{
	StatusPending,
	StatusInitiated,
	StatusStreaming,
	StatusCompleted,
	StatusFailed,
}

// Direction tells whether the call was placed by us or by the remote party.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Session is one active call. Values returned by the Registry are snapshots;
// mutate through the Registry only.
type Session struct {
	CallID          string            `json:"callId"`
	BusinessID      string            `json:"businessId"`
	PhoneNumber     string            `json:"phoneNumber"`
	AgentType       string            `json:"agentType,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CallSID         string            `json:"callSid,omitempty"`
	StreamSID       string            `json:"streamSid,omitempty"`
	Direction       Direction         `json:"direction"`
	Status          Status            `json:"status"`
	RecordingURL    string            `json:"recordingUrl,omitempty"`
	DurationSeconds int               `json:"durationSeconds,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	LastUpdatedAt   time.Time         `json:"lastUpdatedAt"`
}

// clone returns a deep copy so callers never alias registry-owned maps.
func (s Session) clone() Session {
	if s.Metadata != nil {
		s.Metadata = maps.Clone(s.Metadata)
	}
	return s
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status          *Status
	CallSID         *string
	StreamSID       *string
	RecordingURL    *string
	DurationSeconds *int
	AgentType       *string
	Metadata        map[string]string // merged key by key
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building patches inline.
func Int(n int) *int { return &n }

func (p Patch) apply(s *Session) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CallSID != nil {
		s.CallSID = *p.CallSID
	}
	if p.StreamSID != nil {
		s.StreamSID = *p.StreamSID
	}
	if p.RecordingURL != nil {
		s.RecordingURL = *p.RecordingURL
	}
	if p.DurationSeconds != nil {
		s.DurationSeconds = *p.DurationSeconds
	}
	if p.AgentType != nil {
		s.AgentType = *p.AgentType
	}
	if len(p.Metadata) > 0 {
		if s.Metadata == nil {
			s.Metadata = make(map[string]string, len(p.Metadata))
		}
		maps.Copy(s.Metadata, p.Metadata)
	}
}
