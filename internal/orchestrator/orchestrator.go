// Package orchestrator owns the call sessions that bind a telephony call leg
// to a realtime AI speech session. It places outbound calls, answers the
// provider's call-control and status webhooks, and gates the media WebSocket.
package orchestrator

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/callbridge/internal/config"
	"github.com/soyeahso/callbridge/internal/hooks"
	"github.com/soyeahso/callbridge/internal/logging"
	"github.com/soyeahso/callbridge/internal/session"
	"github.com/soyeahso/callbridge/internal/telephony"
)

// Bridge relays audio over an accepted media WebSocket. Serve owns conn and
// returns when the stream ends.
type Bridge interface {
	Serve(ctx context.Context, conn *websocket.Conn, r *http.Request)
}

// Orchestrator is the public API over the session registry.
type Orchestrator struct {
	cfg      config.Config
	registry *session.Registry
	sweeper  *session.Sweeper
	calls    telephony.CallCreator
	hooks    *hooks.Manager
	gate     *UpgradeGate
	log      *logging.Logger
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry replaces the default registry, e.g. one with a fake clock.
func WithRegistry(r *session.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithHooks sets the hook manager that receives call lifecycle events.
func WithHooks(m *hooks.Manager) Option {
	return func(o *Orchestrator) { o.hooks = m }
}

// WithIDGenerator overrides how inbound callIds are minted.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New builds an orchestrator and starts its cleanup sweeper. calls may be
// nil, in which case outbound calls fail with a configuration error.
// Call Close to stop the sweeper.
func New(cfg config.Config, calls telephony.CallCreator, log *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg,
		calls: calls,
		log:   log.Sub("orchestrator"),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = session.NewRegistry()
	}

	o.gate = NewUpgradeGate(cfg.Production(), cfg.Telephony.MediaAllowedHosts, log)
	o.sweeper = session.NewSweeper(session.SweeperConfig{
		Interval:    cfg.Session.CleanupInterval(),
		TerminalTTL: cfg.Session.TerminalTTL(),
		ActiveTTL:   cfg.Session.ActiveTTL(),
	}, o.registry, log, o.onEvict)
	o.sweeper.Start(context.Background())

	return o
}

// AttachBridge sets the collaborator that receives accepted media sockets.
func (o *Orchestrator) AttachBridge(b Bridge) {
	o.gate.SetBridge(b)
}

// Close stops the sweeper. Sessions are kept.
func (o *Orchestrator) Close() {
	o.sweeper.Stop()
}

// Registry exposes the underlying session registry.
func (o *Orchestrator) Registry() *session.Registry {
	return o.registry
}

// Sweeper exposes the cleanup sweeper.
func (o *Orchestrator) Sweeper() *session.Sweeper {
	return o.sweeper
}

// Session returns a snapshot of the session for callID.
func (o *Orchestrator) Session(callID string) (session.Session, bool) {
	return o.registry.Get(callID)
}

// HasSession reports whether callID is tracked.
func (o *Orchestrator) HasSession(callID string) bool {
	return o.registry.Has(callID)
}

// Sessions returns snapshots of every tracked session.
func (o *Orchestrator) Sessions() []session.Session {
	return o.registry.List()
}

// CleanupSession forgets callID immediately.
func (o *Orchestrator) CleanupSession(callID string) {
	o.registry.Delete(callID)
	o.log.Debug().Str("callId", callID).Msg("session cleaned up")
}

func (o *Orchestrator) onEvict(s session.Session) {
	o.emit(hooks.EventSessionEvicted, s)
}

// emit fires a lifecycle hook without blocking the caller.
func (o *Orchestrator) emit(event string, s session.Session) {
	if o.hooks == nil {
		return
	}
	o.hooks.EmitAsync(context.Background(), event, map[string]any{
		"callId":     s.CallID,
		"businessId": s.BusinessID,
		"callSid":    s.CallSID,
		"streamSid":  s.StreamSID,
		"status":     string(s.Status),
		"direction":  string(s.Direction),
		"agentType":  s.AgentType,
		"duration":   s.DurationSeconds,
		"recording":  s.RecordingURL,
	})
}

// emitStreaming fires call_streaming the first time a session reaches streaming.
func (o *Orchestrator) emitStreaming(prev session.Status, s session.Session) {
	if prev != session.StatusStreaming && s.Status == session.StatusStreaming {
		o.emit(hooks.EventCallStreaming, s)
	}
}

// terminalEvent returns the hook event for entering status, or "".
func terminalEvent(status session.Status) string {
	switch status {
	case session.StatusCompleted:
		return hooks.EventCallCompleted
	case session.StatusFailed:
		return hooks.EventCallFailed
	default:
		return ""
	}
}
