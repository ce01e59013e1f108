// Package hooks fans call lifecycle events out to registered handlers, most
// often the shell commands configured under hooks.* in the config file.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/callbridge/internal/logging"
)

// Lifecycle events a handler can subscribe to.
const (
	EventCallInitiated  = "call_initiated"
	EventCallStreaming  = "call_streaming"
	EventCallCompleted  = "call_completed"
	EventCallFailed     = "call_failed"
	EventSessionEvicted = "session_evicted"
	EventGatewayStart   = "gateway_start"
	EventGatewayStop    = "gateway_stop"
)

// AllEvents lists every event in the order a call encounters them.
var AllEvents = []string{
	EventGatewayStart,
	EventCallInitiated,
	EventCallStreaming,
	EventCallCompleted,
	EventCallFailed,
	EventSessionEvicted,
	EventGatewayStop,
}

// Payload is what a handler receives. Data carries the session snapshot for
// call events and the listen address for gateway events.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to one event. An error is logged and never stops the
// remaining handlers.
type Handler func(ctx context.Context, p Payload) error

type subscriber struct {
	name    string
	handler Handler
}

// Manager holds subscriptions per event and dispatches to them.
type Manager struct {
	mu   sync.RWMutex
	subs map[string][]subscriber
	log  *logging.Logger
}

// NewManager creates a manager with no subscriptions.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		subs: make(map[string][]subscriber),
		log:  log.Sub("hooks"),
	}
}

// On subscribes handler to event under name, which only shows up in logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	m.subs[event] = append(m.subs[event], subscriber{name: name, handler: handler})
	m.mu.Unlock()

	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Emit runs the handlers for event one after another, in subscription order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.subscribers(event) {
		m.run(ctx, s, p)
	}
}

// EmitAsync starts every handler for event in its own goroutine and returns.
// Call paths use it so a slow hook command never delays a webhook response.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.subscribers(event) {
		go m.run(ctx, s, p)
	}
}

// Summary maps each event with at least one handler to its handler count.
func (m *Manager) Summary() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.subs))
	for event, subs := range m.subs {
		if len(subs) > 0 {
			out[event] = len(subs)
		}
	}
	return out
}

func (m *Manager) subscribers(event string) []subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]subscriber(nil), m.subs[event]...)
}

// run calls one handler, turning a panic into a logged error.
func (m *Manager) run(ctx context.Context, s subscriber, p Payload) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return s.handler(ctx, p)
	}()
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", s.name).
			Msg("hook handler failed")
	}
}
