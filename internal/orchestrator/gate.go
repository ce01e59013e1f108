package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/callbridge/internal/logging"
)

// DefaultMediaHosts are the provider hostnames allowed to open media streams
// in production.
var DefaultMediaHosts = []string{
	"sdk.twilio.com",
	"media.twilio.com",
	"media-stream.twilio.com",
	"voice.twilio.com",
}

const rawWriteTimeout = 5 * time.Second

// UpgradeGate decides whether a media WebSocket upgrade may proceed before
// any handshake or session work happens.
type UpgradeGate struct {
	production bool
	allowed    []string
	upgrader   websocket.Upgrader
	log        *logging.Logger

	// allow is the decision hook; tests replace it to exercise the 500 path.
	allow func(*http.Request) bool

	mu     sync.RWMutex
	bridge Bridge
}

// NewUpgradeGate builds a gate. extraHosts are appended to DefaultMediaHosts.
func NewUpgradeGate(production bool, extraHosts []string, log *logging.Logger) *UpgradeGate {
	allowed := append([]string(nil), DefaultMediaHosts...)
	for _, h := range extraHosts {
		if h = strings.TrimSpace(h); h != "" {
			allowed = append(allowed, h)
		}
	}

	g := &UpgradeGate{
		production: production,
		allowed:    allowed,
		log:        log.Sub("gate"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gate has already ruled on the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	g.allow = g.Allow
	return g
}

// SetBridge sets the collaborator that serves accepted connections.
func (g *UpgradeGate) SetBridge(b Bridge) {
	g.mu.Lock()
	g.bridge = b
	g.mu.Unlock()
}

// Allow reports whether r may upgrade. Outside production everything is
// allowed. In production the Origin header, or Host when Origin is absent,
// must equal or contain one of the allowed hosts. Matching is case-sensitive.
func (g *UpgradeGate) Allow(r *http.Request) bool {
	if !g.production {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Host
	}
	if origin == "" {
		return false
	}
	for _, h := range g.allowed {
		if origin == h || strings.Contains(origin, h) {
			return true
		}
	}
	return false
}

// HandleUpgrade gates r, then upgrades and hands the connection to the
// bridge. Rejections are written as a bare 403 on the hijacked transport and
// internal failures as a 500; in both cases the transport is closed.
func (g *UpgradeGate) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	log := g.log.With("callId", r.URL.Query().Get("callId"))

	ok, err := g.evaluate(r)
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade gate failed")
		g.reject(w, http.StatusInternalServerError)
		return
	}
	if !ok {
		log.Warn().
			Str("origin", r.Header.Get("Origin")).
			Str("host", r.Host).
			Str("remote", r.RemoteAddr).
			Msg("media stream upgrade rejected")
		g.reject(w, http.StatusForbidden)
		return
	}

	g.mu.RLock()
	bridge := g.bridge
	g.mu.RUnlock()
	if bridge == nil {
		log.Error().Msg("no media bridge attached")
		g.reject(w, http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied on the connection.
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	log.Debug().Str("remote", r.RemoteAddr).Msg("media stream upgraded")
	bridge.Serve(r.Context(), conn, r)
}

// evaluate runs the decision, converting panics into errors.
func (g *UpgradeGate) evaluate(r *http.Request) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during origin check: %v", p)
		}
	}()
	return g.allow(r), nil
}

// reject writes a minimal response straight onto the transport and closes it.
func (g *UpgradeGate) reject(w http.ResponseWriter, status int) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Connection", "close")
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, buf, err := hj.Hijack()
	if err != nil {
		if !errors.Is(err, http.ErrHijacked) {
			http.Error(w, http.StatusText(status), status)
		}
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(rawWriteTimeout))
	text := http.StatusText(status)
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s",
		status, text, len(text), text)
	if err := buf.Flush(); err != nil {
		g.log.Debug().Err(err).Msg("writing rejection")
	}
}

// HandleUpgrade is the media WebSocket entry point.
func (o *Orchestrator) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	o.gate.HandleUpgrade(w, r)
}
