// Package mediastream serves the provider's bidirectional media WebSocket
// for a call. It parses Media Streams frames, hands decoded audio to an
// AudioSink and reports stream connect and close back to the session owner.
package mediastream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/callbridge/internal/logging"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
)

// Lifecycle receives stream connect and close notifications.
type Lifecycle interface {
	StreamConnected(callID, streamSID string)
	StreamClosed(callID string)
}

// Handler serves media WebSockets accepted by the upgrade gate.
type Handler struct {
	lifecycle Lifecycle
	sink      AudioSink
	log       *logging.Logger
}

// NewHandler builds a handler. A nil sink discards audio.
func NewHandler(lifecycle Lifecycle, sink AudioSink, log *logging.Logger) *Handler {
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Handler{
		lifecycle: lifecycle,
		sink:      sink,
		log:       log.Sub("media"),
	}
}

// Serve runs the stream until the provider stops it, the socket fails, or
// ctx is cancelled. It always reports the close for a known callId.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	q := r.URL.Query()
	s := &Stream{
		conn:      conn,
		callID:    q.Get("callId"),
		streamSID: q.Get("streamSid"),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	connected := false
	if s.callID != "" && s.streamSID != "" {
		h.lifecycle.StreamConnected(s.callID, s.streamSID)
		connected = true
	}

	defer func() {
		_ = conn.Close()
		if callID := s.CallID(); callID != "" {
			h.lifecycle.StreamClosed(callID)
		}
		h.log.Debug().
			Str("callId", s.CallID()).
			Str("streamSid", s.StreamSID()).
			Msg("media stream ended")
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepalive(ctx, s)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				h.log.Warn().Err(err).Str("callId", s.CallID()).Msg("media stream read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			h.log.Debug().Err(err).Msg("ignoring malformed media frame")
			continue
		}

		switch f.Event {
		case EventConnected:
			h.log.Debug().Str("protocol", f.Protocol).Str("version", f.Version).Msg("media stream handshake")

		case EventStart:
			if f.Start == nil {
				continue
			}
			first := s.start(f.Start)
			h.log.Info().
				Str("callId", s.CallID()).
				Str("callSid", s.CallSID()).
				Str("streamSid", s.StreamSID()).
				Str("encoding", f.Start.MediaFormat.Encoding).
				Msg("media stream started")
			if (first || !connected) && s.CallID() != "" && s.StreamSID() != "" {
				h.lifecycle.StreamConnected(s.CallID(), s.StreamSID())
				connected = true
			}
			h.sink.OnStart(s)

		case EventMedia:
			if f.Media == nil || f.Media.Payload == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(f.Media.Payload)
			if err != nil {
				continue
			}
			h.sink.OnAudio(s, f.Media.Track, audio)

		case EventMark:
			if f.Mark != nil {
				h.sink.OnMark(s, f.Mark.Name)
			}

		case EventDTMF:
			if f.DTMF != nil {
				h.sink.OnDTMF(s, f.DTMF.Digit)
			}

		case EventStop:
			h.sink.OnStop(s)
			return
		}
	}
}

// keepalive pings the provider and closes the socket when ctx ends.
func (h *Handler) keepalive(ctx context.Context, s *Stream) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}
