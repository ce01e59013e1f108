package mediastream

import (
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamNotStarted is returned when sending before the start frame.
var ErrStreamNotStarted = errors.New("media stream not started")

const writeWait = 10 * time.Second

// Stream is one live media WebSocket.
type Stream struct {
	conn *websocket.Conn

	mu         sync.RWMutex
	callID     string
	streamSID  string
	callSID    string
	format     MediaFormat
	parameters map[string]string

	writeMu sync.Mutex
}

// CallID returns the session callId, from the query string or start frame.
func (s *Stream) CallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callID
}

// StreamSID returns the provider stream SID once known.
func (s *Stream) StreamSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamSID
}

// CallSID returns the provider call SID once the start frame arrived.
func (s *Stream) CallSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callSID
}

// Format returns the negotiated audio format.
func (s *Stream) Format() MediaFormat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.format
}

// Parameter returns a custom parameter from the start frame.
func (s *Stream) Parameter(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parameters[name]
}

// SendMedia queues μ-law audio for playback to the caller.
func (s *Stream) SendMedia(audio []byte) error {
	return s.send(frame{
		Event: EventMedia,
		Media: &mediaPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}

// SendMark asks the provider to echo name once queued audio has played.
func (s *Stream) SendMark(name string) error {
	return s.send(frame{Event: EventMark, Mark: &markPayload{Name: name}})
}

// Clear drops audio queued on the provider side, e.g. on barge-in.
func (s *Stream) Clear() error {
	return s.send(frame{Event: EventClear})
}

func (s *Stream) send(f frame) error {
	sid := s.StreamSID()
	if sid == "" {
		return ErrStreamNotStarted
	}
	f.StreamSID = sid

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

func (s *Stream) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// start records the start frame. It returns true when the stream SID
// became known for the first time.
func (s *Stream) start(p *startPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.streamSID == "" && p.StreamSID != ""
	if p.StreamSID != "" {
		s.streamSID = p.StreamSID
	}
	s.callSID = p.CallSID
	s.format = p.MediaFormat
	s.parameters = p.CustomParameters
	if s.callID == "" {
		s.callID = p.CustomParameters["callId"]
	}
	return first
}
