package orchestrator

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/callbridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoBridge records what it was handed and writes the callId back.
type echoBridge struct {
	served chan string
}

func newEchoBridge() *echoBridge {
	return &echoBridge{served: make(chan string, 1)}
}

func (b *echoBridge) Serve(_ context.Context, conn *websocket.Conn, r *http.Request) {
	defer conn.Close()
	callID := r.URL.Query().Get("callId")
	_ = conn.WriteMessage(websocket.TextMessage, []byte(callID))
	b.served <- callID
}

func productionServer(t *testing.T, bridge Bridge, extraHosts ...string) (*Orchestrator, *httptest.Server) {
	t.Helper()
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.Telephony.MediaAllowedHosts = extraHosts

	o := newTestOrchestrator(t, cfg, &fakeCalls{})
	if bridge != nil {
		o.AttachBridge(bridge)
	}

	srv := httptest.NewServer(http.HandlerFunc(o.HandleUpgrade))
	t.Cleanup(srv.Close)
	return o, srv
}

// rawUpgrade sends a websocket upgrade request on a bare TCP connection and
// returns the status code plus whether the server closed the transport.
func rawUpgrade(t *testing.T, srv *httptest.Server, origin string) (int, bool) {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	req := "GET /media-stream?callId=c1 HTTP/1.1\r\n" +
		"Host: " + srv.Listener.Addr().String() + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n"
	if origin != "" {
		req += "Origin: " + origin + "\r\n"
	}
	req += "\r\n"

	_, err = io.WriteString(conn, req)
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	_, err = br.ReadByte()
	return resp.StatusCode, err == io.EOF
}

func TestUpgradeGate_Allow(t *testing.T) {
	log := logging.New(nil, "silent")
	prod := NewUpgradeGate(true, []string{"media.example.net"}, log)
	dev := NewUpgradeGate(false, nil, log)

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"exact host", "sdk.twilio.com", "", true},
		{"origin url contains host", "https://sdk.twilio.com", "", true},
		{"media subdomain", "wss://media-stream.twilio.com", "", true},
		{"configured extra host", "https://media.example.net", "", true},
		{"evil origin", "https://evil.example.com", "", false},
		{"case sensitive", "https://SDK.TWILIO.COM", "", false},
		{"host fallback allowed", "", "voice.twilio.com", true},
		{"host fallback denied", "", "evil.example.com", false},
		{"origin wins over host", "https://evil.example.com", "voice.twilio.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/media-stream", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, prod.Allow(r))
			assert.True(t, dev.Allow(r), "development accepts everything")
		})
	}
}

func TestUpgradeGate_RejectsEvilOrigin(t *testing.T) {
	bridge := newEchoBridge()
	o, srv := productionServer(t, bridge)

	status, closed := rawUpgrade(t, srv, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, status)
	assert.True(t, closed, "transport is closed after rejection")

	select {
	case <-bridge.served:
		t.Fatal("bridge must not run for a rejected upgrade")
	default:
	}
	assert.Equal(t, 0, o.Registry().Len())
}

func TestUpgradeGate_AcceptsProviderOrigin(t *testing.T) {
	bridge := newEchoBridge()
	_, srv := productionServer(t, bridge)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/media-stream?callId=c1&streamSid=MZ1"
	header := http.Header{"Origin": {"https://sdk.twilio.com"}}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "c1", string(msg), "bridge sees the original request")

	select {
	case callID := <-bridge.served:
		assert.Equal(t, "c1", callID)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge was not invoked")
	}
}

func TestUpgradeGate_DevelopmentAcceptsAnyOrigin(t *testing.T) {
	bridge := newEchoBridge()
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{})
	o.AttachBridge(bridge)

	srv := httptest.NewServer(http.HandlerFunc(o.HandleUpgrade))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/media-stream?callId=dev"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.NoError(t, err)
	conn.Close()

	select {
	case callID := <-bridge.served:
		assert.Equal(t, "dev", callID)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge was not invoked")
	}
}

func TestUpgradeGate_PanicWrites500(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	o := newTestOrchestrator(t, cfg, &fakeCalls{})
	o.AttachBridge(newEchoBridge())
	o.gate.allow = func(*http.Request) bool { panic("boom") }

	srv := httptest.NewServer(http.HandlerFunc(o.HandleUpgrade))
	defer srv.Close()

	status, closed := rawUpgrade(t, srv, "https://sdk.twilio.com")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, closed)
}

func TestUpgradeGate_NoBridgeWrites500(t *testing.T) {
	_, srv := productionServer(t, nil)

	status, closed := rawUpgrade(t, srv, "https://sdk.twilio.com")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, closed)
}

func TestUpgradeGate_NonHijackableWriter(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	o := newTestOrchestrator(t, cfg, &fakeCalls{})

	r := httptest.NewRequest(http.MethodGet, "/media-stream?callId=c1", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	o.HandleUpgrade(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
}
