package orchestrator

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/callbridge/internal/config"
	"github.com/soyeahso/callbridge/internal/hooks"
	"github.com/soyeahso/callbridge/internal/logging"
	"github.com/soyeahso/callbridge/internal/session"
	"github.com/soyeahso/callbridge/internal/telephony"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twclient "github.com/twilio/twilio-go/client"
)

// fakeCalls records call requests and answers with a canned result.
type fakeCalls struct {
	mu       sync.Mutex
	requests []telephony.CallRequest
	sid      string
	err      error
	block    bool
}

func (f *fakeCalls) CreateCall(ctx context.Context, req telephony.CallRequest) (telephony.CallResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	sid, err, block := f.sid, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return telephony.CallResult{}, ctx.Err()
	}
	if err != nil {
		return telephony.CallResult{}, err
	}
	return telephony.CallResult{CallSID: sid, Status: "queued"}, nil
}

func (f *fakeCalls) calls() []telephony.CallRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telephony.CallRequest(nil), f.requests...)
}

// streamDoc is the subset of call-control markup the tests inspect.
type streamDoc struct {
	Connect struct {
		Stream struct {
			URL    string `xml:"url,attr"`
			Name   string `xml:"name,attr"`
			Params []struct {
				Name  string `xml:"name,attr"`
				Value string `xml:"value,attr"`
			} `xml:"Parameter"`
		} `xml:"Stream"`
	} `xml:"Connect"`
	Say    string    `xml:"Say"`
	Hangup *struct{} `xml:"Hangup"`
}

func parseDoc(t *testing.T, doc string) streamDoc {
	t.Helper()
	var d streamDoc
	require.NoError(t, xml.Unmarshal([]byte(doc), &d), doc)
	return d
}

func (d streamDoc) params() map[string]string {
	m := make(map[string]string)
	for _, p := range d.Connect.Stream.Params {
		m[p.Name] = p.Value
	}
	return m
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Telephony.PhoneNumber = "+15550001111"
	cfg.Telephony.PublicBaseURL = "https://calls.example.com"
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg config.Config, calls telephony.CallCreator, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(cfg, calls, logging.New(nil, "silent"), opts...)
	t.Cleanup(o.Close)
	return o
}

func TestInitiateOutboundCall_CorrelationRoundTrip(t *testing.T) {
	calls := &fakeCalls{sid: "CA123"}
	o := newTestOrchestrator(t, testConfig(), calls)

	res, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "biz-1", CallOptions{
		AgentType: "receptionist",
		Metadata:  map[string]string{"campaign": "spring"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutboundCall{CallID: "c1", CallSID: "CA123"}, res)

	s, ok := o.Session("c1")
	require.True(t, ok)
	assert.Equal(t, session.StatusInitiated, s.Status)
	assert.Equal(t, "+15557654321", s.PhoneNumber)
	assert.Equal(t, "biz-1", s.BusinessID)
	assert.Equal(t, "CA123", s.CallSID)
	assert.Equal(t, "receptionist", s.AgentType)
	assert.Equal(t, "spring", s.Metadata["campaign"])
	assert.Equal(t, session.DirectionOutbound, s.Direction)
}

func TestInitiateOutboundCall_ProviderRequest(t *testing.T) {
	calls := &fakeCalls{sid: "CA123"}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c 1", "b&1", CallOptions{})
	require.NoError(t, err)

	reqs := calls.calls()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "+15557654321", req.To)
	assert.Equal(t, "+15550001111", req.From)
	assert.Equal(t, "https://calls.example.com/twilio/voice?businessId=b%261&callId=c+1", req.CallControlURL)
	assert.Equal(t, "https://calls.example.com/twilio/status?businessId=b%261&callId=c+1", req.StatusCallbackURL)
	assert.Equal(t, []string{"initiated", "ringing", "answered", "completed"}, req.Events)
}

func TestInitiateOutboundCall_TrailingSlashBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.Telephony.PublicBaseURL = "https://calls.example.com/"
	calls := &fakeCalls{sid: "CA1"}
	o := newTestOrchestrator(t, cfg, calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(calls.calls()[0].CallControlURL, "https://calls.example.com/twilio/voice?"))
}

func TestInitiateOutboundCall_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		nilAPI bool
		want   error
	}{
		{"missing phone number", func(c *config.Config) { c.Telephony.PhoneNumber = "" }, false, ErrMissingPhoneNumber},
		{"missing base url", func(c *config.Config) { c.Telephony.PublicBaseURL = "" }, false, ErrMissingBaseURL},
		{"missing credentials", func(*config.Config) {}, true, ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			calls := &fakeCalls{sid: "CA1"}
			var creator telephony.CallCreator = calls
			if tt.nilAPI {
				creator = nil
			}
			o := newTestOrchestrator(t, cfg, creator)

			_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cerr *ConfigurationError
			assert.ErrorAs(t, err, &cerr)

			assert.False(t, o.HasSession("c1"), "no session is created")
			assert.Empty(t, calls.calls(), "provider is never called")
		})
	}
}

func TestInitiateOutboundCall_InvalidArguments(t *testing.T) {
	calls := &fakeCalls{sid: "CA1"}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "", "c1", "b1", CallOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = o.InitiateOutboundCall(context.Background(), "+15557654321", "  ", "b1", CallOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Empty(t, calls.calls())
	assert.Equal(t, 0, o.Registry().Len())
}

func TestInitiateOutboundCall_DuplicateCallID(t *testing.T) {
	calls := &fakeCalls{sid: "CA1"}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	_, err = o.InitiateOutboundCall(context.Background(), "+15550000000", "c1", "b1", CallOptions{})
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Len(t, calls.calls(), 1)

	s, _ := o.Session("c1")
	assert.Equal(t, "+15557654321", s.PhoneNumber, "existing session untouched")
}

func TestInitiateOutboundCall_ProviderFailureLeavesPending(t *testing.T) {
	calls := &fakeCalls{err: &twclient.TwilioRestError{Code: 21214, Message: "To number cannot be reached", Status: 400}}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "c1", perr.CallID)
	assert.Equal(t, 21214, perr.Code)

	s, ok := o.Session("c1")
	require.True(t, ok, "session is not rolled back")
	assert.Equal(t, session.StatusPending, s.Status)
	assert.Empty(t, s.CallSID)
}

func TestInitiateOutboundCall_TimeoutLeavesPending(t *testing.T) {
	calls := &fakeCalls{block: true}
	o := newTestOrchestrator(t, testConfig(), calls)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.InitiateOutboundCall(ctx, "+15557654321", "c1", "b1", CallOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s, ok := o.Session("c1")
	require.True(t, ok)
	assert.Equal(t, session.StatusPending, s.Status)
}

func TestInitiateOutboundCall_LateStatusReconciles(t *testing.T) {
	calls := &fakeCalls{err: errors.New("connection reset")}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.Error(t, err)

	o.HandleCallStatusUpdate("c1", "ringing", StatusDetails{CallSID: "CA-late"})

	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusStreaming, s.Status)
	assert.Equal(t, "CA-late", s.CallSID)
}

func TestScenario_OutboundCallLifecycle(t *testing.T) {
	calls := &fakeCalls{sid: "CA123"}
	o := newTestOrchestrator(t, testConfig(), calls)

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	s, _ := o.Session("c1")
	require.Equal(t, session.StatusInitiated, s.Status)

	d := parseDoc(t, o.CallControlResponse("c1"))
	assert.Contains(t, d.Connect.Stream.URL, "callId=c1")
	assert.Equal(t, "c1", d.params()["callId"])
	s, _ = o.Session("c1")
	require.Equal(t, session.StatusStreaming, s.Status)

	o.HandleCallStatusUpdate("c1", "completed", StatusDetails{DurationSeconds: 42})
	s, _ = o.Session("c1")
	require.Equal(t, session.StatusCompleted, s.Status)
	assert.Equal(t, 42, s.DurationSeconds)

	o.HandleCallStatusUpdate("c1", "ringing", StatusDetails{})
	s, _ = o.Session("c1")
	assert.Equal(t, session.StatusCompleted, s.Status)
}

func TestCallControlResponse_UnknownSession(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{})

	var doc string
	require.NotPanics(t, func() { doc = o.CallControlResponse("nonexistent-id") })

	d := parseDoc(t, doc)
	assert.NotNil(t, d.Hangup)
	assert.NotEmpty(t, d.Say)
	assert.Empty(t, d.Connect.Stream.URL)
	assert.False(t, o.HasSession("nonexistent-id"), "no session is created")
}

func TestCallControlResponse_StreamParameters(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA9"})

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{AgentType: "sales"})
	require.NoError(t, err)

	d := parseDoc(t, o.CallControlResponse("c1"))

	assert.Equal(t, "wss://calls.example.com/media-stream?agentType=sales&businessId=b1&callId=c1&callSid=CA9&direction=outbound", d.Connect.Stream.URL)
	assert.Equal(t, map[string]string{
		"callId":     "c1",
		"businessId": "b1",
		"agentType":  "sales",
		"direction":  "outbound",
		"from":       "+15550001111",
		"callSid":    "CA9",
	}, d.params())
	assert.Nil(t, d.Hangup)
}

func TestCallControlResponse_PlainHTTPBaseUsesWS(t *testing.T) {
	cfg := testConfig()
	cfg.Telephony.PublicBaseURL = "http://localhost:8787"
	o := newTestOrchestrator(t, cfg, &fakeCalls{sid: "CA1"})

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	d := parseDoc(t, o.CallControlResponse("c1"))
	assert.True(t, strings.HasPrefix(d.Connect.Stream.URL, "ws://localhost:8787/media-stream?"), d.Connect.Stream.URL)
}

func TestCallControlResponse_NoBaseURLHangsUp(t *testing.T) {
	cfg := testConfig()
	cfg.Telephony.PublicBaseURL = ""
	o := newTestOrchestrator(t, cfg, nil)

	callID, doc := o.AcceptInboundCall(InboundCall{CallSID: "CA1", From: "+15551112222"})
	assert.Contains(t, doc, "<Hangup")

	s, ok := o.Session(callID)
	require.True(t, ok)
	assert.Equal(t, session.StatusInitiated, s.Status, "no streaming without a media URL")
}

func TestCallControlResponse_TerminalSessionStaysTerminal(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	o.HandleCallStatusUpdate("c1", "busy", StatusDetails{})

	o.CallControlResponse("c1")
	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusFailed, s.Status)
}

func TestAcceptInboundCall(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, WithIDGenerator(func() string { return "in-1" }))

	callID, doc := o.AcceptInboundCall(InboundCall{
		CallSID:    "CAin",
		From:       "+15551112222",
		To:         "+15550001111",
		BusinessID: "b1",
		AgentType:  "support",
	})
	assert.Equal(t, "in-1", callID)
	params := parseDoc(t, doc).params()
	assert.Equal(t, "inbound", params["direction"])
	assert.Equal(t, "+15551112222", params["from"])
	assert.Equal(t, "CAin", params["callSid"])
	assert.Equal(t, "support", params["agentType"])

	s, ok := o.Session("in-1")
	require.True(t, ok)
	assert.Equal(t, session.StatusStreaming, s.Status)
	assert.Equal(t, session.DirectionInbound, s.Direction)
	assert.Equal(t, "+15550001111", s.Metadata["to"])
}

func TestAcceptInboundCall_RetryReusesSession(t *testing.T) {
	ids := []string{"in-1", "in-2"}
	o := newTestOrchestrator(t, testConfig(), nil, WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	first, _ := o.AcceptInboundCall(InboundCall{CallSID: "CAin", From: "+15551112222"})
	second, doc := o.AcceptInboundCall(InboundCall{CallSID: "CAin", From: "+15551112222"})

	assert.Equal(t, "in-1", first)
	assert.Equal(t, "in-1", second)
	assert.Equal(t, "in-1", parseDoc(t, doc).params()["callId"])
	assert.Equal(t, 1, o.Registry().Len())
}

func TestAcceptInboundCall_IDCollisionHangsUp(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, WithIDGenerator(func() string { return "same" }))

	o.AcceptInboundCall(InboundCall{CallSID: "CA1"})
	callID, doc := o.AcceptInboundCall(InboundCall{CallSID: "CA2"})

	assert.Empty(t, callID)
	assert.Contains(t, doc, "<Hangup")
	assert.Equal(t, 1, o.Registry().Len())
}

func TestCallIDForSID(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), nil, WithIDGenerator(func() string { return "in-1" }))
	o.AcceptInboundCall(InboundCall{CallSID: "CAin"})

	callID, ok := o.CallIDForSID("CAin")
	require.True(t, ok)
	assert.Equal(t, "in-1", callID)

	_, ok = o.CallIDForSID("CAother")
	assert.False(t, ok)
}

func TestHandleCallStatusUpdate_UnknownSession(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{})

	assert.NotPanics(t, func() {
		o.HandleCallStatusUpdate("ghost", "completed", StatusDetails{CallSID: "CA1"})
	})
	assert.False(t, o.HasSession("ghost"))
}

func TestHandleCallStatusUpdate_FailureVocabulary(t *testing.T) {
	for _, raw := range []string{"failed", "busy", "no-answer", "canceled", "BUSY"} {
		t.Run(raw, func(t *testing.T) {
			o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
			_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
			require.NoError(t, err)

			o.HandleCallStatusUpdate("c1", raw, StatusDetails{})
			s, _ := o.Session("c1")
			assert.Equal(t, session.StatusFailed, s.Status)

			o.HandleCallStatusUpdate("c1", "completed", StatusDetails{})
			s, _ = o.Session("c1")
			assert.Equal(t, session.StatusFailed, s.Status, "first terminal state wins")
		})
	}
}

func TestHandleCallStatusUpdate_MergesDetails(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	o.HandleCallStatusUpdate("c1", "completed", StatusDetails{
		CallSID:         "CA1",
		RecordingURL:    "https://api.twilio.com/rec/RE1",
		DurationSeconds: 93,
	})

	s, _ := o.Session("c1")
	assert.Equal(t, "https://api.twilio.com/rec/RE1", s.RecordingURL)
	assert.Equal(t, 93, s.DurationSeconds)
}

func TestHandleCallStatusUpdate_UnknownStatusDoesNotRegress(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	o.HandleCallStatusUpdate("c1", "garbage-value", StatusDetails{})
	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusInitiated, s.Status)
}

func TestStreamConnected(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	o.StreamConnected("c1", "MZ1")

	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusStreaming, s.Status)
	assert.Equal(t, "MZ1", s.StreamSID)
}

func TestStreamConnected_EitherOrderReachesStreaming(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	for _, id := range []string{"a", "b"} {
		_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", id, "b1", CallOptions{})
		require.NoError(t, err)
	}

	o.CallControlResponse("a")
	o.StreamConnected("a", "MZa")

	o.StreamConnected("b", "MZb")
	o.CallControlResponse("b")

	for id, sid := range map[string]string{"a": "MZa", "b": "MZb"} {
		s, _ := o.Session(id)
		assert.Equal(t, session.StatusStreaming, s.Status)
		assert.Equal(t, sid, s.StreamSID)
	}
}

func TestStreamConnected_UnknownSessionNotResurrected(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{})

	o.StreamConnected("gone", "MZ1")
	o.StreamClosed("gone")
	assert.False(t, o.HasSession("gone"))
}

func TestStreamClosed(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	o.StreamConnected("c1", "MZ1")

	o.StreamClosed("c1")
	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusCompleted, s.Status)
	assert.True(t, o.HasSession("c1"), "close does not delete the session")
}

func TestStreamClosed_AfterFailureKeepsFailed(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	o.HandleCallStatusUpdate("c1", "no-answer", StatusDetails{})
	o.StreamClosed("c1")

	s, _ := o.Session("c1")
	assert.Equal(t, session.StatusFailed, s.Status)
}

func TestTerminalAbsorptionDoesNotBumpLastUpdated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"}, WithRegistry(session.NewRegistry(session.WithClock(clock))))

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	o.StreamClosed("c1")
	before, _ := o.Session("c1")

	now = now.Add(time.Minute)
	o.HandleCallStatusUpdate("c1", "completed", StatusDetails{})
	o.StreamConnected("c1", "MZ1")
	o.CallControlResponse("c1")

	after, _ := o.Session("c1")
	assert.Equal(t, before.LastUpdatedAt, after.LastUpdatedAt)
	assert.Empty(t, after.StreamSID)
}

func TestCleanupSession(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)

	o.CleanupSession("c1")
	assert.False(t, o.HasSession("c1"))

	o.HandleCallStatusUpdate("c1", "completed", StatusDetails{})
	assert.False(t, o.HasSession("c1"), "late webhook does not resurrect")
	assert.Contains(t, o.CallControlResponse("c1"), "<Hangup")

	assert.NotPanics(t, func() { o.CleanupSession("c1") })
}

func TestSessionsList(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"})
	for _, id := range []string{"c1", "c2"} {
		_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", id, "b1", CallOptions{})
		require.NoError(t, err)
	}
	assert.Len(t, o.Sessions(), 2)
}

func TestSweepEvictsFinishedSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"}, WithRegistry(session.NewRegistry(session.WithClock(clock))))

	for _, id := range []string{"done", "live"} {
		_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", id, "b1", CallOptions{})
		require.NoError(t, err)
	}
	o.StreamClosed("done")
	o.StreamConnected("live", "MZ1")

	evicted := o.Sweeper().Sweep(now.Add(10 * time.Minute))
	assert.Equal(t, 1, evicted)
	assert.False(t, o.HasSession("done"))
	assert.True(t, o.HasSession("live"))
}

func waitEvent(t *testing.T, ch <-chan hooks.Payload) hooks.Payload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("hook was not fired")
		return hooks.Payload{}
	}
}

func TestLifecycleHooks(t *testing.T) {
	hm := hooks.NewManager(logging.New(nil, "silent"))
	events := make(chan hooks.Payload, 16)
	for _, ev := range hooks.AllEvents {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			events <- p
			return nil
		})
	}

	o := newTestOrchestrator(t, testConfig(), &fakeCalls{sid: "CA1"}, WithHooks(hm))

	_, err := o.InitiateOutboundCall(context.Background(), "+15557654321", "c1", "b1", CallOptions{})
	require.NoError(t, err)
	p := waitEvent(t, events)
	assert.Equal(t, hooks.EventCallInitiated, p.Event)
	assert.Equal(t, "CA1", p.Data["callSid"])

	o.CallControlResponse("c1")
	p = waitEvent(t, events)
	assert.Equal(t, hooks.EventCallStreaming, p.Event)

	o.HandleCallStatusUpdate("c1", "failed", StatusDetails{})
	p = waitEvent(t, events)
	assert.Equal(t, hooks.EventCallFailed, p.Event)
	assert.Equal(t, "failed", p.Data["status"])

	o.StreamClosed("c1")
	select {
	case p := <-events:
		t.Fatalf("unexpected hook %s after terminal state", p.Event)
	case <-time.After(50 * time.Millisecond):
	}
}
