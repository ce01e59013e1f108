package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/soyeahso/callbridge/internal/orchestrator"
	"github.com/soyeahso/callbridge/internal/session"
)

// maxRequestBody caps JSON bodies on the call management API.
const maxRequestBody = 64 * 1024

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.requireToken(s.handleHealthz))

	mux.HandleFunc("POST /calls", s.requireToken(s.handleCreateCall))
	mux.HandleFunc("GET /calls", s.requireToken(s.handleListCalls))
	mux.HandleFunc("GET /calls/{callId}", s.requireToken(s.handleGetCall))
	mux.HandleFunc("DELETE /calls/{callId}", s.requireToken(s.handleDeleteCall))

	mux.HandleFunc("POST /twilio/voice", s.requireSignature(s.handleVoice))
	mux.HandleFunc("POST /twilio/status", s.requireSignature(s.handleStatus))
	mux.HandleFunc("GET "+orchestrator.MediaStreamPath, s.orch.HandleUpgrade)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// requireToken guards the call management API with the bearer token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many failed auth attempts")
			return
		}

		res := Authorize(s.auth, r.Header.Get("Authorization"))
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", res.Reason).Msg("unauthorized API request")
			writeError(w, http.StatusUnauthorized, "unauthorized", res.Reason)
			return
		}
		next(w, r)
	}
}

// requireSignature parses the webhook form and, when enabled, checks the
// provider signature against the public URL the provider was given.
func (s *Server) requireSignature(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
			return
		}

		if s.signatures != nil {
			publicURL := strings.TrimRight(s.cfg.Telephony.PublicBaseURL, "/") + r.URL.RequestURI()
			if !s.signatures.Valid(r, publicURL) {
				s.log.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("webhook signature rejected")
				writeError(w, http.StatusForbidden, "invalid_signature", "webhook signature does not match")
				return
			}
		}
		next(w, r)
	}
}

// CreateCallRequest is the body of POST /calls.
type CreateCallRequest struct {
	To         string            `json:"to"`
	CallID     string            `json:"callId,omitempty"`
	BusinessID string            `json:"businessId"`
	AgentType  string            `json:"agentType,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req CreateCallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.CallID == "" {
		req.CallID = uuid.NewString()
	}

	call, err := s.orch.InitiateOutboundCall(r.Context(), req.To, req.CallID, req.BusinessID, orchestrator.CallOptions{
		AgentType: req.AgentType,
		Metadata:  req.Metadata,
	})
	if err != nil {
		status, code := classifyCallError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

// classifyCallError maps orchestrator errors onto HTTP statuses.
func classifyCallError(err error) (int, string) {
	var cfgErr *orchestrator.ConfigurationError
	var provErr *orchestrator.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "config_error"
	case errors.Is(err, orchestrator.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, orchestrator.ErrSessionExists):
		return http.StatusConflict, "conflict"
	case errors.As(err, &provErr):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	sessions := s.orch.Sessions()
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("callId")
	sess, ok := s.orch.Session(callID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no session for callId "+callID)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteCall(w http.ResponseWriter, r *http.Request) {
	s.orch.CleanupSession(r.PathValue("callId"))
	w.WriteHeader(http.StatusNoContent)
}

// handleVoice answers the provider's call-control webhook. Outbound calls
// carry the callId in the URL we handed the provider; anything else with a
// CallSid is a new inbound call.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callID := q.Get("callId")

	if callID == "" && r.PostForm.Get("CallSid") != "" {
		_, doc := s.orch.AcceptInboundCall(orchestrator.InboundCall{
			CallSID:    r.PostForm.Get("CallSid"),
			From:       r.PostForm.Get("From"),
			To:         r.PostForm.Get("To"),
			BusinessID: q.Get("businessId"),
			AgentType:  q.Get("agentType"),
		})
		writeXML(w, doc)
		return
	}

	writeXML(w, s.orch.CallControlResponse(callID))
}

// handleStatus folds a provider status callback into the session. Inbound
// calls were never handed a callback URL with our callId, so those are
// matched on CallSid.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	callSID := r.PostForm.Get("CallSid")
	callID := r.URL.Query().Get("callId")
	if callID == "" {
		id, ok := s.orch.CallIDForSID(callSID)
		if !ok {
			s.log.Debug().Str("callSid", callSID).Msg("status callback for untracked call")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		callID = id
	}

	duration, _ := strconv.Atoi(r.PostForm.Get("CallDuration"))
	s.orch.HandleCallStatusUpdate(callID, r.PostForm.Get("CallStatus"), orchestrator.StatusDetails{
		CallSID:         callSID,
		RecordingURL:    r.PostForm.Get("RecordingUrl"),
		DurationSeconds: duration,
	})
	w.WriteHeader(http.StatusNoContent)
}
