package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by health endpoints. The public endpoint only
// populates Status; /healthz fills in the rest.
type HealthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version,omitempty"`
	Sessions int            `json:"sessions,omitempty"`
	Uptime   string         `json:"uptime,omitempty"`
	Hooks    map[string]int `json:"hooks,omitempty"`
}

// ErrorShape is the JSON body of every error response.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleHealthz returns detailed health. It sits behind the API token.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Sessions: s.orch.Registry().Len(),
		Uptime:   s.uptime().Round(time.Second).String(),
	}
	if s.hooks != nil {
		health.Hooks = s.hooks.Summary()
	}
	writeJSON(w, http.StatusOK, health)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorShape{Code: code, Message: message})
}

func writeXML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
