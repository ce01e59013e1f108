package gateway

import (
	"crypto/subtle"
	"os"
	"strings"

	"github.com/soyeahso/callbridge/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "none"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved API credentials.
type ResolvedAuth struct {
	Token string
}

// ResolveAuth resolves the API token from config and environment.
// Precedence: config value → env variable → empty.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("CALLBRIDGE_GATEWAY_TOKEN")
	}
	return auth
}

// Authorize checks an Authorization header against the resolved auth. With
// no token configured every request is allowed.
func Authorize(serverAuth ResolvedAuth, header string) AuthResult {
	if serverAuth.Token == "" {
		return AuthResult{OK: true, Method: "none"}
	}
	if header == "" {
		return AuthResult{OK: false, Reason: "no credentials provided"}
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return AuthResult{OK: false, Reason: "bearer token required"}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(token, serverAuth.Token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: "token"}
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
