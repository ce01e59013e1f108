package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
// Missing Twilio credentials are not issues here: the server can run
// without them and outbound calls fail fast with a configuration error.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	validEnvs := []string{"development", "production"}
	if cfg.Environment != "" && !slices.Contains(validEnvs, cfg.Environment) {
		issues = append(issues, ValidationIssue{
			Path:    "environment",
			Message: fmt.Sprintf("must be one of %v, got %q", validEnvs, cfg.Environment),
		})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	// Telephony validation
	if base := cfg.Telephony.PublicBaseURL; base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			issues = append(issues, ValidationIssue{
				Path:    "telephony.publicBaseUrl",
				Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", base),
			})
		}
	}

	if n := cfg.Telephony.PhoneNumber; n != "" && !strings.HasPrefix(n, "+") {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.phoneNumber",
			Message: fmt.Sprintf("must be in E.164 format (+15551234567), got %q", n),
		})
	}

	if cfg.Telephony.RequestTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.requestTimeoutSeconds",
			Message: "must not be negative",
		})
	}

	validEvents := []string{"initiated", "ringing", "answered", "completed"}
	for _, ev := range cfg.Telephony.StatusCallbackEvents {
		if !slices.Contains(validEvents, ev) {
			issues = append(issues, ValidationIssue{
				Path:    "telephony.statusCallbackEvents",
				Message: fmt.Sprintf("must be one of %v, got %q", validEvents, ev),
			})
		}
	}

	if cfg.Telephony.ValidateSignatures && cfg.Telephony.AuthToken == "" {
		issues = append(issues, ValidationIssue{
			Path:    "telephony.validateSignatures",
			Message: "signature validation requires telephony.authToken",
		})
	}

	// Session validation
	if cfg.Session.CleanupIntervalSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.cleanupIntervalSeconds",
			Message: "must not be negative",
		})
	}
	if cfg.Session.TerminalTTLSeconds < 0 || cfg.Session.ActiveTTLSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session",
			Message: "TTLs must not be negative",
		})
	}
	if cfg.Session.TerminalTTLSeconds > 0 && cfg.Session.ActiveTTLSeconds > 0 &&
		cfg.Session.TerminalTTLSeconds > cfg.Session.ActiveTTLSeconds {
		issues = append(issues, ValidationIssue{
			Path:    "session.terminalTtlSeconds",
			Message: "terminal grace TTL should not exceed the active TTL",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Hook validation
	for name, entries := range map[string][]HookEntry{
		"hooks.callInitiated":  cfg.Hooks.CallInitiated,
		"hooks.callStreaming":  cfg.Hooks.CallStreaming,
		"hooks.callCompleted":  cfg.Hooks.CallCompleted,
		"hooks.callFailed":     cfg.Hooks.CallFailed,
		"hooks.sessionEvicted": cfg.Hooks.SessionEvicted,
		"hooks.gatewayStart":   cfg.Hooks.GatewayStart,
		"hooks.gatewayStop":    cfg.Hooks.GatewayStop,
	} {
		for _, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				issues = append(issues, ValidationIssue{
					Path:    name,
					Message: "command is required",
				})
			}
		}
	}

	return issues
}
