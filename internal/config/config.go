package config

import (
	"fmt"
	"time"
)

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// DefaultStatusCallbackEvents are the Twilio call progress events requested
// for every outbound call.
var DefaultStatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Environment: "development",
		Gateway: GatewayConfig{
			Port: 8787,
			Bind: "loopback",
		},
		Telephony: TelephonyConfig{
			RequestTimeoutSeconds: 30,
			StatusCallbackEvents:  append([]string(nil), DefaultStatusCallbackEvents...),
			FallbackMessage:       "We're sorry, we could not connect your call. Please try again later. Goodbye.",
		},
		Session: SessionConfig{
			CleanupIntervalSeconds: 60,
			TerminalTTLSeconds:     300,
			ActiveTTLSeconds:       7200,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// RequestTimeout returns the outbound provider request timeout.
func (t TelephonyConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSeconds) * time.Second
}

// CleanupInterval returns the sweep interval.
func (s SessionConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalSeconds) * time.Second
}

// TerminalTTL returns the grace period for completed/failed sessions.
func (s SessionConfig) TerminalTTL() time.Duration {
	return time.Duration(s.TerminalTTLSeconds) * time.Second
}

// ActiveTTL returns the lifetime bound for sessions that never finish.
func (s SessionConfig) ActiveTTL() time.Duration {
	return time.Duration(s.ActiveTTLSeconds) * time.Second
}
