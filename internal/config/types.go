package config

// Config is the root configuration for callbridge.
type Config struct {
	Environment string          `yaml:"environment,omitempty"` // "development" | "production"
	Gateway     GatewayConfig   `yaml:"gateway,omitempty"`
	Telephony   TelephonyConfig `yaml:"telephony,omitempty"`
	Session     SessionConfig   `yaml:"session,omitempty"`
	Logging     LoggingConfig   `yaml:"logging,omitempty"`
	Hooks       HooksConfig     `yaml:"hooks,omitempty"`
}

// Production reports whether the media WebSocket origin gate is enforced.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"` // CORS for the /calls API
}

// GatewayAuth protects the call management API. Twilio webhooks and the
// media stream are not covered; they use signature validation and the
// origin gate instead.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// TelephonyConfig configures the Twilio account and webhook URLs.
type TelephonyConfig struct {
	AccountSID            string   `yaml:"accountSid,omitempty"`
	AuthToken             string   `yaml:"authToken,omitempty"`
	PhoneNumber           string   `yaml:"phoneNumber,omitempty"`   // outbound caller id, E.164
	PublicBaseURL         string   `yaml:"publicBaseUrl,omitempty"` // https://host reachable by Twilio
	RequestTimeoutSeconds int      `yaml:"requestTimeoutSeconds,omitempty"`
	StatusCallbackEvents  []string `yaml:"statusCallbackEvents,omitempty"`
	MediaAllowedHosts     []string `yaml:"mediaAllowedHosts,omitempty"` // appended to the built-in allow-list
	ValidateSignatures    bool     `yaml:"validateSignatures,omitempty"`
	FallbackMessage       string   `yaml:"fallbackMessage,omitempty"`
}

// SessionConfig controls session garbage collection.
type SessionConfig struct {
	CleanupIntervalSeconds int `yaml:"cleanupIntervalSeconds,omitempty"`
	TerminalTTLSeconds     int `yaml:"terminalTtlSeconds,omitempty"`
	ActiveTTLSeconds       int `yaml:"activeTtlSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
	MaxSizeMB    int    `yaml:"maxSizeMb,omitempty"`
	MaxBackups   int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays   int    `yaml:"maxAgeDays,omitempty"`
}

// HooksConfig defines shell commands run on call lifecycle events.
type HooksConfig struct {
	CallInitiated  []HookEntry `yaml:"callInitiated,omitempty"`
	CallStreaming  []HookEntry `yaml:"callStreaming,omitempty"`
	CallCompleted  []HookEntry `yaml:"callCompleted,omitempty"`
	CallFailed     []HookEntry `yaml:"callFailed,omitempty"`
	SessionEvicted []HookEntry `yaml:"sessionEvicted,omitempty"`
	GatewayStart   []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop    []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
