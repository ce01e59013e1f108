package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Telephony.AccountSID = expandEnvVars(cfg.Telephony.AccountSID)
	cfg.Telephony.AuthToken = expandEnvVars(cfg.Telephony.AuthToken)
	cfg.Telephony.PhoneNumber = expandEnvVars(cfg.Telephony.PhoneNumber)
	cfg.Telephony.PublicBaseURL = expandEnvVars(cfg.Telephony.PublicBaseURL)
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Environment == "" {
		cfg.Environment = def.Environment
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Telephony.RequestTimeoutSeconds == 0 {
		cfg.Telephony.RequestTimeoutSeconds = def.Telephony.RequestTimeoutSeconds
	}
	if len(cfg.Telephony.StatusCallbackEvents) == 0 {
		cfg.Telephony.StatusCallbackEvents = def.Telephony.StatusCallbackEvents
	}
	if cfg.Telephony.FallbackMessage == "" {
		cfg.Telephony.FallbackMessage = def.Telephony.FallbackMessage
	}
	if cfg.Session.CleanupIntervalSeconds == 0 {
		cfg.Session.CleanupIntervalSeconds = def.Session.CleanupIntervalSeconds
	}
	if cfg.Session.TerminalTTLSeconds == 0 {
		cfg.Session.TerminalTTLSeconds = def.Session.TerminalTTLSeconds
	}
	if cfg.Session.ActiveTTLSeconds == 0 {
		cfg.Session.ActiveTTLSeconds = def.Session.ActiveTTLSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads CALLBRIDGE_* environment variables and overrides
// config values. TWILIO_* variables only fill credentials left empty.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CALLBRIDGE_ENV"); v != "" {
		cfg.Environment = strings.ToLower(v)
	}
	if v := os.Getenv("CALLBRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("CALLBRIDGE_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("CALLBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CALLBRIDGE_PUBLIC_BASE_URL"); v != "" {
		cfg.Telephony.PublicBaseURL = v
	}
	if v := os.Getenv("CALLBRIDGE_API_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}

	if cfg.Telephony.AccountSID == "" {
		cfg.Telephony.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.Telephony.AuthToken == "" {
		cfg.Telephony.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.Telephony.PhoneNumber == "" {
		cfg.Telephony.PhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
	}
}
