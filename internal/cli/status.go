package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/soyeahso/callbridge/internal/config"
	"github.com/soyeahso/callbridge/internal/gateway"
	"github.com/soyeahso/callbridge/internal/hooks"
	"github.com/soyeahso/callbridge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show callbridge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("callbridge %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Env:     %s\n", paths.Env)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Mode:    %s\n", cfg.Environment)
			fmt.Printf("Gateway: port=%d bind=%s tls=%v token=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled, cfg.Gateway.Auth.Token != "")

			tel := cfg.Telephony
			fmt.Printf("Twilio:  account=%s number=%s signatures=%v\n",
				mask(tel.AccountSID), orNone(tel.PhoneNumber), tel.ValidateSignatures)
			fmt.Printf("Webhook: %s\n", orNone(tel.PublicBaseURL))
			if len(tel.MediaAllowedHosts) > 0 {
				fmt.Printf("Media:   extra allowed hosts %s\n", strings.Join(tel.MediaAllowedHosts, ", "))
			}
			fmt.Printf("Session: sweep=%s terminalTtl=%s activeTtl=%s\n",
				cfg.Session.CleanupInterval(), cfg.Session.TerminalTTL(), cfg.Session.ActiveTTL())

			if health, err := fetchHealth(cfg); err == nil {
				fmt.Printf("Server:  running %s, %d session(s), up %s\n", health.Version, health.Sessions, health.Uptime)
				for _, event := range hooks.AllEvents {
					if n := health.Hooks[event]; n > 0 {
						fmt.Printf("Hook:    %s x%d\n", event, n)
					}
				}
			} else {
				fmt.Printf("Server:  not reachable (%v)\n", err)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

// fetchHealth asks a locally running server for its detailed health.
func fetchHealth(cfg config.Config) (gateway.HealthResponse, error) {
	var health gateway.HealthResponse

	req, err := http.NewRequest(http.MethodGet, gatewayURL(cfg)+"/healthz", nil)
	if err != nil {
		return health, err
	}
	if token := gateway.ResolveAuth(cfg.Gateway.Auth).Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return health, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("healthz returned %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	return health, err
}

func mask(s string) string {
	if s == "" {
		return "(none)"
	}
	if len(s) <= 6 {
		return "***"
	}
	return s[:4] + "…" + s[len(s)-2:]
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
