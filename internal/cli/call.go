package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/soyeahso/callbridge/internal/config"
	"github.com/soyeahso/callbridge/internal/gateway"
	"github.com/soyeahso/callbridge/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place and inspect calls",
	}

	cmd.AddCommand(newCallDialCmd())
	return cmd
}

func newCallDialCmd() *cobra.Command {
	var (
		server     string
		callID     string
		businessID string
		agentType  string
		meta       []string
	)

	cmd := &cobra.Command{
		Use:   "dial <number>",
		Short: "Place an outbound call through the running server",
		Long: "Ask a running callbridge server to place an outbound call. The server owns\n" +
			"the session, so it can answer the provider's webhooks for the call.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			metadata, err := parseMeta(meta)
			if err != nil {
				return err
			}

			if server == "" {
				server = gatewayURL(cfg)
			}
			client := &http.Client{Timeout: cfg.Telephony.RequestTimeout() + 5*time.Second}

			res, err := dialCall(cmd.Context(), client, server, gateway.ResolveAuth(cfg.Gateway.Auth).Token, gateway.CreateCallRequest{
				To:         args[0],
				CallID:     callID,
				BusinessID: businessID,
				AgentType:  agentType,
				Metadata:   metadata,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server base URL (default: local gateway from config)")
	cmd.Flags().StringVar(&callID, "call-id", "", "correlation id (default: assigned by the server)")
	cmd.Flags().StringVar(&businessID, "business-id", "", "business the call is made for")
	cmd.Flags().StringVar(&agentType, "agent-type", "", "AI agent persona to attach")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata key=value (repeatable)")

	return cmd
}

// gatewayURL is the base URL of the gateway on this host.
func gatewayURL(cfg config.Config) string {
	scheme := "http"
	if cfg.Gateway.TLS.Enabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://127.0.0.1:%d", scheme, cfg.Gateway.Port)
}

// dialCall posts req to the server's call API.
func dialCall(ctx context.Context, client *http.Client, baseURL, token string, req gateway.CreateCallRequest) (orchestrator.OutboundCall, error) {
	var call orchestrator.OutboundCall

	body, err := json.Marshal(req)
	if err != nil {
		return call, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/calls", bytes.NewReader(body))
	if err != nil {
		return call, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return call, fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var shape gateway.ErrorShape
		if json.NewDecoder(resp.Body).Decode(&shape) != nil || shape.Code == "" {
			return call, fmt.Errorf("server returned %s", resp.Status)
		}
		return call, fmt.Errorf("server returned %s: %s: %s", resp.Status, shape.Code, shape.Message)
	}

	err = json.NewDecoder(resp.Body).Decode(&call)
	return call, err
}

// parseMeta turns key=value flags into a map.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
