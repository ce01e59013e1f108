package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/callbridge/internal/config"
	"github.com/soyeahso/callbridge/internal/gateway"
	"github.com/soyeahso/callbridge/internal/hooks"
	"github.com/soyeahso/callbridge/internal/logging"
	"github.com/soyeahso/callbridge/internal/mediastream"
	"github.com/soyeahso/callbridge/internal/orchestrator"
	"github.com/soyeahso/callbridge/internal/telephony"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		bind       string
		production bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the callbridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if production {
				cfg.Environment = "production"
			}

			if err := checkConfig(&cfg); err != nil {
				return err
			}

			runLog, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer runLog.Close()

			hookMgr := hooks.NewManager(runLog)
			if n := hookMgr.RegisterConfig(cfg.Hooks); n > 0 {
				ev := runLog.Info().Int("hooks", n)
				for event, count := range hookMgr.Summary() {
					ev = ev.Int(event, count)
				}
				ev.Msg("command hooks registered")
			}

			calls, err := newCallCreator(cfg, runLog)
			if err != nil {
				return err
			}

			orch := orchestrator.New(cfg, calls, runLog, orchestrator.WithHooks(hookMgr))
			defer orch.Close()
			orch.AttachBridge(mediastream.NewHandler(orch, mediastream.DiscardSink{}, runLog))

			srv := gateway.New(cfg, orch, runLog, gateway.WithHooks(hookMgr))

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().BoolVar(&production, "production", false, "enforce the media stream origin allow-list")

	return cmd
}

// checkConfig logs every validation issue and fails if there were any.
func checkConfig(cfg *config.Config) error {
	issues := config.Validate(cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return nil
}

// newCallCreator returns the Twilio client, or nil when no credentials are
// configured. The server still answers inbound calls without one.
func newCallCreator(cfg config.Config, l *logging.Logger) (telephony.CallCreator, error) {
	if cfg.Telephony.AccountSID == "" && cfg.Telephony.AuthToken == "" {
		l.Warn().Msg("no Twilio credentials configured, outbound calls are disabled")
		return nil, nil
	}
	caller, err := telephony.NewTwilioCaller(telephony.TwilioOptions{
		AccountSID: cfg.Telephony.AccountSID,
		AuthToken:  cfg.Telephony.AuthToken,
		Timeout:    cfg.Telephony.RequestTimeout(),
	}, l)
	if err != nil {
		return nil, fmt.Errorf("creating Twilio client: %w", err)
	}
	return caller, nil
}
