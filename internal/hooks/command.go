package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/callbridge/internal/config"
)

// DefaultCommandTimeout bounds a hook command when its entry sets no timeout.
const DefaultCommandTimeout = 5 * time.Second

// CommandHandler returns a Handler that runs entry.Command through the shell
// with the JSON payload on stdin. CALLBRIDGE_EVENT holds the event name.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(os.Environ(), "CALLBRIDGE_EVENT="+p.Event)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("hook %q timed out after %s", entry.Command, timeout)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("hook %q exited %d: %s", entry.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

// configEntries maps each event to its hooks.* config list.
func configEntries(cfg config.HooksConfig) map[string][]config.HookEntry {
	return map[string][]config.HookEntry{
		EventCallInitiated:  cfg.CallInitiated,
		EventCallStreaming:  cfg.CallStreaming,
		EventCallCompleted:  cfg.CallCompleted,
		EventCallFailed:     cfg.CallFailed,
		EventSessionEvicted: cfg.SessionEvicted,
		EventGatewayStart:   cfg.GatewayStart,
		EventGatewayStop:    cfg.GatewayStop,
	}
}

// RegisterConfig wires every configured hook command to its event and
// returns how many were registered. Handlers are named "config:<event>:<index>".
func (m *Manager) RegisterConfig(cfg config.HooksConfig) int {
	n := 0
	for event, entries := range configEntries(cfg) {
		for i, entry := range entries {
			m.On(event, fmt.Sprintf("config:%s:%d", event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
