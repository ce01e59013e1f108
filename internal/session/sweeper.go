package session

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/callbridge/internal/logging"
)

// SweeperConfig controls session eviction.
type SweeperConfig struct {
	// Interval between sweeps. Default: 1 minute.
	Interval time.Duration

	// TerminalTTL is the grace period for completed/failed sessions.
	// Default: 5 minutes.
	TerminalTTL time.Duration

	// ActiveTTL bounds sessions that never reach a terminal state,
	// e.g. because a webhook was lost. Default: 2 hours.
	ActiveTTL time.Duration
}

// Sweeper periodically evicts abandoned sessions from a Registry.
type Sweeper struct {
	cfg      SweeperConfig
	registry *Registry
	log      *logging.Logger
	onEvict  func(Session)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. onEvict may be nil.
func NewSweeper(cfg SweeperConfig, registry *Registry, log *logging.Logger, onEvict func(Session)) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TerminalTTL <= 0 {
		cfg.TerminalTTL = 5 * time.Minute
	}
	if cfg.ActiveTTL <= 0 {
		cfg.ActiveTTL = 2 * time.Hour
	}
	return &Sweeper{
		cfg:      cfg,
		registry: registry,
		log:      log.Sub("sweeper"),
		onEvict:  onEvict,
	}
}

// Config returns the effective configuration.
func (w *Sweeper) Config() SweeperConfig {
	return w.cfg
}

// Start launches the background sweep loop. Calling Start on a running
// sweeper is a no-op.
func (w *Sweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, w.done)

	w.log.Debug().
		Dur("interval", w.cfg.Interval).
		Dur("terminalTtl", w.cfg.TerminalTTL).
		Dur("activeTtl", w.cfg.ActiveTTL).
		Msg("session sweeper started")
}

// Stop halts the loop and waits for it to exit. Safe to call more than once.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.log.Debug().Msg("session sweeper stopped")
}

func (w *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(w.registry.Now())
		}
	}
}

// Expired reports whether s has outlived the TTL for its status at now.
func (w *Sweeper) Expired(s Session, now time.Time) bool {
	ttl := w.cfg.ActiveTTL
	if IsTerminal(s.Status) {
		ttl = w.cfg.TerminalTTL
	}
	return now.Sub(s.LastUpdatedAt) > ttl
}

// Sweep runs one eviction pass and returns the number of sessions removed.
// Each removal is a separate single-key operation that re-checks expiry, so
// a session touched after the snapshot survives.
func (w *Sweeper) Sweep(now time.Time) int {
	evicted := 0
	for _, s := range w.registry.List() {
		if !w.Expired(s, now) {
			continue
		}
		var removed Session
		ok := w.registry.DeleteIf(s.CallID, func(cur Session) bool {
			removed = cur
			return w.Expired(cur, now)
		})
		if !ok {
			continue
		}
		evicted++

		w.log.Info().
			Str("callId", removed.CallID).
			Str("callSid", removed.CallSID).
			Str("status", string(removed.Status)).
			Dur("idle", now.Sub(removed.LastUpdatedAt)).
			Msg("evicted session")

		if w.onEvict != nil {
			w.onEvict(removed)
		}
	}
	return evicted
}
