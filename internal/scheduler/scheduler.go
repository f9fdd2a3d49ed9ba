// Package scheduler runs the control plane's background heartbeat: a
// cron-driven sweep that expires stale per-room model cooldowns and idle
// last-request timestamps in internal/state, so rooms that hit a provider
// rate limit hours ago don't keep silently avoiding a model that's long
// since recovered. Lifecycle (Start/Stop via a cancellable goroutine) is
// grounded on the heartbeat writer pattern in dohr-michael-ozzie's
// internal/heartbeat package; the cron cadence check uses the teacher's
// own adhocore/gronx dependency, which goclaw's go.mod already carries
// for its own (unseen in this pack) cron job system.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/forgecrew/taskloop/internal/state"
)

const (
	defaultCooldownMaxAge = 15 * time.Minute
	tickInterval          = time.Minute
)

// Scheduler owns the heartbeat goroutine. The zero value is not usable;
// construct with New.
type Scheduler struct {
	store           *state.Store
	cronExpr        string
	idleMaxAge      time.Duration
	cooldownMaxAge  time.Duration
	gronx           gronx.Gronx

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler. cronExpr is a standard 5-field cron expression
// ("*/5 * * * *"); idleMinutes is how long a room must go unused before
// its last-request timestamps are cleared. A zero cronExpr defaults to
// every 5 minutes and a zero idleMinutes to 30, matching
// SchedulerConfig's documented defaults.
func New(store *state.Store, cronExpr string, idleMinutes int) *Scheduler {
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	if idleMinutes <= 0 {
		idleMinutes = 30
	}
	return &Scheduler{
		store:          store,
		cronExpr:       cronExpr,
		idleMaxAge:     time.Duration(idleMinutes) * time.Minute,
		cooldownMaxAge: defaultCooldownMaxAge,
	}
}

// Start begins the heartbeat loop in a background goroutine. Calling
// Start twice without an intervening Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(runCtx)
}

// Stop cancels the heartbeat loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// loop wakes every tickInterval and fires the sweep whenever the cron
// expression is due for the current minute. A minute-granularity ticker
// is enough resolution for any cron expression this config supports.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now()
	due, err := s.gronx.IsDue(s.cronExpr, now)
	if err != nil {
		slog.Error("scheduler: invalid cron expression", "expr", s.cronExpr, "error", err)
		return
	}
	if !due {
		return
	}

	touched := s.store.SweepStaleCooldowns(now.Unix(), int64(s.cooldownMaxAge.Seconds()), int64(s.idleMaxAge.Seconds()))
	if touched > 0 {
		if err := s.store.Save(); err != nil {
			slog.Error("scheduler: failed to persist swept state", "error", err)
			return
		}
		slog.Info("scheduler: swept stale room cooldowns", "rooms_touched", touched)
	}
}
