package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgecrew/taskloop/internal/state"
)

func TestNew_AppliesDefaults(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "state.json"))
	s := New(store, "", 0)
	if s.cronExpr != "*/5 * * * *" {
		t.Fatalf("expected default cron expr, got %q", s.cronExpr)
	}
	if s.idleMaxAge != 30*time.Minute {
		t.Fatalf("expected default idle max age of 30m, got %v", s.idleMaxAge)
	}
}

func TestStartStop_IsIdempotentAndClean(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "state.json"))
	s := New(store, "* * * * *", 30)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // second Start before Stop must be a no-op, not a double goroutine
	s.Stop()
	s.Stop() // Stop after Stop must not block or panic
}

func TestTick_SweepsDueCooldownsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.New(path)
	room := store.Room("room-1")
	room.ModelCooldowns["developer:test-model"] = time.Now().Add(-1 * time.Hour).Unix()
	room.LastRequestTimes["developer"] = time.Now().Add(-2 * time.Hour).Unix()

	s := New(store, "* * * * *", 30) // every minute, always due
	s.tick()

	if len(room.ModelCooldowns) != 0 {
		t.Fatalf("expected stale cooldown to be expired, got %+v", room.ModelCooldowns)
	}
	if len(room.LastRequestTimes) != 0 {
		t.Fatalf("expected stale last-request time to be cleared, got %+v", room.LastRequestTimes)
	}

	reloaded, err := state.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Room("room-1").ModelCooldowns) != 0 {
		t.Fatalf("expected swept state to be persisted to disk")
	}
}

func TestTick_LeavesFreshCooldownsAlone(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "state.json"))
	room := store.Room("room-1")
	room.ModelCooldowns["developer:test-model"] = time.Now().Unix()

	s := New(store, "* * * * *", 30)
	s.tick()

	if len(room.ModelCooldowns) != 1 {
		t.Fatalf("expected fresh cooldown to survive a sweep, got %+v", room.ModelCooldowns)
	}
}
