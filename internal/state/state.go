// Package state implements the State Store (spec.md §4.6): a single
// JSON file mapping room id to RoomState, persisted atomically and
// sanitized of transient/resumption-unsafe fields on load.
//
// Grounded primarily on the teacher's internal/sessions/manager.go
// atomic-write pattern (temp file + Sync + rename), generalized from
// per-session records to per-room records, and on
// original_source/src/application/state.rs for the RoomState/WizardState
// shape and original_source/src/core/state/project.rs's load-time
// sanitize precedent.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// WizardMode selects which multi-step wizard a room is running.
type WizardMode string

const (
	WizardModeProject WizardMode = "project"
	WizardModeTask    WizardMode = "task"
)

// WizardStep is one step of the active wizard.
type WizardStep string

const (
	WizardStepProjectName   WizardStep = "project_name"
	WizardStepProjectType   WizardStep = "project_type"
	WizardStepStack         WizardStep = "stack"
	WizardStepDescription   WizardStep = "description"
	WizardStepConfirmation  WizardStep = "confirmation"
	WizardStepTaskDescription WizardStep = "task_description"
)

// WizardState tracks an in-progress onboarding/task wizard for a room.
type WizardState struct {
	Active bool              `json:"active"`
	Mode   WizardMode        `json:"mode,omitempty"`
	Step   WizardStep        `json:"step,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	Buffer string            `json:"buffer,omitempty"`
}

// RoomState is the persisted state of a single chat room.
type RoomState struct {
	CurrentProjectPath string `json:"current_project_path,omitempty"`
	CurrentWorkingDir  string `json:"current_working_dir,omitempty"`
	ActiveTask         string `json:"active_task,omitempty"`
	ActiveAgent        string `json:"active_agent,omitempty"`
	ActiveModel        string `json:"active_model,omitempty"`

	// StopRequested is run-scoped: it describes a task execution that
	// cannot possibly still be in flight once the process restarts, so
	// sanitize-on-load always resets it rather than resuming into a
	// phantom in-progress state nothing is driving anymore. The task's
	// cancellation handle itself is never persisted at all (there is no
	// field for it), matching the prototype's _abort_handle, which
	// carries #[serde(skip)].
	StopRequested bool `json:"stop_requested,omitempty"`

	// TaskPhase drives which prompt template the engine composes next
	// turn ("new_project" | "planning" | "execution" | "conversational").
	// Persisted so a restarted process resumes a room mid-task in the
	// same phase rather than defaulting back to Conversational.
	TaskPhase string `json:"task_phase,omitempty"`

	LastModelList    []string `json:"last_model_list,omitempty"`
	LastAgentList    []string `json:"last_agent_list,omitempty"`
	IsTaskCompleted  bool     `json:"is_task_completed,omitempty"`

	Wizard WizardState `json:"wizard"`

	ModelCooldowns   map[string]int64 `json:"model_cooldowns,omitempty"`   // "agent:model" -> unix seconds
	LastRequestTimes map[string]int64 `json:"last_request_times,omitempty"` // "agent" -> unix seconds

	PendingCommand       string `json:"pending_command,omitempty"`
	PendingAgentResponse string `json:"pending_agent_response,omitempty"`
	LastCommand          string `json:"last_command,omitempty"`
	CommandRetryCount    uint32 `json:"command_retry_count,omitempty"`

	LastMessageEventID string `json:"last_message_event_id,omitempty"`
	FeedEventID        string `json:"feed_event_id,omitempty"`
}

func newRoomState() *RoomState {
	return &RoomState{
		ModelCooldowns:   make(map[string]int64),
		LastRequestTimes: make(map[string]int64),
	}
}

// sanitize clears fields that must never survive a process restart,
// mirroring BotState::load's wizard reset and extending it to
// stop_requested: an active wizard mid-flow (the user would otherwise be
// silently replying into a dead state machine) and a stale stop request
// (there is no task left to stop) are both artifacts of the run that
// just ended, not state to resume into.
func (r *RoomState) sanitize() {
	r.Wizard = WizardState{}
	r.StopRequested = false
}

// Store owns the full room-id -> RoomState map and its on-disk file.
type Store struct {
	mu    sync.Mutex
	path  string
	Rooms map[string]*RoomState `json:"rooms"`
}

// New creates an empty store bound to path (used when no file exists yet).
func New(path string) *Store {
	return &Store{path: path, Rooms: make(map[string]*RoomState)}
}

// Load reads the store from path, sanitizing every room's transient
// fields. A missing file is not an error — it returns a fresh store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path), nil
		}
		return nil, fmt.Errorf("read state store: %w", err)
	}

	var onDisk struct {
		Rooms map[string]*RoomState `json:"rooms"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("parse state store: %w", err)
	}
	if onDisk.Rooms == nil {
		onDisk.Rooms = make(map[string]*RoomState)
	}
	for _, room := range onDisk.Rooms {
		if room.ModelCooldowns == nil {
			room.ModelCooldowns = make(map[string]int64)
		}
		if room.LastRequestTimes == nil {
			room.LastRequestTimes = make(map[string]int64)
		}
		room.sanitize()
	}
	return &Store{path: path, Rooms: onDisk.Rooms}, nil
}

// Room returns the state for roomID, creating it if absent.
func (s *Store) Room(roomID string) *RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Rooms[roomID]
	if !ok {
		r = newRoomState()
		s.Rooms[roomID] = r
	}
	return r
}

// NewTaskID generates a correlation id for a newly started task run.
func NewTaskID() string {
	return uuid.NewString()
}

// SnapshotRooms marshals every room individually, for a persistence
// mirror (internal/store/postgres or internal/store/sqlite) that keys
// on room id rather than writing the whole store as one file the way
// Save does.
func (s *Store) SnapshotRooms() (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte, len(s.Rooms))
	for id, room := range s.Rooms {
		data, err := json.Marshal(room)
		if err != nil {
			return nil, fmt.Errorf("marshal room %s: %w", id, err)
		}
		out[id] = data
	}
	return out, nil
}

// Save persists the store atomically: write to a temp file in the same
// directory, fsync, then rename over the destination — matching
// sessions.Manager.Save so a crash mid-write can never leave a
// truncated state.json behind.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(struct {
		Rooms map[string]*RoomState `json:"rooms"`
	}{Rooms: s.Rooms}, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal state store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	cleanup = false
	return nil
}

// SweepStaleCooldowns expires model_cooldowns entries older than
// cooldownMaxAge and clears last_request_times entries for rooms that have
// gone idle longer than idleMaxAge, so a room that hit a rate limit hours
// ago doesn't keep routing around a model that's long since recovered.
// Returns the number of rooms touched. Called periodically by
// internal/scheduler rather than on every request, since the cooldown
// ledger is read far more often than it needs to be pruned.
func (s *Store) SweepStaleCooldowns(now int64, cooldownMaxAge, idleMaxAge int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	for _, room := range s.Rooms {
		roomTouched := false
		for key, ts := range room.ModelCooldowns {
			if now-ts > cooldownMaxAge {
				delete(room.ModelCooldowns, key)
				roomTouched = true
			}
		}
		for key, ts := range room.LastRequestTimes {
			if now-ts > idleMaxAge {
				delete(room.LastRequestTimes, key)
				roomTouched = true
			}
		}
		if roomTouched {
			touched++
		}
	}
	return touched
}
