package state

import (
	"path/filepath"
	"testing"
)

func TestRoomCreatesOnDemand(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))
	r := s.Room("room-1")
	if r == nil {
		t.Fatal("expected a room state")
	}
	if r.ModelCooldowns == nil || r.LastRequestTimes == nil {
		t.Fatal("expected initialized maps")
	}
	if s.Room("room-1") != r {
		t.Fatal("expected the same room state on a second call")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path)
	r := s.Room("room-1")
	r.ActiveTask = "build a thing"
	r.ActiveAgent = "coder"
	r.FeedEventID = "evt-123"
	r.ModelCooldowns["coder:claude"] = 1700000000

	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded.Room("room-1")
	if got.ActiveTask != "build a thing" || got.ActiveAgent != "coder" || got.FeedEventID != "evt-123" {
		t.Fatalf("unexpected round-tripped state: %+v", got)
	}
	if got.ModelCooldowns["coder:claude"] != 1700000000 {
		t.Fatalf("expected cooldown to round-trip, got %v", got.ModelCooldowns)
	}
}

func TestLoadSanitizesWizardAndStopRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := New(path)
	r := s.Room("room-1")
	r.StopRequested = true
	r.Wizard = WizardState{
		Active: true,
		Mode:   WizardModeProject,
		Step:   WizardStepDescription,
		Data:   map[string]string{"name": "foo"},
		Buffer: "partial input",
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded.Room("room-1")
	if got.StopRequested {
		t.Fatal("expected stop_requested to be cleared on load")
	}
	if got.Wizard.Active || got.Wizard.Step != "" || len(got.Wizard.Data) != 0 || got.Wizard.Buffer != "" {
		t.Fatalf("expected wizard state cleared on load, got %+v", got.Wizard)
	}
}

func TestLoadMissingFileReturnsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Rooms) != 0 {
		t.Fatalf("expected an empty store, got %d rooms", len(s.Rooms))
	}
}

func TestNewTaskIDIsUnique(t *testing.T) {
	a, b := NewTaskID(), NewTaskID()
	if a == b {
		t.Fatal("expected distinct task ids")
	}
}
