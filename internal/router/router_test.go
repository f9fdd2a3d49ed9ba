package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/forgecrew/taskloop/internal/chat"
	"github.com/forgecrew/taskloop/internal/engine"
	"github.com/forgecrew/taskloop/internal/errorpatterns"
	"github.com/forgecrew/taskloop/internal/providers"
	"github.com/forgecrew/taskloop/internal/sandbox"
	"github.com/forgecrew/taskloop/internal/state"
	"github.com/forgecrew/taskloop/internal/tools"
)

// scriptedProvider returns DONE immediately, enough for tests that only
// care about router-level dispatch rather than the engine loop itself.
type scriptedProvider struct{ response string }

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	resp := p.response
	if resp == "" {
		resp = "```bash\nDONE\n```"
	}
	return &providers.ChatResponse{Content: resp}, nil
}
func (p *scriptedProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}
func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "test" }

type fakeCollaborator struct {
	room          string
	sent          []string
	notifications []string
}

func (c *fakeCollaborator) RoomID() string { return c.room }
func (c *fakeCollaborator) Send(ctx context.Context, content string) (string, error) {
	c.sent = append(c.sent, content)
	return "evt-1", nil
}
func (c *fakeCollaborator) Edit(ctx context.Context, eventID, content string) error { return nil }
func (c *fakeCollaborator) Typing(ctx context.Context) error                       { return nil }
func (c *fakeCollaborator) SendNotification(ctx context.Context, content string) error {
	c.notifications = append(c.notifications, content)
	return nil
}
func (c *fakeCollaborator) LatestEventID(ctx context.Context) (string, error) { return "", nil }

var _ chat.Collaborator = (*fakeCollaborator)(nil)

func newTestRouter(t *testing.T) (*Router, string) {
	t.Helper()
	dir := t.TempDir()
	jail := sandbox.NewJailRoot(dir)
	executor := tools.New(jail)

	pr := providers.NewRouter(
		map[string]providers.AgentSpec{"developer": {Name: "developer", Provider: "test", Model: "test-model"}},
		map[string]providers.Provider{"test": &scriptedProvider{}},
	)
	store := state.New(filepath.Join(dir, "state.json"))
	eng := engine.New(pr, executor, store, errorpatterns.NewRegistry(), sandbox.CommandPolicy{Default: "allow"})

	return New(eng, store, dir, []string{"admin"}), dir
}

func TestRoute_NonCommandMessageIsNoOp(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-1"}

	if err := r.Route(context.Background(), collab, "just chatting", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collab.sent) != 0 || len(collab.notifications) != 0 {
		t.Fatalf("expected no reply to non-command chatter, got sent=%v notifications=%v", collab.sent, collab.notifications)
	}
}

func TestRoute_UnknownCommandRepliesWithHelp(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-2"}

	if err := r.Route(context.Background(), collab, ".bogus", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collab.notifications) != 1 {
		t.Fatalf("expected one unknown-command notification, got %v", collab.notifications)
	}
}

func TestRoute_NewWithNameCreatesProject(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-3"}

	if err := r.Route(context.Background(), collab, ".new widgets", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	room := r.State.Room("room-3")
	if room.CurrentProjectPath == "" {
		t.Fatalf("expected project path to be set after .new")
	}
	if room.TaskPhase != string(engine.PhaseNewProject) {
		t.Fatalf("expected phase new_project, got %q", room.TaskPhase)
	}
}

func TestRoute_NewWithoutNameStartsWizard(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-4"}

	if err := r.Route(context.Background(), collab, ".new", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	room := r.State.Room("room-4")
	if !room.Wizard.Active || room.Wizard.Mode != state.WizardModeProject || room.Wizard.Step != state.WizardStepProjectName {
		t.Fatalf("expected an active project wizard at ProjectName, got %+v", room.Wizard)
	}
}

func TestRoute_ProjectWizardFlowCreatesProject(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-5"}
	ctx := context.Background()

	mustRoute := func(msg string) {
		t.Helper()
		if err := r.Route(ctx, collab, msg, "alice"); err != nil {
			t.Fatalf("route(%q): %v", msg, err)
		}
	}

	mustRoute(".new")
	mustRoute("widgets")
	mustRoute("Build a thing that does widgets.")
	mustRoute(".ok")

	room := r.State.Room("room-5")
	if room.Wizard.Active {
		t.Fatalf("expected wizard to be cleared after finishing, got %+v", room.Wizard)
	}
	if room.CurrentProjectPath == "" {
		t.Fatalf("expected project to be created by the wizard")
	}
}

func TestRoute_TaskWizardCancel(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-6"}
	ctx := context.Background()

	if err := r.Route(ctx, collab, ".task", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	room := r.State.Room("room-6")
	if room.Wizard.Mode != state.WizardModeTask {
		t.Fatalf("expected task wizard active, got %+v", room.Wizard)
	}

	if err := r.Route(ctx, collab, ".cancel", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.Wizard.Active {
		t.Fatalf("expected wizard cancelled, got %+v", room.Wizard)
	}
}

func TestRoute_StopSetsRoomFlag(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-7"}

	if err := r.Route(context.Background(), collab, ".stop", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.State.Room("room-7").StopRequested {
		t.Fatalf("expected StopRequested to be set")
	}
}

func TestRoute_AdminShortcutDeniesNonAdmin(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-8"}

	if err := r.Route(context.Background(), collab, ",ls", "mallory"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collab.notifications) != 1 {
		t.Fatalf("expected a denial notification, got %v", collab.notifications)
	}
}

func TestRoute_AdminShortcutAllowsAllowlistedSender(t *testing.T) {
	r, _ := newTestRouter(t)
	collab := &fakeCollaborator{room: "room-9"}

	if err := r.Route(context.Background(), collab, ",echo hi", "Admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collab.sent) != 1 {
		t.Fatalf("expected admin command output sent back, got %v", collab.sent)
	}
}
