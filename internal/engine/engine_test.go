package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forgecrew/taskloop/internal/chat"
	"github.com/forgecrew/taskloop/internal/errorpatterns"
	"github.com/forgecrew/taskloop/internal/providers"
	"github.com/forgecrew/taskloop/internal/sandbox"
	"github.com/forgecrew/taskloop/internal/state"
	"github.com/forgecrew/taskloop/internal/tools"
)

// scriptedProvider returns one canned response per call, in order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.responses) {
		return &providers.ChatResponse{Content: "```bash\nDONE\n```"}, nil
	}
	r := p.responses[p.calls]
	p.calls++
	return &providers.ChatResponse{Content: r}, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}
func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "test" }

// fakeCollaborator is a minimal chat.Collaborator test double.
type fakeCollaborator struct {
	room         string
	sent         []string
	notifications []string
	latest       string
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
func (c *fakeCollaborator) LatestEventID(ctx context.Context) (string, error) { return c.latest, nil }

func newTestEngine(t *testing.T, responses []string) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	jail := sandbox.NewJailRoot(dir)
	executor := tools.New(jail)

	router := providers.NewRouter(
		map[string]providers.AgentSpec{"developer": {Name: "developer", Provider: "test", Model: "test-model"}},
		map[string]providers.Provider{"test": &scriptedProvider{responses: responses}},
	)

	store := state.New(filepath.Join(dir, "state.json"))
	policy := sandbox.CommandPolicy{Default: "allow"}

	return New(router, executor, store, errorpatterns.NewRegistry(), policy), dir
}

func TestRunTask_ConversationalReplyHasNoActions(t *testing.T) {
	e, dir := newTestEngine(t, []string{"Sure, here's the answer: 42."})
	collab := &fakeCollaborator{room: "room-1"}

	out, err := e.RunTask(context.Background(), collab, "what is the answer?", "", "developer", dir, PhaseConversational, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Sure, here's the answer: 42." {
		t.Fatalf("unexpected final message: %q", out)
	}
}

func TestRunTask_ExecutionDoneFinalizesFeed(t *testing.T) {
	e, dir := newTestEngine(t, []string{"```bash\nDONE\n```"})
	collab := &fakeCollaborator{room: "room-2"}

	out, err := e.RunTask(context.Background(), collab, "implement the feature", "", "developer", dir, PhaseExecution, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Task Completed." {
		t.Fatalf("unexpected final message: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "feed.md")); err != nil {
		t.Fatalf("expected feed.md to be persisted: %v", err)
	}
}

func TestRunTask_PlanningWriteRestrictedToDocsOnly(t *testing.T) {
	resp := "```markdown\nWRITE_FILE: main.go\npackage main\n```\n```bash\nDONE\n```"
	e, dir := newTestEngine(t, []string{resp})
	collab := &fakeCollaborator{room: "room-3"}

	_, err := e.RunTask(context.Background(), collab, "plan it", "", "developer", dir, PhasePlanning, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "main.go")); statErr == nil {
		t.Fatalf("expected main.go write to be blocked during Planning")
	}
}

func TestRunTask_ShellCommandAskPolicyWaitsForApproval(t *testing.T) {
	e, dir := newTestEngine(t, []string{"```bash\necho hi\n```", "```bash\nDONE\n```"})
	e.Policy = sandbox.CommandPolicy{Default: "ask"}
	collab := &fakeCollaborator{room: "room-4"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := e.RunTask(context.Background(), collab, "run a command", "", "developer", dir, PhaseExecution, "")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if out != "Task Completed." {
			t.Errorf("unexpected final message: %q", out)
		}
	}()

	var resolved bool
	for i := 0; i < 200 && !resolved; i++ {
		resolved = e.Resolve(collab.room, true)
		if !resolved {
			time.Sleep(time.Millisecond)
		}
	}
	if !resolved {
		t.Fatalf("approval rendezvous never became pending")
	}
	<-done
}

func TestRunTask_StopRequestedEndsLoop(t *testing.T) {
	e, dir := newTestEngine(t, []string{"```bash\necho should-not-run\n```"})
	collab := &fakeCollaborator{room: "room-5"}
	e.State.Room("room-5").StopRequested = true

	out, err := e.RunTask(context.Background(), collab, "do something", "", "developer", dir, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty result on stop, got %q", out)
	}
	found := false
	for _, n := range collab.notifications {
		if n == "🛑 **Task Stopped by User**" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stop notification, got %+v", collab.notifications)
	}
}

var _ chat.Collaborator = (*fakeCollaborator)(nil)
