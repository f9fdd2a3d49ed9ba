package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCollaborator struct {
	sent    []string
	edited  []string
	latest  string
	editErr error
}

func (f *fakeCollaborator) RoomID() string { return "room" }
func (f *fakeCollaborator) Send(ctx context.Context, content string) (string, error) {
	f.sent = append(f.sent, content)
	return "event-1", nil
}
func (f *fakeCollaborator) Edit(ctx context.Context, eventID, content string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, content)
	return nil
}
func (f *fakeCollaborator) Typing(ctx context.Context) error            { return nil }
func (f *fakeCollaborator) SendNotification(ctx context.Context, s string) error { return nil }
func (f *fakeCollaborator) LatestEventID(ctx context.Context) (string, error) {
	return f.latest, nil
}

func TestActiveRendering(t *testing.T) {
	m := New("")
	m.Initialize("add login")
	m.AddEntry("COMMAND", "npm test")
	m.UpdateLastEntry("all tests passed", true)

	content := m.Content()
	if !strings.Contains(content, "**🔄 Active Task**") {
		t.Fatalf("missing active header: %q", content)
	}
	if !strings.Contains(content, "**Task**: add login") {
		t.Fatalf("missing task line: %q", content)
	}
	if !strings.Contains(content, "npm test") || !strings.Contains(content, "all tests passed") {
		t.Fatalf("missing entry content: %q", content)
	}
}

func TestSquashedOmitsRunning(t *testing.T) {
	m := New("")
	m.Initialize("task")
	m.AddEntry("COMMAND", "still running")
	m.AddEntry("COMMAND", "done")
	m.UpdateLastEntry("ok", true)
	m.Squash()

	content := m.Content()
	if strings.Contains(content, "still running") {
		t.Fatalf("squashed view must omit running entries: %q", content)
	}
	if !strings.Contains(content, "done") {
		t.Fatalf("squashed view missing completed entry: %q", content)
	}
}

func TestFinalListsOnlySuccess(t *testing.T) {
	m := New("")
	m.Initialize("task")
	m.AddEntry("COMMAND", "ok-step")
	m.UpdateLastEntry("", true)
	m.AddEntry("COMMAND", "bad-step")
	m.UpdateLastEntry("", false)
	m.Finalize()

	content := m.Content()
	if !strings.Contains(content, "ok-step") {
		t.Fatalf("missing successful step: %q", content)
	}
	if strings.Contains(content, "bad-step") {
		t.Fatalf("final view must omit failed steps: %q", content)
	}
	if !strings.Contains(content, "**Completed**:") {
		t.Fatalf("missing completed footer: %q", content)
	}
}

func TestUpdateFeed_NoStoredID_SendsNew(t *testing.T) {
	m := New("")
	m.Initialize("task")
	c := &fakeCollaborator{}
	if err := m.UpdateFeed(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.sent) != 1 || m.FeedEventID() != "event-1" {
		t.Fatalf("expected a new send, got sent=%v id=%q", c.sent, m.FeedEventID())
	}
}

func TestUpdateFeed_BuriedBySomeoneElse_SendsNew(t *testing.T) {
	m := New("")
	m.Initialize("task")
	m.SetFeedEventID("old-id")
	c := &fakeCollaborator{latest: "someone-elses-message"}
	if err := m.UpdateFeed(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("expected a re-send when buried, got %v", c.sent)
	}
}

func TestUpdateFeed_StillOnTop_EditsInPlace(t *testing.T) {
	m := New("")
	m.Initialize("task")
	m.SetFeedEventID("current-id")
	c := &fakeCollaborator{latest: "current-id"}
	if err := m.UpdateFeed(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.edited) != 1 || len(c.sent) != 0 {
		t.Fatalf("expected edit-in-place, got sent=%v edited=%v", c.sent, c.edited)
	}
}

func TestUpdateFeed_EditFailureClearsID(t *testing.T) {
	m := New("")
	m.Initialize("task")
	m.SetFeedEventID("current-id")
	c := &fakeCollaborator{latest: "current-id", editErr: errors.New("message deleted")}
	if err := m.UpdateFeed(context.Background(), c); err == nil {
		t.Fatalf("expected edit error to propagate")
	}
	if m.FeedEventID() != "" {
		t.Fatalf("expected feed_event_id cleared on edit failure, got %q", m.FeedEventID())
	}
}
