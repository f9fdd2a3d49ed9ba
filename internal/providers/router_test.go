package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/forgecrew/taskloop/internal/state"
)

type fakeProvider struct {
	name string
	fn   func(req ChatRequest) (*ChatResponse, error)
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return "default" }
func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return f.fn(req)
}
func (f *fakeProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	return f.fn(req)
}

func TestRouter_FallbackAgentOnQuota(t *testing.T) {
	primary := &fakeProvider{name: "primary", fn: func(req ChatRequest) (*ChatResponse, error) {
		return nil, errors.New("429 quota exceeded")
	}}
	backup := &fakeProvider{name: "backup", fn: func(req ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Content: "from backup"}, nil
	}}

	router := NewRouter(map[string]AgentSpec{
		"main":   {Name: "main", Provider: "primary", Model: "m1", FallbackAgent: "backup-agent"},
		"backup-agent": {Name: "backup-agent", Provider: "backup", Model: "m2"},
	}, map[string]Provider{"primary": primary, "backup": backup})
	router.RetryBudget = 3

	room := &state.RoomState{}
	text, err := router.Complete(context.Background(), room, "hi", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from backup" {
		t.Fatalf("got %q", text)
	}
	if !router.OnCooldown("main", "m1") {
		t.Fatalf("expected main:m1 to be on cooldown")
	}
	if _, ok := room.ModelCooldowns["main:m1"]; !ok {
		t.Fatalf("expected room.ModelCooldowns to record main:m1, got %+v", room.ModelCooldowns)
	}
	if _, ok := room.LastRequestTimes["main"]; !ok {
		t.Fatalf("expected room.LastRequestTimes to record main, got %+v", room.LastRequestTimes)
	}
}

func TestRouter_ModelFallbacks(t *testing.T) {
	calls := 0
	p := &fakeProvider{name: "p", fn: func(req ChatRequest) (*ChatResponse, error) {
		calls++
		if req.Model == "m2" {
			return &ChatResponse{Content: "ok via m2"}, nil
		}
		return nil, errors.New("429 rate limit")
	}}
	router := NewRouter(map[string]AgentSpec{
		"main": {Name: "main", Provider: "p", Model: "m1", ModelFallbacks: []string{"m2", "m3"}},
	}, map[string]Provider{"p": p})

	text, err := router.Complete(context.Background(), &state.RoomState{}, "hi", "main")
	if err != nil || text != "ok via m2" {
		t.Fatalf("got (%q, %v)", text, err)
	}
}

func TestRouter_NonQuotaErrorFailsImmediately(t *testing.T) {
	p := &fakeProvider{name: "p", fn: func(req ChatRequest) (*ChatResponse, error) {
		return nil, errors.New("invalid api key")
	}}
	router := NewRouter(map[string]AgentSpec{
		"main": {Name: "main", Provider: "p", Model: "m1"},
	}, map[string]Provider{"p": p})

	_, err := router.Complete(context.Background(), &state.RoomState{}, "hi", "main")
	if err == nil {
		t.Fatalf("expected error")
	}
}
