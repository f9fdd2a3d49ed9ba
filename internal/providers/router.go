package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/forgecrew/taskloop/internal/state"
)

// AgentSpec binds a named agent (spec.md's `agent_name`) to a provider,
// default model, and fallback chain.
type AgentSpec struct {
	Name              string
	Provider          string
	Model             string
	RequestsPerMinute int
	FallbackAgent     string
	ModelFallbacks    []string
}

// Router implements spec.md §4.4: complete/complete_with_model with
// quota/rate-limit-triggered agent and model fallback, grounded on the
// teacher's provider-dispatch shape (internal/providers/*.go) generalized
// with a cooldown ledger and fallback chain that has no teacher
// counterpart (the teacher calls a single configured provider directly).
type Router struct {
	mu        sync.Mutex
	agents    map[string]AgentSpec
	providers map[string]Provider
	cooldowns map[string]time.Time

	// RetryBudget bounds the outer agent/model fallback loop (spec.md §4.4
	// point 4: "after a configured retry budget (default 3)").
	RetryBudget int
}

// NewRouter builds a Router over the given agent specs and provider
// implementations, keyed by provider name ("anthropic", "openai", "gemini",
// "groq", "xai").
func NewRouter(agents map[string]AgentSpec, impls map[string]Provider) *Router {
	return &Router{
		agents:      agents,
		providers:   impls,
		cooldowns:   make(map[string]time.Time),
		RetryBudget: 3,
	}
}

// Complete sends prompt to agentName's default model, recording the
// request and any resulting cooldown in room's model_cooldowns /
// last_request_times (spec.md §3). room may be nil for callers with no
// persisted room (e.g. tests).
func (r *Router) Complete(ctx context.Context, room *state.RoomState, prompt, agentName string) (string, error) {
	return r.CompleteWithModel(ctx, room, prompt, agentName, "")
}

// CompleteWithModel sends prompt to agentName, overriding its default model.
// On a quota/rate-limit failure it records a cooldown, then retries once
// under the agent's fallback_agent (model cleared) or, failing that, the
// next entry in model_fallbacks[], until the retry budget is exhausted.
func (r *Router) CompleteWithModel(ctx context.Context, room *state.RoomState, prompt, agentName, model string) (string, error) {
	budget := r.RetryBudget
	if budget < 1 {
		budget = 1
	}

	currentAgent := agentName
	currentModel := model
	var remainingFallbacks []string
	var lastErr error

	for attempt := 0; attempt < budget; attempt++ {
		spec, ok := r.agents[currentAgent]
		if !ok {
			return "", fmt.Errorf("unknown agent %q", currentAgent)
		}
		if remainingFallbacks == nil {
			remainingFallbacks = append([]string(nil), spec.ModelFallbacks...)
		}

		useModel := currentModel
		if useModel == "" {
			useModel = spec.Model
		}

		impl, ok := r.providers[spec.Provider]
		if !ok {
			return "", fmt.Errorf("unknown provider %q for agent %q", spec.Provider, currentAgent)
		}

		r.recordRequest(room, currentAgent)
		text, err := r.callProvider(ctx, impl, spec, prompt, useModel)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isQuotaOrRateLimitError(err) {
			return "", err
		}

		r.recordCooldown(room, currentAgent, useModel)

		if spec.FallbackAgent != "" {
			currentAgent = spec.FallbackAgent
			currentModel = ""
			remainingFallbacks = nil
			continue
		}
		if len(remainingFallbacks) > 0 {
			currentModel = remainingFallbacks[0]
			remainingFallbacks = remainingFallbacks[1:]
			continue
		}
		break
	}

	return "", fmt.Errorf("provider router exhausted retry budget: %w", lastErr)
}

// callProvider retries transient (network/timeout/5xx) failures in place
// with RateLimiter-style backoff, but lets quota/rate-limit errors through
// immediately so the outer fallback loop in CompleteWithModel can escalate
// to a fallback agent or model without first burning the backoff delay on
// an agent it's about to abandon.
func (r *Router) callProvider(ctx context.Context, impl Provider, spec AgentSpec, prompt, model string) (string, error) {
	cfg := DefaultRetryConfig(spec.RequestsPerMinute)
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := impl.Chat(ctx, ChatRequest{
			Messages: []Message{{Role: "user", Content: prompt}},
			Model:    model,
		})
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err

		if isQuotaOrRateLimitError(err) || !isRetryableError(err) {
			return "", err
		}
		if attempt == maxRetries {
			break
		}

		delay := calculateDelay(cfg.BaseDelay, attempt, err)
		if cfg.StatusCallback != nil {
			cfg.StatusCallback(fmt.Sprintf("%s error (attempt %d/%d). Retrying in %s...", impl.Name(), attempt, maxRetries, delay))
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

// recordCooldown stores agent:model -> now in the process-local cooldown
// ledger (read back by OnCooldown) and, when room is non-nil, also writes
// it into room.ModelCooldowns so it's persisted and reachable by
// internal/scheduler's sweep (spec.md §3's model_cooldowns).
func (r *Router) recordCooldown(room *state.RoomState, agent, model string) {
	now := time.Now()
	r.mu.Lock()
	r.cooldowns[agent+":"+model] = now
	r.mu.Unlock()

	if room == nil {
		return
	}
	if room.ModelCooldowns == nil {
		room.ModelCooldowns = make(map[string]int64)
	}
	room.ModelCooldowns[agent+":"+model] = now.Unix()
}

// recordRequest timestamps agent's most recent call in room.LastRequestTimes,
// so internal/scheduler's idle sweep has real data to prune.
func (r *Router) recordRequest(room *state.RoomState, agent string) {
	if room == nil {
		return
	}
	if room.LastRequestTimes == nil {
		room.LastRequestTimes = make(map[string]int64)
	}
	room.LastRequestTimes[agent] = time.Now().Unix()
}

// OnCooldown reports whether agent:model was put on cooldown within the
// last hour.
func (r *Router) OnCooldown(agent, model string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.cooldowns[agent+":"+model]
	if !ok {
		return false
	}
	return time.Since(t) < time.Hour
}

// isQuotaOrRateLimitError matches spec.md §4.4's outer-fallback trigger:
// "429, quota, rate limit, out of usage" — distinct from (narrower than)
// RetryDo's inner isRetryableError, since server errors alone should not
// trigger agent/model fallback.
func isQuotaOrRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "quota", "rate limit", "out of usage"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
