// Package feed implements the Feed Manager (spec.md §4.5): a single
// sticky chat artifact per task that renders Active/Squashed/Final views
// and survives interleaved user messages by editing its own prior message.
//
// Grounded on original_source/src/application/feed.rs (and the
// near-duplicate src/core/features/feed.rs, the copy wired to state.md
// logging). This module writes no state.md; its only on-disk output is
// feed.md, see Persist.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/forgecrew/taskloop/internal/chat"
)

// Mode is the Feed's rendering mode.
type Mode int

const (
	ModeActive Mode = iota
	ModeSquashed
	ModeFinal
)

// Status is a feed entry's lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one action recorded on the feed.
type Entry struct {
	Timestamp  string
	ActionType string
	Content    string
	Status     Status
	Output     string
	HasOutput  bool
}

func newEntry(actionType, content string) Entry {
	return Entry{
		Timestamp:  time.Now().Format("15:04:05"),
		ActionType: actionType,
		Content:    content,
		Status:     StatusRunning,
	}
}

func statusIconActive(s Status) string {
	switch s {
	case StatusRunning:
		return "⏳"
	case StatusSuccess:
		return "✅"
	case StatusFailed:
		return "❌"
	default:
		return "📋"
	}
}

func statusIconSquashed(s Status) string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusFailed:
		return "❌"
	default:
		return "📋"
	}
}

func (e Entry) formatActive() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **[%s]** %s", statusIconActive(e.Status), e.Timestamp, e.ActionType)
	if e.Content != "" {
		fmt.Fprintf(&b, ": `%s`", e.Content)
	}
	if e.HasOutput && e.Output != "" {
		fmt.Fprintf(&b, "\n```\n%s\n```", truncateOutput(e.Output, 300))
	}
	return b.String()
}

// truncateOutput caps output at maxWidth terminal columns rather than
// bytes, so CJK/full-width toolchain output (common in npm/go build
// errors with localized messages) doesn't get cut mid-character or
// blow well past the intended display width.
func truncateOutput(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

func (e Entry) formatSquashed() string {
	return fmt.Sprintf("%s **[%s]** %s", statusIconSquashed(e.Status), e.Timestamp, e.Content)
}

// Writer persists rendered feed content to disk, implemented by
// *tools.Executor in production.
type Writer interface {
	WriteFile(ctx context.Context, cwd, path, content string) error
}

// Manager owns one task's feed state and its sticky chat message.
type Manager struct {
	entries          []Entry
	mode             Mode
	projectPath      string
	currentTask      string
	feedEventID      string
	recentActivities []string
}

// New builds a feed bound to projectPath (used only by Persist).
func New(projectPath string) *Manager {
	return &Manager{mode: ModeActive, projectPath: projectPath}
}

// Initialize resets the feed for a new task, per FeedManager::initialize.
// The feed_event_id is intentionally reset: a new task gets a new feed
// message rather than continuing to edit the previous task's.
func (m *Manager) Initialize(task string) {
	m.currentTask = task
	m.entries = nil
	m.mode = ModeActive
	m.recentActivities = nil
	m.feedEventID = ""
	m.AddEntry("Task Started", task)
}

// AddEntry appends a new running entry and records its summary in the
// capped recent-activity list (last 15).
func (m *Manager) AddEntry(actionType, content string) {
	m.recentActivities = append(m.recentActivities, "• "+content)
	if len(m.recentActivities) > 15 {
		m.recentActivities = m.recentActivities[1:]
	}
	m.entries = append(m.entries, newEntry(actionType, content))
}

// UpdateLastEntry records the outcome of the most recently added entry.
func (m *Manager) UpdateLastEntry(output string, success bool) {
	if len(m.entries) == 0 {
		return
	}
	e := &m.entries[len(m.entries)-1]
	if success {
		e.Status = StatusSuccess
	} else {
		e.Status = StatusFailed
	}
	e.Output = output
	e.HasOutput = true
}

// Squash switches to the Squashed rendering (entries minus running ones).
func (m *Manager) Squash() { m.mode = ModeSquashed }

// Finalize switches to the Final rendering (successful entries + timestamp).
func (m *Manager) Finalize() { m.mode = ModeFinal }

// Content renders the feed in its current mode.
func (m *Manager) Content() string {
	switch m.mode {
	case ModeSquashed:
		return m.formatSquashed()
	case ModeFinal:
		return m.formatFinal()
	default:
		return m.formatActive()
	}
}

func (m *Manager) formatActive() string {
	var b strings.Builder
	b.WriteString("**🔄 Active Task**\n\n")
	if m.currentTask != "" {
		fmt.Fprintf(&b, "**Task**: %s\n\n", m.currentTask)
	}
	b.WriteString("**Recent Activity** (last 15):\n")
	for _, a := range m.recentActivities {
		fmt.Fprintf(&b, "%s\n", a)
	}
	if len(m.entries) > 0 {
		b.WriteString("\n**Latest Details**:\n")
		start := len(m.entries) - 5
		if start < 0 {
			start = 0
		}
		for _, e := range m.entries[start:] {
			fmt.Fprintf(&b, "%s\n\n", e.formatActive())
		}
	}
	return b.String()
}

func (m *Manager) formatSquashed() string {
	var b strings.Builder
	b.WriteString("**📋 Task Progress**\n\n")
	if m.currentTask != "" {
		fmt.Fprintf(&b, "**Task**: %s\n\n", m.currentTask)
	}
	b.WriteString("**Completed Steps**:\n")
	for _, e := range m.entries {
		if e.Status != StatusRunning {
			fmt.Fprintf(&b, "%s\n", e.formatSquashed())
		}
	}
	return b.String()
}

func (m *Manager) formatFinal() string {
	var b strings.Builder
	b.WriteString("**✅ Execution Complete**\n\n")
	if m.currentTask != "" {
		fmt.Fprintf(&b, "**Task**: %s\n\n", m.currentTask)
	}
	b.WriteString("**Summary**:\n")
	for _, e := range m.entries {
		if e.Status == StatusSuccess {
			fmt.Fprintf(&b, "• %s\n", e.Content)
		}
	}
	fmt.Fprintf(&b, "\n**Completed**: %s", time.Now().Format("2006-01-02 15:04:05"))
	return b.String()
}

// FeedEventID returns the sticky message id, or "" if none has been sent.
func (m *Manager) FeedEventID() string { return m.feedEventID }

// SetFeedEventID replaces the stored sticky message id.
func (m *Manager) SetFeedEventID(id string) { m.feedEventID = id }

// UpdateFeed implements the sticky logic from FeedManager::update_feed: no
// stored id means always send new; a stored id that no longer matches the
// transport's latest means the feed got buried, so send new and replace the
// id; otherwise edit in place. An edit failure clears feed_event_id so the
// next update re-sends instead of silently failing forever — this improves
// on the prototype, which left that line commented out.
func (m *Manager) UpdateFeed(ctx context.Context, collaborator chat.Collaborator) error {
	content := m.Content()
	latest, err := collaborator.LatestEventID(ctx)
	if err != nil {
		return fmt.Errorf("get latest event id: %w", err)
	}

	shouldSendNew := true
	if m.feedEventID != "" {
		if latest != "" {
			shouldSendNew = latest != m.feedEventID
		} else {
			shouldSendNew = false
		}
	}

	if shouldSendNew {
		id, err := collaborator.Send(ctx, content)
		if err != nil {
			return fmt.Errorf("send feed message: %w", err)
		}
		m.feedEventID = id
		return nil
	}

	if err := collaborator.Edit(ctx, m.feedEventID, content); err != nil {
		m.feedEventID = ""
		return fmt.Errorf("edit feed message: %w", err)
	}
	return nil
}

// Persist writes the current feed content to "<projectPath>/feed.md".
// The prototype's save_to_disk only ran opportunistically; SPEC_FULL.md
// §12 makes persistence on Final unconditional so a task's outcome always
// survives independent of chat transport state. A write failure is
// returned to the caller; Persist itself does not log it.
func (m *Manager) Persist(ctx context.Context, w Writer) error {
	if m.projectPath == "" {
		return nil
	}
	return w.WriteFile(ctx, m.projectPath, "feed.md", m.Content())
}
