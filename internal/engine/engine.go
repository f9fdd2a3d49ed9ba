// Package engine implements the Execution Engine (spec.md §4.7): the
// phase-aware loop that drives a task from an LLM turn through parsed
// actions and back, bounded at 20 steps per run.
//
// Grounded on original_source/src/application/engine.rs's
// ExecutionEngine::run_task for the control flow (stop-request polling,
// context building from project doc files, phase dispatch, action
// execution with Planning/NewProject restrictions, the absolute-path
// approval rendezvous, refined_success), crossed with the teacher's
// internal/agent/loop.go for the iteration-loop/logging shape (slog.Debug
// per iteration, time.Now().UTC() span timing, wrapped "LLM call failed"
// errors).
//
// Two simplifications from the prototype, both intentional: path
// resolution for actions is delegated entirely to sandbox.JailRoot via
// tools.Executor (engine.rs hand-rolls a "starts with projects_root, else
// prepend it" resolution that JailRoot.ValidatePath already generalizes),
// and the absolute-path-outside-project approval trigger is replaced by
// the full spec.md §4.1 command policy (sandbox.ClassifyCommand), a
// strict superset of the prototype's narrower check.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/forgecrew/taskloop/internal/actions"
	"github.com/forgecrew/taskloop/internal/chat"
	"github.com/forgecrew/taskloop/internal/errorpatterns"
	"github.com/forgecrew/taskloop/internal/feed"
	"github.com/forgecrew/taskloop/internal/providers"
	"github.com/forgecrew/taskloop/internal/sandbox"
	"github.com/forgecrew/taskloop/internal/state"
	"github.com/forgecrew/taskloop/internal/tools"
)

// Phase is the engine's task-phase enum, mirrored onto
// state.RoomState.TaskPhase as its raw string form so it survives restarts.
type Phase string

const (
	PhaseNewProject    Phase = "new_project"
	PhasePlanning      Phase = "planning"
	PhaseExecution     Phase = "execution"
	PhaseConversational Phase = "conversational"
)

func phaseFromRoom(raw string) Phase {
	switch Phase(raw) {
	case PhaseNewProject, PhasePlanning, PhaseExecution, PhaseConversational:
		return Phase(raw)
	default:
		return PhaseConversational
	}
}

const maxSteps = 20

// Engine drives run_task-style loops across rooms, sharing one Router,
// Executor, pattern registry and command policy, but a per-room Feed
// Manager and approval rendezvous.
type Engine struct {
	Router   *providers.Router
	Tools    *tools.Executor
	State    *state.Store
	Patterns *errorpatterns.Registry
	Policy   sandbox.CommandPolicy

	feedsMu sync.Mutex
	feeds   map[string]*feed.Manager

	approvalsMu sync.Mutex
	approvals   map[string]chan bool
}

// New builds an Engine over its shared dependencies.
func New(router *providers.Router, tools *tools.Executor, store *state.Store, patterns *errorpatterns.Registry, policy sandbox.CommandPolicy) *Engine {
	return &Engine{
		Router:    router,
		Tools:     tools,
		State:     store,
		Patterns:  patterns,
		Policy:    policy,
		feeds:     make(map[string]*feed.Manager),
		approvals: make(map[string]chan bool),
	}
}

func (e *Engine) feedFor(roomID, projectPath string) *feed.Manager {
	e.feedsMu.Lock()
	defer e.feedsMu.Unlock()
	m, ok := e.feeds[roomID]
	if !ok {
		m = feed.New(projectPath)
		e.feeds[roomID] = m
	}
	return m
}

// Resolve answers a pending approval rendezvous for roomID (spec.md §4.1's
// ask-policy "reply .approve/.deny"). It reports whether a wait was
// actually pending.
func (e *Engine) Resolve(roomID string, approved bool) bool {
	e.approvalsMu.Lock()
	ch, ok := e.approvals[roomID]
	if ok {
		delete(e.approvals, roomID)
	}
	e.approvalsMu.Unlock()
	if !ok {
		return false
	}
	ch <- approved
	return true
}

func (e *Engine) awaitApproval(ctx context.Context, roomID string) bool {
	ch := make(chan bool, 1)
	e.approvalsMu.Lock()
	e.approvals[roomID] = ch
	e.approvalsMu.Unlock()

	select {
	case approved := <-ch:
		return approved
	case <-ctx.Done():
		e.approvalsMu.Lock()
		delete(e.approvals, roomID)
		e.approvalsMu.Unlock()
		return false
	}
}

func stopped(room *state.RoomState) bool {
	if !room.StopRequested {
		return false
	}
	room.StopRequested = false
	return true
}

// docContext is the set of project-doc strings a phase prompt is built
// from (original_source/engine.rs's tuple of roadmap/architecture/
// progress/request/tasks_checklist/plan reads).
type docContext struct {
	roadmap      string
	architecture string
	progress     string
	request      string
	tasksChecklist string
	plan         string
}

func (e *Engine) readDoc(ctx context.Context, cwd, rel, fallback string) string {
	if cwd == "" {
		return "(No context)"
	}
	content, err := e.Tools.ReadFile(ctx, cwd, rel)
	if err != nil {
		return fallback
	}
	return content
}

func (e *Engine) buildContext(ctx context.Context, cwd, activeTaskPath string) docContext {
	if cwd == "" {
		return docContext{"(No context)", "(No context)", "(No context)", "(No context)", "(No context)", "(No context)"}
	}
	d := docContext{
		roadmap:      e.readDoc(ctx, cwd, "specs/roadmap.md", "(No roadmap.md)"),
		architecture: e.readDoc(ctx, cwd, "specs/architecture.md", "(No architecture.md)"),
		progress:     e.readDoc(ctx, cwd, "specs/progress.md", "(No progress history yet)"),
	}
	if activeTaskPath == "" {
		d.request = "(No active task context)"
		d.tasksChecklist = "(No active task checklist)"
		d.plan = "(No active task plan)"
		return d
	}
	d.request = e.readDoc(ctx, cwd, activeTaskPath+"/request.md", "(No request.md)")
	d.tasksChecklist = e.readDoc(ctx, cwd, activeTaskPath+"/tasks.md", "(No tasks.md)")
	d.plan = e.readDoc(ctx, cwd, activeTaskPath+"/plan.md", "(No plan.md)")
	return d
}

func (e *Engine) composePrompt(phase Phase, cwd string, d docContext, activeTaskPath, history, currentDate string) string {
	taskPath := activeTaskPath
	if taskPath == "" {
		taskPath = "tasks/CURRENT"
	}
	switch phase {
	case PhasePlanning:
		return PlanningModeTurn(cwd, d.roadmap, d.tasksChecklist, d.plan, d.architecture, d.progress, taskPath, history, currentDate)
	case PhaseExecution:
		return ExecutionModeTurn(cwd, d.roadmap, d.tasksChecklist, d.plan, d.architecture, d.progress, taskPath, history, currentDate)
	case PhaseNewProject:
		return NewProjectPrompt("Project", d.request, cwd, currentDate)
	default:
		return ConversationalModeTurn(cwd, d.roadmap, d.tasksChecklist, d.plan, history)
	}
}

// RunTask drives one task to completion or pause, returning the final
// chat-facing message (or "" if the loop paused to await the user without
// anything left to say). A nil error with an empty message means the loop
// ended cleanly without a final message (max steps, stop request, a
// non-action reply already sent to chat); callers should not treat that
// as failure.
func (e *Engine) RunTask(ctx context.Context, collab chat.Collaborator, task, displayTask, agentName, workingDir string, overridePhase Phase, conversationHistory string) (string, error) {
	roomID := collab.RoomID()
	room := e.State.Room(roomID)

	feedTask := task
	if displayTask != "" {
		feedTask = displayTask
	}
	f := e.feedFor(roomID, workingDir)
	f.Initialize(feedTask)
	_ = f.UpdateFeed(ctx, collab)

	history := conversationHistory

	for step := 0; ; step++ {
		if step >= maxSteps {
			_ = collab.SendNotification(ctx, "⚠️ Max steps reached.")
			return "", nil
		}

		if stopped(room) {
			_ = collab.SendNotification(ctx, "🛑 **Task Stopped by User**")
			f.UpdateLastEntry("Task Stopped", false)
			_ = f.UpdateFeed(ctx, collab)
			return "", nil
		}

		phase := overridePhase
		if phase == "" {
			phase = phaseFromRoom(room.TaskPhase)
		}

		activeTaskPath := room.ActiveTask
		d := e.buildContext(ctx, workingDir, activeTaskPath)
		cwd := workingDir
		if cwd == "" {
			cwd = "."
		}
		currentDate := time.Now().Format("2006-01-02 15:04")

		prompt := e.composePrompt(phase, cwd, d, activeTaskPath, history, currentDate)
		fullPrompt := fmt.Sprintf("History:\n%s\n\nUser Question/Task: %s\n\n%s", history, task, prompt)

		_ = collab.Typing(ctx)
		llmStart := time.Now().UTC()
		response, err := e.Router.Complete(ctx, room, fullPrompt, agentName)
		if err != nil {
			_ = collab.SendNotification(ctx, fmt.Sprintf("LLM Error: %s", err))
			return "", fmt.Errorf("LLM call failed (step %d): %w", step, err)
		}
		slog.Debug("engine step", "room", roomID, "phase", phase, "step", step, "duration", time.Since(llmStart))

		history += fmt.Sprintf("\n\nAgent: %s\n", response)
		parsed := actions.Parse(response)

		if len(parsed) == 0 {
			if phase == PhaseConversational {
				f.Finalize()
				_ = f.Persist(ctx, e.Tools)
				_ = f.UpdateFeed(ctx, collab)
				return response, nil
			}
			_, _ = collab.Send(ctx, response)
			return "", nil
		}

		result, done, err := e.runActions(ctx, collab, room, f, phase, workingDir, parsed, &history)
		if done {
			return result, err
		}
		// SwitchMode or an empty pass through the action list: re-prompt
		// immediately in the (possibly new) phase.
	}
}

// runActions executes one LLM turn's parsed actions in order, returning
// (message, true, err) when the task concludes this turn, or ("", false,
// nil) to continue the outer loop with another LLM turn.
func (e *Engine) runActions(ctx context.Context, collab chat.Collaborator, room *state.RoomState, f *feed.Manager, phase Phase, workingDir string, parsed []actions.Action, history *string) (string, bool, error) {
	for _, action := range parsed {
		if stopped(room) {
			_ = collab.SendNotification(ctx, "🛑 **Task Stopped by User (Interrupted)**")
			f.UpdateLastEntry("Task Stopped", false)
			_ = f.UpdateFeed(ctx, collab)
			return "", true, nil
		}

		switch action.Kind {
		case actions.KindDone:
			return e.handleDone(ctx, collab, room, f, phase, workingDir)

		case actions.KindListDir:
			f.AddEntry("Listing dir", action.Path)
			_ = f.UpdateFeed(ctx, collab)
			out, err := e.Tools.ListDir(ctx, workingDir, action.Path)
			f.UpdateLastEntry(out, err == nil)
			_ = f.UpdateFeed(ctx, collab)
			if err != nil {
				out = fmt.Sprintf("Error listing directory: %s", err)
			}
			*history += fmt.Sprintf("\nSystem: %s\n", out)

		case actions.KindWriteFile:
			if planningRestricted(phase) && !allowedPlanningWrite(action.Path) {
				msg := fmt.Sprintf("PERMISSION DENIED: You are in the PLANNING phase. You cannot write code files (`%s`) yet. You can only write documentation (.md, .txt, .yaml, .json). If you have finished the plan, emit a DONE block.", action.Path)
				*history += "\nSystem: " + msg + "\n"
				f.AddEntry("Blocked write", action.Path)
				f.UpdateLastEntry("Planning Only", false)
				_ = f.UpdateFeed(ctx, collab)
				continue
			}
			f.AddEntry("Writing file", action.Path)
			_ = f.UpdateFeed(ctx, collab)
			err := e.Tools.WriteFile(ctx, workingDir, action.Path, action.Content)
			out := "File written successfully"
			if err != nil {
				out = fmt.Sprintf("Error writing file: %s", err)
			}
			f.UpdateLastEntry(out, err == nil)
			_ = f.UpdateFeed(ctx, collab)
			*history += fmt.Sprintf("\nOutput: %s\n", out)

		case actions.KindReadFile:
			f.AddEntry("Reading file", action.Path)
			_ = f.UpdateFeed(ctx, collab)
			out, err := e.Tools.ReadFile(ctx, workingDir, action.Path)
			if err != nil {
				f.UpdateLastEntry(fmt.Sprintf("Error reading file: %s", err), false)
				*history += fmt.Sprintf("\nOutput:\n%s\n", err.Error())
			} else {
				f.UpdateLastEntry(fmt.Sprintf("Read %d bytes", len(out)), true)
				*history += fmt.Sprintf("\nOutput:\n%s\n", out)
			}
			_ = f.UpdateFeed(ctx, collab)

		case actions.KindShellCommand:
			if planningRestricted(phase) {
				msg := fmt.Sprintf("PERMISSION DENIED: You are in the PLANNING phase. You cannot run commands (`%s`) yet. You are strictly limited to documentation. Emit a DONE block if you are done.", action.Command)
				*history += "\nSystem: " + msg + "\n"
				continue
			}
			if done, message, err := e.runShellAction(ctx, collab, room, f, workingDir, action.Command, history); done {
				return message, true, err
			}

		case actions.KindSwitchMode:
			newPhase, ok := switchTargetPhase(action.Mode)
			if !ok {
				*history += fmt.Sprintf("\nSystem: Invalid mode '%s'. Use 'planning', 'execution' or 'conversational'.\n", action.Mode)
				continue
			}
			if phase == PhaseNewProject {
				d := e.buildContext(ctx, workingDir, room.ActiveTask)
				_, _ = collab.Send(ctx, d.architecture)
				_, _ = collab.Send(ctx, d.roadmap)
				_, _ = collab.Send(ctx, d.plan)
			}
			room.TaskPhase = string(newPhase)
			return "", false, nil
		}
	}

	return "", false, nil
}

func (e *Engine) handleDone(ctx context.Context, collab chat.Collaborator, room *state.RoomState, f *feed.Manager, phase Phase, workingDir string) (string, bool, error) {
	switch phase {
	case PhasePlanning, PhaseNewProject:
		d := e.buildContext(ctx, workingDir, room.ActiveTask)
		f.AddEntry("Planning Complete", "")
		_ = f.UpdateFeed(ctx, collab)

		isInitTask := strings.Contains(room.ActiveTask, "001-init")
		if phase == PhaseNewProject || isInitTask {
			_, _ = collab.Send(ctx, d.architecture)
			_, _ = collab.Send(ctx, d.roadmap)
		}
		_, _ = collab.Send(ctx, fmt.Sprintf("%s\n\n✅ **Plan Generated**: Type `.start` to proceed or `.ask` to refine.", d.plan))
		return "Planning Completed. Plan available for review.", true, nil

	default: // Execution, Conversational
		ok, output := e.verify(ctx, workingDir)
		if !ok {
			f.AddEntry("Verification Failed", "")
			f.UpdateLastEntry(output, false)
			_ = f.UpdateFeed(ctx, collab)
			_ = collab.SendNotification(ctx, "⚠️ **Verification failed** — fix the build/test error before finishing:\n"+truncateLines(output, 30))
			return "", false, nil
		}
		f.Finalize()
		_ = f.Persist(ctx, e.Tools)
		_ = f.UpdateFeed(ctx, collab)
		return "Task Completed.", true, nil
	}
}

func (e *Engine) runShellAction(ctx context.Context, collab chat.Collaborator, room *state.RoomState, f *feed.Manager, workingDir, cmd string, history *string) (bool, string, error) {
	f.AddEntry("Running command", cmd)
	_ = f.UpdateFeed(ctx, collab)

	verdict := sandbox.ClassifyCommand(cmd, e.Policy)
	switch verdict.Verdict {
	case sandbox.Blocked:
		f.UpdateLastEntry("Command Denied (Blocked by policy): "+verdict.Reason, false)
		_ = f.UpdateFeed(ctx, collab)
		*history += fmt.Sprintf("\nAction Skipped: Command `%s` blocked by policy (%s).\n", cmd, verdict.Reason)
		return false, "", nil

	case sandbox.Ask:
		_ = collab.SendNotification(ctx, fmt.Sprintf("⚠️ **Security Alert**: Command `%s` needs approval (%s).\nReply `.approve` to allow, `.deny` to skip.", cmd, verdict.Reason))
		if !e.awaitApproval(ctx, collab.RoomID()) {
			_, _ = collab.Send(ctx, "🚫 Command Denied or Cancelled.")
			*history += fmt.Sprintf("\nAction Skipped: Command `%s` denied by user.\n", cmd)
			f.UpdateLastEntry("Command Denied", false)
			_ = f.UpdateFeed(ctx, collab)
			return false, "", nil
		}
		_ = collab.SendNotification(ctx, "✅ Command Approved.")
	}

	out, err := e.Tools.ExecuteCommand(ctx, cmd, workingDir)
	success := err == nil && !strings.Contains(out, "[Exit Code:") && !strings.Contains(out, "Failed:")
	if err != nil && out == "" {
		out = err.Error()
	}
	f.UpdateLastEntry(out, success)
	_ = f.UpdateFeed(ctx, collab)

	if !success {
		if patterns := e.Patterns.DetectAll(out); len(patterns) > 0 {
			*history += fmt.Sprintf("\nHint: %s\n", patterns[0].Suggestion)
		}
	}
	*history += fmt.Sprintf("\nOutput:\n%s\n", out)
	return false, "", nil
}

func planningRestricted(phase Phase) bool {
	return phase == PhasePlanning || phase == PhaseNewProject
}

func allowedPlanningWrite(path string) bool {
	for _, ext := range []string{".md", ".txt", ".yaml", ".json"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func switchTargetPhase(mode string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "planning", "architect":
		return PhasePlanning, true
	case "execution", "developer":
		return PhaseExecution, true
	case "conversational":
		return PhaseConversational, true
	default:
		return "", false
	}
}

// verify runs the project's build/test check on a Done in Execution phase
// (SPEC_FULL.md §4.7's verification hook — no prototype counterpart): the
// first manifest file found picks the command, and ok=false means the
// engine must refuse to finalize the task.
func (e *Engine) verify(ctx context.Context, workingDir string) (bool, string) {
	if workingDir == "" {
		return true, ""
	}
	checks := []struct {
		manifest string
		command  string
	}{
		{"Cargo.toml", "cargo check"},
		{"go.mod", "go build ./..."},
		{"package.json", "npm run build || npm test"},
		{"requirements.txt", "python -m py_compile *.py"},
	}
	for _, c := range checks {
		if _, err := e.Tools.ReadFile(ctx, workingDir, c.manifest); err != nil {
			continue
		}
		out, err := e.Tools.ExecuteCommand(ctx, c.command, workingDir)
		if err != nil {
			return false, out
		}
		return true, out
	}
	return true, ""
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}
