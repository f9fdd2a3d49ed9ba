// Package router implements the Command Router (spec.md §4.9): it parses
// a `.`/`,`-prefixed message and dispatches it to the right handler,
// intercepting an active onboarding wizard first.
//
// Grounded on original_source/src/application/router.rs's CommandRouter::
// route for the dispatch shape (wizard interception before prefix
// checking, the comma-admin shortcut, the full match arm over command
// names and their aliases) and original_source/src/commands/{wizard,
// project,admin}.rs for the wizard step machine, project-creation flow,
// and admin sender-allowlist check it delegates to.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/forgecrew/taskloop/internal/chat"
	"github.com/forgecrew/taskloop/internal/engine"
	"github.com/forgecrew/taskloop/internal/state"
)

// sendErr discards a Collaborator.Send's event id and keeps only the error,
// so handlers that only need to report failure can `return sendErr(...)`.
func sendErr(_ string, err error) error {
	return err
}

// Router dispatches one incoming chat message per room, sharing the
// Execution Engine and State Store every room-handling goroutine uses.
type Router struct {
	Engine       *engine.Engine
	State        *state.Store
	ProjectsDir  string
	AdminAllowed []string
}

// New builds a Router over the shared Engine/Store.
func New(eng *engine.Engine, store *state.Store, projectsDir string, adminAllowed []string) *Router {
	return &Router{Engine: eng, State: store, ProjectsDir: projectsDir, AdminAllowed: adminAllowed}
}

var bypassCommands = map[string]bool{".new": true, ".cancel": true, ".help": true}

// Route parses message from sender in collab's room and dispatches it.
// A message with neither a command prefix nor an active wizard is a no-op
// (non-command chatter is the Execution Engine's concern, not the
// router's, per spec.md §4.9).
func (r *Router) Route(ctx context.Context, collab chat.Collaborator, message, sender string) error {
	msg := strings.TrimSpace(message)
	cmd, args := splitCommand(msg)

	slog.Debug("router dispatch", "room", collab.RoomID(), "cmd", cmd, "sender", sender)

	room := r.State.Room(collab.RoomID())

	if !bypassCommands[cmd] && room.Wizard.Active {
		return r.handleWizardInput(ctx, collab, room, msg)
	}

	if !strings.HasPrefix(msg, ".") && !strings.HasPrefix(msg, ",") {
		return nil
	}

	if rest, ok := strings.CutPrefix(msg, ","); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return nil
		}
		return r.handleAdmin(ctx, collab, room, sender, rest)
	}

	switch cmd {
	case ".ok", ".continue", ".approve", ".yes":
		return r.handleApproveOrContinue(ctx, collab, room)
	case ".deny", ".no", ".cancel":
		return r.handleDenyOrCancel(ctx, collab, room, cmd)
	case ".new":
		return r.handleNew(ctx, collab, room, args)
	case ".task":
		return r.handleTask(ctx, collab, room, args)
	case ".run", ".exec":
		return r.handleAdmin(ctx, collab, room, sender, args)
	case ".project":
		return r.handleProject(ctx, collab, room, args)
	case ".list":
		return r.handleList(ctx, collab)
	case ".status":
		return r.handleStatus(ctx, collab, room)
	case ".ask":
		return r.handleAsk(ctx, collab, room, args)
	case ".read":
		return r.handleRead(ctx, collab, room, args)
	case ".stop":
		return r.handleStop(ctx, collab, room)
	case ".help":
		return collab.SendNotification(ctx, helpText)
	default:
		return collab.SendNotification(ctx, fmt.Sprintf("Unknown command `%s`. Type `.help` for the command list.", cmd))
	}
}

func splitCommand(msg string) (cmd, args string) {
	if idx := strings.IndexByte(msg, ' '); idx >= 0 {
		return msg[:idx], strings.TrimSpace(msg[idx+1:])
	}
	return msg, ""
}

func (r *Router) handleApproveOrContinue(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	if r.Engine.Resolve(collab.RoomID(), true) {
		return nil
	}
	if room.CurrentWorkingDir == "" {
		return sendErr(collab.Send(ctx, "You are not in a project directory."))
	}
	if err := collab.SendNotification(ctx, "🚀 **Executing Plan**..."); err != nil {
		return err
	}
	_, err := r.Engine.RunTask(ctx, collab, "Execute the implementation details described in `plan.md`. Implement the code.", "", "developer", room.CurrentWorkingDir, engine.PhaseExecution, "")
	return err
}

func (r *Router) handleDenyOrCancel(ctx context.Context, collab chat.Collaborator, room *state.RoomState, cmd string) error {
	if r.Engine.Resolve(collab.RoomID(), false) {
		return nil
	}
	room.Wizard = state.WizardState{}
	if cmd != ".cancel" {
		return sendErr(collab.Send(ctx, "No pending approval to deny."))
	}
	return nil
}

func (r *Router) handleStop(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	room.StopRequested = true
	return sendErr(collab.Send(ctx, "🛑 Stop requested."))
}

func (r *Router) handleStatus(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**Project**: %s\n", orNone(room.CurrentProjectPath))
	fmt.Fprintf(&b, "**Working dir**: %s\n", orNone(room.CurrentWorkingDir))
	fmt.Fprintf(&b, "**Active task**: %s\n", orNone(room.ActiveTask))
	fmt.Fprintf(&b, "**Phase**: %s\n", orNone(room.TaskPhase))
	return sendErr(collab.Send(ctx, b.String()))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func (r *Router) handleRead(ctx context.Context, collab chat.Collaborator, room *state.RoomState, args string) error {
	if args == "" {
		return sendErr(collab.Send(ctx, "Usage: `.read <path>`"))
	}
	content, err := r.Engine.Tools.ReadFile(ctx, room.CurrentWorkingDir, args)
	if err != nil {
		return sendErr(collab.Send(ctx, fmt.Sprintf("Error reading `%s`: %s", args, err)))
	}
	return sendErr(collab.Send(ctx, content))
}

func (r *Router) handleAsk(ctx context.Context, collab chat.Collaborator, room *state.RoomState, args string) error {
	if args == "" {
		return sendErr(collab.Send(ctx, "Usage: `.ask <question>`"))
	}
	response, err := r.Engine.Router.Complete(ctx, room, args, "developer")
	if err != nil {
		return collab.SendNotification(ctx, fmt.Sprintf("LLM Error: %s", err))
	}
	return sendErr(collab.Send(ctx, response))
}

func (r *Router) handleList(ctx context.Context, collab chat.Collaborator) error {
	if r.ProjectsDir == "" {
		return sendErr(collab.Send(ctx, "No projects directory configured."))
	}
	listing, err := r.Engine.Tools.ListDir(ctx, r.ProjectsDir, ".")
	if err != nil {
		return sendErr(collab.Send(ctx, fmt.Sprintf("Error listing projects: %s", err)))
	}
	return sendErr(collab.Send(ctx, "**Projects**:\n"+listing))
}

func (r *Router) handleProject(ctx context.Context, collab chat.Collaborator, room *state.RoomState, args string) error {
	if args == "" {
		return r.handleStatus(ctx, collab, room)
	}
	return r.enterProject(ctx, collab, room, args)
}

func (r *Router) handleTask(ctx context.Context, collab chat.Collaborator, room *state.RoomState, args string) error {
	if strings.TrimSpace(args) == "" {
		return r.startTaskWizard(ctx, collab, room)
	}
	workdir := room.CurrentWorkingDir
	if workdir == "" {
		workdir = room.CurrentProjectPath
	}
	phase := engine.PhaseExecution
	if workdir == "" {
		phase = engine.PhaseConversational
	}
	_, err := r.Engine.RunTask(ctx, collab, args, "", "developer", workdir, phase, "")
	return err
}

// startProjectWizard launches the `.new`-with-no-name step machine:
// ProjectName -> Description -> finish, grounded on
// original_source/src/commands/wizard.rs's start_new_project_wizard
// (Type/Stack steps removed there too — this port never had them).
func (r *Router) startProjectWizard(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	room.Wizard = state.WizardState{
		Active: true,
		Mode:   state.WizardModeProject,
		Step:   state.WizardStepProjectName,
		Data:   make(map[string]string),
	}
	return sendErr(collab.Send(ctx, "**New Project**\nWhat should the project be named?"))
}

// startTaskWizard launches the `.task`-with-no-args step machine:
// TaskDescription -> Confirmation -> finish, grounded on wizard.rs's
// start_task_wizard.
func (r *Router) startTaskWizard(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	room.Wizard = state.WizardState{
		Active: true,
		Mode:   state.WizardModeTask,
		Step:   state.WizardStepTaskDescription,
		Data:   make(map[string]string),
	}
	return sendErr(collab.Send(ctx, "**New Task**\nDescribe what you'd like done. Send `.ok` when finished, or `.cancel` to abort."))
}

// handleWizardInput advances the active wizard by one step, mirroring
// wizard.rs's handle_input match over WizardStep. `.cancel` always resets
// regardless of step; every other step either buffers free text or checks
// for the `.ok` sentinel that advances/finishes.
func (r *Router) handleWizardInput(ctx context.Context, collab chat.Collaborator, room *state.RoomState, input string) error {
	if input == ".cancel" {
		room.Wizard = state.WizardState{}
		return sendErr(collab.Send(ctx, "Wizard cancelled."))
	}

	switch room.Wizard.Step {
	case state.WizardStepProjectName:
		name := strings.TrimSpace(input)
		if name == "" {
			return sendErr(collab.Send(ctx, "Please enter a valid project name or `.cancel`."))
		}
		if room.Wizard.Data == nil {
			room.Wizard.Data = make(map[string]string)
		}
		room.Wizard.Data["name"] = name
		room.Wizard.Step = state.WizardStepDescription
		return sendErr(collab.Send(ctx, fmt.Sprintf("Project `%s`. Describe what it should do — send `.ok` when finished.", name)))

	case state.WizardStepDescription:
		if strings.TrimSpace(input) == ".ok" {
			return r.finishProjectWizard(ctx, collab, room)
		}
		appendWizardBuffer(room, input)
		return nil

	case state.WizardStepTaskDescription:
		if strings.TrimSpace(input) == ".ok" {
			room.Wizard.Step = state.WizardStepConfirmation
			return sendErr(collab.Send(ctx, "Send `.ok` to start the task, or `.cancel` to abort."))
		}
		appendWizardBuffer(room, input)
		return nil

	case state.WizardStepConfirmation:
		if strings.TrimSpace(input) == ".ok" {
			return r.finishTaskWizard(ctx, collab, room)
		}
		return sendErr(collab.Send(ctx, "Type `.ok` to start or `.cancel` to abort."))

	default:
		room.Wizard = state.WizardState{}
		return nil
	}
}

func appendWizardBuffer(room *state.RoomState, input string) {
	if room.Wizard.Buffer != "" {
		room.Wizard.Buffer += "\n"
	}
	room.Wizard.Buffer += input
}

// finishProjectWizard creates the project (reusing enterProject's
// directory/specs scaffold) then kicks off the NewProject-phase task with
// the wizard's buffered description as the requirements text, mirroring
// wizard.rs's finish_wizard project branch (handle_new then handle_task).
func (r *Router) finishProjectWizard(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	name := room.Wizard.Data["name"]
	desc := room.Wizard.Buffer
	room.Wizard = state.WizardState{}

	if err := r.enterProject(ctx, collab, room, name); err != nil {
		return err
	}
	if desc == "" {
		desc = "No requirements provided."
	}
	_, err := r.Engine.RunTask(ctx, collab, desc, "Initialize project "+name, "developer", room.CurrentWorkingDir, engine.PhaseNewProject, "")
	return err
}

// finishTaskWizard starts the buffered task description the same way
// `.task <description>` does, mirroring wizard.rs's finish_wizard task
// branch (handle_task with the buffer as the prompt).
func (r *Router) finishTaskWizard(ctx context.Context, collab chat.Collaborator, room *state.RoomState) error {
	desc := room.Wizard.Buffer
	room.Wizard = state.WizardState{}
	if desc == "" {
		return sendErr(collab.Send(ctx, "No task description was provided; nothing to run."))
	}
	return r.handleTask(ctx, collab, room, desc)
}

// enterProject sets CurrentProjectPath/CurrentWorkingDir to
// "<ProjectsDir>/<name>", creating the directory and its specs/ scaffold
// if it doesn't exist yet — a compact stand-in for
// original_source/src/commands/project.rs's handle_new directory
// creation, generalized to also serve `.project <name>`.
func (r *Router) enterProject(ctx context.Context, collab chat.Collaborator, room *state.RoomState, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return sendErr(collab.Send(ctx, "Invalid project name."))
	}
	if r.ProjectsDir == "" {
		return sendErr(collab.Send(ctx, "No projects directory configured."))
	}
	projectPath := path.Join(r.ProjectsDir, name)

	if _, err := r.Engine.Tools.ListDir(ctx, projectPath, "."); err == nil {
		room.CurrentProjectPath = projectPath
		room.CurrentWorkingDir = projectPath
		room.ActiveTask = ""
		room.IsTaskCompleted = false
		return sendErr(collab.Send(ctx, fmt.Sprintf("Project `%s` already exists — switched into it.", projectPath)))
	}

	if err := r.Engine.Tools.WriteFile(ctx, projectPath, "specs/roadmap.md", "# Roadmap\n"); err != nil {
		return sendErr(collab.Send(ctx, fmt.Sprintf("Error creating project: %s", err)))
	}
	_ = r.Engine.Tools.WriteFile(ctx, projectPath, "specs/architecture.md", "# Architecture\n")
	_ = r.Engine.Tools.WriteFile(ctx, projectPath, "specs/progress.md", "")

	room.CurrentProjectPath = projectPath
	room.CurrentWorkingDir = projectPath
	room.ActiveTask = ""
	room.IsTaskCompleted = false
	room.TaskPhase = string(engine.PhaseNewProject)
	return sendErr(collab.Send(ctx, fmt.Sprintf("Created project `%s`.", projectPath)))
}

func (r *Router) handleNew(ctx context.Context, collab chat.Collaborator, room *state.RoomState, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		return r.startProjectWizard(ctx, collab, room)
	}
	return r.enterProject(ctx, collab, room, args)
}

func (r *Router) handleAdmin(ctx context.Context, collab chat.Collaborator, room *state.RoomState, sender, commandLine string) error {
	if !r.isAdmin(sender) {
		return collab.SendNotification(ctx, fmt.Sprintf("🚫 %s is not authorized to run admin commands.", sender))
	}
	commandLine = strings.TrimSpace(commandLine)
	if commandLine == "" {
		return nil
	}
	_ = collab.Typing(ctx)

	if commandLine == "cd" || strings.HasPrefix(commandLine, "cd ") {
		target := strings.TrimSpace(strings.TrimPrefix(commandLine, "cd"))
		if target == "" {
			target = r.ProjectsDir
		} else if !path.IsAbs(target) {
			target = path.Join(room.CurrentWorkingDir, target)
		}
		room.CurrentWorkingDir = target
		return sendErr(collab.Send(ctx, fmt.Sprintf("cwd now `%s`", target)))
	}

	cwd := room.CurrentWorkingDir
	if cwd == "" {
		cwd = r.ProjectsDir
	}
	out, err := r.Engine.Tools.ExecuteCommand(ctx, commandLine, cwd)
	if err != nil && out == "" {
		out = err.Error()
	}
	return sendErr(collab.Send(ctx, "```\n"+out+"\n```"))
}

func (r *Router) isAdmin(sender string) bool {
	senderLower := strings.ToLower(sender)
	for _, a := range r.AdminAllowed {
		if strings.ToLower(a) == senderLower {
			return true
		}
	}
	return false
}

const helpText = `**Commands**
.task [description] — start or continue a task (empty: launch the task wizard)
.new [name] — create/switch to a project (empty: launch the project wizard)
.project [name] — show status, or switch to a project by name
.list — list projects
.status — show the current room's project/task/phase
.ask <question> — one-off LLM question, no task actions
.read <path> — read a file from the current project
.stop — request the active task to stop
.approve/.ok/.yes/.continue — approve a pending command, or resume plan execution
.deny/.no/.cancel — deny a pending command, or cancel the active wizard
,<command> — run an admin shell command (admin allowlist only)
`
