package engine

import (
	"log/slog"
	"strings"
)

// renderer does ordered key→value substitution over a template string and
// warns if any {{PLACEHOLDER}} survives the pass, mirroring the
// prototype's PromptRenderer (original_source/src/strings/prompts.rs).
type renderer struct {
	template string
	pairs    []string // key, value, key, value, ...
}

func newRenderer(template string) *renderer {
	return &renderer{template: template}
}

func (r *renderer) set(key, value string) *renderer {
	r.pairs = append(r.pairs, key, value)
	return r
}

func (r *renderer) render() string {
	result := strings.NewReplacer(r.pairs...).Replace(r.template)
	if start := strings.Index(result, "{{"); start >= 0 {
		if end := strings.Index(result[start:], "}}"); end >= 0 {
			slog.Error("prompt render: unreplaced placeholder", "placeholder", result[start:start+end+2])
		}
	}
	return result
}

const contextTemplate = `## Context

**History**:
{{HISTORY}}

**Progress**:
{{PROGRESS}}

**Roadmap**:
{{ROADMAP}}

**Architecture**:
{{ARCHITECTURE}}

**Active task checklist**:
{{TASKS_CHECKLIST}}

**Plan**:
{{PLAN}}
`

func buildContext(history, progress, roadmap, architecture, tasksChecklist, plan string) string {
	return newRenderer(contextTemplate).
		set("{{HISTORY}}", history).
		set("{{PROGRESS}}", progress).
		set("{{ROADMAP}}", roadmap).
		set("{{ARCHITECTURE}}", architecture).
		set("{{TASKS_CHECKLIST}}", tasksChecklist).
		set("{{PLAN}}", plan).
		render()
}

const architectTemplate = `You are the architecture/planning agent for the project at {{CWD}}. Active task: {{ACTIVE_TASK}}.
Current date: {{CURRENT_DATE}}.

Produce or revise the project's planning documents only: roadmap.md, architecture.md, plan.md,
progress.md, tasks.md. Do not run shell commands and do not write source code in this phase.

{{CONTEXT}}

Emit each document as a fenced block whose body starts with a line "WRITE_FILE: <path>".
When the plan is complete and ready for review, emit a fenced block whose body is exactly DONE.
`

const newProjectTemplate = `You are initializing a new project named {{NAME}} at {{WORKDIR}}.
Current date: {{CURRENT_DATE}}.

Requirements:
{{REQUIREMENTS}}

Write the initial roadmap.md, architecture.md and a first task plan under tasks/001-init/,
each as a fenced block whose body starts with "WRITE_FILE: <path>". Finish with a fenced DONE
block once the initial documents are in place.
`

const developerTemplate = `You are the execution agent for the project at {{CWD}}. Active task: {{ACTIVE_TASK}}.
Current date: {{CURRENT_DATE}}.

{{CONTEXT}}

Work the active task to completion. Use fenced code blocks for each step: a shell command to run,
"read"/"list" tagged blocks to inspect files, a "WRITE_FILE: <path>" block to write one, or
"mode planning"/"mode execution"/"mode conversational" to switch phase. Emit a fenced DONE block
once the task is fully implemented and verified.
`

const conversationalTemplate = `You are discussing the project at {{CWD}} with the user; this is a conversational turn, not a
task execution. Answer directly in plain text — do not emit shell commands or file writes.

{{CONTEXT}}
`

// NewProjectPrompt composes the NewProject-phase prompt (original_source's
// new_project_prompt), layering the architect system prompt over the
// project-specific instructions.
func NewProjectPrompt(name, requirements, workdir, currentDate string) string {
	architect := newRenderer(architectTemplate).
		set("{{CWD}}", workdir).
		set("{{ACTIVE_TASK}}", ".").
		set("{{CONTEXT}}", buildContext("(new project)", "(no progress yet)", "(no roadmap yet)", "(no architecture yet)", "(new project initialization)", "(no plan yet)")).
		set("{{CURRENT_DATE}}", currentDate).
		render()

	specific := newRenderer(newProjectTemplate).
		set("{{NAME}}", name).
		set("{{REQUIREMENTS}}", requirements).
		set("{{WORKDIR}}", workdir).
		set("{{CURRENT_DATE}}", currentDate).
		render()

	return architect + "\n\n# SPECIFIC INSTRUCTIONS FOR NEW PROJECT\n" + specific
}

// PlanningModeTurn composes the Planning-phase prompt.
func PlanningModeTurn(cwd, roadmap, tasksChecklist, plan, architecture, progress, activeTask, history, currentDate string) string {
	return newRenderer(architectTemplate).
		set("{{CWD}}", cwd).
		set("{{ACTIVE_TASK}}", activeTask).
		set("{{CONTEXT}}", buildContext(history, progress, roadmap, architecture, tasksChecklist, plan)).
		set("{{CURRENT_DATE}}", currentDate).
		render()
}

// ExecutionModeTurn composes the Execution-phase prompt.
func ExecutionModeTurn(cwd, roadmap, tasksChecklist, plan, architecture, progress, activeTask, history, currentDate string) string {
	return newRenderer(developerTemplate).
		set("{{CWD}}", cwd).
		set("{{ACTIVE_TASK}}", activeTask).
		set("{{CONTEXT}}", buildContext(history, progress, roadmap, architecture, tasksChecklist, plan)).
		set("{{CURRENT_DATE}}", currentDate).
		render()
}

// ConversationalModeTurn composes the Conversational-phase prompt.
func ConversationalModeTurn(cwd, roadmap, tasksChecklist, plan, history string) string {
	return newRenderer(conversationalTemplate).
		set("{{CWD}}", cwd).
		set("{{CONTEXT}}", buildContext(history, "(no progress)", roadmap, "(no architecture)", tasksChecklist, plan)).
		render()
}
