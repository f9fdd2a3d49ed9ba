// Package actions implements the Action Parser (spec.md §4.8): it scans a
// model's free-text reply for fenced code blocks and turns each into at
// most one typed Action.
//
// No direct pack grounding exists for this exact heuristic — the
// prototype's own parse_actions (original_source/src/core/utils.rs and the
// duplicate src/utils/common.rs) only ever recognized ShellCommand and
// Done; the richer WriteFile/ReadFile/ListDir/SwitchMode actions consumed
// by engine.rs's match arms have no corresponding parser anywhere in the
// pack (engine.rs calls application::parsing::parse_actions, but that file
// is absent). This is reconstructed from the prototype's fenced-block scan
// shape plus spec.md §4.8's literal heuristic description.
package actions

import (
	"strings"
)

// Kind identifies which typed action a parsed block produced.
type Kind int

const (
	KindShellCommand Kind = iota
	KindWriteFile
	KindReadFile
	KindListDir
	KindSwitchMode
	KindDone
)

// Action is one step the engine should execute, in the order parsed.
type Action struct {
	Kind    Kind
	Path    string // WriteFile / ReadFile / ListDir
	Content string // WriteFile body
	Command string // ShellCommand body
	Mode    string // SwitchMode target ("planning" | "execution" | "conversational")
}

// Parse scans response for fenced code blocks and returns the ordered list
// of actions they produce. An empty result signals a purely conversational
// turn (spec.md §4.8).
func Parse(response string) []Action {
	var out []Action
	pos := 0

	for {
		start := strings.Index(response[pos:], "```")
		if start < 0 {
			break
		}
		absStart := pos + start
		end := strings.Index(response[absStart+3:], "```")
		if end < 0 {
			break
		}
		absEnd := absStart + 3 + end

		block := response[absStart+3 : absEnd]
		if action, ok := parseBlock(block); ok {
			out = append(out, action)
		}

		pos = absEnd + 3
	}

	return out
}

// parseBlock classifies a single fenced block's body (language tag on the
// first line is stripped, matching the prototype's `lines.next()` skip).
func parseBlock(block string) (Action, bool) {
	lines := strings.Split(block, "\n")
	var body string
	if len(lines) > 0 {
		body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	if body == "" {
		return Action{}, false
	}

	if strings.Contains(body, "System Command Output:") {
		return Action{}, false
	}

	if body == "DONE" || strings.Contains(body, "echo DONE") {
		return Action{Kind: KindDone}, true
	}

	if path, ok := writeFilePath(body); ok {
		content := stripWriteFileMarker(body, path)
		return Action{Kind: KindWriteFile, Path: path, Content: content}, true
	}

	tag := strings.ToLower(strings.TrimSpace(lines[0]))
	switch {
	case tag == "read":
		return Action{Kind: KindReadFile, Path: strings.TrimSpace(body)}, true
	case tag == "list":
		return Action{Kind: KindListDir, Path: strings.TrimSpace(body)}, true
	case strings.HasPrefix(tag, "mode "):
		mode := strings.TrimSpace(strings.TrimPrefix(tag, "mode "))
		switch mode {
		case "planning", "execution", "conversational":
			return Action{Kind: KindSwitchMode, Mode: mode}, true
		}
	}

	return Action{Kind: KindShellCommand, Command: body}, true
}

// writeFilePath reports whether body carries a WRITE_FILE: <path> marker
// either on its own first line or as the line immediately preceding the
// closing fence. Per the Open Question decision in DESIGN.md, both forms
// are accepted since the prototype never shipped this heuristic for us to
// disambiguate against.
func writeFilePath(body string) (string, bool) {
	lines := strings.Split(body, "\n")
	if len(lines) == 0 {
		return "", false
	}
	if path, ok := parseWriteFileLine(lines[0]); ok {
		return path, true
	}
	if path, ok := parseWriteFileLine(lines[len(lines)-1]); ok {
		return path, true
	}
	return "", false
}

func parseWriteFileLine(line string) (string, bool) {
	const marker = "WRITE_FILE:"
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, marker) {
		return "", false
	}
	path := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
	if path == "" {
		return "", false
	}
	return path, true
}

// stripWriteFileMarker removes whichever line carried the WRITE_FILE:
// marker from body, leaving only the file content.
func stripWriteFileMarker(body, path string) string {
	lines := strings.Split(body, "\n")
	filtered := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := parseWriteFileLine(l); ok {
			continue
		}
		filtered = append(filtered, l)
	}
	return strings.TrimSpace(strings.Join(filtered, "\n"))
}
