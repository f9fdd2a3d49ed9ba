// Package sandbox classifies shell command lines (Allow/Ask/Block) and
// validates filesystem paths against a jail root.
//
// Command classification is grounded on the chained-command splitter and
// per-binary classifier in the construct prototype's
// src/utils/sandbox.rs (Sandbox::check_command / split_shell_commands).
// Path validation follows the same canonicalize-and-prefix-check idiom as
// the teacher's internal/tools/filesystem.go (resolvePath/isPathInside),
// generalized from a single ReadFileTool into a reusable jail primitive.
package sandbox

import (
	"log/slog"
	"strings"
)

// Verdict is the strictness-ordered classification of a command or path.
// Allowed < Ask < Blocked.
type Verdict int

const (
	Allowed Verdict = iota
	Ask
	Blocked
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Ask:
		return "ask"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Stricter returns the more restrictive of a and b under Allowed < Ask < Blocked.
func Stricter(a, b Verdict) Verdict {
	if a > b {
		return a
	}
	return b
}

// CommandPolicy is the allow/ask/block classification input, matching
// spec.md §4.1's {default, allowed[], ask[], blocked[]} policy shape.
type CommandPolicy struct {
	Default string // "allow", "ask" (fallback), or "block"
	Allowed []string
	Ask     []string
	Blocked []string
}

// Result carries a Verdict plus a human-readable reason for chat surfacing.
type Result struct {
	Verdict Verdict
	Reason  string
}

// ClassifyCommand applies spec.md §4.1's command classification rules: reject
// complex subshells outright, split the chain respecting quotes/heredocs,
// classify each simple command's binary, and take the strictest verdict
// across the chain. Every call is logged at slog.Debug with
// component=sandbox, extending agent.log's one-record-per-call shape to
// cover sandbox decisions alongside provider calls.
func ClassifyCommand(line string, policy CommandPolicy) Result {
	result := classifyCommand(line, policy)
	slog.Debug("sandbox classification", "component", "sandbox",
		"command", line, "verdict", result.Verdict.String(), "reason", result.Reason)
	return result
}

func classifyCommand(line string, policy CommandPolicy) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Result{Verdict: Allowed, Reason: "empty command"}
	}

	if hasComplexSubshell(line) {
		return Result{Verdict: Ask, Reason: "complex subshell execution detected"}
	}

	parts := splitShellCommands(line)
	if len(parts) == 0 {
		return Result{Verdict: Allowed, Reason: "no-op"}
	}

	final := Result{Verdict: Allowed}
	for _, cmd := range parts {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}
		binary := fields[0]
		if binary == "sudo" && len(fields) > 1 {
			binary = fields[1]
		}
		r := classifyBinary(binary, policy)
		switch r.Verdict {
		case Blocked:
			return r
		case Ask:
			final = r
		}
	}
	return final
}

func classifyBinary(binary string, policy CommandPolicy) Result {
	for _, b := range policy.Blocked {
		if b == binary {
			return Result{Verdict: Blocked, Reason: "command '" + binary + "' is explicitly blocked"}
		}
	}
	for _, a := range policy.Allowed {
		if a == binary {
			return Result{Verdict: Allowed, Reason: "command '" + binary + "' is allowed"}
		}
	}
	for _, a := range policy.Ask {
		if a == binary {
			return Result{Verdict: Ask, Reason: "command '" + binary + "' requires confirmation"}
		}
	}
	switch policy.Default {
	case "allow":
		return Result{Verdict: Allowed, Reason: "default policy allows '" + binary + "'"}
	case "block":
		return Result{Verdict: Blocked, Reason: "command '" + binary + "' is not in allowlist"}
	default:
		return Result{Verdict: Ask, Reason: "unknown command '" + binary + "' (default policy is ask)"}
	}
}

// hasComplexSubshell detects `$(...)` or backticks that are not simply
// content inside a heredoc body, mirroring the prototype's heredoc-aware
// backtick scan.
func hasComplexSubshell(line string) bool {
	if strings.Contains(line, "$(") {
		return true
	}
	hasHeredoc := strings.Contains(line, "<< 'EOF") ||
		strings.Contains(line, `<< "EOF`) ||
		strings.Contains(line, "<< EOF") ||
		strings.Contains(line, "<<'EOF") ||
		strings.Contains(line, `<<"EOF`) ||
		strings.Contains(line, "<<EOF")
	if !hasHeredoc {
		return strings.Contains(line, "`")
	}
	if idx := strings.Index(line, "<<"); idx >= 0 {
		return strings.Contains(line[:idx], "`")
	}
	return strings.Contains(line, "`")
}

// splitShellCommands splits on ; | & && || while respecting single/double
// quotes and heredoc bodies, grounded 1:1 on the prototype's
// split_shell_commands state machine.
func splitShellCommands(input string) []string {
	var parts []string
	var current strings.Builder
	inSingle, inDouble, inHeredoc := false, false, false
	heredocDelim := ""

	runes := []rune(input)
	n := len(runes)
	for i := 0; i < n; i++ {
		c := runes[i]
		switch {
		case c == '\'' && !inDouble && !inHeredoc:
			inSingle = !inSingle
			current.WriteRune(c)
		case c == '"' && !inSingle && !inHeredoc:
			inDouble = !inDouble
			current.WriteRune(c)
		case c == '\n':
			current.WriteRune(c)
			if !inSingle && !inDouble && !inHeredoc {
				line := strings.TrimSpace(current.String())
				if strings.Contains(line, "<<") {
					if idx := strings.Index(line, "<<"); idx >= 0 {
						after := line[idx+2:]
						delim := strings.TrimSpace(after)
						delim = strings.TrimPrefix(delim, "'")
						delim = strings.TrimPrefix(delim, "\"")
						delim = strings.TrimSuffix(delim, "'")
						delim = strings.TrimSuffix(delim, "\"")
						if fields := strings.Fields(delim); len(fields) > 0 {
							inHeredoc = true
							heredocDelim = fields[0]
						}
					}
				}
			}
			if inHeredoc {
				lineContent := strings.TrimSpace(current.String())
				if lastLine(lineContent) == heredocDelim {
					inHeredoc = false
					heredocDelim = ""
				}
			}
		case !inSingle && !inDouble && !inHeredoc && c == ';':
			flush(&parts, &current)
		case !inSingle && !inDouble && !inHeredoc && c == '|':
			if i+1 < n && runes[i+1] == '|' {
				i++
			}
			flush(&parts, &current)
		case !inSingle && !inDouble && !inHeredoc && c == '&':
			if i+1 < n && runes[i+1] == '&' {
				i++
			}
			flush(&parts, &current)
		default:
			current.WriteRune(c)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}

func flush(parts *[]string, current *strings.Builder) {
	if t := strings.TrimSpace(current.String()); t != "" {
		*parts = append(*parts, t)
	}
	current.Reset()
}

// pathArgBinaries lists binaries whose trailing non-flag arguments are
// filesystem paths worth jail-validating, per spec.md §4.1's
// file-operation check.
var pathArgBinaries = map[string]bool{
	"cat": true, "head": true, "tail": true, "ls": true,
	"cd": true, "cp": true, "mv": true, "rm": true,
}

// ExtractPathArgs pulls candidate path arguments out of a (single, already
// split) command for path validation, skipping flags.
func ExtractPathArgs(cmd string) []string {
	fields := strings.Fields(cmd)
	var out []string
	for i, f := range fields {
		switch f {
		case ">", ">>", "<":
			if i+1 < len(fields) {
				out = append(out, fields[i+1])
			}
		case "cat", "head", "tail", "cd":
			if i+1 < len(fields) && !strings.HasPrefix(fields[i+1], "-") {
				out = append(out, fields[i+1])
			}
		case "ls":
			if i+1 < len(fields) && !strings.HasPrefix(fields[i+1], "-") {
				out = append(out, fields[i+1])
			}
		case "rm", "mv", "cp":
			for _, a := range fields[i+1:] {
				if !strings.HasPrefix(a, "-") {
					out = append(out, a)
				}
			}
		}
	}
	return out
}
