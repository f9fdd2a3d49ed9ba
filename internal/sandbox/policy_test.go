package sandbox

import "testing"

func defaultAskPolicy() CommandPolicy {
	return CommandPolicy{
		Default: "ask",
		Allowed: []string{"ls", "cat", "echo", "git"},
		Ask:     []string{"rm", "curl"},
		Blocked: []string{"shutdown", "mkfs"},
	}
}

func TestClassifyCommand_Boundaries(t *testing.T) {
	p := defaultAskPolicy()

	if r := ClassifyCommand("", p); r.Verdict != Allowed {
		t.Fatalf("empty command: got %v want Allowed", r.Verdict)
	}
	if r := ClassifyCommand("   ", p); r.Verdict != Allowed {
		t.Fatalf("whitespace-only command: got %v want Allowed", r.Verdict)
	}
	if r := ClassifyCommand("ls -la", p); r.Verdict != Allowed {
		t.Fatalf("ls: got %v want Allowed", r.Verdict)
	}
	if r := ClassifyCommand("shutdown now", p); r.Verdict != Blocked {
		t.Fatalf("shutdown: got %v want Blocked", r.Verdict)
	}
	if r := ClassifyCommand("wget http://x", p); r.Verdict != Ask {
		t.Fatalf("unknown binary under ask-default: got %v want Ask", r.Verdict)
	}
}

func TestClassifyCommand_ChainStrictness(t *testing.T) {
	p := defaultAskPolicy()
	// echo (Allowed) && rm (Ask) -> Ask
	r := ClassifyCommand("echo hi && rm -rf foo", p)
	if r.Verdict != Ask {
		t.Fatalf("echo && rm: got %v want Ask", r.Verdict)
	}
	// echo (Allowed) && shutdown (Blocked) -> Blocked regardless of order
	r = ClassifyCommand("echo hi && shutdown -h now", p)
	if r.Verdict != Blocked {
		t.Fatalf("echo && shutdown: got %v want Blocked", r.Verdict)
	}
	// sudo prefix classifies the real binary
	r = ClassifyCommand("sudo shutdown -h now", p)
	if r.Verdict != Blocked {
		t.Fatalf("sudo shutdown: got %v want Blocked", r.Verdict)
	}
}

func TestClassifyCommand_ComplexSubshell(t *testing.T) {
	p := defaultAskPolicy()
	if r := ClassifyCommand("echo $(whoami)", p); r.Verdict != Ask {
		t.Fatalf("command substitution: got %v want Ask", r.Verdict)
	}
	if r := ClassifyCommand("echo `whoami`", p); r.Verdict != Ask {
		t.Fatalf("backticks: got %v want Ask", r.Verdict)
	}
}

func TestClassifyCommand_HeredocNotSplit(t *testing.T) {
	p := defaultAskPolicy()
	cmd := "cat <<'EOF' > out.txt\nfoo && bar\nEOF"
	r := ClassifyCommand(cmd, p)
	// cat is allowed, and the heredoc body ("foo && bar") must not be split
	// into separate commands that would classify "bar" as unknown/ask.
	if r.Verdict != Allowed {
		t.Fatalf("heredoc body split: got %v want Allowed", r.Verdict)
	}
}

func TestSplitShellCommands(t *testing.T) {
	parts := splitShellCommands("echo a; echo b && echo c || echo d | echo e & echo f")
	want := []string{"echo a", "echo b", "echo c", "echo d", "echo e", "echo f"}
	if len(parts) != len(want) {
		t.Fatalf("got %v want %v", parts, want)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d: got %q want %q", i, parts[i], want[i])
		}
	}
}

func TestSplitShellCommands_RespectsQuotes(t *testing.T) {
	parts := splitShellCommands(`echo "a && b" ; echo c`)
	if len(parts) != 2 {
		t.Fatalf("got %v want 2 parts", parts)
	}
	if parts[0] != `echo "a && b"` {
		t.Fatalf("got %q", parts[0])
	}
}

func TestExtractPathArgs(t *testing.T) {
	paths := ExtractPathArgs("rm -rf /etc/passwd /tmp/x")
	if len(paths) != 2 || paths[0] != "/etc/passwd" || paths[1] != "/tmp/x" {
		t.Fatalf("got %v", paths)
	}
	paths = ExtractPathArgs("ls -la")
	if len(paths) != 0 {
		t.Fatalf("got %v want none (flag only)", paths)
	}
}
