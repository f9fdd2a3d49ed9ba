package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/forgecrew/taskloop/internal/core"
	"github.com/forgecrew/taskloop/internal/sandbox"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	jail := sandbox.NewJailRoot(dir)
	return New(jail), jail.Root()
}

func TestExecuteCommand_Success(t *testing.T) {
	ex, root := newTestExecutor(t)
	out, err := ex.ExecuteCommand(context.Background(), "echo hello", root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("got %q", out)
	}
	if strings.Contains(out, "[Exit Code:") {
		t.Fatalf("successful output must not carry an exit code suffix: %q", out)
	}
}

func TestExecuteCommand_FailureAppendsExitCode(t *testing.T) {
	ex, root := newTestExecutor(t)
	out, err := ex.ExecuteCommand(context.Background(), "exit 7", root)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(out, "[Exit Code: 7]") {
		t.Fatalf("got %q, want exit code suffix", out)
	}
	if kind := core.KindOf(err); kind != core.KindCommandFailed {
		t.Fatalf("got kind %v, want KindCommandFailed (process ran and exited non-zero, it didn't fail to spawn)", kind)
	}
}

func TestExecuteCommand_DeniedByPattern(t *testing.T) {
	ex, root := newTestExecutor(t)
	_, err := ex.ExecuteCommand(context.Background(), "rm -rf /", root)
	if err == nil {
		t.Fatalf("expected deny-pattern rejection")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ex, root := newTestExecutor(t)
	if err := ex.WriteFile(context.Background(), root, "notes/a.txt", "hi"); err != nil {
		t.Fatalf("write: %v", err)
	}
	content, err := ex.ReadFile(context.Background(), root, "notes/a.txt")
	if err != nil || content != "hi" {
		t.Fatalf("read: got (%q, %v)", content, err)
	}
}

func TestListDir(t *testing.T) {
	ex, root := newTestExecutor(t)
	_ = ex.WriteFile(context.Background(), root, "a.txt", "x")
	_ = ex.WriteFile(context.Background(), root, "sub/b.txt", "y")
	out, err := ex.ListDir(context.Background(), root, ".")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "a.txt [FILE]") || !strings.Contains(out, "sub [DIR]") {
		t.Fatalf("got %q", out)
	}
}

func TestClassifyTimeout(t *testing.T) {
	cases := map[string]TimeoutClass{
		"ls -la":        TimeoutShort,
		"cargo build":   TimeoutLong,
		"go build ./...": TimeoutLong,
		"go test ./...":  TimeoutLong,
		"git clone foo":  TimeoutLong,
		"echo hi":        TimeoutShort,
		"python app.py":  TimeoutMedium,
	}
	for cmd, want := range cases {
		if got := ClassifyTimeout(cmd); got != want {
			t.Fatalf("%q: got %v want %v", cmd, got, want)
		}
	}
}
