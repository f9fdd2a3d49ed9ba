package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJailRoot_BasicContainment(t *testing.T) {
	dir := t.TempDir()
	jail := NewJailRoot(dir)

	if real, err := jail.ValidatePath("", "."); err != nil || real != jail.Root() {
		t.Fatalf("jail root itself: got (%q, %v)", real, err)
	}

	if _, err := jail.ValidatePath("", ".."); err == nil {
		t.Fatalf("parent of jail root: expected rejection")
	}

	if _, err := jail.ValidatePath("", "newfile.md"); err != nil {
		t.Fatalf("non-existent file with existing parent: %v", err)
	}
}

func TestJailRoot_AbsoluteTreatedAsRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	jail := NewJailRoot(dir)

	// "cd /" resolves to the jail root (treat jail as "/").
	real, err := jail.ValidatePath("", "/")
	if err != nil || real != jail.Root() {
		t.Fatalf("got (%q, %v) want jail root", real, err)
	}

	real, err = jail.ValidatePath("", "/sub")
	if err != nil {
		t.Fatalf("absolute path under jail: %v", err)
	}
	want, _ := filepath.EvalSymlinks(filepath.Join(dir, "sub"))
	if real != want {
		t.Fatalf("got %q want %q", real, want)
	}
}

func TestJailRoot_SymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	jail := NewJailRoot(dir)
	if _, err := jail.ValidatePath("", "escape"); err == nil {
		t.Fatalf("expected symlink escape to be rejected")
	}
}

func TestJailRoot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	jail := NewJailRoot(dir)
	real, err := jail.ValidatePath("", "a/b/c.txt")
	if err != nil {
		t.Fatalf("validate nested non-existent path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(real, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	real2, err := jail.ValidatePath("", "a/b/c.txt")
	if err != nil {
		t.Fatalf("validate existing path: %v", err)
	}
	data, err := os.ReadFile(real2)
	if err != nil || string(data) != "hello" {
		t.Fatalf("round trip failed: %q %v", data, err)
	}
}

func TestVirtualize(t *testing.T) {
	dir := t.TempDir()
	jail := NewJailRoot(dir)
	out := jail.Virtualize(jail.Root() + "/foo/bar")
	if out != "/foo/bar" {
		t.Fatalf("got %q", out)
	}
}
