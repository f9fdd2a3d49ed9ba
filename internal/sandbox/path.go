package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// JailRoot validates and canonicalizes filesystem paths against a configured
// root, the way spec.md §4.1 describes: absolute paths are interpreted
// against the jail root (optionally treating it as "/"), relative paths
// against the current working directory; existing ancestors are
// canonicalized and must sit inside the canonical jail root; non-existent
// paths whose nearest existing ancestor is inside the jail are permitted so
// new files/directories can be created.
//
// The canonicalization and symlink/hardlink defenses are grounded on the
// teacher's internal/tools/filesystem.go (resolvePath / isPathInside /
// hasMutableSymlinkParent / checkHardlink / resolveThroughExistingAncestors),
// generalized from a single ReadFileTool into a jail primitive reused by
// every tool-executor operation.
type JailRoot struct {
	root string
}

// NewJailRoot canonicalizes root eagerly; if it doesn't exist yet the raw
// absolute path is used (mirrors the prototype's Sandbox::new behavior of
// falling back to the uncanonicalized path when canonicalize fails).
func NewJailRoot(root string) *JailRoot {
	abs, _ := filepath.Abs(root)
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &JailRoot{root: abs}
}

// Root returns the canonical jail root.
func (j *JailRoot) Root() string { return j.root }

// ValidatePath resolves and validates path against the jail, returning the
// canonical absolute path on success, or an error whose message is
// "path outside sandbox boundary" (per spec.md §4.1's rejection shape) on
// failure.
func (j *JailRoot) ValidatePath(cwd, path string) (string, error) {
	var resolved string
	switch {
	case path == "" || path == "/":
		resolved = j.root
	case filepath.IsAbs(path):
		// Treat the jail root as "/": an absolute path is first interpreted
		// literally, and if that literal path doesn't live under the jail,
		// it is reinterpreted relative to the jail root with its leading
		// slash stripped (spec.md §4.1).
		if isPathInside(filepath.Clean(path), j.root) {
			resolved = filepath.Clean(path)
		} else {
			resolved = filepath.Clean(filepath.Join(j.root, strings.TrimPrefix(path, "/")))
		}
	default:
		base := cwd
		if base == "" {
			base = j.root
		}
		resolved = filepath.Clean(filepath.Join(base, path))
	}

	real, err := j.canonicalize(resolved)
	if err != nil {
		return "", err
	}
	if !isPathInside(real, j.root) {
		return "", fmt.Errorf("path outside sandbox boundary")
	}
	if hasMutableSymlinkParent(real) {
		return "", fmt.Errorf("path outside sandbox boundary: mutable symlink component")
	}
	if err := checkHardlink(real); err != nil {
		return "", fmt.Errorf("path outside sandbox boundary: %w", err)
	}
	return real, nil
}

func (j *JailRoot) canonicalize(resolved string) (string, error) {
	real, err := filepath.EvalSymlinks(resolved)
	if err == nil {
		return real, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("path outside sandbox boundary: cannot resolve path")
	}

	if linfo, lerr := os.Lstat(resolved); lerr == nil && linfo.Mode()&os.ModeSymlink != 0 {
		target, readErr := os.Readlink(resolved)
		if readErr != nil {
			return "", fmt.Errorf("path outside sandbox boundary: cannot resolve symlink")
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(resolved), target)
		}
		target = filepath.Clean(target)
		through, rerr := resolveThroughExistingAncestors(target)
		if rerr != nil {
			return "", fmt.Errorf("path outside sandbox boundary: cannot resolve broken symlink target")
		}
		return through, nil
	}

	through, rerr := resolveThroughExistingAncestors(resolved)
	if rerr != nil {
		return "", fmt.Errorf("path outside sandbox boundary: cannot resolve parent")
	}
	return through, nil
}

func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

func resolveThroughExistingAncestors(target string) (string, error) {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real, nil
	}
	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, c := range tail {
				result = filepath.Join(result, c)
			}
			return result, nil
		}
	}
	return filepath.Clean(target), nil
}

func hasMutableSymlinkParent(path string) bool {
	clean := filepath.Clean(path)
	components := strings.Split(clean, string(filepath.Separator))
	current := string(filepath.Separator)
	for _, comp := range components {
		if comp == "" {
			continue
		}
		current = filepath.Join(current, comp)
		info, err := os.Lstat(current)
		if err != nil {
			break
		}
		if info.Mode()&os.ModeSymlink != 0 {
			parentDir := filepath.Dir(current)
			if syscall.Access(parentDir, 0x2) == nil {
				return true
			}
		}
	}
	return false
}

func checkHardlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return nil
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if stat.Nlink > 1 {
			slog.Warn("security.hardlink_rejected", "path", path, "nlink", stat.Nlink)
			return fmt.Errorf("hardlinked file not allowed")
		}
	}
	return nil
}

// Virtualize rewrites the jail root back to "/" in command output so the
// model never observes the real host path — carried over from the
// prototype's Sandbox::virtualize_output (see SPEC_FULL.md §12).
func (j *JailRoot) Virtualize(output string) string {
	if strings.TrimSpace(output) == j.root {
		return strings.Replace(output, j.root, "/", 1)
	}
	return strings.ReplaceAll(output, j.root, "")
}
