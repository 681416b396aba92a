package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxFileReadBytes = 256 << 10

// fileTools groups the workspace-rooted filesystem capabilities.
type fileTools struct {
	root  string
	guard Guard
}

// resolve turns a plan-supplied path into an absolute path inside the
// workspace root. Absolute paths and traversal outside the root are refused.
func (f *fileTools) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", Terminal(fmt.Errorf("path %s is absolute, paths must be workspace-relative", path))
	}
	abs := filepath.Join(f.root, filepath.Clean(path))
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", Terminal(fmt.Errorf("path %s escapes the workspace", path))
	}
	return abs, nil
}

func (f *fileTools) read(ctx context.Context, inv Invocation) (string, error) {
	path, err := stringArg(inv.Args, "path")
	if err != nil {
		return "", err
	}
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxFileReadBytes {
		return string(data[:maxFileReadBytes]) + "\n[truncated]", nil
	}
	return string(data), nil
}

func (f *fileTools) write(ctx context.Context, inv Invocation) (string, error) {
	path, err := stringArg(inv.Args, "path")
	if err != nil {
		return "", err
	}
	content, err := optionalStringArg(inv.Args, "content", "")
	if err != nil {
		return "", err
	}
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if f.guard != nil {
		if err := f.guard.Check(abs); err != nil {
			return "", Terminal(err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

func (f *fileTools) delete(ctx context.Context, inv Invocation) (string, error) {
	path, err := stringArg(inv.Args, "path")
	if err != nil {
		return "", err
	}
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if f.guard != nil {
		if err := f.guard.Check(abs); err != nil {
			return "", Terminal(err)
		}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("delete %s: %w", path, err)
	}
	if info.IsDir() {
		return "", Terminal(fmt.Errorf("delete %s: is a directory", path))
	}
	if err := os.Remove(abs); err != nil {
		return "", fmt.Errorf("delete %s: %w", path, err)
	}
	return fmt.Sprintf("deleted %s", path), nil
}

func (f *fileTools) list(ctx context.Context, inv Invocation) (string, error) {
	path, err := optionalStringArg(inv.Args, "path", ".")
	if err != nil {
		return "", err
	}
	abs, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(empty)", nil
	}
	return strings.Join(names, "\n"), nil
}
