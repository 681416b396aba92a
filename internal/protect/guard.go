// Package protect refuses tool writes to sensitive workspace paths.
// Three checks are applied: glob patterns, path keywords, and file
// extensions. The policy ships with defaults and can be extended from
// the project's .foreman.yaml.
package protect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// ViolationError reports a refused path and why it matched the policy.
type ViolationError struct {
	Path   string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("path %s is protected: %s", e.Path, e.Reason)
}

// Guard vets paths against the protection policy. Paths are matched
// relative to the workspace root so the root's own location never
// triggers a keyword.
type Guard struct {
	root      string
	patterns  []string
	keywords  []string
	fileTypes []string
	mu        sync.RWMutex
}

// policyFile is the protected block of a .foreman.yaml file.
type policyFile struct {
	Protected struct {
		Patterns  []string `yaml:"patterns"`
		Keywords  []string `yaml:"keywords"`
		FileTypes []string `yaml:"file_types"`
	} `yaml:"protected"`
}

// NewGuard creates a guard for the given workspace root with the
// default policy.
func NewGuard(root string) *Guard {
	return &Guard{
		root:      root,
		patterns:  append([]string{}, DefaultPatterns...),
		keywords:  append([]string{}, DefaultKeywords...),
		fileTypes: append([]string{}, DefaultFileTypes...),
	}
}

// Check returns a *ViolationError when path matches the policy, nil
// otherwise.
func (g *Guard) Check(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	candidate := path
	if rel, err := filepath.Rel(g.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		candidate = rel
	}
	normalized := filepath.ToSlash(candidate)
	lower := strings.ToLower(normalized)

	for _, pattern := range g.patterns {
		if matchPattern(normalized, pattern) {
			return &ViolationError{Path: path, Reason: "matches pattern " + pattern}
		}
	}

	for _, keyword := range g.keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return &ViolationError{Path: path, Reason: "contains keyword " + keyword}
		}
	}

	ext := strings.ToLower(filepath.Ext(normalized))
	for _, protectedExt := range g.fileTypes {
		if ext == strings.ToLower(protectedExt) {
			return &ViolationError{Path: path, Reason: "file type " + protectedExt + " is protected"}
		}
	}

	return nil
}

// AddPattern extends the policy with a glob pattern.
func (g *Guard) AddPattern(pattern string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns = append(g.patterns, pattern)
}

// AddKeyword extends the policy with a path keyword.
func (g *Guard) AddKeyword(keyword string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keywords = append(g.keywords, keyword)
}

// AddFileType extends the policy with a file extension.
func (g *Guard) AddFileType(ext string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fileTypes = append(g.fileTypes, ext)
}

// LoadPolicy merges the protected block of a .foreman.yaml file into
// the policy. A missing file is not an error.
func (g *Guard) LoadPolicy(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read policy: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns = append(g.patterns, file.Protected.Patterns...)
	g.keywords = append(g.keywords, file.Protected.Keywords...)
	g.fileTypes = append(g.fileTypes, file.Protected.FileTypes...)
	return nil
}
