package tool

import (
	"net/http"
	"time"
)

// RegisterBuiltins installs the standard toolbelt into the registry.
// Filesystem capabilities stay inside workspace; guard vets writes and
// deletes against the protection policy.
func RegisterBuiltins(r *Registry, workspace string, guard Guard) error {
	files := &fileTools{root: workspace, guard: guard}
	shell := newShellRunner(workspace, DefaultShellAllowlist)
	fetcher := &httpFetcher{client: &http.Client{}}

	builtins := []Registration{
		{
			Name:        "file_read",
			Description: "Read a file from the workspace and return its contents",
			Idempotency: Idempotent,
			Timeout:     10 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "description": "Workspace-relative file path"},
				},
				"required": []string{"path"},
			},
			Capability: CapabilityFunc(files.read),
		},
		{
			Name:        "file_list",
			Description: "List the entries of a workspace directory",
			Idempotency: Idempotent,
			Timeout:     10 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "description": "Workspace-relative directory, defaults to the workspace root"},
				},
			},
			Capability: CapabilityFunc(files.list),
		},
		{
			Name:        "file_write",
			Description: "Write content to a workspace file, creating parent directories",
			Idempotency: SideEffectingUnknown,
			Timeout:     10 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string", "description": "Workspace-relative file path"},
					"content": map[string]any{"type": "string", "description": "Content to write"},
				},
				"required": []string{"path"},
			},
			Capability: CapabilityFunc(files.write),
		},
		{
			Name:        "file_delete",
			Description: "Delete a single workspace file",
			Idempotency: SideEffectingUnknown,
			Timeout:     10 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "description": "Workspace-relative file path"},
				},
				"required": []string{"path"},
			},
			Capability: CapabilityFunc(files.delete),
		},
		{
			Name:        "shell_exec",
			Description: "Run an allowlisted shell command inside the workspace",
			Idempotency: SideEffectingUnsafe,
			Timeout:     20 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Command line, first word must be allowlisted"},
				},
				"required": []string{"command"},
			},
			Capability: CapabilityFunc(shell.run),
		},
		{
			Name:        "http_fetch",
			Description: "Fetch a URL over HTTP GET and return the response body",
			Idempotency: Idempotent,
			Timeout:     30 * time.Second,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "http or https URL"},
				},
				"required": []string{"url"},
			},
			Capability: CapabilityFunc(fetcher.fetch),
		},
	}

	for _, reg := range builtins {
		if err := r.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
