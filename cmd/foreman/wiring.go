package main

import (
	"fmt"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/foremanhq/foreman/internal/api"
	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/internal/orchestrator"
	"github.com/foremanhq/foreman/internal/planner"
	"github.com/foremanhq/foreman/internal/protect"
	"github.com/foremanhq/foreman/internal/state"
	"github.com/foremanhq/foreman/internal/tool"
)

// dataDir returns the engine data directory for the loaded config.
func dataDir(cfg *config.Config) string {
	return filepath.Join(cfg.Workspace.Dir, cfg.Workspace.DataDir)
}

// openStore opens the task database and applies migrations. Commands
// that inspect state without an engine use this directly.
func openStore(cfg *config.Config) (*state.DB, error) {
	db, err := state.Open(state.DBPath(dataDir(cfg)))
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// buildRegistry assembles the builtin toolbelt, with the protected
// block of .foreman.yaml merged into the guard policy.
func buildRegistry(cfg *config.Config) (*tool.Registry, error) {
	guard := protect.NewGuard(cfg.Workspace.Dir)
	if path := config.GetProjectConfigPath(); path != "" {
		if err := guard.LoadPolicy(path); err != nil {
			return nil, fmt.Errorf("load protection policy: %w", err)
		}
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry, cfg.Workspace.Dir, guard); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	return registry, nil
}

// buildCaller creates the reasoning caller for the configured provider,
// wrapped with the rate limiter when one is configured.
func buildCaller(cfg *config.Config) (api.Caller, error) {
	var (
		caller api.Caller
		err    error
	)

	switch cfg.Reasoning.Provider {
	case "", "anthropic":
		caller, err = api.NewAnthropicCaller(api.AnthropicConfig{
			Model:         anthropic.Model(cfg.Reasoning.Model),
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	case "openai":
		caller, err = api.NewOpenAICaller(api.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.Reasoning.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q: must be anthropic or openai", cfg.Reasoning.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create reasoning caller: %w", err)
	}

	if cfg.Reasoning.RateLimit > 0 {
		caller = api.NewRateLimited(caller, api.NewLimiter(cfg.Reasoning.RateLimit, cfg.Reasoning.RateWindow))
	}
	return caller, nil
}

// newEngine wires an engine onto an already opened store.
func newEngine(cfg *config.Config, db *state.DB) (*orchestrator.Engine, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	caller, err := buildCaller(cfg)
	if err != nil {
		return nil, err
	}

	eng, err := orchestrator.New(orchestrator.Options{
		Store:    db,
		Registry: registry,
		Resolver: planner.New(caller, registry, cfg.Reasoning.Timeout),
		Config:   cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return eng, nil
}

// buildEngine opens the store and wires a full engine around it. The
// caller owns the returned store and closes it after stopping the
// engine.
func buildEngine(cfg *config.Config) (*orchestrator.Engine, *state.DB, error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	eng, err := newEngine(cfg, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return eng, db, nil
}
