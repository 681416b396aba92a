package config

import (
	"errors"
	"testing"
)

func TestAnthropicKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	if _, err := AnthropicKey(cfg); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("AnthropicKey() error = %v, want ErrNoAPIKey", err)
	}

	cfg.Anthropic.APIKey = "sk-ant-from-config"
	key, err := AnthropicKey(cfg)
	if err != nil {
		t.Fatalf("AnthropicKey() error = %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("AnthropicKey() = %q, want config value", key)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	key, err = AnthropicKey(cfg)
	if err != nil {
		t.Fatalf("AnthropicKey() error = %v", err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("AnthropicKey() = %q, environment must win", key)
	}
}

func TestAnthropicKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	if got := AnthropicKeySource(cfg); got != KeySourceNone {
		t.Errorf("source = %q, want none", got)
	}

	cfg.Anthropic.APIKey = "sk-ant-x"
	if got := AnthropicKeySource(cfg); got != KeySourceConfig {
		t.Errorf("source = %q, want config_file", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-y")
	if got := AnthropicKeySource(cfg); got != KeySourceEnv {
		t.Errorf("source = %q, want environment", got)
	}
}

func TestOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Default()
	if _, err := OpenAIKey(cfg); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("OpenAIKey() error = %v, want ErrNoAPIKey", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-openai")
	key, err := OpenAIKey(cfg)
	if err != nil {
		t.Fatalf("OpenAIKey() error = %v", err)
	}
	if key != "sk-openai" {
		t.Errorf("OpenAIKey() = %q, want env value", key)
	}
}

func TestValidateAnthropicKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "sk-ant-REDACTED", false},
		{"empty", "", true},
		{"wrong prefix", "sk-openai-abcdef1234567890", true},
		{"too short", "sk-ant-x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnthropicKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAnthropicKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-api03-abcdefgh1234", "sk-ant-...1234"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
