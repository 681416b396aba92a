package api

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible caller. Setting BaseURL
// points it at any compatible endpoint (OpenRouter, local gateways).
type OpenAIConfig struct {
	// APIKey is the API key. If empty, uses OPENAI_API_KEY.
	APIKey string
	// Model is the model to use. Empty selects a default.
	Model string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// OpenAICaller talks to OpenAI-compatible chat completion endpoints.
type OpenAICaller struct {
	client  *openai.Client
	model   string
	tracker *TokenTracker
}

// NewOpenAICaller creates an OpenAI-backed caller.
func NewOpenAICaller(cfg OpenAIConfig) (*OpenAICaller, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAICaller{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// Complete performs one chat completion and returns the reply content.
func (c *OpenAICaller) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}

// Name identifies this provider.
func (c *OpenAICaller) Name() string {
	return "openai"
}

// Tracker returns the token tracker for this caller.
func (c *OpenAICaller) Tracker() *TokenTracker {
	return c.tracker
}
