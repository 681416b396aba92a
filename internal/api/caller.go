// Package api provides the reasoning clients the planner calls to turn
// a task into a strategy. Two providers are supported, Anthropic
// (directly or through AWS Bedrock) and OpenAI-compatible endpoints,
// behind one Caller interface.
package api

import (
	"context"
	"sync"
)

// Request is one reasoning request.
type Request struct {
	// System sets the system prompt. Empty means none.
	System string
	// User is the user-turn content.
	User string
}

// Caller is implemented by reasoning providers.
type Caller interface {
	// Complete performs one request and returns the text of the reply.
	Complete(ctx context.Context, req Request) (string, error)
	// Name identifies the provider in logs and errors.
	Name() string
}

// TokenTracker tracks token usage across reasoning calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}
