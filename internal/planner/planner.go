// Package planner resolves a task into an execution strategy with one
// reasoning call. The resolver is a pure function of the task input and
// the registry snapshot; it never retries and never persists anything.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/foremanhq/foreman/internal/api"
	"github.com/foremanhq/foreman/internal/tool"
	"github.com/foremanhq/foreman/pkg/models"
)

// Resolution failure reasons.
const (
	ReasonTimeout   = "timeout"
	ReasonMalformed = "malformed_response"
	ReasonUpstream  = "upstream_error"
)

// ResolutionError is the only error type Resolve returns.
type ResolutionError struct {
	Reason string
	Detail string
	Err    error
}

func (e *ResolutionError) Error() string {
	return e.Reason + ": " + e.Detail
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// DefaultTimeout bounds one resolution call.
const DefaultTimeout = 30 * time.Second

// MaxSteps caps how many steps a single plan may carry.
const MaxSteps = 10

// Planner turns task input into a strategy and plan.
type Planner struct {
	caller   api.Caller
	registry *tool.Registry
	timeout  time.Duration
}

// New creates a planner. A non-positive timeout selects DefaultTimeout.
func New(caller api.Caller, registry *tool.Registry, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Planner{caller: caller, registry: registry, timeout: timeout}
}

// planResponse is the JSON object the model must answer with.
type planResponse struct {
	Category      string     `json:"category"`
	Complexity    string     `json:"complexity"`
	RequiredTools []string   `json:"required_tools"`
	Steps         []planStep `json:"steps"`
}

type planStep struct {
	Instruction string         `json:"instruction"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
}

// Resolve performs the single reasoning call and validates the reply.
// The returned error is always a *ResolutionError.
func (p *Planner) Resolve(ctx context.Context, input string) (*models.Strategy, []models.PlannedStep, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.caller.Complete(cctx, api.Request{
		System: systemPrompt,
		User:   userPrompt(input, p.registry.Specs()),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, &ResolutionError{
				Reason: ReasonTimeout,
				Detail: fmt.Sprintf("no response from %s within %s", p.caller.Name(), p.timeout),
				Err:    err,
			}
		}
		return nil, nil, &ResolutionError{Reason: ReasonUpstream, Detail: err.Error(), Err: err}
	}

	payload, err := extractJSON(raw)
	if err != nil {
		return nil, nil, &ResolutionError{Reason: ReasonMalformed, Detail: err.Error()}
	}

	var resp planResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, nil, &ResolutionError{Reason: ReasonMalformed, Detail: fmt.Sprintf("invalid plan JSON: %v", err)}
	}

	return p.validate(resp)
}

// validate normalizes the parsed response and checks every tool name
// against the registry.
func (p *Planner) validate(resp planResponse) (*models.Strategy, []models.PlannedStep, error) {
	category := resp.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	complexity := models.Complexity(resp.Complexity)
	if !complexity.Valid() {
		complexity = models.ComplexityMedium
	}

	if len(resp.Steps) > MaxSteps {
		return nil, nil, &ResolutionError{
			Reason: ReasonMalformed,
			Detail: fmt.Sprintf("plan has %d steps, limit is %d", len(resp.Steps), MaxSteps),
		}
	}

	var steps []models.PlannedStep
	seenTools := map[string]bool{}
	for i, s := range resp.Steps {
		// Steps without an instruction carry no executable content.
		if s.Instruction == "" {
			continue
		}
		if s.Tool == "" {
			return nil, nil, &ResolutionError{
				Reason: ReasonMalformed,
				Detail: fmt.Sprintf("step %d has no tool", i+1),
			}
		}
		if !p.registry.Has(s.Tool) {
			return nil, nil, &ResolutionError{
				Reason: ReasonMalformed,
				Detail: fmt.Sprintf("step %d names unknown tool %q", i+1, s.Tool),
			}
		}
		seenTools[s.Tool] = true
		steps = append(steps, models.PlannedStep{
			Instruction: s.Instruction,
			Tool:        s.Tool,
			Args:        s.Args,
		})
	}

	required := resp.RequiredTools
	if len(required) == 0 {
		for name := range seenTools {
			required = append(required, name)
		}
		sort.Strings(required)
	}
	for _, name := range required {
		if !p.registry.Has(name) {
			return nil, nil, &ResolutionError{
				Reason: ReasonMalformed,
				Detail: fmt.Sprintf("required tool %q is not registered", name),
			}
		}
	}

	strategy := &models.Strategy{
		Category:      category,
		Complexity:    complexity,
		RequiredTools: required,
	}
	return strategy, steps, nil
}
