package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/foremanhq/foreman/internal/api"
	"github.com/foremanhq/foreman/internal/tool"
	"github.com/foremanhq/foreman/pkg/models"
)

type stubCaller struct {
	reply   string
	err     error
	lastReq api.Request
}

func (s *stubCaller) Complete(ctx context.Context, req api.Request) (string, error) {
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubCaller) Name() string { return "stub" }

// blockingCaller waits out the context, like a hung upstream.
type blockingCaller struct{}

func (b *blockingCaller) Complete(ctx context.Context, req api.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (b *blockingCaller) Name() string { return "blocking" }

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	for _, name := range []string{"file_read", "file_write", "http_fetch"} {
		r.MustRegister(tool.Registration{
			Name:        name,
			Idempotency: tool.Idempotent,
			Capability: tool.CapabilityFunc(func(ctx context.Context, inv tool.Invocation) (string, error) {
				return "", nil
			}),
		})
	}
	return r
}

const goodReply = `{
	"category": "file-ops",
	"complexity": "low",
	"required_tools": ["file_read"],
	"steps": [
		{"instruction": "Read the report", "tool": "file_read", "args": {"path": "report.txt"}}
	]
}`

func TestResolve(t *testing.T) {
	caller := &stubCaller{reply: goodReply}
	p := New(caller, testRegistry(t), time.Second)

	strategy, steps, err := p.Resolve(context.Background(), "summarize report.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strategy.Category != models.CategoryFileOps {
		t.Errorf("Category = %q, want file-ops", strategy.Category)
	}
	if strategy.Complexity != models.ComplexityLow {
		t.Errorf("Complexity = %q, want low", strategy.Complexity)
	}
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}
	if steps[0].Tool != "file_read" {
		t.Errorf("step tool = %q, want file_read", steps[0].Tool)
	}
	if steps[0].Args["path"] != "report.txt" {
		t.Errorf("step args = %+v, want path report.txt", steps[0].Args)
	}

	// The prompt must advertise the registry to the model.
	if !strings.Contains(caller.lastReq.User, "file_read") || !strings.Contains(caller.lastReq.User, "http_fetch") {
		t.Error("user prompt does not list registered tools")
	}
	if !strings.Contains(caller.lastReq.User, "summarize report.txt") {
		t.Error("user prompt does not carry the task input")
	}
	if caller.lastReq.System == "" {
		t.Error("system prompt is empty")
	}
}

func TestResolveToleratesWrapping(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		name  string
		reply string
	}{
		{"markdown fence", "```json\n" + goodReply + "\n```"},
		{"surrounding prose", "Here is the plan:\n" + goodReply + "\nLet me know!"},
		{"leading whitespace", "\n\n  " + goodReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&stubCaller{reply: tt.reply}, registry, time.Second)
			strategy, steps, err := p.Resolve(context.Background(), "task")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if strategy == nil || len(steps) != 1 {
				t.Errorf("Resolve() = (%+v, %d steps), want strategy with 1 step", strategy, len(steps))
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	reply := `{"steps": [{"instruction": "Fetch the page", "tool": "http_fetch", "args": {"url": "https://example.com"}}]}`
	p := New(&stubCaller{reply: reply}, testRegistry(t), time.Second)

	strategy, steps, err := p.Resolve(context.Background(), "task")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strategy.Category != models.CategoryGeneral {
		t.Errorf("Category = %q, want default general", strategy.Category)
	}
	if strategy.Complexity != models.ComplexityMedium {
		t.Errorf("Complexity = %q, want default medium", strategy.Complexity)
	}
	if len(strategy.RequiredTools) != 1 || strategy.RequiredTools[0] != "http_fetch" {
		t.Errorf("RequiredTools = %v, want derived [http_fetch]", strategy.RequiredTools)
	}
	if len(steps) != 1 {
		t.Errorf("got %d steps, want 1", len(steps))
	}
}

func TestResolveUnknownComplexity(t *testing.T) {
	reply := `{"complexity": "extreme", "steps": []}`
	p := New(&stubCaller{reply: reply}, testRegistry(t), time.Second)

	strategy, _, err := p.Resolve(context.Background(), "task")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strategy.Complexity != models.ComplexityMedium {
		t.Errorf("Complexity = %q, want medium fallback", strategy.Complexity)
	}
}

func TestResolveEmptyPlan(t *testing.T) {
	reply := `{"category": "general", "complexity": "low", "steps": []}`
	p := New(&stubCaller{reply: reply}, testRegistry(t), time.Second)

	strategy, steps, err := p.Resolve(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if strategy == nil {
		t.Fatal("strategy is nil")
	}
	if len(steps) != 0 {
		t.Errorf("got %d steps, want 0", len(steps))
	}
}

func TestResolveSkipsInstructionlessSteps(t *testing.T) {
	reply := `{"steps": [
		{"instruction": "", "tool": "file_read"},
		{"instruction": "Read it", "tool": "file_read", "args": {"path": "x"}}
	]}`
	p := New(&stubCaller{reply: reply}, testRegistry(t), time.Second)

	_, steps, err := p.Resolve(context.Background(), "task")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(steps) != 1 {
		t.Errorf("got %d steps, want 1 after dropping the empty instruction", len(steps))
	}
}

func TestResolveMalformed(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		name   string
		reply  string
		detail string
	}{
		{"no JSON at all", "I cannot help with that.", "no JSON object"},
		{"broken JSON", `{"steps": [}`, "invalid plan JSON"},
		{"unknown step tool", `{"steps": [{"instruction": "x", "tool": "teleport"}]}`, `unknown tool "teleport"`},
		{"missing step tool", `{"steps": [{"instruction": "x"}]}`, "has no tool"},
		{"unknown required tool", `{"required_tools": ["teleport"], "steps": []}`, "not registered"},
		{"too many steps", tooManySteps(), "limit is 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&stubCaller{reply: tt.reply}, registry, time.Second)
			_, _, err := p.Resolve(context.Background(), "task")

			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
			}
			if resErr.Reason != ReasonMalformed {
				t.Errorf("Reason = %q, want malformed_response", resErr.Reason)
			}
			if !strings.Contains(resErr.Detail, tt.detail) {
				t.Errorf("Detail = %q, want it to contain %q", resErr.Detail, tt.detail)
			}
		})
	}
}

func tooManySteps() string {
	var steps []string
	for i := 0; i < 11; i++ {
		steps = append(steps, fmt.Sprintf(`{"instruction": "step %d", "tool": "file_read"}`, i))
	}
	return `{"steps": [` + strings.Join(steps, ",") + `]}`
}

func TestResolveUpstreamError(t *testing.T) {
	p := New(&stubCaller{err: errors.New("connection refused")}, testRegistry(t), time.Second)

	_, _, err := p.Resolve(context.Background(), "task")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
	}
	if resErr.Reason != ReasonUpstream {
		t.Errorf("Reason = %q, want upstream_error", resErr.Reason)
	}
	if !strings.Contains(resErr.Detail, "connection refused") {
		t.Errorf("Detail = %q, want the upstream message", resErr.Detail)
	}
}

func TestResolveTimeout(t *testing.T) {
	p := New(&blockingCaller{}, testRegistry(t), 30*time.Millisecond)

	start := time.Now()
	_, _, err := p.Resolve(context.Background(), "task")
	if time.Since(start) > time.Second {
		t.Fatal("Resolve() did not honor its deadline")
	}

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
	}
	if resErr.Reason != ReasonTimeout {
		t.Errorf("Reason = %q, want timeout", resErr.Reason)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error chain = %v, want wrapped DeadlineExceeded", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, false},
		{"prose around", `sure: {"a": 1} done`, `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"no object", "nothing here", "", true},
		{"only open brace", "{oops", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
