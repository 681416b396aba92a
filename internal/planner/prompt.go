package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foremanhq/foreman/internal/tool"
)

const systemPrompt = `You are the strategy resolver for a task execution engine. Given a task, classify it and produce an executable plan using only the available tools.

RULES:
1. Each step must be one concrete tool invocation
2. Order steps so earlier outputs feed later steps
3. Use only tools from the AVAILABLE TOOLS list
4. Maximum 10 steps per plan
5. A task needing no tool work gets an empty steps list
6. No vague instructions, each step must name exactly what to do

RESPONSE FORMAT (JSON only):
{
  "category": "file-ops|research|data-processing|system|general",
  "complexity": "low|medium|high",
  "required_tools": ["tool_name"],
  "steps": [
    {
      "instruction": "Read the report file",
      "tool": "file_read",
      "args": {"path": "report.txt"}
    }
  ]
}

Complexity guidance:
- low: one or two obvious steps, nothing can realistically go wrong
- medium: a few steps, or steps whose outcome is uncertain
- high: many steps, external dependencies, or likely retries

RESPOND ONLY WITH JSON. NO MARKDOWN, NO EXPLANATIONS.`

// userPrompt builds the user turn: the task plus the tool catalog.
func userPrompt(input string, specs []tool.Registration) string {
	var sb strings.Builder
	sb.WriteString("TASK:\n")
	sb.WriteString(input)
	sb.WriteString("\n\nAVAILABLE TOOLS:\n")
	for _, spec := range specs {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", spec.Name, spec.Idempotency, spec.Description)
		if spec.Schema != nil {
			if schema, err := json.Marshal(spec.Schema); err == nil {
				fmt.Fprintf(&sb, "  args schema: %s\n", schema)
			}
		}
	}
	sb.WriteString("\nResolve this task. Return JSON only.")
	return sb.String()
}

// extractJSON pulls the outermost JSON object out of a model reply,
// tolerating markdown fences and surrounding prose.
func extractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx != -1 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return text[start : end+1], nil
}
