package models

// Complexity is the ordinal difficulty tier of a task. It selects the
// retry and timeout budgets for step execution, nothing else.
type Complexity string

const (
	// ComplexityLow is for trivial tasks: small budgets, fast failure.
	ComplexityLow Complexity = "low"
	// ComplexityMedium is the default tier for ordinary tasks.
	ComplexityMedium Complexity = "medium"
	// ComplexityHigh is for involved tasks that warrant patient retries.
	ComplexityHigh Complexity = "high"
)

// Valid returns true if the complexity is a known tier.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// Common strategy categories. The category is a free-form label; these
// are the values the default planner prompt steers toward.
const (
	CategoryFileOps        = "file-ops"
	CategoryResearch       = "research"
	CategoryDataProcessing = "data-processing"
	CategorySystem         = "system"
	CategoryGeneral        = "general"
)

// Strategy is the resolved classification and tool set for a task,
// produced once by the planner and immutable afterwards. It is embedded
// in the task record, not stored standalone.
type Strategy struct {
	// Category is a classification label for the task.
	Category string `json:"category"`
	// Complexity selects the retry/timeout budgets.
	Complexity Complexity `json:"complexity"`
	// RequiredTools lists the registry names the plan intends to use,
	// validated against the registry before steps materialize.
	RequiredTools []string `json:"required_tools"`
}
