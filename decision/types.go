// Package decision records the lifecycle of one node execution: start,
// prompt, output, reasoning, end. Records support replay and performance
// aggregation.
//
// Information Hiding:
// - Record mutability rules (open until ended, then frozen) enforced here
// - Per-decision file layout encapsulated
// - Callers enriching unknown or closed decisions get a logged no-op,
//   never a crash

package decision

import (
	"github.com/richinex/argus/model"
)

// Status is the lifecycle state of a decision.
// Transitions: pending → success or pending → error, both terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Execution describes when and where a decision ran.
type Execution struct {
	Node       string  `json:"node"`
	ThreadID   string  `json:"thread_id"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time,omitempty"`
	DurationMs float64 `json:"duration_ms"`
	Status     Status  `json:"status"`
	Error      *string `json:"error"`
}

// Prompt captures the prompt a node sent to its model.
type Prompt struct {
	Template    string         `json:"template"`
	Variables   map[string]any `json:"variables"`
	FinalPrompt string         `json:"final_prompt"`
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
}

// Output captures what a node produced.
type Output struct {
	RawOutput      string           `json:"raw_output"`
	ParsedOutput   map[string]any   `json:"parsed_output,omitempty"`
	ToolCalls      []model.ToolCall `json:"tool_calls,omitempty"`
	ResourcesFound []string         `json:"resources_found,omitempty"`
	Confidence     string           `json:"confidence"`
	TokenCount     int              `json:"token_count"`
}

// Reasoning captures why a node chose its next action.
type Reasoning struct {
	DecisionType   string   `json:"decision_type"`
	Rationale      string   `json:"rationale"`
	Alternatives   []string `json:"alternatives,omitempty"`
	SelectedAction string   `json:"selected_action"`
	Confidence     float64  `json:"confidence"`
}

// Record is the full reconstructed decision. Prompt, Output and Reasoning
// stay nil until the corresponding recorder call arrives.
type Record struct {
	DecisionID string     `json:"decision_id"`
	Execution  Execution  `json:"execution"`
	Prompt     *Prompt    `json:"prompt"`
	Output     *Output    `json:"output"`
	Reasoning  *Reasoning `json:"reasoning"`
	Tags       []string   `json:"tags"`
}

// Summary is the per-decision line item in a thread chain.
type Summary struct {
	DecisionID   string  `json:"decision_id"`
	Node         string  `json:"node"`
	Status       Status  `json:"status"`
	StartTime    string  `json:"start_time"`
	DurationMs   float64 `json:"duration_ms"`
	DecisionType string  `json:"decision_type"`
	Action       string  `json:"action"`
}

// NodeStats aggregates durations for one node across a thread.
type NodeStats struct {
	Count         int     `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}

// Performance is the per-thread aggregate. All fields report zero (never
// an error) for a thread with no decisions.
type Performance struct {
	TotalDecisions  int                  `json:"total_decisions"`
	SuccessRate     float64              `json:"success_rate"`
	AvgDurationMs   float64              `json:"avg_duration_ms"`
	TotalDurationMs float64              `json:"total_duration_ms"`
	NodeStats       map[string]NodeStats `json:"node_stats"`
}
