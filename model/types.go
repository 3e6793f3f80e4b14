// Package model provides domain types shared across packages.
package model

// ToolCall records one tool invocation observed during a node execution.
// Arguments are kept as supplied by the pipeline; they are sanitized by the
// store that persists them.
type ToolCall struct {
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	DurationMs uint64         `json:"duration_ms"`
	Success    bool           `json:"success"`
}
