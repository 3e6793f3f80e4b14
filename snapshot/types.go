// Package snapshot captures structured point-in-time views of pipeline
// execution state.
//
// Information Hiding:
// - Snapshot file layout and naming encapsulated here
// - Anomaly thresholds are package constants, not caller concerns
// - Snapshots are immutable once captured; the store hands out pointers
//   but never mutates what they point to

package snapshot

import (
	"github.com/richinex/argus/state"
)

// Snapshot is an immutable capture of execution state at one instant.
type Snapshot struct {
	SnapshotID string         `json:"snapshot_id"`
	Timestamp  string         `json:"timestamp"`
	Symptoms   state.Symptoms `json:"symptoms"`
	Scores     state.Scores   `json:"scores"`
	Context    state.Context  `json:"context"`
	RawState   map[string]any `json:"raw_state"`
	Tags       []string       `json:"tags"`
}

// ScoreDelta holds per-score differences between two snapshots.
type ScoreDelta struct {
	Confidence   float64 `json:"confidence"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	LatencyMs    float64 `json:"latency_ms"`
	TokenCount   int     `json:"token_count"`
	CostUSD      float64 `json:"cost_usd"`
}

// Diff is the result of comparing two snapshots.
type Diff struct {
	Snapshot1           string     `json:"snapshot1"`
	Snapshot2           string     `json:"snapshot2"`
	TimeDeltaSeconds    float64    `json:"time_delta"`
	SymptomsChanged     bool       `json:"symptoms_changed"`
	ScoreDelta          ScoreDelta `json:"score_delta"`
	MessageCountDelta   int        `json:"message_count_delta"`
	ResourcesCountDelta int        `json:"resources_count_delta"`
}

// Summary aggregates statistics over all captured snapshots.
// Message is set instead of the statistics when no snapshots exist.
type Summary struct {
	Message        string   `json:"message,omitempty"`
	TotalSnapshots int      `json:"total_snapshots"`
	FirstSnapshot  string   `json:"first_snapshot,omitempty"`
	LatestSnapshot string   `json:"latest_snapshot,omitempty"`
	AvgConfidence  float64  `json:"avg_confidence"`
	TotalErrors    int      `json:"total_errors"`
	NodesVisited   []string `json:"nodes_visited,omitempty"`
	TagsUsed       []string `json:"tags_used,omitempty"`
}
