// Package monitor composes the snapshot store, decision recorder and audit
// log behind a single session-scoped façade.
//
// Information Hiding:
// - Store wiring and directory layout hidden behind New
// - The active-decision bookkeeping map is internal convenience only,
//   never the source of truth
// - Singleton lifecycle confined to Default

package monitor

import (
	"github.com/richinex/argus/audit"
	"github.com/richinex/argus/decision"
	"github.com/richinex/argus/snapshot"
)

// SnapshotBrief is the per-snapshot line item of a report.
type SnapshotBrief struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Node       string  `json:"node"`
	Confidence float64 `json:"confidence"`
	LatencyMs  float64 `json:"latency_ms"`
}

// ReportSummary is the counts block of a report, suitable for direct UI
// rendering.
type ReportSummary struct {
	TotalSnapshots    int  `json:"total_snapshots"`
	TotalDecisions    int  `json:"total_decisions"`
	TotalTransitions  int  `json:"total_transitions"`
	AnomaliesDetected int  `json:"anomalies_detected"`
	IntegrityValid    bool `json:"integrity_valid"`
}

// Report joins everything known about one thread.
type Report struct {
	ThreadID      string                   `json:"thread_id"`
	GeneratedAt   string                   `json:"generated_at"`
	Summary       ReportSummary            `json:"summary"`
	Snapshots     []SnapshotBrief          `json:"snapshots"`
	DecisionChain []decision.Summary       `json:"decision_chain"`
	AuditTrail    []audit.TransitionReplay `json:"audit_trail"`
	Performance   decision.Performance     `json:"performance"`
	Anomalies     []string                 `json:"anomalies"`
	Integrity     audit.IntegrityResult    `json:"integrity"`
}

// Health describes the monitoring system itself.
type Health struct {
	Status          string           `json:"status"`
	Snapshots       snapshot.Summary `json:"snapshots"`
	AuditLog        audit.Statistics `json:"audit_log"`
	ActiveDecisions int              `json:"active_decisions"`
}
