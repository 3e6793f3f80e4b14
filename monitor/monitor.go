package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/richinex/argus/audit"
	"github.com/richinex/argus/config"
	"github.com/richinex/argus/decision"
	"github.com/richinex/argus/internal/timeutil"
	"github.com/richinex/argus/snapshot"
	"github.com/richinex/argus/state"
)

// Node markers used when the state mapping carries no previous/next node.
const (
	StartMarker = "START"
	EndMarker   = "END"
)

// Monitor owns one instance each of the three stores and exposes the
// unified monitoring API. Every public method is safe to call from a
// catch-all wrapper: malformed input never panics, and a monitoring fault
// never blocks the host pipeline.
type Monitor struct {
	mu         sync.Mutex
	snapshots  *snapshot.Store
	decisions  *decision.Recorder
	auditLog   *audit.Log
	active     map[string]string // node name -> decision id, bookkeeping only
	reportsDir string
}

// New creates a monitor with its stores rooted under baseDir. An empty
// baseDir falls back to environment configuration.
func New(baseDir string) (*Monitor, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if baseDir != "" {
		settings.DataDir = baseDir
	}

	snapshots, err := snapshot.NewStore(settings.SnapshotsDir())
	if err != nil {
		return nil, err
	}
	decisions, err := decision.NewRecorder(settings.DecisionsDir())
	if err != nil {
		return nil, err
	}
	auditLog, err := audit.NewLog(settings.AuditLogsDir())
	if err != nil {
		return nil, err
	}

	return &Monitor{
		snapshots:  snapshots,
		decisions:  decisions,
		auditLog:   auditLog,
		active:     make(map[string]string),
		reportsDir: settings.ReportsDir(),
	}, nil
}

var (
	defaultMonitor *Monitor
	defaultOnce    sync.Once
)

// Default returns the process-wide monitor, creating it on first use from
// environment configuration. Panics only if the data directory cannot be
// created, which is an infrastructure failure.
func Default() *Monitor {
	defaultOnce.Do(func() {
		m, err := New(config.MustNew().DataDir)
		if err != nil {
			panic(fmt.Sprintf("monitor: %v", err))
		}
		defaultMonitor = m
	})
	return defaultMonitor
}

// Snapshots exposes the underlying snapshot store.
func (m *Monitor) Snapshots() *snapshot.Store { return m.snapshots }

// Decisions exposes the underlying decision recorder.
func (m *Monitor) Decisions() *decision.Recorder { return m.decisions }

// AuditLog exposes the underlying audit log.
func (m *Monitor) AuditLog() *audit.Log { return m.auditLog }

// StartNodeExecution begins tracking one node execution: it captures a
// snapshot, opens a decision and logs a starting transition. The returned
// decision id correlates the later recorder calls and EndNodeExecution.
// A non-nil error reports persistence problems; tracking state is committed
// in memory regardless.
func (m *Monitor) StartNodeExecution(nodeName, threadID string, st state.State, tags []string) (string, error) {
	view := state.NewView(st)

	snap, snapErr := m.snapshots.Capture(st, nodeName, tags)
	decisionID, decErr := m.decisions.Start(nodeName, threadID, st, tags)

	_, auditErr := m.auditLog.LogTransition(
		threadID,
		view.String("previous_node", StartMarker),
		nodeName,
		map[string]any{"state_keys": stateKeys(st)},
		map[string]any{},
		fmt.Sprintf("Starting execution of node: %s", nodeName),
		map[string]any{"snapshot_id": snap.SnapshotID},
		tags,
	)

	m.mu.Lock()
	m.active[nodeName] = decisionID
	m.mu.Unlock()

	return decisionID, errors.Join(snapErr, decErr, auditErr)
}

// RecordPrompt attaches the prompt used by a pending decision.
func (m *Monitor) RecordPrompt(decisionID string, p decision.Prompt) {
	m.decisions.RecordPrompt(decisionID, p)
}

// RecordOutput attaches the output produced by a pending decision.
func (m *Monitor) RecordOutput(decisionID string, o decision.Output) {
	m.decisions.RecordOutput(decisionID, o)
}

// RecordReasoning attaches the reasoning behind a pending decision.
func (m *Monitor) RecordReasoning(decisionID string, r decision.Reasoning) {
	m.decisions.RecordReasoning(decisionID, r)
}

// EndNodeExecution completes tracking of a node execution: it captures a
// closing snapshot, seals the decision and logs either an error entry or a
// completion transition. errText non-empty means the node failed.
func (m *Monitor) EndNodeExecution(decisionID, threadID string, st state.State, nodeName string, status decision.Status, errText string) error {
	view := state.NewView(st)

	snap, snapErr := m.snapshots.Capture(st, nodeName, []string{"completed", string(status)})

	_, decErr := m.decisions.End(decisionID, st, status, errText)
	if errors.Is(decErr, decision.ErrNotFound) {
		slog.Warn("ending unknown decision", "decision_id", decisionID, "node", nodeName)
		decErr = nil
	}

	var auditErr error
	if errText != "" {
		_, auditErr = m.auditLog.LogError(
			threadID,
			errText,
			"node_execution_error",
			map[string]any{"node": nodeName, "snapshot_id": snap.SnapshotID},
			"",
		)
	} else {
		_, auditErr = m.auditLog.LogTransition(
			threadID,
			nodeName,
			view.String("next_node", EndMarker),
			map[string]any{},
			map[string]any{"state_keys": stateKeys(st)},
			fmt.Sprintf("Completed execution of node: %s", nodeName),
			map[string]any{"snapshot_id": snap.SnapshotID},
			nil,
		)
	}

	m.mu.Lock()
	delete(m.active, nodeName)
	m.mu.Unlock()

	return errors.Join(snapErr, decErr, auditErr)
}

// LogMetric records a metric against the audit log.
func (m *Monitor) LogMetric(threadID, metricName string, metricValue any, context map[string]any) error {
	_, err := m.auditLog.LogMetric(threadID, metricName, metricValue, context)
	return err
}

// stateKeys returns the sorted key set of a state mapping.
func stateKeys(st state.State) []string {
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompleteReport joins snapshots, decisions, audit trail, performance,
// anomalies and an integrity check into one report for a thread.
func (m *Monitor) CompleteReport(threadID string) *Report {
	snapshots := m.snapshots.ForThread(threadID)
	chain := m.decisions.Chain(threadID)
	trail := m.auditLog.ReplayThread(threadID)
	performance := m.decisions.AnalyzePerformance(threadID)
	integrity := m.auditLog.VerifyIntegrity()

	anomalies := []string{}
	for _, snap := range snapshots {
		anomalies = append(anomalies, m.snapshots.DetectAnomalies(snap)...)
	}

	briefs := make([]SnapshotBrief, 0, len(snapshots))
	for _, snap := range snapshots {
		briefs = append(briefs, SnapshotBrief{
			ID:         snap.SnapshotID,
			Timestamp:  snap.Timestamp,
			Node:       snap.Symptoms.ActiveNode,
			Confidence: snap.Scores.Confidence,
			LatencyMs:  snap.Scores.LatencyMs,
		})
	}

	return &Report{
		ThreadID:    threadID,
		GeneratedAt: timeutil.Now(),
		Summary: ReportSummary{
			TotalSnapshots:    len(snapshots),
			TotalDecisions:    len(chain),
			TotalTransitions:  len(trail),
			AnomaliesDetected: len(anomalies),
			IntegrityValid:    integrity.Valid,
		},
		Snapshots:     briefs,
		DecisionChain: chain,
		AuditTrail:    trail,
		Performance:   performance,
		Anomalies:     anomalies,
		Integrity:     integrity,
	}
}

// ExportReport writes the complete report for a thread to outputPath,
// defaulting to a timestamped file under the reports directory. Only the
// "json" format is supported for reports.
func (m *Monitor) ExportReport(threadID, outputPath, format string) (string, error) {
	if format == "" {
		format = "json"
	}
	if format != "json" {
		return "", fmt.Errorf("unsupported report format: %q", format)
	}

	if outputPath == "" {
		name := fmt.Sprintf("report_%s_%s.json", threadID, timeutil.NowFile())
		outputPath = filepath.Join(m.reportsDir, name)
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	report := m.CompleteReport(threadID)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return outputPath, nil
}

// VisualizeExecution renders a human-readable multi-section report for a
// thread. Purely derived from CompleteReport; no side effects.
func (m *Monitor) VisualizeExecution(threadID string) string {
	report := m.CompleteReport(threadID)
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nAGENT EXECUTION REPORT - Thread: %s\n%s\n\n", rule, threadID, rule)

	b.WriteString("SUMMARY\n" + thin + "\n")
	fmt.Fprintf(&b, "  Total Snapshots:    %d\n", report.Summary.TotalSnapshots)
	fmt.Fprintf(&b, "  Total Decisions:    %d\n", report.Summary.TotalDecisions)
	fmt.Fprintf(&b, "  Total Transitions:  %d\n", report.Summary.TotalTransitions)
	fmt.Fprintf(&b, "  Anomalies Detected: %d\n", report.Summary.AnomaliesDetected)
	fmt.Fprintf(&b, "  Integrity Valid:    %s\n\n", yesNo(report.Summary.IntegrityValid))

	b.WriteString("DECISION CHAIN\n" + thin + "\n")
	for i, d := range report.DecisionChain {
		mark := "✗"
		if d.Status == decision.StatusSuccess {
			mark = "✓"
		}
		fmt.Fprintf(&b, "  %d. %s %s (%.0fms)\n", i+1, mark, d.Node, d.DurationMs)
		if d.DecisionType != "" {
			fmt.Fprintf(&b, "     Type: %s\n", d.DecisionType)
		}
		if d.Action != "" {
			fmt.Fprintf(&b, "     Action: %s\n", d.Action)
		}
	}

	if len(report.Anomalies) > 0 {
		b.WriteString("\nANOMALIES DETECTED\n" + thin + "\n")
		for _, a := range report.Anomalies {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}

	b.WriteString("\nPERFORMANCE\n" + thin + "\n")
	fmt.Fprintf(&b, "  Success Rate:     %.1f%%\n", report.Performance.SuccessRate*100)
	fmt.Fprintf(&b, "  Avg Duration:     %.0fms\n", report.Performance.AvgDurationMs)
	fmt.Fprintf(&b, "  Total Duration:   %.0fms\n", report.Performance.TotalDurationMs)

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// HealthStatus reports the monitoring system's own health.
func (m *Monitor) HealthStatus() Health {
	m.mu.Lock()
	active := len(m.active)
	m.mu.Unlock()

	return Health{
		Status:          "healthy",
		Snapshots:       m.snapshots.Summary(),
		AuditLog:        m.auditLog.Statistics(),
		ActiveDecisions: active,
	}
}

// Close releases the audit log's file handle. Only needed by short-lived
// consumers like the CLI; a pipeline normally keeps the monitor for the
// whole process.
func (m *Monitor) Close() error {
	return m.auditLog.Close()
}
