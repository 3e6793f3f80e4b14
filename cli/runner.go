// Command execution for CLI commands.
//
// Information Hiding:
// - Log discovery (newest file when none given) hidden
// - Output formatting hidden
// - Offline commands operate on persisted audit logs; only the demo
//   creates a live monitor

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/richinex/argus/audit"
	"github.com/richinex/argus/config"
	"github.com/richinex/argus/decision"
	"github.com/richinex/argus/monitor"
	"github.com/richinex/argus/state"
	"github.com/richinex/argus/storage"
)

// Options holds CLI execution options.
type Options struct {
	DataDir string
	LogFile string
	Verbose bool
}

// resolveLog returns the audit log to operate on: the explicit --log file,
// or the newest audit_log_*.jsonl under the data directory.
func resolveLog(opts Options) (string, error) {
	if opts.LogFile != "" {
		return opts.LogFile, nil
	}

	settings := config.Settings{DataDir: opts.DataDir}
	pattern := filepath.Join(settings.AuditLogsDir(), "audit_log_*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to list audit logs: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no audit logs found under %s", settings.AuditLogsDir())
	}
	sort.Strings(matches) // timestamped names sort chronologically
	return matches[len(matches)-1], nil
}

// Verify checks the hash chain of a persisted audit log.
func Verify(opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	result := log.VerifyIntegrity()
	fmt.Printf("Log:     %s\n", path)
	fmt.Printf("Entries: %d\n", result.TotalEntries)
	if result.Valid {
		fmt.Println("Integrity: OK")
		return nil
	}

	fmt.Printf("Integrity: FAILED (%d errors)\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  seq %d (%s): %s\n", e.Sequence, e.LogID, e.Error)
		if opts.Verbose {
			fmt.Printf("    expected: %v\n    found:    %v\n", e.Expected, e.Found)
		}
	}
	return fmt.Errorf("integrity verification failed")
}

// Export writes a persisted audit log to outPath in the given format,
// optionally filtered by thread.
func Export(outPath, format, threadID string, opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	var filter *audit.Filter
	if threadID != "" {
		filter = &audit.Filter{ThreadID: threadID}
	}

	written, err := log.Export(outPath, format, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", written)
	return nil
}

// Search runs a full-text search over a persisted audit log.
func Search(query string, opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	matches := log.Search(query)
	fmt.Printf("%d matching entries\n", len(matches))
	for _, e := range matches {
		fmt.Printf("  [%d] %s %s thread=%s %s\n",
			e.SequenceNumber, e.Timestamp, e.EventType, e.ThreadID, e.Reasoning)
	}
	return nil
}

// Stats prints statistics for a persisted audit log.
func Stats(opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	stats := log.Statistics()
	if stats.Message != "" {
		fmt.Println(stats.Message)
		return nil
	}

	fmt.Printf("Log:            %s\n", path)
	fmt.Printf("Total entries:  %d\n", stats.TotalEntries)
	fmt.Printf("First entry:    %s\n", stats.FirstEntry)
	fmt.Printf("Latest entry:   %s\n", stats.LatestEntry)
	fmt.Printf("Unique threads: %d\n", stats.UniqueThreads)
	fmt.Printf("Integrity:      %v\n", stats.IntegrityVerified)
	fmt.Println("By event type:")
	for eventType, count := range stats.ByEventType {
		fmt.Printf("  %-12s %d\n", eventType, count)
	}
	fmt.Println("By level:")
	for level, count := range stats.ByLevel {
		fmt.Printf("  %-12s %d\n", level, count)
	}
	return nil
}

// Replay prints the chronological transition history of a thread from a
// persisted audit log.
func Replay(threadID string, opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	steps := log.ReplayThread(threadID)
	if len(steps) == 0 {
		fmt.Printf("No transitions for thread %s\n", threadID)
		return nil
	}

	for _, step := range steps {
		fmt.Printf("[%d] %s %s\n", step.Sequence, step.Timestamp, step.Transition)
		if step.Reasoning != "" {
			fmt.Printf("    %s\n", step.Reasoning)
		}
	}
	return nil
}

// Archive loads a persisted audit log into a SQLite archive for ad-hoc
// SQL querying, then prints the archive totals.
func Archive(ctx context.Context, dbPath string, opts Options) error {
	path, err := resolveLog(opts)
	if err != nil {
		return err
	}

	log, err := audit.Load(path)
	if err != nil {
		return err
	}

	archive, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return err
	}
	defer archive.Close()

	inserted, err := archive.Archive(ctx, filepath.Base(path), log.Entries(audit.Filter{}))
	if err != nil {
		return err
	}

	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Archived %d new entries from %s\n", inserted, path)
	fmt.Printf("Archive now holds %d entries across %d threads\n",
		stats.TotalEntries, stats.UniqueThreads)
	return nil
}

// Demo runs a small simulated pipeline through a live monitor, then prints
// the execution visualization and exports the report.
func Demo(opts Options) error {
	m, err := monitor.New(opts.DataDir)
	if err != nil {
		return err
	}
	defer m.Close()

	threadID := uuid.NewString()
	fmt.Printf("Running demo pipeline on thread %s\n\n", threadID)

	st := state.State{
		"thread_id":  threadID,
		"session_id": uuid.NewString(),
		"query":      "demo query",
		"model":      "demo-model",
	}

	for _, node := range []string{"chat", "search", "download"} {
		decisionID, err := m.StartNodeExecution(node, threadID, st, nil)
		if err != nil {
			return err
		}

		m.RecordOutput(decisionID, decision.Output{
			RawOutput:  fmt.Sprintf("output of %s", node),
			Confidence: "high",
			TokenCount: 42,
		})
		m.RecordReasoning(decisionID, decision.Reasoning{
			DecisionType:   "routing",
			Rationale:      fmt.Sprintf("finished %s, moving on", node),
			SelectedAction: "proceed",
			Confidence:     0.9,
		})

		st["previous_node"] = node
		if err := m.EndNodeExecution(decisionID, threadID, st, node, decision.StatusSuccess, ""); err != nil {
			return err
		}
	}

	if err := m.LogMetric(threadID, "demo_latency_ms", 12.5, nil); err != nil {
		return err
	}

	fmt.Println(m.VisualizeExecution(threadID))

	reportPath, err := m.ExportReport(threadID, "", "json")
	if err != nil {
		return err
	}
	fmt.Printf("Report exported to %s\n", reportPath)

	if opts.Verbose {
		health := m.HealthStatus()
		fmt.Printf("Health: %s, active decisions: %d\n", health.Status, health.ActiveDecisions)
	}
	return nil
}
