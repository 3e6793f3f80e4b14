package decision

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
	"time"

	"github.com/richinex/argus/internal/digest"
	"github.com/richinex/argus/internal/jsonutil"
	"github.com/richinex/argus/internal/timeutil"
	"github.com/richinex/argus/state"
)

// ErrNotFound is returned when a decision id is unknown.
var ErrNotFound = errors.New("decision not found")

// Recorder tracks decision records across their lifecycle. Records live in
// an append-only in-memory list and one JSON file per decision, re-written
// at each lifecycle change. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	records []*Record
	byID    map[string]*Record
}

// NewRecorder creates a decision recorder writing to dir, creating it if
// needed.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create decision directory: %w", err)
	}
	return &Recorder{dir: dir, byID: make(map[string]*Record)}, nil
}

// Start opens a decision record in pending status and returns its id.
// The state mapping is accepted for symmetry with End; only the node and
// thread are captured at start. A non-nil error means only that the
// decision file could not be written.
func (r *Recorder) Start(node, threadID string, st state.State, tags []string) (string, error) {
	startTime := timeutil.Now()

	rec := &Record{
		DecisionID: digest.ShortID(startTime, node, threadID),
		Execution: Execution{
			Node:      node,
			ThreadID:  threadID,
			StartTime: startTime,
			Status:    StatusPending,
		},
		Tags: tags,
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.byID[rec.DecisionID] = rec
	err := r.persistLocked(rec)
	r.mu.Unlock()

	return rec.DecisionID, err
}

// RecordPrompt attaches the prompt used by a pending decision.
// Unknown or already-closed decision ids are logged and ignored: the host
// pipeline must never be broken by a monitoring call. Last write wins.
func (r *Recorder) RecordPrompt(decisionID string, p Prompt) {
	r.enrich(decisionID, "prompt", func(rec *Record) {
		prompt := p
		prompt.Variables = state.Sanitize(p.Variables, state.AuditLimits)
		rec.Prompt = &prompt
	})
}

// RecordOutput attaches the output produced by a pending decision.
// An empty Confidence defaults to "unknown". When no parsed output is
// supplied, a JSON object embedded in the raw output is recovered if one
// is present. Last write wins.
func (r *Recorder) RecordOutput(decisionID string, o Output) {
	r.enrich(decisionID, "output", func(rec *Record) {
		output := o
		if output.Confidence == "" {
			output.Confidence = "unknown"
		}
		if output.ParsedOutput == nil && output.RawOutput != "" {
			if obj, err := jsonutil.ExtractObject(output.RawOutput); err == nil {
				output.ParsedOutput = obj
			}
		}
		rec.Output = &output
	})
}

// RecordReasoning attaches the reasoning behind a pending decision.
// Last write wins.
func (r *Recorder) RecordReasoning(decisionID string, reasoning Reasoning) {
	r.enrich(decisionID, "reasoning", func(rec *Record) {
		rs := reasoning
		rec.Reasoning = &rs
	})
}

// enrich applies fn to a pending record, persisting the change. Enrichment
// of unknown or closed records is a caller error handled per the
// no-crash contract.
func (r *Recorder) enrich(decisionID, what string, fn func(*Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[decisionID]
	if !ok {
		slog.Warn("ignoring enrichment of unknown decision",
			"decision_id", decisionID, "field", what)
		return
	}
	if rec.Execution.Status != StatusPending {
		slog.Warn("ignoring enrichment of closed decision",
			"decision_id", decisionID, "field", what, "status", rec.Execution.Status)
		return
	}

	fn(rec)
	if err := r.persistLocked(rec); err != nil {
		slog.Warn("failed to persist decision", "decision_id", decisionID, "error", err)
	}
}

// End seals a decision: sets the end timestamp, computes the duration and
// freezes the record. Calling End twice is a caller error; the last call
// wins and is logged. Returns ErrNotFound for unknown ids.
func (r *Recorder) End(decisionID string, st state.State, status Status, errText string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[decisionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, decisionID)
	}
	if rec.Execution.Status != StatusPending {
		slog.Warn("decision ended more than once, last call wins",
			"decision_id", decisionID, "previous_status", rec.Execution.Status)
	}

	endTime := timeutil.Now()
	rec.Execution.EndTime = endTime
	rec.Execution.Status = status
	if errText != "" {
		e := errText
		rec.Execution.Error = &e
	}

	start, err := timeutil.Parse(rec.Execution.StartTime)
	if err == nil {
		end, err := timeutil.Parse(endTime)
		if err == nil {
			rec.Execution.DurationMs = float64(end.Sub(start)) / float64(time.Millisecond)
		}
	}

	if err := r.persistLocked(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *Recorder) persistLocked(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize decision %s: %w", rec.DecisionID, err)
	}

	name := fmt.Sprintf("decision_%s.json", rec.DecisionID)
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to persist decision %s: %w", rec.DecisionID, err)
	}
	return nil
}

// Replay returns the full reconstructed record for a decision.
// Returns ErrNotFound for unknown ids.
func (r *Recorder) Replay(decisionID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[decisionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, decisionID)
	}
	return rec, nil
}

// Chain returns summaries of all decisions in a thread, sorted by start
// time ascending.
func (r *Recorder) Chain(threadID string) []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := []Summary{}
	for _, rec := range r.records {
		if rec.Execution.ThreadID != threadID {
			continue
		}
		s := Summary{
			DecisionID: rec.DecisionID,
			Node:       rec.Execution.Node,
			Status:     rec.Execution.Status,
			StartTime:  rec.Execution.StartTime,
			DurationMs: rec.Execution.DurationMs,
		}
		if rec.Reasoning != nil {
			s.DecisionType = rec.Reasoning.DecisionType
			s.Action = rec.Reasoning.SelectedAction
		}
		chain = append(chain, s)
	}

	// Timestamps are fixed-width, so string order is chronological.
	sort.Slice(chain, func(i, j int) bool {
		return chain[i].StartTime < chain[j].StartTime
	})
	return chain
}

// AnalyzePerformance aggregates durations and outcomes for one thread.
// A thread with no decisions reports zeros, never an error.
func (r *Recorder) AnalyzePerformance(threadID string) Performance {
	r.mu.Lock()
	defer r.mu.Unlock()

	perf := Performance{NodeStats: map[string]NodeStats{}}

	type nodeAcc struct {
		count           int
		total, min, max float64
	}
	nodes := map[string]*nodeAcc{}

	successes := 0
	for _, rec := range r.records {
		if rec.Execution.ThreadID != threadID {
			continue
		}
		perf.TotalDecisions++
		perf.TotalDurationMs += rec.Execution.DurationMs
		if rec.Execution.Status == StatusSuccess {
			successes++
		}

		acc, ok := nodes[rec.Execution.Node]
		if !ok {
			acc = &nodeAcc{min: rec.Execution.DurationMs, max: rec.Execution.DurationMs}
			nodes[rec.Execution.Node] = acc
		}
		acc.count++
		acc.total += rec.Execution.DurationMs
		if rec.Execution.DurationMs < acc.min {
			acc.min = rec.Execution.DurationMs
		}
		if rec.Execution.DurationMs > acc.max {
			acc.max = rec.Execution.DurationMs
		}
	}

	if perf.TotalDecisions == 0 {
		return perf
	}

	perf.SuccessRate = float64(successes) / float64(perf.TotalDecisions)
	perf.AvgDurationMs = perf.TotalDurationMs / float64(perf.TotalDecisions)
	for node, acc := range nodes {
		perf.NodeStats[node] = NodeStats{
			Count:         acc.count,
			AvgDurationMs: acc.total / float64(acc.count),
			MinDurationMs: acc.min,
			MaxDurationMs: acc.max,
		}
	}
	return perf
}

// VisualizeTree renders the decision chain of a thread as an indented text
// tree. Purely derived; no side effects.
func (r *Recorder) VisualizeTree(threadID string) string {
	chain := r.Chain(threadID)

	var b strings.Builder
	fmt.Fprintf(&b, "Decision Tree - Thread: %s\n", threadID)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if len(chain) == 0 {
		b.WriteString("  (no decisions recorded)\n")
		return b.String()
	}

	for i, s := range chain {
		mark := "✗"
		switch s.Status {
		case StatusSuccess:
			mark = "✓"
		case StatusPending:
			mark = "…"
		}
		fmt.Fprintf(&b, "%s%d. %s %s (%.0fms)\n", strings.Repeat("  ", i), i+1, mark, s.Node, s.DurationMs)
		if s.DecisionType != "" {
			fmt.Fprintf(&b, "%s   type: %s\n", strings.Repeat("  ", i), s.DecisionType)
		}
		if s.Action != "" {
			fmt.Fprintf(&b, "%s   action: %s\n", strings.Repeat("  ", i), s.Action)
		}
	}
	return b.String()
}
