package decision

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/argus/state"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	return r
}

func TestLifecycle(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	id, err := r.Start("search", "t1", state.State{}, []string{"test"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	r.RecordPrompt(id, Prompt{Template: "find {q}", Model: "demo"})
	r.RecordOutput(id, Output{RawOutput: "found it"})
	r.RecordReasoning(id, Reasoning{DecisionType: "routing", SelectedAction: "download"})

	rec, err := r.End(id, state.State{}, StatusSuccess, "")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if rec.Execution.Status != StatusSuccess {
		t.Errorf("expected success, got %q", rec.Execution.Status)
	}
	if rec.Execution.EndTime == "" {
		t.Error("expected end time to be set")
	}
	if rec.Execution.DurationMs < 0 {
		t.Errorf("expected non-negative duration, got %v", rec.Execution.DurationMs)
	}
	if rec.Prompt == nil || rec.Prompt.Template != "find {q}" {
		t.Error("prompt not attached")
	}
	if rec.Output == nil || rec.Output.Confidence != "unknown" {
		t.Error("expected confidence to default to 'unknown'")
	}
	if rec.Reasoning == nil || rec.Reasoning.SelectedAction != "download" {
		t.Error("reasoning not attached")
	}

	data, err := os.ReadFile(filepath.Join(dir, "decision_"+id+".json"))
	if err != nil {
		t.Fatalf("decision file missing: %v", err)
	}
	if !strings.Contains(string(data), `"status": "success"`) {
		t.Error("persisted record does not reflect final status")
	}
}

func TestEndWithError(t *testing.T) {
	r := newTestRecorder(t)

	id, _ := r.Start("download", "t1", state.State{}, nil)
	rec, err := r.End(id, state.State{}, StatusError, "connection reset")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if rec.Execution.Status != StatusError {
		t.Errorf("expected error status, got %q", rec.Execution.Status)
	}
	if rec.Execution.Error == nil || *rec.Execution.Error != "connection reset" {
		t.Errorf("expected error text, got %v", rec.Execution.Error)
	}
}

func TestEndUnknownDecision(t *testing.T) {
	r := newTestRecorder(t)

	_, err := r.End("nope", state.State{}, StatusSuccess, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrichmentIgnoredAfterEnd(t *testing.T) {
	r := newTestRecorder(t)

	id, _ := r.Start("chat", "t1", state.State{}, nil)
	r.End(id, state.State{}, StatusSuccess, "")

	r.RecordOutput(id, Output{RawOutput: "late"})

	rec, _ := r.Replay(id)
	if rec.Output != nil {
		t.Error("enrichment after end should be ignored")
	}
}

func TestEnrichmentUnknownDecisionIsNoOp(t *testing.T) {
	r := newTestRecorder(t)
	// Must not panic or create records.
	r.RecordPrompt("ghost", Prompt{})
	r.RecordOutput("ghost", Output{})
	r.RecordReasoning("ghost", Reasoning{})

	if chain := r.Chain("t1"); len(chain) != 0 {
		t.Errorf("expected no records, got %d", len(chain))
	}
}

func TestRecordOutputLastWriteWins(t *testing.T) {
	r := newTestRecorder(t)

	id, _ := r.Start("chat", "t1", state.State{}, nil)
	r.RecordOutput(id, Output{RawOutput: "first", Confidence: "low"})
	r.RecordOutput(id, Output{RawOutput: "second", Confidence: "high"})

	rec, _ := r.Replay(id)
	if rec.Output.RawOutput != "second" || rec.Output.Confidence != "high" {
		t.Errorf("expected last write to win, got %+v", rec.Output)
	}
}

func TestRecordOutputParsesEmbeddedJSON(t *testing.T) {
	r := newTestRecorder(t)

	id, _ := r.Start("chat", "t1", state.State{}, nil)
	r.RecordOutput(id, Output{RawOutput: `Routing decision: {"next": "search"}`})

	rec, _ := r.Replay(id)
	if rec.Output.ParsedOutput == nil || rec.Output.ParsedOutput["next"] != "search" {
		t.Errorf("expected parsed output from raw text, got %v", rec.Output.ParsedOutput)
	}
}

func TestChainOrderedAndFiltered(t *testing.T) {
	r := newTestRecorder(t)

	id1, _ := r.Start("chat", "t1", state.State{}, nil)
	id2, _ := r.Start("search", "t1", state.State{}, nil)
	r.Start("chat", "t2", state.State{}, nil)

	r.RecordReasoning(id2, Reasoning{DecisionType: "routing", SelectedAction: "download"})
	r.End(id1, state.State{}, StatusSuccess, "")
	r.End(id2, state.State{}, StatusSuccess, "")

	chain := r.Chain("t1")
	if len(chain) != 2 {
		t.Fatalf("expected 2 decisions for t1, got %d", len(chain))
	}
	if chain[0].StartTime > chain[1].StartTime {
		t.Error("chain not ordered by start time")
	}
	found := false
	for _, s := range chain {
		if s.Action == "download" && s.DecisionType == "routing" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected reasoning fields in a summary, got %+v", chain)
	}
}

func TestAnalyzePerformanceEmptyThread(t *testing.T) {
	r := newTestRecorder(t)

	perf := r.AnalyzePerformance("missing")
	if perf.TotalDecisions != 0 || perf.SuccessRate != 0 || perf.AvgDurationMs != 0 {
		t.Errorf("expected zeroed performance, got %+v", perf)
	}
}

func TestAnalyzePerformance(t *testing.T) {
	r := newTestRecorder(t)

	id1, _ := r.Start("chat", "t1", state.State{}, nil)
	r.End(id1, state.State{}, StatusSuccess, "")
	id2, _ := r.Start("chat", "t1", state.State{}, nil)
	r.End(id2, state.State{}, StatusError, "boom")

	perf := r.AnalyzePerformance("t1")
	if perf.TotalDecisions != 2 {
		t.Errorf("expected 2 decisions, got %d", perf.TotalDecisions)
	}
	if perf.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", perf.SuccessRate)
	}
	stats, ok := perf.NodeStats["chat"]
	if !ok {
		t.Fatal("expected node stats for chat")
	}
	if stats.Count != 2 {
		t.Errorf("expected count 2, got %d", stats.Count)
	}
	if stats.MinDurationMs > stats.MaxDurationMs {
		t.Errorf("min %v exceeds max %v", stats.MinDurationMs, stats.MaxDurationMs)
	}
}

func TestVisualizeTree(t *testing.T) {
	r := newTestRecorder(t)

	out := r.VisualizeTree("empty")
	if !strings.Contains(out, "(no decisions recorded)") {
		t.Errorf("expected empty marker, got %q", out)
	}

	id, _ := r.Start("search", "t1", state.State{}, nil)
	r.End(id, state.State{}, StatusSuccess, "")

	out = r.VisualizeTree("t1")
	if !strings.Contains(out, "✓ search") {
		t.Errorf("expected success mark for search, got %q", out)
	}
}
