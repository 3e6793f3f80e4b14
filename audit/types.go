// Package audit provides the tamper-evident ledger: an append-only,
// hash-chained log of transitions, errors, metrics and decisions.
//
// Information Hiding:
// - Hash computation and chain linkage encapsulated in this package
// - JSONL file layout (header line + one entry per line) hidden from callers
// - The append critical section (read last hash → compute → persist →
//   commit) is internal; callers see only the four logging methods

package audit

import (
	"github.com/richinex/argus/internal/digest"
	"github.com/richinex/argus/internal/jsonutil"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventTransition EventType = "transition"
	EventError      EventType = "error"
	EventMetric     EventType = "metric"
	EventDecision   EventType = "decision"
)

// Level is the severity of an audit entry.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Entry is a single immutable audit log entry. EntryHash covers every
// other field; PreviousHash links the entry to its predecessor.
type Entry struct {
	LogID          string         `json:"log_id"`
	SequenceNumber int            `json:"sequence_number"`
	Timestamp      string         `json:"timestamp"`
	EventType      EventType      `json:"event_type"`
	Level          Level          `json:"level"`
	InputData      map[string]any `json:"input_data"`
	OutputData     map[string]any `json:"output_data"`
	Reasoning      string         `json:"reasoning"`
	ThreadID       string         `json:"thread_id"`
	NodeFrom       string         `json:"node_from"`
	NodeTo         string         `json:"node_to"`
	Metadata       map[string]any `json:"metadata"`
	Tags           []string       `json:"tags"`
	PreviousHash   string         `json:"previous_hash"`
	EntryHash      string         `json:"entry_hash"`
}

// ComputeHash digests the canonical sorted-key JSON serialization of every
// field except EntryHash itself. Entry data is JSON-normalized at creation,
// so the canonical form is stable across persistence round trips.
func (e *Entry) ComputeHash() string {
	payload := map[string]any{
		"log_id":          e.LogID,
		"sequence_number": e.SequenceNumber,
		"timestamp":       e.Timestamp,
		"event_type":      e.EventType,
		"level":           e.Level,
		"input_data":      e.InputData,
		"output_data":     e.OutputData,
		"reasoning":       e.Reasoning,
		"thread_id":       e.ThreadID,
		"node_from":       e.NodeFrom,
		"node_to":         e.NodeTo,
		"metadata":        e.Metadata,
		"tags":            e.Tags,
		"previous_hash":   e.PreviousHash,
	}
	// Cannot fail: every value is JSON-normalized before it reaches here.
	canonical, _ := jsonutil.Canonical(payload)
	return digest.Hex(canonical)
}

// Filter selects audit entries. Zero values mean "no constraint"; set
// fields combine conjunctively. Time bounds compare timestamps as strings,
// which is chronological for the fixed-width UTC format used throughout.
type Filter struct {
	ThreadID  string    `json:"thread_id,omitempty"`
	EventType EventType `json:"event_type,omitempty"`
	Level     Level     `json:"level,omitempty"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Match reports whether e satisfies every set constraint. The tag
// constraint matches when any requested tag is present on the entry.
func (f Filter) Match(e *Entry) bool {
	if f.ThreadID != "" && e.ThreadID != f.ThreadID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.StartTime != "" && e.Timestamp < f.StartTime {
		return false
	}
	if f.EndTime != "" && e.Timestamp > f.EndTime {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range e.Tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IntegrityError describes one verification mismatch.
type IntegrityError struct {
	Sequence int    `json:"sequence"`
	LogID    string `json:"log_id"`
	Error    string `json:"error"`
	Expected any    `json:"expected"`
	Found    any    `json:"found"`
}

// IntegrityResult is the outcome of verifying the whole chain.
// Valid is true iff Errors is empty.
type IntegrityResult struct {
	Valid        bool             `json:"valid"`
	TotalEntries int              `json:"total_entries"`
	Errors       []IntegrityError `json:"errors"`
	Message      string           `json:"message,omitempty"`
}

// TransitionReplay is one step of a thread's chronological transition
// history.
type TransitionReplay struct {
	Sequence   int            `json:"sequence"`
	Timestamp  string         `json:"timestamp"`
	Transition string         `json:"transition"`
	Input      map[string]any `json:"input"`
	Output     map[string]any `json:"output"`
	Reasoning  string         `json:"reasoning"`
	LogID      string         `json:"log_id"`
}

// Statistics aggregates the whole log. Message is set instead of the
// statistics when the log is empty.
type Statistics struct {
	Message           string         `json:"message,omitempty"`
	TotalEntries      int            `json:"total_entries"`
	FirstEntry        string         `json:"first_entry,omitempty"`
	LatestEntry       string         `json:"latest_entry,omitempty"`
	ByEventType       map[string]int `json:"by_event_type,omitempty"`
	ByLevel           map[string]int `json:"by_level,omitempty"`
	UniqueThreads     int            `json:"unique_threads"`
	IntegrityVerified bool           `json:"integrity_verified"`
}

// Header is the first line of every audit log file.
type Header struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
	Format    string `json:"format"`
}
