package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/richinex/argus/internal/digest"
	"github.com/richinex/argus/internal/jsonutil"
	"github.com/richinex/argus/internal/timeutil"
	"github.com/richinex/argus/state"
)

// headerVersion is written to the first line of every log file.
const headerVersion = "1.0.0"

// Log is an append-only, hash-chained audit log. One Log owns one output
// file for the lifetime of the process (no rotation); entries are also kept
// in an append-only in-memory list. Safe for concurrent use: the append
// path (read last hash → compute entry → persist → commit) runs under a
// single mutex so sequence numbers and chain linkage always reflect true
// call order.
type Log struct {
	mu      sync.Mutex
	entries []*Entry
	file    *os.File // nil for logs reopened read-only via Load
	path    string
}

// NewLog creates an audit log writing to a timestamped JSONL file under
// dir, creating dir if needed. The file starts with a header line.
func NewLog(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("audit_log_%s.jsonl", timeutil.NowFile()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log file: %w", err)
	}

	header := Header{
		Type:      "LOG_HEADER",
		Version:   headerVersion,
		CreatedAt: timeutil.Now(),
		Format:    "jsonl",
	}
	line, err := jsonutil.Canonical(header)
	if err != nil {
		file.Close()
		return nil, err
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write audit log header: %w", err)
	}

	return &Log{file: file, path: path}, nil
}

// Close closes the underlying log file. Further logging calls fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the location of the current log file.
func (l *Log) Path() string {
	return l.path
}

// LogTransition records a node-to-node state transition.
func (l *Log) LogTransition(threadID, nodeFrom, nodeTo string, inputData, outputData map[string]any, reasoning string, metadata map[string]any, tags []string) (*Entry, error) {
	return l.createEntry(entrySpec{
		eventType:  EventTransition,
		level:      LevelInfo,
		threadID:   threadID,
		nodeFrom:   nodeFrom,
		nodeTo:     nodeTo,
		inputData:  inputData,
		outputData: outputData,
		reasoning:  reasoning,
		metadata:   metadata,
		tags:       tags,
	})
}

// LogError records an error. stackTrace may be empty.
func (l *Log) LogError(threadID, errorMessage, errorType string, context map[string]any, stackTrace string) (*Entry, error) {
	var trace any
	if stackTrace != "" {
		trace = stackTrace
	}
	return l.createEntry(entrySpec{
		eventType: EventError,
		level:     LevelError,
		threadID:  threadID,
		reasoning: errorMessage,
		inputData: map[string]any{
			"error_type":  errorType,
			"stack_trace": trace,
		},
		outputData: context,
	})
}

// LogMetric records a metric measurement.
func (l *Log) LogMetric(threadID, metricName string, metricValue any, context map[string]any) (*Entry, error) {
	if context == nil {
		context = map[string]any{}
	}
	return l.createEntry(entrySpec{
		eventType: EventMetric,
		level:     LevelInfo,
		threadID:  threadID,
		inputData: map[string]any{"metric_name": metricName},
		outputData: map[string]any{
			"value":   metricValue,
			"context": context,
		},
	})
}

// LogDecision records a decision point.
func (l *Log) LogDecision(threadID, decisionType, reasoning, selectedAction string, alternatives []string, confidence float64) (*Entry, error) {
	return l.createEntry(entrySpec{
		eventType: EventDecision,
		level:     LevelInfo,
		threadID:  threadID,
		reasoning: reasoning,
		inputData: map[string]any{
			"decision_type": decisionType,
			"alternatives":  alternatives,
		},
		outputData: map[string]any{
			"selected_action": selectedAction,
			"confidence":      confidence,
		},
	})
}

// entrySpec carries the per-event-type fields into the common construction
// routine.
type entrySpec struct {
	eventType  EventType
	level      Level
	threadID   string
	nodeFrom   string
	nodeTo     string
	inputData  map[string]any
	outputData map[string]any
	reasoning  string
	metadata   map[string]any
	tags       []string
}

// createEntry is the single construction routine behind all four logging
// calls. It sanitizes first, so unserializable input cannot fail it; a
// non-nil error means only that the entry could not be appended to disk.
func (l *Log) createEntry(spec entrySpec) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil, fmt.Errorf("audit log %s is not open for writing", l.path)
	}

	timestamp := timeutil.Now()
	sequence := len(l.entries)

	previousHash := ""
	if sequence > 0 {
		previousHash = l.entries[sequence-1].EntryHash
	}

	entry := &Entry{
		LogID:          digest.ShortID(timestamp, fmt.Sprint(sequence), string(spec.eventType), spec.threadID),
		SequenceNumber: sequence,
		Timestamp:      timestamp,
		PreviousHash:   previousHash,
		EventType:      spec.eventType,
		Level:          spec.level,
		InputData:      sanitizeData(spec.inputData),
		OutputData:     sanitizeData(spec.outputData),
		Reasoning:      spec.reasoning,
		ThreadID:       spec.threadID,
		NodeFrom:       spec.nodeFrom,
		NodeTo:         spec.nodeTo,
		Metadata:       sanitizeData(spec.metadata),
		Tags:           spec.tags,
	}
	entry.EntryHash = entry.ComputeHash()

	l.entries = append(l.entries, entry)

	line, err := jsonutil.Canonical(entry)
	if err != nil {
		return entry, err
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return entry, fmt.Errorf("failed to append audit entry %s: %w", entry.LogID, err)
	}
	return entry, nil
}

// sanitizeData truncates oversized values and normalizes the rest to
// JSON-native types so hashing is stable across persistence round trips.
func sanitizeData(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	return jsonutil.NormalizeMap(state.Sanitize(data, state.AuditLimits))
}

// VerifyIntegrity re-checks every entry hash, every previous-hash link and
// every sequence number. Each mismatch is reported individually; Valid is
// true iff there are none. Detection is passive: no repair is attempted.
func (l *Log) VerifyIntegrity() IntegrityResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return IntegrityResult{Valid: true, Message: "no entries to verify"}
	}

	var errs []IntegrityError
	for i, entry := range l.entries {
		if computed := entry.ComputeHash(); computed != entry.EntryHash {
			errs = append(errs, IntegrityError{
				Sequence: i,
				LogID:    entry.LogID,
				Error:    "hash mismatch - entry may be tampered",
				Expected: entry.EntryHash,
				Found:    computed,
			})
		}
		if i > 0 {
			if prev := l.entries[i-1].EntryHash; entry.PreviousHash != prev {
				errs = append(errs, IntegrityError{
					Sequence: i,
					LogID:    entry.LogID,
					Error:    "chain broken - previous hash mismatch",
					Expected: prev,
					Found:    entry.PreviousHash,
				})
			}
		}
		if entry.SequenceNumber != i {
			errs = append(errs, IntegrityError{
				Sequence: i,
				LogID:    entry.LogID,
				Error:    "sequence number mismatch",
				Expected: i,
				Found:    entry.SequenceNumber,
			})
		}
	}

	return IntegrityResult{
		Valid:        len(errs) == 0,
		TotalEntries: len(l.entries),
		Errors:       errs,
	}
}

// Entries returns entries matching the filter, in append order.
// A zero filter returns everything.
func (l *Log) Entries(f Filter) []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := []*Entry{}
	for _, entry := range l.entries {
		if f.Match(entry) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// ReplayThread returns the chronological transition history of a thread.
func (l *Log) ReplayThread(threadID string) []TransitionReplay {
	entries := l.Entries(Filter{ThreadID: threadID, EventType: EventTransition})

	replay := []TransitionReplay{}
	for _, e := range entries {
		replay = append(replay, TransitionReplay{
			Sequence:   e.SequenceNumber,
			Timestamp:  e.Timestamp,
			Transition: fmt.Sprintf("%s → %s", e.NodeFrom, e.NodeTo),
			Input:      e.InputData,
			Output:     e.OutputData,
			Reasoning:  e.Reasoning,
			LogID:      e.LogID,
		})
	}
	return replay
}

// Statistics aggregates the whole log. Returns an explicit no-data result
// when the log is empty.
func (l *Log) Statistics() Statistics {
	integrity := l.VerifyIntegrity()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return Statistics{Message: "no entries logged yet"}
	}

	byEventType := map[string]int{}
	byLevel := map[string]int{}
	threads := map[string]bool{}
	for _, e := range l.entries {
		byEventType[string(e.EventType)]++
		byLevel[string(e.Level)]++
		threads[e.ThreadID] = true
	}

	return Statistics{
		TotalEntries:      len(l.entries),
		FirstEntry:        l.entries[0].Timestamp,
		LatestEntry:       l.entries[len(l.entries)-1].Timestamp,
		ByEventType:       byEventType,
		ByLevel:           byLevel,
		UniqueThreads:     len(threads),
		IntegrityVerified: integrity.Valid,
	}
}

// Search matches query case-insensitively against each entry's reasoning,
// then its serialized input, output and metadata, short-circuiting on the
// first hit per entry.
func (l *Log) Search(query string) []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := strings.ToLower(query)
	matches := []*Entry{}
	for _, e := range l.entries {
		if strings.Contains(strings.ToLower(e.Reasoning), q) ||
			strings.Contains(strings.ToLower(jsonutil.Stringify(e.InputData)), q) ||
			strings.Contains(strings.ToLower(jsonutil.Stringify(e.OutputData)), q) ||
			strings.Contains(strings.ToLower(jsonutil.Stringify(e.Metadata)), q) {
			matches = append(matches, e)
		}
	}
	return matches
}
