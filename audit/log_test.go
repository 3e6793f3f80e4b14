package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestChainLinkage(t *testing.T) {
	log := newTestLog(t)

	first, err := log.LogTransition("t1", "START", "chat", nil, nil, "begin", nil, nil)
	require.NoError(t, err)
	second, err := log.LogTransition("t1", "chat", "search", nil, nil, "continue", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, first.SequenceNumber)
	assert.Equal(t, 1, second.SequenceNumber)
	assert.Empty(t, first.PreviousHash)
	assert.Equal(t, first.EntryHash, second.PreviousHash)
	assert.Len(t, first.EntryHash, 64)
}

func TestVerifyIntegrityEmptyLog(t *testing.T) {
	log := newTestLog(t)

	result := log.VerifyIntegrity()
	assert.True(t, result.Valid)
	assert.Equal(t, "no entries to verify", result.Message)
}

func TestVerifyIntegrityIntactChain(t *testing.T) {
	log := newTestLog(t)

	for i := 0; i < 20; i++ {
		_, err := log.LogTransition("t1", "a", "b", map[string]any{"i": i}, nil, "step", nil, nil)
		require.NoError(t, err)
	}

	result := log.VerifyIntegrity()
	assert.True(t, result.Valid)
	assert.Equal(t, 20, result.TotalEntries)
	assert.Empty(t, result.Errors)
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	log := newTestLog(t)

	log.LogTransition("t1", "a", "b", nil, nil, "honest entry", nil, nil)
	log.LogTransition("t1", "b", "c", nil, nil, "also honest", nil, nil)

	log.entries[0].Reasoning = "rewritten after the fact"

	result := log.VerifyIntegrity()
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, 0, result.Errors[0].Sequence)
	assert.Contains(t, result.Errors[0].Error, "hash mismatch")

	// The previous-hash link of entry 1 still matches entry 0's stored
	// hash, so only the hash rule fires.
	assert.Len(t, result.Errors, 1)
}

func TestVerifyIntegrityDetectsBrokenChain(t *testing.T) {
	log := newTestLog(t)

	log.LogTransition("t1", "a", "b", nil, nil, "", nil, nil)
	log.LogTransition("t1", "b", "c", nil, nil, "", nil, nil)

	log.entries[1].PreviousHash = strings.Repeat("0", 64)

	result := log.VerifyIntegrity()
	assert.False(t, result.Valid)

	var kinds []string
	for _, e := range result.Errors {
		kinds = append(kinds, e.Error)
	}
	// Rewriting previous_hash also invalidates entry 1's own hash.
	assert.Contains(t, strings.Join(kinds, "; "), "chain broken")
	assert.Contains(t, strings.Join(kinds, "; "), "hash mismatch")
}

func TestLogErrorShape(t *testing.T) {
	log := newTestLog(t)

	entry, err := log.LogError("t1", "fetch failed", "NetworkError", map[string]any{"url": "http://x"}, "")
	require.NoError(t, err)

	assert.Equal(t, EventError, entry.EventType)
	assert.Equal(t, LevelError, entry.Level)
	assert.Equal(t, "fetch failed", entry.Reasoning)
	assert.Equal(t, "NetworkError", entry.InputData["error_type"])
	assert.Nil(t, entry.InputData["stack_trace"])
	assert.Equal(t, "http://x", entry.OutputData["url"])
}

func TestLogMetricShape(t *testing.T) {
	log := newTestLog(t)

	entry, err := log.LogMetric("t1", "latency_ms", 42.5, nil)
	require.NoError(t, err)

	assert.Equal(t, EventMetric, entry.EventType)
	assert.Equal(t, "latency_ms", entry.InputData["metric_name"])
	assert.Equal(t, 42.5, entry.OutputData["value"])
	assert.NotNil(t, entry.OutputData["context"])
}

func TestLogDecisionShape(t *testing.T) {
	log := newTestLog(t)

	entry, err := log.LogDecision("t1", "routing", "best match", "search", []string{"chat", "search"}, 0.8)
	require.NoError(t, err)

	assert.Equal(t, EventDecision, entry.EventType)
	assert.Equal(t, "routing", entry.InputData["decision_type"])
	assert.Equal(t, "search", entry.OutputData["selected_action"])
	assert.Equal(t, 0.8, entry.OutputData["confidence"])
}

func TestEntriesFilter(t *testing.T) {
	log := newTestLog(t)

	log.LogTransition("t1", "a", "b", nil, nil, "", nil, []string{"phase1"})
	log.LogTransition("t2", "a", "b", nil, nil, "", nil, nil)
	log.LogError("t1", "oops", "Bug", nil, "")

	assert.Len(t, log.Entries(Filter{}), 3)
	assert.Len(t, log.Entries(Filter{ThreadID: "t1"}), 2)
	assert.Len(t, log.Entries(Filter{ThreadID: "t1", EventType: EventError}), 1)
	assert.Len(t, log.Entries(Filter{Level: LevelError}), 1)
	assert.Len(t, log.Entries(Filter{Tags: []string{"phase1", "unused"}}), 1)
	assert.Empty(t, log.Entries(Filter{ThreadID: "missing"}))
}

func TestEntriesTimeBounds(t *testing.T) {
	log := newTestLog(t)

	first, _ := log.LogTransition("t1", "a", "b", nil, nil, "", nil, nil)
	second, _ := log.LogTransition("t1", "b", "c", nil, nil, "", nil, nil)

	got := log.Entries(Filter{StartTime: second.Timestamp})
	for _, e := range got {
		assert.GreaterOrEqual(t, e.Timestamp, second.Timestamp)
	}

	got = log.Entries(Filter{EndTime: first.Timestamp})
	for _, e := range got {
		assert.LessOrEqual(t, e.Timestamp, first.Timestamp)
	}
}

func TestReplayThread(t *testing.T) {
	log := newTestLog(t)

	assert.Empty(t, log.ReplayThread("missing"))

	log.LogTransition("t1", "START", "chat", nil, nil, "begin", nil, nil)
	log.LogMetric("t1", "m", 1, nil)
	log.LogTransition("t1", "chat", "search", nil, nil, "route", nil, nil)

	replay := log.ReplayThread("t1")
	require.Len(t, replay, 2)
	assert.Equal(t, "START → chat", replay[0].Transition)
	assert.Equal(t, "chat → search", replay[1].Transition)
	assert.Equal(t, "route", replay[1].Reasoning)
}

func TestStatistics(t *testing.T) {
	log := newTestLog(t)

	stats := log.Statistics()
	assert.Equal(t, "no entries logged yet", stats.Message)

	log.LogTransition("t1", "a", "b", nil, nil, "", nil, nil)
	log.LogTransition("t2", "a", "b", nil, nil, "", nil, nil)
	log.LogError("t1", "oops", "Bug", nil, "")

	stats = log.Statistics()
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.ByEventType["transition"])
	assert.Equal(t, 1, stats.ByEventType["error"])
	assert.Equal(t, 2, stats.ByLevel["info"])
	assert.Equal(t, 2, stats.UniqueThreads)
	assert.True(t, stats.IntegrityVerified)
	assert.NotEmpty(t, stats.FirstEntry)
}

func TestSearch(t *testing.T) {
	log := newTestLog(t)

	log.LogTransition("t1", "a", "b", map[string]any{"query": "quantum computing"}, nil, "user asked about physics", nil, nil)
	log.LogTransition("t1", "b", "c", nil, map[string]any{"answer": "biology summary"}, "", nil, nil)

	assert.Len(t, log.Search("PHYSICS"), 1)
	assert.Len(t, log.Search("quantum"), 1)
	assert.Len(t, log.Search("biology"), 1)
	assert.Empty(t, log.Search("chemistry"))
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	require.NoError(t, err)

	log.LogTransition("t1", "START", "chat", map[string]any{"query": "hi"}, nil, "begin", map[string]any{"k": "v"}, []string{"tag"})
	log.LogError("t1", "oops", "Bug", nil, "trace here")
	log.LogMetric("t1", "latency_ms", 10, nil)
	require.NoError(t, log.Close())

	loaded, err := Load(log.Path())
	require.NoError(t, err)

	result := loaded.VerifyIntegrity()
	assert.True(t, result.Valid, "reloaded chain must verify: %+v", result.Errors)
	assert.Equal(t, 3, result.TotalEntries)

	// A reloaded log is read-only.
	_, err = loaded.LogMetric("t1", "m", 1, nil)
	assert.Error(t, err)
}

func TestLoadRejectsMissingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "a header"}`+"\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	require.NoError(t, err)
	log.LogTransition("t1", "a", "b", nil, nil, "original reasoning", nil, nil)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "original reasoning", "doctored reasoning", 1)
	require.NoError(t, os.WriteFile(log.Path(), []byte(tampered), 0644))

	loaded, err := Load(log.Path())
	require.NoError(t, err)

	result := loaded.VerifyIntegrity()
	assert.False(t, result.Valid)
}
