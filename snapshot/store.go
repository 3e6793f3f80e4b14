package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"

	"github.com/richinex/argus/internal/digest"
	"github.com/richinex/argus/internal/timeutil"
	"github.com/richinex/argus/state"
)

// ErrNotFound is returned when a snapshot id is unknown. Stale ids are
// routine (UI queries, old reports), so this is a value, not a panic.
var ErrNotFound = errors.New("snapshot not found")

// Anomaly thresholds. Each rule is evaluated independently; a snapshot can
// trip any number of them.
const (
	maxStuckCycles = 3
	maxRetries     = 5
	minConfidence  = 0.3
	maxLatencyMs   = 10000
)

// Store captures, persists and inspects state snapshots. One file per
// snapshot plus an in-memory ordered list; snapshots are never mutated or
// deleted. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	dir       string
	snapshots []*Snapshot
}

// NewStore creates a snapshot store writing to dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Capture builds a snapshot from the caller's state mapping and persists
// it. Extraction never fails: malformed or partial state produces defaults.
// A non-nil error means only that the snapshot file could not be written;
// the returned snapshot is committed to memory regardless.
func (s *Store) Capture(st state.State, activeNode string, tags []string) (*Snapshot, error) {
	view := state.NewView(st)
	timestamp := timeutil.Now()

	snap := &Snapshot{
		SnapshotID: digest.ShortID(timestamp, activeNode, view.String("thread_id", "")),
		Timestamp:  timestamp,
		Symptoms:   view.Symptoms(activeNode),
		Scores:     view.Scores(),
		Context:    view.Context(),
		RawState:   view.Sanitized(state.SnapshotLimits),
		Tags:       tags,
	}

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()

	if err := s.persist(snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) persist(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot %s: %w", snap.SnapshotID, err)
	}

	name := fmt.Sprintf("snapshot_%s_%s.json", snap.SnapshotID, timeutil.ForFile(snap.Timestamp))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", snap.SnapshotID, err)
	}
	return nil
}

// Get retrieves a snapshot by id. Returns ErrNotFound for unknown ids.
func (s *Store) Get(snapshotID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.snapshots {
		if snap.SnapshotID == snapshotID {
			return snap, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, snapshotID)
}

// Latest returns the most recent snapshot, or nil when none exist.
func (s *Store) Latest() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

// ByTag returns all snapshots carrying the given tag, in capture order.
func (s *Store) ByTag(tag string) []*Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []*Snapshot{}
	for _, snap := range s.snapshots {
		for _, t := range snap.Tags {
			if t == tag {
				matches = append(matches, snap)
				break
			}
		}
	}
	return matches
}

// ForThread returns all snapshots belonging to a thread, in capture order.
func (s *Store) ForThread(threadID string) []*Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []*Snapshot{}
	for _, snap := range s.snapshots {
		if snap.Context.ThreadID == threadID {
			matches = append(matches, snap)
		}
	}
	return matches
}

// Compare diffs two snapshots. Returns ErrNotFound if either id is unknown.
func (s *Store) Compare(id1, id2 string) (*Diff, error) {
	s1, err := s.Get(id1)
	if err != nil {
		return nil, err
	}
	s2, err := s.Get(id2)
	if err != nil {
		return nil, err
	}

	t1, err := timeutil.Parse(s1.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp on snapshot %s: %w", id1, err)
	}
	t2, err := timeutil.Parse(s2.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp on snapshot %s: %w", id2, err)
	}

	return &Diff{
		Snapshot1:        id1,
		Snapshot2:        id2,
		TimeDeltaSeconds: t2.Sub(t1).Seconds(),
		SymptomsChanged:  !reflect.DeepEqual(s1.Symptoms, s2.Symptoms),
		ScoreDelta: ScoreDelta{
			Confidence:   s2.Scores.Confidence - s1.Scores.Confidence,
			Relevance:    s2.Scores.Relevance - s1.Scores.Relevance,
			Completeness: s2.Scores.Completeness - s1.Scores.Completeness,
			LatencyMs:    s2.Scores.LatencyMs - s1.Scores.LatencyMs,
			TokenCount:   s2.Scores.TokenCount - s1.Scores.TokenCount,
			CostUSD:      s2.Scores.CostUSD - s1.Scores.CostUSD,
		},
		MessageCountDelta:   len(s2.Context.Messages) - len(s1.Context.Messages),
		ResourcesCountDelta: s2.Context.ResourcesCount - s1.Context.ResourcesCount,
	}, nil
}

// DetectAnomalies runs the rule set over one snapshot and returns one
// human-readable message per rule that fires. Rules are independent and
// order-preserving.
func (s *Store) DetectAnomalies(snap *Snapshot) []string {
	var anomalies []string

	if snap.Symptoms.StuckCycles > maxStuckCycles {
		anomalies = append(anomalies, fmt.Sprintf("Agent stuck in loop: %d cycles", snap.Symptoms.StuckCycles))
	}
	if snap.Symptoms.RetryCount > maxRetries {
		anomalies = append(anomalies, fmt.Sprintf("High retry count: %d", snap.Symptoms.RetryCount))
	}
	if snap.Scores.Confidence < minConfidence {
		anomalies = append(anomalies, fmt.Sprintf("Low confidence score: %.2f", snap.Scores.Confidence))
	}
	if snap.Scores.LatencyMs > maxLatencyMs {
		anomalies = append(anomalies, fmt.Sprintf("High latency: %.0fms", snap.Scores.LatencyMs))
	}
	if snap.Symptoms.ErrorCount > 0 {
		anomalies = append(anomalies, fmt.Sprintf("Errors detected: %d", snap.Symptoms.ErrorCount))
	}
	if snap.Symptoms.ActiveNode == "download" && !snap.Symptoms.HasResources {
		anomalies = append(anomalies, "No resources found after search")
	}

	return anomalies
}

// Summary aggregates statistics over all snapshots. Returns an explicit
// no-data result when nothing has been captured.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return Summary{Message: "no snapshots captured yet"}
	}

	totalConfidence := 0.0
	totalErrors := 0
	nodes := map[string]bool{}
	tags := map[string]bool{}
	for _, snap := range s.snapshots {
		totalConfidence += snap.Scores.Confidence
		totalErrors += snap.Symptoms.ErrorCount
		nodes[snap.Symptoms.ActiveNode] = true
		for _, tag := range snap.Tags {
			tags[tag] = true
		}
	}

	return Summary{
		TotalSnapshots: len(s.snapshots),
		FirstSnapshot:  s.snapshots[0].Timestamp,
		LatestSnapshot: s.snapshots[len(s.snapshots)-1].Timestamp,
		AvgConfidence:  totalConfidence / float64(len(s.snapshots)),
		TotalErrors:    totalErrors,
		NodesVisited:   sortedKeys(nodes),
		TagsUsed:       sortedKeys(tags),
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
