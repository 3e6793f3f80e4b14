// Package storage provides archive storage for exported audit logs.
//
// Information Hiding:
// - Archive backend implementation details hidden behind interface
// - Allows swapping SQLite for another backend without API changes
//
// The archive is offline tooling over persisted audit files: the audit log
// itself stays flat-file and in-memory, the archive only makes finished
// logs queryable with SQL.

package storage

import (
	"context"

	"github.com/richinex/argus/audit"
)

// ArchiveStats summarizes the contents of an archive.
type ArchiveStats struct {
	TotalEntries  int            `json:"total_entries"`
	UniqueThreads int            `json:"unique_threads"`
	ByEventType   map[string]int `json:"by_event_type"`
}

// ArchiveStorage defines the interface for archiving audit entries.
type ArchiveStorage interface {
	// Archive stores entries under the named source log. Entries already
	// archived (same log id) are skipped; returns the number inserted.
	Archive(ctx context.Context, sourceLog string, entries []*audit.Entry) (int, error)

	// EntriesByThread loads all archived entries for a thread, in
	// timestamp order.
	EntriesByThread(ctx context.Context, threadID string) ([]*audit.Entry, error)

	// Threads lists all thread ids present in the archive.
	Threads(ctx context.Context) ([]string, error)

	// Stats summarizes the archive contents.
	Stats(ctx context.Context) (ArchiveStats, error)

	// Close releases resources.
	Close() error
}
