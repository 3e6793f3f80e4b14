// SQLite-backed audit archive.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and JSON column encoding encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/richinex/argus/audit"
)

// SqliteArchive implements ArchiveStorage using a SQLite database file.
type SqliteArchive struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite archive at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteArchive, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite archive: %w", err)
	}

	archive := &SqliteArchive{db: db}
	if err := archive.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

// NewSqliteInMemory creates an in-memory archive (useful for testing).
func NewSqliteInMemory() (*SqliteArchive, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	archive := &SqliteArchive{db: db}
	if err := archive.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}

// Close closes the database connection.
func (s *SqliteArchive) Close() error {
	return s.db.Close()
}

func (s *SqliteArchive) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_entries (
			log_id TEXT PRIMARY KEY,
			source_log TEXT NOT NULL,
			sequence_number INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			event_type TEXT NOT NULL,
			level TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			node_from TEXT,
			node_to TEXT,
			reasoning TEXT,
			input_data TEXT NOT NULL,
			output_data TEXT NOT NULL,
			metadata TEXT,
			tags TEXT,
			previous_hash TEXT NOT NULL,
			entry_hash TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_thread
		ON audit_entries(thread_id, timestamp);

		CREATE INDEX IF NOT EXISTS idx_entries_source
		ON audit_entries(source_log, sequence_number);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Archive stores entries under sourceLog, skipping duplicates by log id.
func (s *SqliteArchive) Archive(ctx context.Context, sourceLog string, entries []*audit.Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after Commit
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO audit_entries
		(log_id, source_log, sequence_number, timestamp, event_type, level,
		 thread_id, node_from, node_to, reasoning,
		 input_data, output_data, metadata, tags, previous_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		inputData, err := encodeColumn(e.InputData)
		if err != nil {
			return inserted, err
		}
		outputData, err := encodeColumn(e.OutputData)
		if err != nil {
			return inserted, err
		}
		metadata, err := encodeColumn(e.Metadata)
		if err != nil {
			return inserted, err
		}
		tags, err := encodeColumn(e.Tags)
		if err != nil {
			return inserted, err
		}

		res, err := stmt.ExecContext(ctx,
			e.LogID, sourceLog, e.SequenceNumber, e.Timestamp,
			string(e.EventType), string(e.Level),
			e.ThreadID, e.NodeFrom, e.NodeTo, e.Reasoning,
			inputData, outputData, metadata, tags,
			e.PreviousHash, e.EntryHash,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert entry %s: %w", e.LogID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// encodeColumn stores structured fields as JSON text columns.
func encodeColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

// EntriesByThread loads all archived entries for a thread, in timestamp
// order.
func (s *SqliteArchive) EntriesByThread(ctx context.Context, threadID string) ([]*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, sequence_number, timestamp, event_type, level,
		       thread_id, node_from, node_to, reasoning,
		       input_data, output_data, metadata, tags, previous_hash, entry_hash
		FROM audit_entries
		WHERE thread_id = ?
		ORDER BY timestamp ASC`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{} // Start with empty slice, not nil
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*audit.Entry, error) {
	var e audit.Entry
	var eventType, level string
	var inputData, outputData string
	var metadata, tags sql.NullString

	err := rows.Scan(
		&e.LogID, &e.SequenceNumber, &e.Timestamp, &eventType, &level,
		&e.ThreadID, &e.NodeFrom, &e.NodeTo, &e.Reasoning,
		&inputData, &outputData, &metadata, &tags,
		&e.PreviousHash, &e.EntryHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.EventType = audit.EventType(eventType)
	e.Level = audit.Level(level)

	if err := json.Unmarshal([]byte(inputData), &e.InputData); err != nil {
		return nil, fmt.Errorf("invalid input_data for entry %s: %w", e.LogID, err)
	}
	if err := json.Unmarshal([]byte(outputData), &e.OutputData); err != nil {
		return nil, fmt.Errorf("invalid output_data for entry %s: %w", e.LogID, err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for entry %s: %w", e.LogID, err)
		}
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags for entry %s: %w", e.LogID, err)
		}
	}

	return &e, nil
}

// Threads lists all thread ids present in the archive.
func (s *SqliteArchive) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT thread_id FROM audit_entries ORDER BY thread_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	threads := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, threadID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	return threads, nil
}

// Stats summarizes the archive contents.
func (s *SqliteArchive) Stats(ctx context.Context) (ArchiveStats, error) {
	stats := ArchiveStats{ByEventType: map[string]int{}}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT thread_id) FROM audit_entries").
		Scan(&stats.TotalEntries, &stats.UniqueThreads)
	if err != nil {
		return stats, fmt.Errorf("failed to count entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT event_type, COUNT(*) FROM audit_entries GROUP BY event_type")
	if err != nil {
		return stats, fmt.Errorf("failed to count event types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return stats, fmt.Errorf("failed to scan event type count: %w", err)
		}
		stats.ByEventType[eventType] = count
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating event types: %w", err)
	}
	return stats, nil
}

// Verify SqliteArchive implements the interface
var _ ArchiveStorage = (*SqliteArchive)(nil)
