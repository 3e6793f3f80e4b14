package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/richinex/argus/internal/timeutil"
)

// csvColumns is the fixed CSV export column set, in order.
var csvColumns = []string{
	"sequence_number", "timestamp", "event_type", "level",
	"thread_id", "node_from", "node_to", "reasoning",
	"log_id", "entry_hash",
}

// exportMetadata is the header block of a JSON export.
type exportMetadata struct {
	TotalEntries int     `json:"total_entries"`
	ExportedAt   string  `json:"exported_at"`
	Filters      *Filter `json:"filters"`
}

// exportDocument is the full JSON export payload.
type exportDocument struct {
	Metadata exportMetadata `json:"metadata"`
	Entries  []*Entry       `json:"entries"`
}

// Export writes matching entries to path in the given format ("json" or
// "csv") and returns the path written. A nil filter exports everything.
// A CSV export with zero matching entries writes only the column header
// and still succeeds.
func (l *Log) Export(path, format string, filter *Filter) (string, error) {
	var f Filter
	if filter != nil {
		f = *filter
	}
	entries := l.Entries(f)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	switch format {
	case "json":
		return path, l.exportJSON(path, entries, filter)
	case "csv":
		return path, l.exportCSV(path, entries)
	default:
		return "", fmt.Errorf("unsupported export format: %q", format)
	}
}

func (l *Log) exportJSON(path string, entries []*Entry, filter *Filter) error {
	doc := exportDocument{
		Metadata: exportMetadata{
			TotalEntries: len(entries),
			ExportedAt:   timeutil.Now(),
			Filters:      filter,
		},
		Entries: entries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func (l *Log) exportCSV(path string, entries []*Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			strconv.Itoa(e.SequenceNumber),
			e.Timestamp,
			string(e.EventType),
			string(e.Level),
			e.ThreadID,
			e.NodeFrom,
			e.NodeTo,
			e.Reasoning,
			e.LogID,
			e.EntryHash,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
