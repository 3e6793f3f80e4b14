package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Load re-reads a persisted audit log file (header line plus one entry per
// line) into a read-only Log. Queries, verification, search and export all
// work on a loaded log; logging calls fail because the log is not open for
// writing.
func Load(path string) (*Log, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Entries embed sanitized pipeline data; allow long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read audit log header: %w", err)
		}
		return nil, fmt.Errorf("audit log %s is empty", path)
	}

	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("invalid audit log header: %w", err)
	}
	if header.Type != "LOG_HEADER" {
		return nil, fmt.Errorf("audit log %s has no header line", path)
	}

	log := &Log{path: path}
	for lineNo := 2; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("invalid audit entry at line %d: %w", lineNo, err)
		}
		log.entries = append(log.entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	return log, nil
}
