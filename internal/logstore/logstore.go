// Package logstore implements the append-only, line-delimited JSON log
// files (publications.jsonl, messages.jsonl) each application server
// writes to. Appends are serialized per file so that both the main
// request loop and the replica listener goroutine can write safely —
// SPEC_FULL.md §5.
package logstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log is a single append-only JSONL file guarded by its own mutex.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens (creating if absent) the JSONL file at path for appending.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Append marshals record to one JSON line and appends it atomically with
// respect to other Append calls on this Log.
func (l *Log) Append(record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Lines reads the log back for forensic/test purposes, tolerating a
// partial (unterminated) last line by discarding it.
func Lines(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	var out []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			// partial last line, or corruption — tolerated, not surfaced.
			continue
		}
		cp := make(json.RawMessage, len(line))
		copy(cp, line)
		out = append(out, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log %s: %w", path, err)
	}
	return out, nil
}

// Count returns the number of well-formed lines currently in path.
func Count(path string) (int, error) {
	lines, err := Lines(path)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}
