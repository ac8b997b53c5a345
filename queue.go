package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Queue markers. A line is pending unless its trimmed text starts with the
// done marker. Failed items keep the done prefix so they still count as
// processed and the batch always makes progress.
const (
	doneMarker   = "x "
	failedMarker = "x [failed] "
)

// WorkQueue reads and rewrites the flat area list that is the pipeline's
// only persistent state.
type WorkQueue struct {
	Path string
}

// NewWorkQueue returns a queue backed by the given file. The file must
// exist; a missing queue is a configuration error.
func NewWorkQueue(path string) (*WorkQueue, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("queue file %s: %w", path, err)
	}
	return &WorkQueue{Path: path}, nil
}

// NextPending returns the first line whose trimmed content is non-empty and
// not marked done, or "" if every item is marked or the queue is empty.
func (q *WorkQueue) NextPending() (string, error) {
	content, err := os.ReadFile(q.Path)
	if err != nil {
		return "", fmt.Errorf("reading queue %s: %w", q.Path, err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, doneMarker) {
			return trimmed, nil
		}
	}
	return "", nil
}

// MarkDone rewrites the first unmarked line matching the area, prefixing it
// with the done marker. Indentation and every other line are preserved.
func (q *WorkQueue) MarkDone(area string) error {
	return q.mark(area, doneMarker)
}

// MarkFailed is MarkDone with the failure marker, so an operator can tell
// processed items from errored ones on inspection.
func (q *WorkQueue) MarkFailed(area string) error {
	return q.mark(area, failedMarker)
}

func (q *WorkQueue) mark(area, marker string) error {
	content, err := os.ReadFile(q.Path)
	if err != nil {
		return fmt.Errorf("reading queue %s: %w", q.Path, err)
	}

	if area == "" {
		log.Printf("⚠ Warning: refusing to mark empty item in %s", q.Path)
		return nil
	}

	lines := strings.Split(string(content), "\n")
	found := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != area || strings.HasPrefix(trimmed, doneMarker) {
			continue
		}
		indent := line[:strings.Index(line, trimmed)]
		lines[i] = indent + marker + trimmed
		found = true
		break
	}

	if !found {
		log.Printf("⚠ Warning: could not find %q in %s to mark", area, q.Path)
		return nil
	}

	return writeFileAtomic(q.Path, strings.Join(lines, "\n"))
}

// writeFileAtomic writes content to a temp file in the target directory and
// renames it into place, so a crash mid-write never corrupts the original.
func writeFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".queue-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
