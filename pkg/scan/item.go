// Package scan discovers work items and filters out the ones a run has
// already processed.
package scan

import (
	"context"
	"strings"
)

// Status is a work item's processing state.
type Status int

const (
	Pending Status = iota
	Done
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const keySep = "\x1f"

// Key is a composite natural key. It is comparable so it can index maps.
type Key string

// NewKey joins parts into a key. Parts are trimmed.
func NewKey(parts ...string) Key {
	trimmed := make([]string, len(parts))
	for i, p := range parts {
		trimmed[i] = strings.TrimSpace(p)
	}
	return Key(strings.Join(trimmed, keySep))
}

// Parts splits the key back into its components.
func (k Key) Parts() []string {
	return strings.Split(string(k), keySep)
}

// String renders the key for humans, e.g. "Class 5/A".
func (k Key) String() string {
	return strings.Join(k.Parts(), "/")
}

// WorkItem is one unit of portal-side processing.
type WorkItem struct {
	Key    Key
	Status Status

	// ScanIndex is the item's position in the scan that discovered it.
	ScanIndex int

	// Row is the item's position in the result table, or -1 when the
	// driver should append a new row.
	Row int

	// Fields carries the raw values the operation needs, by column name.
	Fields map[string]string
}

// Field returns the named field trimmed of surrounding space.
func (w WorkItem) Field(name string) string {
	return strings.TrimSpace(w.Fields[name])
}

// ProcessedSet holds the keys a run has finished with. It only grows.
type ProcessedSet struct {
	keys map[Key]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{keys: make(map[Key]struct{})}
}

// Add marks key processed.
func (s *ProcessedSet) Add(key Key) {
	s.keys[key] = struct{}{}
}

// Has reports whether key was processed.
func (s *ProcessedSet) Has(key Key) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of processed keys.
func (s *ProcessedSet) Len() int {
	return len(s.keys)
}

// Source yields the pending items not yet in processed, in display order.
// Each call re-reads its underlying view. An empty result means the run is
// finished.
type Source interface {
	Scan(ctx context.Context, processed *ProcessedSet) ([]WorkItem, error)
}
