package checkpoint

import (
	"fmt"
	"sort"
)

// Sheet is a named table in the output workbook.
type Sheet struct {
	Name  string
	Table *Table
}

// Sink persists a workbook snapshot.
type Sink interface {
	Write(sheets []Sheet) error
}

// Store tracks processed items and checkpoints the table every Interval
// items.
type Store struct {
	main     Sheet
	aux      []Sheet
	sink     Sink
	interval int

	done  int
	saves int
}

// NewStore creates a store writing table as the sheet named name. An
// interval below 1 disables intermediate checkpoints.
func NewStore(name string, table *Table, sink Sink, interval int) *Store {
	return &Store{
		main:     Sheet{Name: name, Table: table},
		sink:     sink,
		interval: interval,
	}
}

// Table returns the main table.
func (s *Store) Table() *Table {
	return s.main.Table
}

// Attach adds an auxiliary sheet written after the main one. A sheet with
// the same name is replaced.
func (s *Store) Attach(name string, table *Table) {
	for i := range s.aux {
		if s.aux[i].Name == name {
			s.aux[i].Table = table
			return
		}
	}
	s.aux = append(s.aux, Sheet{Name: name, Table: table})
}

// Apply writes values into row, or appends a new row when row is negative.
// It returns the row position.
func (s *Store) Apply(row int, values map[string]string) int {
	if row < 0 {
		return s.main.Table.Append(values)
	}
	s.main.Table.Update(row, values)
	return row
}

// Done counts one processed item and checkpoints on the interval.
func (s *Store) Done() error {
	s.done++
	if s.interval > 0 && s.done%s.interval == 0 {
		if err := s.Checkpoint(); err != nil {
			return fmt.Errorf("checkpoint at %d: %w", s.done, err)
		}
	}
	return nil
}

// Checkpoint writes every sheet through the sink.
func (s *Store) Checkpoint() error {
	sheets := append([]Sheet{s.main}, s.aux...)
	if err := s.sink.Write(sheets); err != nil {
		return err
	}
	s.saves++
	return nil
}

// Processed returns how many items were counted.
func (s *Store) Processed() int {
	return s.done
}

// Saves returns how many checkpoints succeeded.
func (s *Store) Saves() int {
	return s.saves
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
