package scan

import (
	"context"
	"strconv"
)

// Row is one input record keyed by column name.
type Row map[string]string

// RowSource turns input records into work items. It satisfies the same
// contract as TableScanner so record workflows share the driver loop.
type RowSource struct {
	rows []Row

	// KeyOf builds the dedup key of a row. It defaults to the row position.
	KeyOf func(index int, row Row) Key

	// Eligible filters rows before they become items. nil admits all rows.
	Eligible func(row Row) bool
}

// NewRowSource creates a source over rows.
func NewRowSource(rows []Row) *RowSource {
	return &RowSource{rows: rows}
}

// Scan returns every eligible row whose key is not in processed. Because
// the driver marks each returned item processed, a second call after a full
// pass returns nothing.
func (s *RowSource) Scan(ctx context.Context, processed *ProcessedSet) ([]WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []WorkItem
	for i, row := range s.rows {
		if s.Eligible != nil && !s.Eligible(row) {
			continue
		}
		key := s.key(i, row)
		if processed.Has(key) {
			continue
		}
		items = append(items, WorkItem{
			Key:       key,
			Status:    Pending,
			ScanIndex: len(items),
			Row:       i,
			Fields:    row,
		})
	}
	return items, nil
}

func (s *RowSource) key(i int, row Row) Key {
	if s.KeyOf != nil {
		return s.KeyOf(i, row)
	}
	return RowKey(i)
}

// RowKey is the default key for input row i.
func RowKey(i int) Key {
	return NewKey("row", strconv.Itoa(i))
}
