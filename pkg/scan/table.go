package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/portalrunner/pkg/browser"
)

// TableLayout locates the work-item table in the landing view.
type TableLayout struct {
	// Table selects the <table> element to snapshot
	Table string `yaml:"table"`

	// Row selects rows inside the snapshot (goquery syntax)
	Row string `yaml:"row"`

	// StatusCell selects the status cell inside a row
	StatusCell string `yaml:"status_cell"`

	// PendingLabel is the status text that marks an item as pending
	PendingLabel string `yaml:"pending_label"`

	// KeyCells select the cells whose text forms the key, in order
	KeyCells []string `yaml:"key_cells"`

	// KeyFields names each key cell in WorkItem.Fields
	KeyFields []string `yaml:"key_fields"`
}

// TableScanner reads pending rows from a live page table.
type TableScanner struct {
	page   browser.Page
	layout TableLayout
}

// NewTableScanner creates a scanner over page.
func NewTableScanner(page browser.Page, layout TableLayout) *TableScanner {
	return &TableScanner{page: page, layout: layout}
}

// Scan snapshots the table HTML and returns unseen pending rows in display
// order. The view mutates as items complete, so nothing is cached between
// calls.
func (s *TableScanner) Scan(ctx context.Context, processed *ProcessedSet) ([]WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	html, err := s.page.ReadHTML(s.layout.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read work item table: %w", err)
	}

	return ParseTable(html, s.layout, processed)
}

// ParseTable applies the scan rules to a table snapshot.
func ParseTable(html string, layout TableLayout, processed *ProcessedSet) ([]WorkItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse work item table: %w", err)
	}

	var items []WorkItem
	doc.Find(layout.Row).Each(func(i int, row *goquery.Selection) {
		status := cellText(row, layout.StatusCell)
		if status != layout.PendingLabel {
			return
		}

		parts := make([]string, len(layout.KeyCells))
		fields := make(map[string]string, len(layout.KeyCells)+1)
		for j, sel := range layout.KeyCells {
			parts[j] = cellText(row, sel)
			if j < len(layout.KeyFields) {
				fields[layout.KeyFields[j]] = parts[j]
			}
		}
		fields["status"] = status

		key := NewKey(parts...)
		if processed.Has(key) {
			return
		}

		items = append(items, WorkItem{
			Key:       key,
			Status:    Pending,
			ScanIndex: i,
			Row:       -1,
			Fields:    fields,
		})
	})

	return items, nil
}

// ErrRowGone means a keyed row is no longer in the table.
var ErrRowGone = errors.New("row is no longer in the table")

// LocateRow returns the position of the row whose key cells equal key,
// counted over every row the layout selects. Key cells are compared whole
// after trimming, so "Class 1" never matches "Class 10".
func LocateRow(html string, layout TableLayout, key Key) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return -1, fmt.Errorf("failed to parse work item table: %w", err)
	}

	found := -1
	doc.Find(layout.Row).EachWithBreak(func(i int, row *goquery.Selection) bool {
		parts := make([]string, len(layout.KeyCells))
		for j, sel := range layout.KeyCells {
			parts[j] = cellText(row, sel)
		}
		if NewKey(parts...) == key {
			found = i
			return false
		}
		return true
	})
	if found < 0 {
		return -1, fmt.Errorf("%s: %w", key, ErrRowGone)
	}
	return found, nil
}

// RowSelector addresses the nth row of the first table the layout matches,
// then inner inside that row, as a chained browser selector. Rows are
// counted the way LocateRow counts them.
func RowSelector(layout TableLayout, n int, inner string) string {
	sel := fmt.Sprintf("%s >> nth=0 >> %s >> nth=%d", layout.Table, layout.Row, n)
	if inner != "" {
		sel += " >> " + inner
	}
	return sel
}

func cellText(row *goquery.Selection, selector string) string {
	return strings.TrimSpace(row.Find(selector).First().Text())
}
