package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// XLSXSink writes the workbook to Path. Each write goes to a temporary file
// in the same directory which then replaces Path, so a crash mid-write never
// leaves a truncated workbook.
type XLSXSink struct {
	Path string
}

// Write implements Sink.
func (s *XLSXSink) Write(sheets []Sheet) error {
	if len(sheets) == 0 {
		return errors.New("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(first, sh.Name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sh.Name, err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sh.Name, err)
		}
		if err := writeSheet(f, sh); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".portalrunner-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	if err := f.SaveAs(tmpName); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh Sheet) error {
	for r, rec := range sh.Table.Records() {
		for c, v := range rec {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sh.Name, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sh.Name, cell, err)
			}
		}
	}
	return nil
}

// LoadXLSX reads the first sheet of path. The first row is the header.
// Cells are read raw, so dates arrive as serial numbers.
func LoadXLSX(path string) (*Table, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("%s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, "", fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = name
	}
	table := NewTable(header...)
	for _, rec := range rows[1:] {
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i >= len(rec) {
				continue
			}
			values[name] = rec[i]
		}
		table.Append(values)
	}
	return table, sheet, nil
}
