package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// table is the cell grid of a file after header detection
type table struct {
	header map[string]int
	rows   [][]string
}

// readTable reads every non-blank row of name. The first row is taken as a
// header when isHeader accepts its first cell.
func readTable(name string, r io.Reader, isHeader func(string) bool) (*table, error) {
	var (
		raw [][]string
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		raw, err = readCSV(r)
	case ".xlsx", ".xls":
		raw, err = readWorkbook(r)
	default:
		return nil, fmt.Errorf("%w: %q (use .csv, .txt, .xls or .xlsx)", domain.ErrUnsupportedFile, ext)
	}
	if err != nil {
		return nil, err
	}

	t := &table{}
	for i, row := range raw {
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}
		if i == 0 && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], "\ufeff")
		}
		if i == 0 && len(row) > 0 && isHeader(row[0]) {
			t.header = make(map[string]int, len(row))
			for j, cell := range row {
				if key := normalize(cell); key != "" {
					if _, seen := t.header[key]; !seen {
						t.header[key] = j
					}
				}
			}
			continue
		}
		if !blank(row) {
			t.rows = append(t.rows, row)
		}
	}

	if len(t.rows) == 0 {
		return nil, domain.ErrEmptyFile
	}
	return t, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, record)
	}
}

// readWorkbook returns the rows of the first sheet
func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", domain.ErrUnsupportedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// value returns the cell under the first matching header alias, or the cell
// at position when the file has no header.
func (t *table) value(row []string, position int, aliases ...string) string {
	if t.header == nil {
		return cell(row, position)
	}
	for _, alias := range aliases {
		if idx, ok := t.header[normalize(alias)]; ok {
			return cell(row, idx)
		}
	}
	return ""
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// normalize folds a header name so "Item ID", "ItemId", "item_id" and
// "Address.City" style variants compare equal.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '.', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// headerCell reports whether first, trimmed and lower-cased, is one of names
func headerCell(names ...string) func(string) bool {
	return func(first string) bool {
		key := strings.ToLower(strings.TrimSpace(first))
		for _, n := range names {
			if key == n {
				return true
			}
		}
		return false
	}
}
