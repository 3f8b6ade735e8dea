package table

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadOptions controls table parsing.
type ReadOptions struct {
	Delimiter rune   // CSV only; default ','
	SheetName string // XLSX only; default first sheet
}

// Read loads a .csv or .xlsx file by extension.
func Read(path string, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "table: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		t, err := ReadCSV(f, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "table: read %s", filepath.Base(path))
		}
		return t, nil
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return nil, eris.Errorf("table: unsupported table format %q", filepath.Ext(path))
	}
}

// ReadCSV parses a CSV stream whose first record is the header. A UTF-8 BOM
// on the first header cell is dropped.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("table: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "table: read header")
	}
	header = cleanHeader(header)

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "table: read row")
		}
		rows = append(rows, record)
	}
	return New(header, rows), nil
}

// ReadXLSX reads one sheet of an XLSX workbook; the first row is the header.
func ReadXLSX(path string, opts ReadOptions) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open xlsx %s", path)
	}

	var sheet *xlsx.Sheet
	if opts.SheetName != "" {
		s, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("table: sheet %q not found in %s", opts.SheetName, filepath.Base(path))
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("table: %s has no sheets", filepath.Base(path))
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("table: sheet %q is empty", sheet.Name)
	}

	header := cleanHeader(rowToStrings(sheet.Rows[0]))
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return New(header, rows), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

// WriteCSV writes t to path, creating parent directories.
func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "table: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "table: create %s", path)
	}
	if err := Write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "table: close %s", path)
}

// Write encodes t as CSV.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "table: write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "table: write rows")
	}
	return nil
}
