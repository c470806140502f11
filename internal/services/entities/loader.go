package entities

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/finsight/internal/models"
)

// Column headers of the entity table
const (
	ColumnName   = "Company Name"
	ColumnSymbol = "NSE Symbol"
	ColumnLink   = "Screener.in Link (Template)"
)

//go:embed nifty50.csv
var defaultTable []byte

// LoadTable reads the entity table at path. The format is chosen by file
// extension (.xlsx, .csv, .yaml, .yml). An empty path loads the embedded
// Nifty 50 table.
func LoadTable(path, sheetName string) ([]models.EntityRecord, error) {
	if path == "" {
		return LoadDefaultTable()
	}

	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, sheetName)
	case ".csv":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open entity table %s: %w", path, err)
		}
		defer f.Close()
		rows, err = readCSV(f)
	case ".yaml", ".yml":
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read entity table %s: %w", path, err)
		}
		rows, err = readYAML(data)
	default:
		return nil, fmt.Errorf("unsupported entity table format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity table %s: %w", path, err)
	}

	return recordsFromRows(rows)
}

// LoadDefaultTable parses the embedded Nifty 50 table
func LoadDefaultTable() ([]models.EntityRecord, error) {
	rows, err := readCSV(bytes.NewReader(defaultTable))
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded entity table: %w", err)
	}
	return recordsFromRows(rows)
}

func readXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open file: %w", err)
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, fmt.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // section header rows may be short
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return rows, nil
}

// readYAML accepts a list of mappings keyed by the table's column headers
func readYAML(data []byte) ([][]string, error) {
	var items []map[string]string
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	rows := [][]string{{ColumnName, ColumnSymbol, ColumnLink}}
	for _, item := range items {
		rows = append(rows, []string{item[ColumnName], item[ColumnSymbol], item[ColumnLink]})
	}
	return rows, nil
}

// recordsFromRows maps table rows to records. The first row is the header.
// Rows with an empty name or symbol are section headers and are skipped.
func recordsFromRows(rows [][]string) ([]models.EntityRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("entity table is empty")
	}

	nameCol, symbolCol, linkCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case strings.ToLower(ColumnName):
			nameCol = i
		case strings.ToLower(ColumnSymbol):
			symbolCol = i
		case strings.ToLower(ColumnLink):
			linkCol = i
		}
	}
	if nameCol < 0 || symbolCol < 0 {
		return nil, fmt.Errorf("entity table must have %q and %q columns", ColumnName, ColumnSymbol)
	}

	records := make([]models.EntityRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := cellAt(row, nameCol)
		symbol := cellAt(row, symbolCol)
		if name == "" || symbol == "" {
			continue
		}

		records = append(records, models.EntityRecord{
			Slug:   SlugFromLink(cellAt(row, linkCol), symbol),
			Name:   name,
			Symbol: symbol,
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("entity table has no company rows")
	}
	return records, nil
}

// SlugFromLink returns the path after "company/" in a Screener.in link with
// trailing slashes removed, or fallback when the link carries no slug.
func SlugFromLink(link, fallback string) string {
	idx := strings.LastIndex(link, "company/")
	if idx < 0 {
		return fallback
	}
	slug := strings.TrimRight(link[idx+len("company/"):], "/")
	if slug == "" {
		return fallback
	}
	return slug
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
