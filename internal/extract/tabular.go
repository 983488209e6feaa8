package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/clinidocs/fieldmapper/constants"
)

// TabularStrategy flattens spreadsheet rows into labeled text lines so the
// pattern detector can scan them like any other document. Header cells pair
// with value cells as "header: value" when the sheet has a header row.
type TabularStrategy struct{}

func NewTabularStrategy() *TabularStrategy { return &TabularStrategy{} }

func (s *TabularStrategy) ID() string                  { return "tabular" }
func (s *TabularStrategy) Supports(format string) bool { return format == constants.TABULAR }

func (s *TabularStrategy) Extract(ctx context.Context, doc Document) (Extraction, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(doc.Path))

	var rows [][]string
	var err error
	switch ext {
	case "xlsx":
		rows, err = readXLSX(doc.Path)
	case "csv":
		rows, err = readCSV(doc.Path)
	default:
		return Extraction{Method: s.ID()}, fmt.Errorf("unsupported tabular extension: %q", ext)
	}
	if err != nil {
		return Extraction{Method: s.ID()}, err
	}

	return Extraction{
		Text:        Normalize(flattenRows(rows)),
		Method:      s.ID(),
		BaseQuality: baseTabular,
		Pages:       1,
		Duration:    time.Since(start),
	}, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	// first sheet only; multi-sheet templates are a caller concern
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are common in exports
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// flattenRows joins a header row with each data row into "header: value"
// lines. Without a plausible header it falls back to tab-joined rows.
func flattenRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]
	hasHeader := len(rows) > 1 && looksLikeHeader(header)

	var b strings.Builder
	if hasHeader {
		for _, row := range rows[1:] {
			for i, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" || i >= len(header) {
					continue
				}
				b.WriteString(strings.TrimSpace(header[i]))
				b.WriteString(": ")
				b.WriteString(cell)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
		return b.String()
	}
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	nonEmpty, numeric := 0, 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if strings.IndexFunc(cell, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			numeric++
		}
	}
	// headers are textual; a mostly numeric first row is data
	return nonEmpty > 0 && numeric*2 < nonEmpty
}
