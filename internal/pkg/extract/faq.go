package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/kart-io/legal-rag/internal/model"
)

// missingValue is how spreadsheet tooling renders an empty cell; such rows are skipped.
const missingValue = "nan"

// ExtractFAQ reads a CSV/XLS/XLSX sheet and returns one chunk per valid row.
// The header must contain "question" and "answer" columns.
func ExtractFAQ(path string) ([]model.Chunk, error) {
	var (
		rows [][]string
		err  error
	)
	switch Ext(path) {
	case "csv":
		rows, err = readCSV(path)
	case "xlsx":
		rows, err = readXLSX(path)
	case "xls":
		rows, err = readXLS(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return FAQRecords(rows)
}

// FAQRecords converts sheet rows (header first) into FAQ chunks.
func FAQRecords(rows [][]string) ([]model.Chunk, error) {
	if len(rows) == 0 {
		return nil, &MissingColumnsError{Required: RequiredFAQColumns}
	}

	qCol, aCol := -1, -1
	for i, cell := range rows[0] {
		switch strings.TrimSpace(cell) {
		case "question":
			if qCol < 0 {
				qCol = i
			}
		case "answer":
			if aCol < 0 {
				aCol = i
			}
		}
	}
	if qCol < 0 || aCol < 0 {
		return nil, &MissingColumnsError{Required: RequiredFAQColumns}
	}

	chunks := make([]model.Chunk, 0, len(rows)-1)
	for i, row := range rows[1:] {
		q := strings.TrimSpace(cell(row, qCol))
		a := strings.TrimSpace(cell(row, aCol))
		if q == "" || a == "" || q == missingValue || a == missingValue {
			continue
		}
		chunks = append(chunks, model.Chunk{
			Text:     fmt.Sprintf("Question: %s\nAnswer: %s", q, a),
			Index:    len(chunks),
			Type:     model.ResourceTypeFAQ,
			Question: q,
			Answer:   a,
			RowID:    strconv.Itoa(i),
		})
	}
	return chunks, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	defer func() { _ = f.Close() }()

	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("read xls: no workbook stream in %s", path)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// sheetRow returns nil for a row without any record; xls.WorkSheet.Row
// dereferences the missing entry.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
