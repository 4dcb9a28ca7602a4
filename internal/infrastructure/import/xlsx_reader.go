package csvimport

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns the header and data rows of the first worksheet. Cell
// values are read unformatted so numbers keep their plain representation.
// Rows without any cells are treated like blank CSV lines and dropped.
func readXLSX(content []byte) ([]string, []*Row, error) {
	if len(content) == 0 {
		return nil, nil, ErrEmptyFile
	}
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrMissingHeader
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	start := 0
	for start < len(records) && len(records[start]) == 0 {
		start++
	}
	if start == len(records) {
		return nil, nil, ErrMissingHeader
	}

	headers := make([]string, len(records[start]))
	index := make(map[string]int, len(headers))
	for i, h := range records[start] {
		h = strings.TrimSpace(h)
		headers[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var rows []*Row
	for i := start + 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		fields := make(map[string]string, len(index))
		for name, col := range index {
			if col < len(record) {
				fields[name] = record[col]
			} else {
				fields[name] = ""
			}
		}
		rows = append(rows, &Row{Number: len(rows) + 1, Line: i + 1, Fields: fields})
	}
	return headers, rows, nil
}
