// Package tabular parses CSV and Excel workbooks into column-keyed records.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("table has no header row")

// Parse reads r as CSV when filename ends in .csv and as an Excel workbook
// otherwise. Only the first sheet of a workbook is read.
func Parse(filename string, r io.Reader) (*model.TabularParseResponse, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		rows, err = readCSV(r)
	} else {
		rows, err = readWorkbook(r)
	}
	if err != nil {
		return nil, err
	}

	data, columns, err := toRecords(rows)
	if err != nil {
		return nil, err
	}
	return &model.TabularParseResponse{Data: data, Columns: columns, Filename: filename}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func toRecords(rows [][]string) ([]model.Record, []string, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil, ErrNoHeader
	}

	columns := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		columns[i] = name
	}

	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(model.Record, len(columns))
		for i, col := range columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			rec[col] = cellValue(cell)
		}
		records = append(records, rec)
	}

	return records, columns, nil
}

// cellValue converts numeric cells to float64 and blank cells to nil.
func cellValue(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}
