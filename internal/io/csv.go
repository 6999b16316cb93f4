package io

import (
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

// columnKind is the type inferred for a CSV column.
type columnKind int

const (
	kindString columnKind = iota
	kindBool
	kindInt
	kindFloat
	kindDate
	kindNull // no value to infer from
)

// declaredKind returns the kind configured for an all-null column.
func (r *CSVReader) declaredKind(name string) columnKind {
	dt, ok := r.options.ColumnTypes[name]
	if !ok {
		return kindString
	}
	//nolint:exhaustive // Only handling supported types
	switch dt.ID() {
	case arrow.BOOL:
		return kindBool
	case arrow.INT64:
		return kindInt
	case arrow.FLOAT64:
		return kindFloat
	case arrow.DATE32:
		return kindDate
	default:
		return kindString
	}
}

// Read reads CSV data and returns a Table
func (r *CSVReader) Read() (*table.Table, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) == 0 {
		return table.New(), nil
	}

	var headers []string
	var dataRows [][]string

	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		numCols := len(records[0])
		headers = make([]string, numCols)
		for i := range numCols {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		dataRows = records
	}

	first := 0
	if len(headers) > 0 && (r.options.IndexColumn || (r.options.Header && headers[0] == "")) {
		first = 1
	}

	var seriesList []table.ISeries
	for i := first; i < len(headers); i++ {
		columnData := make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				columnData[j] = row[i]
			}
		}

		s, err := r.createSeriesFromStrings(headers[i], columnData)
		if err != nil {
			for _, created := range seriesList {
				created.Release()
			}
			return nil, fmt.Errorf("creating series for column %s: %w", headers[i], err)
		}
		seriesList = append(seriesList, s)
	}

	return table.NewSafe(seriesList...)
}

func (r *CSVReader) isNull(value string) bool {
	return slices.Contains(r.options.NullValues, value)
}

// createSeriesFromStrings creates a series from string data, inferring the appropriate type
func (r *CSVReader) createSeriesFromStrings(name string, data []string) (table.ISeries, error) {
	valid := make([]bool, len(data))
	for i, v := range data {
		valid[i] = !r.isNull(v)
	}

	kind := r.inferDataType(data, valid)
	if kind == kindNull {
		kind = r.declaredKind(name)
	}

	switch kind {
	case kindBool:
		values := make([]bool, len(data))
		for i, v := range data {
			values[i] = valid[i] && strings.EqualFold(v, trueStr)
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindInt:
		values := make([]int64, len(data))
		for i, v := range data {
			if valid[i] {
				values[i], _ = strconv.ParseInt(v, 10, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindFloat:
		values := make([]float64, len(data))
		for i, v := range data {
			if valid[i] {
				values[i], _ = strconv.ParseFloat(v, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindDate:
		values := make([]arrow.Date32, len(data))
		for i, v := range data {
			if valid[i] {
				values[i], _ = series.ParseDate(v)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return series.NewNullable(name, data, valid, r.mem)
	}
}

// inferDataType determines the most specific type every non-null value parses as
func (r *CSVReader) inferDataType(data []string, valid []bool) columnKind {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	canBeDate := true
	hasNonEmptyValue := false

	for i, value := range data {
		if !valid[i] {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			canBeBool = lower == trueStr || lower == falseStr
		}
		if canBeInt {
			_, err := strconv.ParseInt(value, 10, 64)
			canBeInt = err == nil
		}
		if canBeFloat {
			_, err := strconv.ParseFloat(value, 64)
			canBeFloat = err == nil
		}
		if canBeDate {
			_, canBeDate = series.ParseDate(value)
		}
	}

	switch {
	case !hasNonEmptyValue:
		return kindNull
	case canBeBool:
		return kindBool
	case canBeInt:
		return kindInt
	case canBeFloat:
		return kindFloat
	case canBeDate:
		return kindDate
	default:
		return kindString
	}
}

// Write writes the Table to CSV format. Nulls become empty cells.
func (w *CSVWriter) Write(t *table.Table) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	columns := t.Columns()
	if w.options.Header {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	row := make([]string, len(columns))
	for i := range t.Len() {
		for j, name := range columns {
			col, _ := t.Column(name)
			row[j] = col.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
