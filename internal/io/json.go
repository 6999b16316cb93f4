package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
)

// Write writes the Table as JSON objects whose keys follow the column order.
func (w *JSONWriter) Write(t *table.Table) error {
	bw := bufio.NewWriter(w.writer)
	columns := t.Columns()

	if w.format == JSONArray {
		bw.WriteString("[")
	}
	for i := range t.Len() {
		if i > 0 && w.format == JSONArray {
			bw.WriteString(",")
		}
		if err := w.writeRecord(bw, t, columns, i); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
		if w.format == JSONLines {
			bw.WriteString("\n")
		}
	}
	if w.format == JSONArray {
		bw.WriteString("]\n")
	}
	return bw.Flush()
}

func (w *JSONWriter) writeRecord(bw *bufio.Writer, t *table.Table, columns []string, row int) error {
	bw.WriteString("{")
	for j, name := range columns {
		if j > 0 {
			bw.WriteString(",")
		}
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		col, _ := t.Column(name)
		val, err := json.Marshal(jsonValue(col.Any(row)))
		if err != nil {
			return err
		}
		bw.Write(key)
		bw.WriteString(":")
		bw.Write(val)
	}
	bw.WriteString("}")
	return nil
}

// jsonValue maps stored values onto JSON-encodable ones.
func jsonValue(v any) any {
	switch x := v.(type) {
	case arrow.Date32:
		return series.FormatValue(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return x
	}
}
