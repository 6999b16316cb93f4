package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
)

// Read reads Parquet data and returns a Table.
func (r *ParquetReader) Read() (*table.Table, error) {
	// Parquet needs random access, so buffer the whole source
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	props := pqarrow.ArrowReadProperties{BatchSize: int64(r.options.BatchSize)}
	arrowReader, err := pqarrow.NewFileReader(pqReader, props, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	tbl, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer tbl.Release()

	return r.arrowTableToTable(tbl)
}

// arrowTableToTable converts an Arrow table to a Table, merging chunks per column.
func (r *ParquetReader) arrowTableToTable(tbl arrow.Table) (*table.Table, error) {
	var seriesList []table.ISeries
	release := func() {
		for _, s := range seriesList {
			s.Release()
		}
	}

	schema := tbl.Schema()
	for i := range int(tbl.NumCols()) {
		field := schema.Field(i)
		chunks := tbl.Column(i).Data().Chunks()

		var s table.ISeries
		var err error
		switch len(chunks) {
		case 0:
			s, err = series.Empty(field.Name, field.Type, r.mem)
		case 1:
			s, err = series.FromArray(field.Name, chunks[0])
		default:
			var merged arrow.Array
			merged, err = array.Concatenate(chunks, r.mem)
			if err == nil {
				s, err = series.FromArray(field.Name, merged)
				merged.Release()
			}
		}
		if err != nil {
			release()
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}

	return table.NewSafe(seriesList...)
}

// Write writes the Table to Parquet format.
func (w *ParquetWriter) Write(t *table.Table) error {
	tbl := w.tableToArrowTable(t)
	defer tbl.Release()

	var compression compress.Compression
	switch w.options.Compression {
	case "snappy":
		compression = compress.Codecs.Snappy
	case "gzip":
		compression = compress.Codecs.Gzip
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))

	writer, err := pqarrow.NewFileWriter(tbl.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	chunkSize := int64(w.options.BatchSize)
	if chunkSize <= 0 {
		chunkSize = DefaultBatchSize
	}
	if err := writer.WriteTable(tbl, chunkSize); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// tableToArrowTable exposes the Table's arrays as an Arrow table without copying.
func (w *ParquetWriter) tableToArrowTable(t *table.Table) arrow.Table {
	schema := t.Schema()
	columns := make([]arrow.Column, 0, t.Width())

	for i, name := range t.Columns() {
		col, _ := t.Column(name)
		arr := col.Array()
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()
		columns = append(columns, *arrow.NewColumn(schema.Field(i), chunked))
		chunked.Release()
	}

	return array.NewTable(schema, columns, int64(t.Len()))
}
