// Package io provides I/O operations for reading and writing tables.
//
// This package includes readers and writers for CSV, Parquet, and JSON,
// with automatic type inference for text sources. The primary entry point
// is Load, which reads a source and checks that the columns a caller
// depends on are present.
//
// Memory management: tables returned by readers hold Arrow memory and
// must be released with Release.
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/table"
)

const (
	// DefaultBatchSize is the default batch size for I/O operations
	DefaultBatchSize = 1000
)

// DataReader defines the interface for reading data from various sources
type DataReader interface {
	// Read reads data from the source and returns a Table
	Read() (*table.Table, error)
}

// DataWriter defines the interface for writing data to various destinations
type DataWriter interface {
	// Write writes the Table to the destination
	Write(t *table.Table) error
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// IndexColumn drops the first column, which holds a row index rather than data.
	// A first header cell that is empty is always treated as an index column.
	IndexColumn bool
	// NullValues lists cell contents read as null.
	NullValues []string
	// ColumnTypes types the columns whose cells are all null, including every
	// column of a header-only file. Other columns are inferred from their values.
	ColumnTypes map[string]arrow.DataType
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:        ',',
		Comment:          0,
		Header:           true,
		SkipInitialSpace: false,
		IndexColumn:      false,
		NullValues:       []string{"", "NA", "NaN", "null", "NULL"},
	}
}

// CSVReader reads CSV data and converts it to Tables
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes Tables to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data and converts it to Tables
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes Tables to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}

// JSONFormat selects the JSON output layout.
type JSONFormat int

const (
	// JSONArray writes a single array of objects.
	JSONArray JSONFormat = iota
	// JSONLines writes one object per line.
	JSONLines
)

// JSONWriter writes Tables as JSON with column order preserved.
type JSONWriter struct {
	writer io.Writer
	format JSONFormat
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(writer io.Writer, format JSONFormat) *JSONWriter {
	return &JSONWriter{writer: writer, format: format}
}
