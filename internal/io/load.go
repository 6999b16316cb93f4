package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/table"
)

// Load reads a table from reader and checks that every required column is present.
func Load(reader DataReader, required ...string) (*table.Table, error) {
	t, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if err := t.Require(required...); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

// LoadFile opens path, picks a reader from its extension, and loads it.
func LoadFile(path string, csvOptions CSVOptions, mem memory.Allocator, required ...string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var reader DataReader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		reader = NewCSVReader(f, csvOptions, mem)
	case ".tsv":
		csvOptions.Delimiter = '\t'
		reader = NewCSVReader(f, csvOptions, mem)
	case ".parquet", ".pq":
		reader = NewParquetReader(f, DefaultParquetOptions(), mem)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", path)
	}

	t, err := Load(reader, required...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return t, nil
}

// WriteFile writes t to path in the format named by its extension.
func WriteFile(path string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var writer DataWriter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		writer = NewCSVWriter(f, DefaultCSVOptions())
	case ".parquet", ".pq":
		writer = NewParquetWriter(f, DefaultParquetOptions())
	case ".json":
		writer = NewJSONWriter(f, JSONArray)
	case ".jsonl", ".ndjson":
		writer = NewJSONWriter(f, JSONLines)
	default:
		return fmt.Errorf("unsupported output format: %s", path)
	}
	return writer.Write(t)
}
