//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoAgg.
//
// GoAgg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoAgg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoAgg. If not, see https://www.gnu.org/licenses/.

package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/goagg"
)

// ParquetSourceOptions configures the Parquet source.
type ParquetSourceOptions struct {
	BatchSize int64    // Arrow record batch size
	Columns   []string // Optional column projection
}

// ParquetSourceOption represents a configuration function for
// ParquetSourceOptions.
type ParquetSourceOption func(*ParquetSourceOptions)

// WithParquetBatchSize sets the Arrow record batch size.
func WithParquetBatchSize(size int64) ParquetSourceOption {
	return func(opts *ParquetSourceOptions) {
		opts.BatchSize = size
	}
}

// WithParquetColumns restricts reading to the named columns.
func WithParquetColumns(columns ...string) ParquetSourceOption {
	return func(opts *ParquetSourceOptions) {
		opts.Columns = columns
	}
}

func (opts *ParquetSourceOptions) withDefaults() *ParquetSourceOptions {
	result := &ParquetSourceOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	return result
}

// ParquetSource streams Parquet rows as records through an Arrow RecordReader,
// one batch in memory at a time.
type ParquetSource struct {
	mu           sync.Mutex
	fileHandle   *os.File
	recordReader pqarrow.RecordReader
	batch        arrow.Record
	batchIdx     int
	schema       *arrow.Schema
	totalRows    int64
	rowsRead     int64
}

// NewParquetSource opens a Parquet file and prepares an Arrow RecordReader.
func NewParquetSource(filename string, options ...ParquetSourceOption) (*ParquetSource, error) {
	opts := (&ParquetSourceOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, &goagg.SourceError{Op: "open_file", Err: err}
	}

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, &goagg.SourceError{Op: "create_reader", Err: err}
	}

	allocator := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, allocator)
	if err != nil {
		f.Close()
		return nil, &goagg.SourceError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		f.Close()
		return nil, &goagg.SourceError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			idx := -1
			for i, field := range schema.Fields() {
				if field.Name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				f.Close()
				return nil, &goagg.SourceError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, idx)
		}
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		f.Close()
		return nil, &goagg.SourceError{Op: "create_record_reader", Err: err}
	}

	return &ParquetSource{
		fileHandle:   f,
		recordReader: recordReader,
		schema:       schema,
		totalRows:    parquetReader.NumRows(),
	}, nil
}

// Next implements the goagg.Source interface. Thread-safe.
func (p *ParquetSource) Next(ctx context.Context) (goagg.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	if p.batch == nil || p.batchIdx >= int(p.batch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &goagg.SourceError{Op: "load_batch", Err: err}
		}
	}

	record := extractRecordFromBatch(p.batch, p.batchIdx)
	p.batchIdx++
	p.rowsRead++
	return record, nil
}

// loadNextBatch releases the current Arrow batch and pulls the next one.
func (p *ParquetSource) loadNextBatch() error {
	if p.batch != nil {
		p.batch.Release()
		p.batch = nil
	}

	rec, err := p.recordReader.Read()
	if err != nil {
		return err
	}
	if rec == nil || rec.NumRows() == 0 {
		return io.EOF
	}

	p.batch = rec
	p.batchIdx = 0
	return nil
}

// Close implements the goagg.Source interface.
func (p *ParquetSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.batch != nil {
		p.batch.Release()
		p.batch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.fileHandle != nil {
		err := p.fileHandle.Close()
		p.fileHandle = nil
		return err
	}
	return nil
}

// Schema returns the Arrow schema of the Parquet file.
func (p *ParquetSource) Schema() *arrow.Schema {
	return p.schema
}

// TotalRows returns the row count from the Parquet metadata.
func (p *ParquetSource) TotalRows() int64 {
	return p.totalRows
}

// Rows returns the number of rows yielded so far.
func (p *ParquetSource) Rows() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rowsRead
}

// extractRecordFromBatch builds a record from one row of an Arrow batch.
func extractRecordFromBatch(rec arrow.Record, pos int) goagg.Record {
	result := make(goagg.Record, rec.NumCols())
	sch := rec.Schema()
	for i := 0; i < int(rec.NumCols()); i++ {
		result[sch.Field(i).Name] = extractArrowValue(rec.Column(i), pos)
	}
	return result
}

// extractArrowValue converts one Arrow array cell to a plain Go value.
func extractArrowValue(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(rowIdx)
	case *array.Int32:
		return int64(arr.Value(rowIdx))
	case *array.Int64:
		return arr.Value(rowIdx)
	case *array.Float32:
		return float64(arr.Value(rowIdx))
	case *array.Float64:
		return arr.Value(rowIdx)
	case *array.String:
		return arr.Value(rowIdx)
	case *array.Binary:
		return arr.Value(rowIdx)
	case *array.Timestamp:
		return arr.Value(rowIdx).ToTime(arrow.Microsecond)
	case *array.Date32:
		return arr.Value(rowIdx).ToTime()
	case *array.Date64:
		return arr.Value(rowIdx).ToTime()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(rowIdx))
	}
}
