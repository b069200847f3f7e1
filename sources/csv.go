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
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/aaronlmathis/goagg"
)

// CSVSourceOptions configures the CSV source.
type CSVSourceOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
}

// CSVSourceOption allows functional customization of CSVSource.
type CSVSourceOption func(*CSVSourceOptions)

func WithCSVComma(r rune) CSVSourceOption {
	return func(o *CSVSourceOptions) { o.Comma = r }
}

func WithCSVComment(r rune) CSVSourceOption {
	return func(o *CSVSourceOptions) { o.Comment = r }
}

func WithCSVHasHeaders(hasHeaders bool) CSVSourceOption {
	return func(o *CSVSourceOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVLazyQuotes(lazy bool) CSVSourceOption {
	return func(o *CSVSourceOptions) { o.LazyQuotes = lazy }
}

// CSVSource yields one record per CSV row. Without headers, fields are named
// col_0, col_1, ...
type CSVSource struct {
	reader  *csv.Reader
	headers []string
	closer  io.Closer
	rows    int64
}

// NewCSVSource creates a CSV source over r. Headers are read eagerly when
// enabled (the default).
func NewCSVSource(r io.ReadCloser, options ...CSVSourceOption) (*CSVSource, error) {
	opts := CSVSourceOptions{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
	}
	for _, option := range options {
		option(&opts)
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.TrimLeadingSpace = opts.TrimLeadingSpace

	source := &CSVSource{
		reader: csvReader,
		closer: r,
	}

	if opts.HasHeaders {
		headers, err := csvReader.Read()
		if err != nil {
			return nil, &goagg.SourceError{Op: "read_headers", Err: err}
		}
		source.headers = headers
	}

	return source, nil
}

// Next implements the goagg.Source interface.
func (c *CSVSource) Next(ctx context.Context) (goagg.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	row, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &goagg.SourceError{Op: "read_row", Err: err}
	}

	record := make(goagg.Record, len(row))
	for i, val := range row {
		key := "col_" + strconv.Itoa(i)
		if i < len(c.headers) {
			key = c.headers[i]
		}
		if strings.TrimSpace(val) == "" {
			record[key] = nil
			continue
		}
		record[key] = parseCSVValue(val)
	}

	c.rows++
	return record, nil
}

// Close implements the goagg.Source interface.
func (c *CSVSource) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Rows returns the number of data rows yielded so far.
func (c *CSVSource) Rows() int64 {
	return c.rows
}

// parseCSVValue infers int, float, bool, or falls back to string.
func parseCSVValue(value string) interface{} {
	value = strings.TrimSpace(value)

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

// Headers returns the header row, if one was read.
func (c *CSVSource) Headers() []string {
	return c.headers
}
