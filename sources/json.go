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
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/aaronlmathis/goagg"
)

// JSONSource yields one record per line of line-delimited JSON.
type JSONSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewJSONSource creates a source over line-delimited JSON.
func NewJSONSource(r io.ReadCloser) *JSONSource {
	return &JSONSource{
		scanner: bufio.NewScanner(r),
		closer:  r,
	}
}

// Next implements the goagg.Source interface.
func (j *JSONSource) Next(ctx context.Context) (goagg.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	if !j.scanner.Scan() {
		if err := j.scanner.Err(); err != nil {
			return nil, &goagg.SourceError{Op: "scan", Err: err}
		}
		return nil, io.EOF
	}

	var record goagg.Record
	if err := json.Unmarshal(j.scanner.Bytes(), &record); err != nil {
		return nil, &goagg.SourceError{Op: "decode", Err: err}
	}
	return record, nil
}

// Close implements the goagg.Source interface.
func (j *JSONSource) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
