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

package goagg

import (
	"errors"
	"fmt"
)

// Package goagg defines the error taxonomy for the aggregation engine.
//
// Failures are fatal to the in-progress aggregation: no partial result is ever
// returned, and errors are reported synchronously from Aggregate/AggregateMany.
// io.EOF is reserved for end-of-sequence and is never wrapped in these types.

// ErrEmptyInput is returned by derived statistics (e.g. mean) when the input
// sequence yielded no elements.
var ErrEmptyInput = errors.New("empty input sequence")

// SourceError provides structured error information for element-source failures.
// It wraps the underlying I/O or query error; the aggregation that observed it
// aborts without a partial result.
type SourceError struct {
	Op  string // Operation that failed (e.g., "next", "scan", "project")
	Err error  // Underlying error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// PoolError provides structured error information for worker-pool failures:
// submission after shutdown began, or a reduction task that crashed.
type PoolError struct {
	Op  string // Operation that failed (e.g., "submit", "reduce")
	Err error  // Underlying error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("worker pool %s: %v", e.Op, e.Err)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}
