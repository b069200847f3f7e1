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
	"context"
)

// Package goagg provides a streaming parallel-aggregation engine for Go.
//
// GoAgg consumes a lazy, ordered, finite sequence of elements and folds it
// down to a single value by dispatching one reduction step per element to a
// bounded pool of concurrent workers. The workers accumulate partial results
// into shared state that is safe under concurrent write, so the final value
// is correct regardless of the order in which tasks complete.
//
// Core Concepts:
//   - Source: Interface for pulling elements one at a time (slices, channels,
//     CSV/Parquet files, PostgreSQL, MongoDB, S3).
//   - ReduceFunc: A commutative, associative binary fold applied per element.
//   - DispatchMode: Blocking (submit-and-wait) vs NonBlocking (submit-and-continue)
//     task submission to the worker pool.
//   - Driver: Orchestrates Source -> worker pool -> accumulator and produces the
//     final value once the source is exhausted and all dispatched work is done.
//
// Example usage:
//
//	src := sources.FromSlice([]float64{1, 2, 3, 4, 5})
//	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum,
//	    goagg.WithPoolSize(4))
//	if err != nil { log.Fatal(err) }
//	// total == 15
//
// All aggregation is streaming and memory-efficient: elements are pulled one
// at a time and never buffered beyond the worker pool's in-flight window.

// Record represents a single data record pulled from a store-backed source.
// Each record is a map from field names to values, supporting heterogeneous data.
type Record map[string]interface{}

// Source defines the lazy pull contract for aggregation inputs.
// Next returns the next element or io.EOF when the sequence is exhausted.
// Sources are finite, single-consumer, and not restartable: each element is
// produced exactly once, in a fixed order.
type Source[E any] interface {
	// Next returns the next element or io.EOF when no more elements are available.
	Next(ctx context.Context) (E, error)
	// Close releases any resources held by the source.
	Close() error
}

// SourceFunc is a function adapter for the Source interface.
// Allows ordinary generator functions to be used as Sources. The function
// signals exhaustion by returning io.EOF.
type SourceFunc[E any] func(ctx context.Context) (E, error)

// Next implements the Source interface for SourceFunc.
func (f SourceFunc[E]) Next(ctx context.Context) (E, error) {
	return f(ctx)
}

// Close implements the Source interface for SourceFunc.
func (f SourceFunc[E]) Close() error {
	return nil
}

// ReduceFunc folds one element into an accumulator and returns the updated
// accumulator. A non-nil error aborts the aggregation.
//
// For NonBlocking dispatch the function MUST be commutative and associative:
// task completion order is not guaranteed, so a non-commutative fold produces
// an unspecified, order-dependent result. This precondition is documented, not
// enforced.
type ReduceFunc[A, E any] func(acc A, elem E) (A, error)

// DispatchMode selects how the driver submits reduction tasks to the pool.
type DispatchMode int

const (
	// NonBlocking submits a task and continues to the next element immediately.
	// Tasks run opportunistically on any free worker; completion order across
	// tasks is not guaranteed. This is the production path.
	NonBlocking DispatchMode = iota

	// Blocking submits a task and suspends until that task's reduction has been
	// applied. This serializes throughput to one task at a time despite nominal
	// parallelism; it exists for order-sensitive folds and comparison runs, and
	// is a performance anti-pattern for large inputs.
	Blocking
)

// String returns a human-readable name for the dispatch mode.
func (m DispatchMode) String() string {
	switch m {
	case NonBlocking:
		return "non-blocking"
	case Blocking:
		return "blocking"
	default:
		return "unknown"
	}
}
