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
	"io"
	"sync"

	"github.com/aaronlmathis/goagg"
)

// Package sources provides implementations of goagg.Source for pulling
// elements from in-memory collections and external stores (CSV, Parquet,
// PostgreSQL, MongoDB, S3).

// SliceSource yields the elements of a slice in order, once.
type SliceSource[E any] struct {
	mu    sync.Mutex
	elems []E
	index int
}

// FromSlice creates a source over a defensive copy of elems, so later
// mutation of the caller's slice does not leak into the aggregation.
func FromSlice[E any](elems []E) *SliceSource[E] {
	copied := make([]E, len(elems))
	copy(copied, elems)
	return &SliceSource[E]{elems: copied}
}

// Next implements the goagg.Source interface.
func (s *SliceSource[E]) Next(ctx context.Context) (E, error) {
	var zero E

	select {
	case <-ctx.Done():
		return zero, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.elems) {
		return zero, io.EOF
	}
	elem := s.elems[s.index]
	s.index++
	return elem, nil
}

// Close implements the goagg.Source interface.
func (s *SliceSource[E]) Close() error {
	return nil
}

// Len returns the total number of elements the source was created with.
func (s *SliceSource[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elems)
}
