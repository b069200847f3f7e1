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

	"github.com/aaronlmathis/goagg"
	"github.com/aaronlmathis/goagg/reduce"
)

// Project adapts a source of one element type into a source of another by
// applying fn to every element. A projection failure is surfaced as a
// SourceError and aborts the aggregation.
func Project[E, F any](source goagg.Source[E], fn func(E) (F, error)) goagg.Source[F] {
	return &projectSource[E, F]{source: source, fn: fn}
}

type projectSource[E, F any] struct {
	source goagg.Source[E]
	fn     func(E) (F, error)
}

func (p *projectSource[E, F]) Next(ctx context.Context) (F, error) {
	var zero F

	elem, err := p.source.Next(ctx)
	if err != nil {
		return zero, err
	}

	projected, err := p.fn(elem)
	if err != nil {
		return zero, &goagg.SourceError{Op: "project", Err: err}
	}
	return projected, nil
}

func (p *projectSource[E, F]) Close() error {
	return p.source.Close()
}

// Column projects a record source down to a single numeric field, the shape
// the numeric reducers consume. A missing or non-numeric field is a
// SourceError.
func Column(source goagg.Source[goagg.Record], field string) goagg.Source[float64] {
	return Project(source, func(record goagg.Record) (float64, error) {
		value, ok := record[field]
		if !ok {
			return 0, fmt.Errorf("field %q not found in record", field)
		}
		num, err := reduce.ToFloat64(value)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return num, nil
	})
}

// Where drops elements for which keep returns false, before they reach the
// worker pool.
func Where[E any](source goagg.Source[E], keep func(E) bool) goagg.Source[E] {
	return &whereSource[E]{source: source, keep: keep}
}

type whereSource[E any] struct {
	source goagg.Source[E]
	keep   func(E) bool
}

func (w *whereSource[E]) Next(ctx context.Context) (E, error) {
	for {
		elem, err := w.source.Next(ctx)
		if err != nil {
			var zero E
			return zero, err
		}
		if w.keep(elem) {
			return elem, nil
		}
	}
}

func (w *whereSource[E]) Close() error {
	return w.source.Close()
}
