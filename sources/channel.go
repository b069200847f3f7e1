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

	"github.com/aaronlmathis/goagg"
)

// ChannelSource adapts a receive channel into a goagg.Source. The sequence
// ends when the channel is closed.
type ChannelSource[E any] struct {
	ch <-chan E
}

// FromChannel creates a source that pulls elements from ch until it is closed.
// The producer owns the channel and must close it to end the sequence.
func FromChannel[E any](ch <-chan E) *ChannelSource[E] {
	return &ChannelSource[E]{ch: ch}
}

// Next implements the goagg.Source interface.
func (c *ChannelSource[E]) Next(ctx context.Context) (E, error) {
	var zero E
	select {
	case elem, ok := <-c.ch:
		if !ok {
			return zero, io.EOF
		}
		return elem, nil
	case <-ctx.Done():
		return zero, &goagg.SourceError{Op: "next", Err: ctx.Err()}
	}
}

// Close implements the goagg.Source interface. The channel remains owned by
// the producer and is not drained or closed.
func (c *ChannelSource[E]) Close() error {
	return nil
}
