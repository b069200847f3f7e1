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

package accumulator

import (
	"fmt"
	"sync"
)

// Package accumulator provides the concurrency-safe shared state that workers
// fold partial results into.
//
// A Cell holds one in-progress aggregate; a Store holds one Cell per key so
// that independent aggregations can share a process. Every mutation goes
// through Apply, which serializes concurrent folds on the same cell. Applies
// on different keys take different cell locks and do not block each other.
//
// Neither type tracks outstanding work: the driver certifies that no tasks
// remain before it finalizes a value.

// Cell is a mutable container for one in-progress aggregate value.
type Cell[A any] struct {
	mu      sync.Mutex
	value   A
	applies int64
}

// NewCell creates a cell seeded with the aggregation's identity value.
func NewCell[A any](seed A) *Cell[A] {
	return &Cell[A]{value: seed}
}

// Apply atomically folds the cell's current value through fn. If fn returns an
// error the cell is left unchanged and the error is returned.
func (c *Cell[A]) Apply(fn func(A) (A, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(c.value)
	if err != nil {
		return err
	}
	c.value = next
	c.applies++
	return nil
}

// Value returns the current aggregate. The value is only final once the caller
// has confirmed that no dispatched work remains for this cell.
func (c *Cell[A]) Value() A {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Applies returns the number of successful folds applied so far.
func (c *Cell[A]) Applies() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applies
}

// Store is a keyed map of accumulator cells, safe for concurrent use.
type Store[K comparable, A any] struct {
	mu    sync.RWMutex
	cells map[K]*Cell[A]
}

// NewStore creates an empty keyed store.
func NewStore[K comparable, A any]() *Store[K, A] {
	return &Store[K, A]{cells: make(map[K]*Cell[A])}
}

// Create registers a new cell under key, seeded with seed. Keys are unique
// within a run; creating a key twice is an error.
func (s *Store[K, A]) Create(key K, seed A) (*Cell[A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cells[key]; exists {
		return nil, fmt.Errorf("accumulator key %v already exists", key)
	}
	cell := NewCell(seed)
	s.cells[key] = cell
	return cell, nil
}

// Get returns the cell for key, if present.
func (s *Store[K, A]) Get(key K) (*Cell[A], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.cells[key]
	return cell, ok
}

// Apply atomically folds one update into the keyed aggregate.
func (s *Store[K, A]) Apply(key K, fn func(A) (A, error)) error {
	cell, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("accumulator key %v does not exist", key)
	}
	return cell.Apply(fn)
}

// Read returns the current value for key. See Cell.Value for the finality
// caveat.
func (s *Store[K, A]) Read(key K) (A, bool) {
	cell, ok := s.Get(key)
	if !ok {
		var zero A
		return zero, false
	}
	return cell.Value(), true
}

// Finalize removes the cell for key and returns its value. The caller must
// have certified that no outstanding tasks exist for the key.
func (s *Store[K, A]) Finalize(key K) (A, bool) {
	s.mu.Lock()
	cell, ok := s.cells[key]
	delete(s.cells, key)
	s.mu.Unlock()

	if !ok {
		var zero A
		return zero, false
	}
	return cell.Value(), true
}

// Discard drops the cell for key without reading it. Used on failed
// aggregations, which offer no partial-result contract.
func (s *Store[K, A]) Discard(key K) {
	s.mu.Lock()
	delete(s.cells, key)
	s.mu.Unlock()
}

// Len returns the number of live keys.
func (s *Store[K, A]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}
