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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCell_Apply tests the basic fold cycle
func TestCell_Apply(t *testing.T) {
	cell := NewCell(0.0)

	err := cell.Apply(func(acc float64) (float64, error) {
		return acc + 2.5, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2.5, cell.Value())
	assert.Equal(t, int64(1), cell.Applies())
}

// TestCell_ApplyError verifies the cell is unchanged when the fold fails
func TestCell_ApplyError(t *testing.T) {
	cell := NewCell(10.0)

	err := cell.Apply(func(acc float64) (float64, error) {
		return 0, fmt.Errorf("bad element")
	})
	assert.EqualError(t, err, "bad element")
	assert.Equal(t, 10.0, cell.Value())
	assert.Equal(t, int64(0), cell.Applies())
}

// TestCell_ConcurrentApplies tests that concurrent folds are all observed
func TestCell_ConcurrentApplies(t *testing.T) {
	const n = 1000
	cell := NewCell(int64(0))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cell.Apply(func(acc int64) (int64, error) {
				return acc + 1, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), cell.Value())
	assert.Equal(t, int64(n), cell.Applies())
}

// TestStore_CreateAndRead tests keyed cell registration
func TestStore_CreateAndRead(t *testing.T) {
	store := NewStore[string, float64]()

	cell, err := store.Create("a", 0)
	require.NoError(t, err)
	require.NotNil(t, cell)
	assert.Equal(t, 1, store.Len())

	value, ok := store.Read("a")
	assert.True(t, ok)
	assert.Equal(t, 0.0, value)

	_, ok = store.Read("missing")
	assert.False(t, ok)
}

// TestStore_DuplicateKey tests that keys are unique within a run
func TestStore_DuplicateKey(t *testing.T) {
	store := NewStore[string, int]()

	_, err := store.Create("a", 0)
	require.NoError(t, err)

	_, err = store.Create("a", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

// TestStore_Apply tests keyed folds, including the missing-key error
func TestStore_Apply(t *testing.T) {
	store := NewStore[string, float64]()
	_, err := store.Create("total", 0)
	require.NoError(t, err)

	err = store.Apply("total", func(acc float64) (float64, error) {
		return acc + 5, nil
	})
	require.NoError(t, err)

	value, ok := store.Read("total")
	assert.True(t, ok)
	assert.Equal(t, 5.0, value)

	err = store.Apply("missing", func(acc float64) (float64, error) {
		return acc, nil
	})
	assert.Error(t, err)
}

// TestStore_Finalize tests that finalizing removes the cell
func TestStore_Finalize(t *testing.T) {
	store := NewStore[string, int]()
	_, err := store.Create("a", 42)
	require.NoError(t, err)

	value, ok := store.Finalize("a")
	assert.True(t, ok)
	assert.Equal(t, 42, value)
	assert.Equal(t, 0, store.Len())

	_, ok = store.Finalize("a")
	assert.False(t, ok)
}

// TestStore_Discard tests dropping a failed aggregation's state
func TestStore_Discard(t *testing.T) {
	store := NewStore[string, int]()
	_, err := store.Create("a", 1)
	require.NoError(t, err)

	store.Discard("a")
	assert.Equal(t, 0, store.Len())

	_, ok := store.Read("a")
	assert.False(t, ok)
}

// TestStore_IndependentKeys tests that folds on different keys do not interfere
func TestStore_IndependentKeys(t *testing.T) {
	store := NewStore[int, int64]()
	const keys = 4
	const perKey = 250

	for k := 0; k < keys; k++ {
		_, err := store.Create(k, 0)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		for i := 0; i < perKey; i++ {
			wg.Add(1)
			go func(key int) {
				defer wg.Done()
				store.Apply(key, func(acc int64) (int64, error) {
					return acc + 1, nil
				})
			}(k)
		}
	}
	wg.Wait()

	for k := 0; k < keys; k++ {
		value, ok := store.Read(k)
		assert.True(t, ok)
		assert.Equal(t, int64(perKey), value)
	}
}
