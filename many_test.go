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

package goagg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goagg"
	"github.com/aaronlmathis/goagg/pool"
	"github.com/aaronlmathis/goagg/reduce"
	"github.com/aaronlmathis/goagg/sources"
)

// TestAggregateMany_PerKeySums runs independent keyed folds over one shared pool
func TestAggregateMany_PerKeySums(t *testing.T) {
	inputs := map[string]goagg.Source[float64]{
		"a": sources.FromSlice([]float64{1, 2, 3}),
		"b": sources.FromSlice([]float64{10, 20}),
		"c": sources.FromSlice[float64](nil),
	}

	results, err := goagg.AggregateMany(context.Background(), inputs, 0, reduce.Sum,
		goagg.WithPoolSize(4))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 6.0, results["a"])
	assert.Equal(t, 30.0, results["b"])
	assert.Equal(t, 0.0, results["c"])
}

// TestAggregateMany_Empty tests the zero-key call
func TestAggregateMany_Empty(t *testing.T) {
	results, err := goagg.AggregateMany(context.Background(),
		map[string]goagg.Source[float64]{}, 0, reduce.Sum)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestAggregateMany_KeyFailure verifies one failing key fails the whole call
// and no partial map is returned
func TestAggregateMany_KeyFailure(t *testing.T) {
	inputs := map[string]goagg.Source[float64]{
		"good": sources.FromSlice([]float64{1, 2, 3}),
		"bad":  &failAfter{n: 2},
	}

	results, err := goagg.AggregateMany(context.Background(), inputs, 0, reduce.Sum,
		goagg.WithPoolSize(4))
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "bad")
}

// TestAggregateMany_SharedExternalPool tests running over a caller-owned pool
func TestAggregateMany_SharedExternalPool(t *testing.T) {
	workers := pool.New(pool.WithWorkers(2))
	defer workers.Close()

	inputs := map[int]goagg.Source[float64]{
		1: sources.FromSlice([]float64{1, 1}),
		2: sources.FromSlice([]float64{2, 2}),
	}

	results, err := goagg.AggregateMany(context.Background(), inputs, 0, reduce.Sum,
		goagg.WithPool(workers))
	require.NoError(t, err)
	assert.Equal(t, 2.0, results[1])
	assert.Equal(t, 4.0, results[2])

	// The pool survives the call.
	assert.NoError(t, workers.Submit(func() {}))
	workers.Drain()
}

// TestAggregateMany_ManyKeys stresses key independence under contention
func TestAggregateMany_ManyKeys(t *testing.T) {
	inputs := make(map[int]goagg.Source[float64], 20)
	for k := 0; k < 20; k++ {
		data := make([]float64, 50)
		for i := range data {
			data[i] = float64(k)
		}
		inputs[k] = sources.FromSlice(data)
	}

	results, err := goagg.AggregateMany(context.Background(), inputs, 0, reduce.Sum,
		goagg.WithPoolSize(4))
	require.NoError(t, err)
	require.Len(t, results, 20)

	for k := 0; k < 20; k++ {
		assert.Equal(t, float64(k*50), results[k], "key %d", k)
	}
}
