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
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/goagg"
	"github.com/aaronlmathis/goagg/pool"
	"github.com/aaronlmathis/goagg/reduce"
	"github.com/aaronlmathis/goagg/sources"
)

// failAfter yields n elements and then fails.
type failAfter struct {
	n      int
	served int
	closed bool
}

func (f *failAfter) Next(ctx context.Context) (float64, error) {
	if f.served >= f.n {
		return 0, fmt.Errorf("stream truncated")
	}
	f.served++
	return float64(f.served), nil
}

func (f *failAfter) Close() error {
	f.closed = true
	return nil
}

// TestAggregate_Sum tests the canonical fold in both dispatch modes
func TestAggregate_Sum(t *testing.T) {
	for _, mode := range []goagg.DispatchMode{goagg.NonBlocking, goagg.Blocking} {
		t.Run(mode.String(), func(t *testing.T) {
			src := sources.FromSlice([]float64{1, 2, 3, 4, 5})
			total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum,
				goagg.WithPoolSize(4),
				goagg.WithDispatchMode(mode))
			require.NoError(t, err)
			assert.Equal(t, 15.0, total)
		})
	}
}

// TestAggregate_Empty verifies an empty sequence yields the seed
func TestAggregate_Empty(t *testing.T) {
	src := sources.FromSlice[float64](nil)
	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

// TestAggregate_SingleElement verifies a one-element sequence
func TestAggregate_SingleElement(t *testing.T) {
	src := sources.FromSlice([]float64{42})
	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum)
	require.NoError(t, err)
	assert.Equal(t, 42.0, total)
}

// TestAggregate_Deterministic verifies repeated runs over the same input
// produce identical results despite nondeterministic task interleaving
func TestAggregate_Deterministic(t *testing.T) {
	data := make([]float64, 500)
	for i := range data {
		data[i] = float64(i)
	}

	var first float64
	for run := 0; run < 5; run++ {
		total, err := goagg.Aggregate(context.Background(),
			sources.FromSlice(data), 0, reduce.Sum, goagg.WithPoolSize(8))
		require.NoError(t, err)
		if run == 0 {
			first = total
		} else {
			assert.Equal(t, first, total)
		}
	}
}

// TestAggregate_AgainstReference compares against an independent statistics
// library on random input
func TestAggregate_AgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]float64, 1000)
	for i := range data {
		data[i] = rng.Float64() * 100
	}

	want, err := stats.Sum(data)
	require.NoError(t, err)

	got, err := goagg.Aggregate(context.Background(),
		sources.FromSlice(data), 0, reduce.Sum, goagg.WithPoolSize(4))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)

	wantMean, err := stats.Mean(data)
	require.NoError(t, err)

	gotMean, err := reduce.MeanOf(context.Background(), sources.FromSlice(data),
		goagg.WithPoolSize(4))
	require.NoError(t, err)
	assert.InDelta(t, wantMean, gotMean, 1e-9)
}

// TestAggregate_SourceError verifies a mid-stream source failure aborts the
// run with a structured error and no partial result
func TestAggregate_SourceError(t *testing.T) {
	src := &failAfter{n: 3}
	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum,
		goagg.WithPoolSize(4))

	require.Error(t, err)
	var srcErr *goagg.SourceError
	assert.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 0.0, total)
	assert.True(t, src.closed)
}

// TestAggregate_ReduceError verifies a failing reduce function aborts the run
func TestAggregate_ReduceError(t *testing.T) {
	src := sources.FromSlice([]float64{1, 2, 3})
	_, err := goagg.Aggregate(context.Background(), src, 0,
		func(acc, elem float64) (float64, error) {
			if elem == 2 {
				return 0, fmt.Errorf("rejecting element")
			}
			return acc + elem, nil
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejecting element")
}

// TestAggregate_ReducePanic verifies a panicking reduce function is surfaced
// as a pool error instead of crashing the process
func TestAggregate_ReducePanic(t *testing.T) {
	src := sources.FromSlice([]float64{1, 2, 3})
	_, err := goagg.Aggregate(context.Background(), src, 0,
		func(acc, elem float64) (float64, error) {
			panic("boom")
		})
	require.Error(t, err)
	var poolErr *goagg.PoolError
	assert.ErrorAs(t, err, &poolErr)
}

// TestAggregate_ContextCancellation tests that a cancelled context stops the run
func TestAggregate_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := sources.FromSlice([]float64{1, 2, 3})
	_, err := goagg.Aggregate(ctx, src, 0, reduce.Sum)
	assert.Error(t, err)
}

// TestAggregate_SharedPool tests aggregating over an externally owned pool,
// which must remain usable afterwards
func TestAggregate_SharedPool(t *testing.T) {
	workers := pool.New(pool.WithWorkers(4))
	defer workers.Close()

	src := sources.FromSlice([]float64{1, 2, 3})
	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum,
		goagg.WithPool(workers))
	require.NoError(t, err)
	assert.Equal(t, 6.0, total)

	// Driver must not have closed the shared pool.
	assert.NoError(t, workers.Submit(func() {}))
	workers.Drain()
}

// TestAggregate_SourceFunc tests the generator function adapter
func TestAggregate_SourceFunc(t *testing.T) {
	next := 0
	src := goagg.SourceFunc[int](func(ctx context.Context) (int, error) {
		if next >= 4 {
			return 0, io.EOF
		}
		next++
		return next, nil
	})

	total, err := goagg.Aggregate[int, int](context.Background(), src, 0,
		func(acc, elem int) (int, error) { return acc + elem, nil })
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

// TestBuilder_Validation tests required-field checks on Build
func TestBuilder_Validation(t *testing.T) {
	_, err := goagg.New[float64, float64]().Reduce(reduce.Sum).Build()
	assert.Error(t, err)

	_, err = goagg.New[float64, float64]().From(sources.FromSlice[float64](nil)).Build()
	assert.Error(t, err)
}

// TestDriver_Stats tests the run's progress counters
func TestDriver_Stats(t *testing.T) {
	driver, err := goagg.New[float64, float64]().
		From(sources.FromSlice([]float64{1, 2, 3, 4, 5})).
		Reduce(reduce.Sum).
		WithSeed(0).
		WithPoolSize(2).
		Build()
	require.NoError(t, err)

	total, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, total)

	s := driver.Stats()
	assert.Equal(t, int64(5), s.ElementsRead)
	assert.Equal(t, int64(5), s.TasksDispatched)
	assert.Equal(t, int64(5), s.TasksCompleted)
	assert.Equal(t, "done", s.State)
	assert.Greater(t, s.Duration.Nanoseconds(), int64(0))
}

// TestDispatchMode_String tests the mode names
func TestDispatchMode_String(t *testing.T) {
	assert.Equal(t, "non-blocking", goagg.NonBlocking.String())
	assert.Equal(t, "blocking", goagg.Blocking.String())
	assert.Equal(t, "unknown", goagg.DispatchMode(99).String())
}
