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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aaronlmathis/goagg/accumulator"
	"github.com/aaronlmathis/goagg/pool"
)

// state tracks the driver's lifecycle: init -> streaming -> draining -> done,
// or failed from any state.
type state int

const (
	stateInit state = iota
	stateStreaming
	stateDraining
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateStreaming:
		return "streaming"
	case stateDraining:
		return "draining"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures an aggregation run.
type Options struct {
	Mode     DispatchMode // Task submission mode; NonBlocking by default
	PoolSize int          // Worker count for a driver-owned pool; GOMAXPROCS by default
	Pool     *pool.Pool   // Optional shared pool; overrides PoolSize and is not closed by the driver
}

// Option represents a configuration function for Options.
type Option func(*Options)

// WithDispatchMode sets the task submission mode.
func WithDispatchMode(mode DispatchMode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

// WithPoolSize sets the worker count for the driver-owned pool.
func WithPoolSize(size int) Option {
	return func(opts *Options) {
		opts.PoolSize = size
	}
}

// WithPool supplies an externally owned worker pool. The driver will submit to
// it but not close it, so several aggregations can share one pool.
func WithPool(p *pool.Pool) Option {
	return func(opts *Options) {
		opts.Pool = p
	}
}

// Builder provides a fluent API for constructing aggregation drivers.
// Use New() to create a builder, then chain From, Reduce, WithSeed, and
// configuration methods.
type Builder[E, A any] struct {
	source Source[E]
	reduce ReduceFunc[A, E]
	seed   A
	cell   *accumulator.Cell[A]
	opts   Options
}

// New creates a new Builder for constructing an aggregation driver.
func New[E, A any]() *Builder[E, A] {
	return &Builder[E, A]{}
}

// From sets the element source for the aggregation.
func (b *Builder[E, A]) From(source Source[E]) *Builder[E, A] {
	b.source = source
	return b
}

// Reduce sets the reduction function. It must be commutative and associative
// for NonBlocking dispatch; see ReduceFunc.
func (b *Builder[E, A]) Reduce(fn ReduceFunc[A, E]) *Builder[E, A] {
	b.reduce = fn
	return b
}

// WithSeed sets the aggregation's identity value (e.g. 0 for a sum).
func (b *Builder[E, A]) WithSeed(seed A) *Builder[E, A] {
	b.seed = seed
	return b
}

// WithDispatchMode sets the task submission mode.
func (b *Builder[E, A]) WithDispatchMode(mode DispatchMode) *Builder[E, A] {
	b.opts.Mode = mode
	return b
}

// WithPoolSize sets the worker count for the driver-owned pool.
func (b *Builder[E, A]) WithPoolSize(size int) *Builder[E, A] {
	b.opts.PoolSize = size
	return b
}

// WithPool supplies an externally owned worker pool.
func (b *Builder[E, A]) WithPool(p *pool.Pool) *Builder[E, A] {
	b.opts.Pool = p
	return b
}

// WithOptions applies functional options to the builder's configuration.
func (b *Builder[E, A]) WithOptions(options ...Option) *Builder[E, A] {
	for _, option := range options {
		option(&b.opts)
	}
	return b
}

// withCell targets an externally owned accumulator cell, used by
// AggregateMany to point several drivers at one keyed store.
func (b *Builder[E, A]) withCell(cell *accumulator.Cell[A]) *Builder[E, A] {
	b.cell = cell
	return b
}

// Build validates and constructs the Driver from the builder.
func (b *Builder[E, A]) Build() (*Driver[E, A], error) {
	if b.source == nil {
		return nil, fmt.Errorf("aggregation requires an element source")
	}
	if b.reduce == nil {
		return nil, fmt.Errorf("aggregation requires a reduce function")
	}
	return &Driver[E, A]{
		source: b.source,
		reduce: b.reduce,
		seed:   b.seed,
		cell:   b.cell,
		opts:   b.opts,
	}, nil
}

// Stats holds a snapshot of an aggregation run's progress.
type Stats struct {
	ElementsRead    int64
	TasksDispatched int64
	TasksCompleted  int64
	Duration        time.Duration
	State           string
}

// Driver orchestrates element source -> worker pool -> shared accumulator and
// produces the final aggregate once the source is exhausted and all dispatched
// work has completed.
//
// A Driver consumes its source in a single pass; Run is not restartable.
type Driver[E, A any] struct {
	source Source[E]
	reduce ReduceFunc[A, E]
	seed   A
	cell   *accumulator.Cell[A]
	opts   Options

	mu       sync.Mutex
	state    state
	stats    Stats
	firstErr error
}

// Run executes the aggregation and returns the final value.
//
// Run pulls elements one at a time, dispatches one reduction task per element,
// and - after the source is exhausted - waits for every dispatched task before
// reading the accumulator. On any failure the partial aggregate is discarded
// and the originating error is returned; in-flight tasks are waited for, never
// abandoned. The source is closed on all exit paths.
//
// Waits are unbounded: cancellation and deadlines come from ctx alone.
func (d *Driver[E, A]) Run(ctx context.Context) (A, error) {
	var zero A
	start := time.Now()
	defer func() {
		d.mu.Lock()
		d.stats.Duration += time.Since(start)
		d.mu.Unlock()
	}()
	defer d.source.Close()

	workers := d.opts.Pool
	if workers == nil {
		workers = pool.New(pool.WithWorkers(d.opts.PoolSize))
		defer workers.Close()
	}

	cell := d.cell
	if cell == nil {
		cell = accumulator.NewCell(d.seed)
	}

	// Outstanding-task count lives here, not in the accumulator: the driver
	// certifies completion before any final read.
	var outstanding sync.WaitGroup

	d.setState(stateStreaming)
	runErr := d.stream(ctx, workers, cell, &outstanding)

	d.setState(stateDraining)
	outstanding.Wait()

	if runErr == nil {
		runErr = d.taskErr()
	}
	if runErr != nil {
		d.setState(stateFailed)
		return zero, runErr
	}

	d.setState(stateDone)
	return cell.Value(), nil
}

// stream is the driver's main loop: pull, dispatch, repeat until end of
// sequence or failure. It never reads the accumulator.
func (d *Driver[E, A]) stream(ctx context.Context, workers *pool.Pool, cell *accumulator.Cell[A], outstanding *sync.WaitGroup) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.taskErr(); err != nil {
			return err
		}

		elem, err := d.source.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return asSourceError(err)
		}
		d.bump(func(s *Stats) { s.ElementsRead++ })

		task := d.newTask(cell, elem)
		outstanding.Add(1)
		run := func() {
			defer outstanding.Done()
			defer d.bump(func(s *Stats) { s.TasksCompleted++ })
			task()
		}

		if d.opts.Mode == Blocking {
			if err := workers.SubmitWait(ctx, run); err != nil {
				if errors.Is(err, pool.ErrClosed) {
					// Never admitted; no completion will arrive.
					outstanding.Done()
					return &PoolError{Op: "submit", Err: err}
				}
				// ctx expired while waiting; the task still completes.
				return err
			}
		} else {
			if err := workers.Submit(run); err != nil {
				outstanding.Done()
				return &PoolError{Op: "submit", Err: err}
			}
		}
		d.bump(func(s *Stats) { s.TasksDispatched++ })
	}
}

// newTask wraps one reduction step. A panicking reduce function is surfaced as
// a PoolError instead of crashing the process.
func (d *Driver[E, A]) newTask(cell *accumulator.Cell[A], elem E) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				d.fail(&PoolError{Op: "reduce", Err: fmt.Errorf("task panic: %v", r)})
			}
		}()
		err := cell.Apply(func(acc A) (A, error) {
			return d.reduce(acc, elem)
		})
		if err != nil {
			d.fail(err)
		}
	}
}

// Stats returns a snapshot of the run's progress counters.
func (d *Driver[E, A]) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	snapshot := d.stats
	snapshot.State = d.state.String()
	return snapshot
}

func (d *Driver[E, A]) setState(s state) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Driver[E, A]) bump(update func(*Stats)) {
	d.mu.Lock()
	update(&d.stats)
	d.mu.Unlock()
}

// fail records the first task failure; later failures are dropped.
func (d *Driver[E, A]) fail(err error) {
	d.mu.Lock()
	if d.firstErr == nil {
		d.firstErr = err
	}
	d.mu.Unlock()
}

func (d *Driver[E, A]) taskErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firstErr
}

// asSourceError wraps a source failure unless it is already structured.
func asSourceError(err error) error {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return err
	}
	return &SourceError{Op: "next", Err: err}
}

// Aggregate folds every element of source into seed using fn and returns the
// final value. It fails with a SourceError if the source errors mid-stream and
// a PoolError if worker execution fails; no partial result is returned.
//
// fn must be commutative and associative under the default NonBlocking
// dispatch mode; see ReduceFunc.
func Aggregate[E, A any](ctx context.Context, source Source[E], seed A, fn ReduceFunc[A, E], options ...Option) (A, error) {
	driver, err := New[E, A]().
		From(source).
		Reduce(fn).
		WithSeed(seed).
		WithOptions(options...).
		Build()
	if err != nil {
		var zero A
		return zero, err
	}
	return driver.Run(ctx)
}
