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

package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// Package pool implements the bounded worker pool behind the aggregation driver.
//
// The pool admits at most Workers tasks at a time through a semaphore; each
// admitted task runs on its own goroutine and releases its slot on completion.
// Submission blocks while all slots are busy, which gives the driver natural
// backpressure against a fast element source. Completion is tracked explicitly
// so Drain can deterministically wait for every submitted task - completion is
// never inferred from timing.

// ErrClosed is returned by Submit and SubmitWait once Close has been called.
// A task rejected with ErrClosed was never admitted and will not run.
var ErrClosed = errors.New("pool is closed")

// Task is a unit of work submitted to the pool.
type Task func()

// Options configures a Pool.
type Options struct {
	Workers int // Maximum number of concurrently running tasks
}

// Option represents a configuration function for Options.
type Option func(*Options)

// WithWorkers sets the maximum number of concurrently running tasks.
func WithWorkers(n int) Option {
	return func(opts *Options) {
		opts.Workers = n
	}
}

// withDefaults applies default values to Options.
func (opts *Options) withDefaults() *Options {
	result := &Options{}
	if opts != nil {
		*result = *opts
	}
	if result.Workers <= 0 {
		result.Workers = runtime.GOMAXPROCS(0)
	}
	return result
}

// Stats holds a snapshot of the pool's activity counters.
type Stats struct {
	Workers   int   // Configured concurrency bound
	Submitted int64 // Tasks admitted so far
	Completed int64 // Tasks finished so far
	InFlight  int64 // Submitted - Completed
}

// Pool is a bounded set of concurrent execution units.
//
// The zero value is not usable; construct with New. A Pool may be shared by
// several concurrent aggregations.
type Pool struct {
	sem       chan struct{}
	workers   int
	pending   sync.WaitGroup
	submitted atomic.Int64
	completed atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New creates a worker pool. The concurrency bound defaults to the available
// parallelism (runtime.GOMAXPROCS).
func New(options ...Option) *Pool {
	opts := (&Options{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	return &Pool{
		sem:     make(chan struct{}, opts.Workers),
		workers: opts.Workers,
	}
}

// Submit admits a task and returns as soon as the task has been handed to a
// worker slot. It blocks while all slots are busy. Returns ErrClosed if Close
// has been called; a rejected task will not run.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.pending.Add(1)
	p.submitted.Add(1)
	p.mu.Unlock()

	p.sem <- struct{}{}
	go func() {
		defer func() {
			<-p.sem
			p.completed.Add(1)
			p.pending.Done()
		}()
		task()
	}()

	return nil
}

// SubmitWait admits a task and suspends the caller until that specific task
// has completed, or until ctx is cancelled. On cancellation the task still
// runs to completion on its worker; only the wait is abandoned.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return nil
	}

	done := make(chan struct{})
	err := p.Submit(func() {
		defer close(done)
		task()
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain blocks until every previously submitted task has completed. New tasks
// may still be submitted afterwards; Drain does not shut the pool down.
func (p *Pool) Drain() {
	p.pending.Wait()
}

// Close rejects further submissions and waits for in-flight tasks to finish.
// Safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	return nil
}

// Stats returns a snapshot of the pool's activity counters.
func (p *Pool) Stats() Stats {
	submitted := p.submitted.Load()
	completed := p.completed.Load()
	return Stats{
		Workers:   p.workers,
		Submitted: submitted,
		Completed: completed,
		InFlight:  submitted - completed,
	}
}

// Workers returns the pool's concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}
