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
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/goagg/accumulator"
	"github.com/aaronlmathis/goagg/pool"
)

// AggregateMany runs one independent aggregation per key, concurrently, over a
// single shared worker pool and a single keyed accumulator store. Each key's
// fold starts from seed and proceeds exactly as Aggregate would.
//
// The result map is complete only on a nil error: if any key fails, the whole
// call fails with that key's error and no partial map is returned. Per-key
// results are independent of the relative scheduling of the keys' workers.
func AggregateMany[K comparable, E, A any](ctx context.Context, sources map[K]Source[E], seed A, fn ReduceFunc[A, E], options ...Option) (map[K]A, error) {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	workers := opts.Pool
	if workers == nil {
		workers = pool.New(pool.WithWorkers(opts.PoolSize))
		defer workers.Close()
	}

	store := accumulator.NewStore[K, A]()
	g, gctx := errgroup.WithContext(ctx)

	for key, source := range sources {
		key, source := key, source
		cell, err := store.Create(key, seed)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			driver, err := New[E, A]().
				From(source).
				Reduce(fn).
				WithSeed(seed).
				WithDispatchMode(opts.Mode).
				WithPool(workers).
				withCell(cell).
				Build()
			if err != nil {
				return err
			}
			if _, err := driver.Run(gctx); err != nil {
				return fmt.Errorf("key %v: %w", key, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Every key has reported done; the store's values are final.
	results := make(map[K]A, len(sources))
	for key := range sources {
		if value, ok := store.Finalize(key); ok {
			results[key] = value
		}
	}
	return results, nil
}
