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
	"sort"

	"github.com/aaronlmathis/goagg"
	"github.com/aaronlmathis/goagg/reduce"
	"github.com/aaronlmathis/goagg/sources"
)

func ExampleAggregate() {
	src := sources.FromSlice([]float64{1, 2, 3, 4, 5})

	total, err := goagg.Aggregate(context.Background(), src, 0, reduce.Sum,
		goagg.WithPoolSize(4))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(total)
	// Output: 15
}

func ExampleAggregateMany() {
	inputs := map[string]goagg.Source[float64]{
		"east": sources.FromSlice([]float64{10, 20}),
		"west": sources.FromSlice([]float64{1, 2, 3}),
	}

	totals, err := goagg.AggregateMany(context.Background(), inputs, 0, reduce.Sum,
		goagg.WithPoolSize(4))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s=%v\n", key, totals[key])
	}
	// Output:
	// east=30
	// west=6
}

func ExampleBuilder() {
	driver, err := goagg.New[float64, reduce.MeanState]().
		From(sources.FromSlice([]float64{2, 4, 6})).
		Reduce(reduce.Mean).
		WithSeed(reduce.MeanState{}).
		WithPoolSize(2).
		Build()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	state, err := driver.Run(context.Background())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	mean, err := state.Mean()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(mean)
	// Output: 4
}
