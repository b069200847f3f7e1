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
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestBatch assembles a two-column Arrow record in memory.
func buildTestBatch(t *testing.T) arrow.Record {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "label", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	amounts := builder.Field(0).(*array.Float64Builder)
	amounts.AppendValues([]float64{1.5, 2.5}, nil)
	amounts.AppendNull()

	labels := builder.Field(1).(*array.StringBuilder)
	labels.AppendValues([]string{"a", "b", "c"}, nil)

	return builder.NewRecord()
}

// TestExtractRecordFromBatch tests row extraction from an Arrow batch,
// including null handling
func TestExtractRecordFromBatch(t *testing.T) {
	batch := buildTestBatch(t)
	defer batch.Release()

	require.Equal(t, int64(3), batch.NumRows())

	first := extractRecordFromBatch(batch, 0)
	assert.Equal(t, 1.5, first["amount"])
	assert.Equal(t, "a", first["label"])

	last := extractRecordFromBatch(batch, 2)
	assert.Nil(t, last["amount"])
	assert.Equal(t, "c", last["label"])
}

// TestExtractArrowValue_Types tests the per-type conversions
func TestExtractArrowValue_Types(t *testing.T) {
	alloc := memory.NewGoAllocator()

	ints := array.NewInt64Builder(alloc)
	ints.Append(7)
	intArr := ints.NewInt64Array()
	defer intArr.Release()
	assert.Equal(t, int64(7), extractArrowValue(intArr, 0))

	int32s := array.NewInt32Builder(alloc)
	int32s.Append(3)
	int32Arr := int32s.NewInt32Array()
	defer int32Arr.Release()
	assert.Equal(t, int64(3), extractArrowValue(int32Arr, 0))

	bools := array.NewBooleanBuilder(alloc)
	bools.Append(true)
	boolArr := bools.NewBooleanArray()
	defer boolArr.Release()
	assert.Equal(t, true, extractArrowValue(boolArr, 0))

	floats := array.NewFloat32Builder(alloc)
	floats.Append(1.5)
	floatArr := floats.NewFloat32Array()
	defer floatArr.Release()
	assert.Equal(t, 1.5, extractArrowValue(floatArr, 0))
}

// TestNewParquetSource_MissingFile tests the open failure path
func TestNewParquetSource_MissingFile(t *testing.T) {
	_, err := NewParquetSource("/nonexistent/file.parquet")
	assert.Error(t, err)
}
