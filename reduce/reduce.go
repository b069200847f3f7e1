package reduce

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/goagg"
)

// Package reduce provides ready-made commutative, associative reduction
// functions for the aggregation engine, plus convenience drivers for the
// common numeric cases.

// Sum folds one element into a running total. Commutative and associative;
// safe under NonBlocking dispatch. Seed with 0, the additive identity.
func Sum(acc, elem float64) (float64, error) {
	return acc + elem, nil
}

// Count counts elements regardless of their value. Seed with 0.
func Count[E any](acc int64, _ E) (int64, error) {
	return acc + 1, nil
}

// Extreme carries a min/max fold. Set distinguishes "no elements seen" from a
// genuine zero value.
type Extreme struct {
	Set   bool
	Value float64
}

// Min keeps the smallest element seen. Seed with the zero Extreme.
func Min(acc Extreme, elem float64) (Extreme, error) {
	if !acc.Set || elem < acc.Value {
		return Extreme{Set: true, Value: elem}, nil
	}
	return acc, nil
}

// Max keeps the largest element seen. Seed with the zero Extreme.
func Max(acc Extreme, elem float64) (Extreme, error) {
	if !acc.Set || elem > acc.Value {
		return Extreme{Set: true, Value: elem}, nil
	}
	return acc, nil
}

// MeanState accumulates the (sum, count) pair a mean is derived from.
// The pairwise fold is commutative and associative even though the mean
// itself is not.
type MeanState struct {
	Sum   float64
	Count int64
}

// Mean folds one element into a MeanState. Seed with the zero MeanState.
func Mean(acc MeanState, elem float64) (MeanState, error) {
	return MeanState{Sum: acc.Sum + elem, Count: acc.Count + 1}, nil
}

// Mean derives the mean from the accumulated pair. Returns ErrEmptyInput for
// an empty sequence rather than dividing by zero.
func (m MeanState) Mean() (float64, error) {
	if m.Count == 0 {
		return 0, goagg.ErrEmptyInput
	}
	return m.Sum / float64(m.Count), nil
}

// SumOf aggregates source with Sum. An empty sequence yields 0.
func SumOf(ctx context.Context, source goagg.Source[float64], options ...goagg.Option) (float64, error) {
	return goagg.Aggregate(ctx, source, 0, Sum, options...)
}

// CountOf aggregates source with Count.
func CountOf[E any](ctx context.Context, source goagg.Source[E], options ...goagg.Option) (int64, error) {
	return goagg.Aggregate(ctx, source, 0, Count[E], options...)
}

// MeanOf aggregates source with Mean and derives the final mean.
// Fails with ErrEmptyInput if the source yields no elements.
func MeanOf(ctx context.Context, source goagg.Source[float64], options ...goagg.Option) (float64, error) {
	state, err := goagg.Aggregate(ctx, source, MeanState{}, Mean, options...)
	if err != nil {
		return 0, err
	}
	return state.Mean()
}

// MinOf aggregates source with Min. Fails with ErrEmptyInput if the source
// yields no elements.
func MinOf(ctx context.Context, source goagg.Source[float64], options ...goagg.Option) (float64, error) {
	return extremeOf(ctx, source, Min, options...)
}

// MaxOf aggregates source with Max. Fails with ErrEmptyInput if the source
// yields no elements.
func MaxOf(ctx context.Context, source goagg.Source[float64], options ...goagg.Option) (float64, error) {
	return extremeOf(ctx, source, Max, options...)
}

func extremeOf(ctx context.Context, source goagg.Source[float64], fn goagg.ReduceFunc[Extreme, float64], options ...goagg.Option) (float64, error) {
	acc, err := goagg.Aggregate(ctx, source, Extreme{}, fn, options...)
	if err != nil {
		return 0, err
	}
	if !acc.Set {
		return 0, goagg.ErrEmptyInput
	}
	return acc.Value, nil
}

// ToFloat64 coerces the numeric types a store-backed source may yield into
// float64, for use with Sum/Mean/Min/Max.
func ToFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}
