package models

import (
	"math"

	"github.com/pkg/errors"

	"github.com/medailey/activitysim/sim"
)

// Shared external formula builders. These stand in for the @-style
// expressions of externally supplied spec files: they may reach the
// skim matrix and model constants through the evaluation context.

// skimAt looks up a skim value for each row at a fixed hour.
func skimAt(originCol, destCol string, hour float64) sim.ExternalFn {
	return func(ctx *sim.EvalContext) ([]float64, error) {
		skims, err := ctx.Skims()
		if err != nil {
			return nil, err
		}
		origins, err := ctx.IntColumn(originCol)
		if err != nil {
			return nil, err
		}
		dests, err := ctx.IntColumn(destCol)
		if err != nil {
			return nil, err
		}
		hours := make([]float64, len(origins))
		for i := range hours {
			hours[i] = hour
		}
		return skims.Lookup(origins, dests, hours)
	}
}

// skimByHour looks up a skim value with the hour taken from a column,
// the shape of tour-level round-trip time terms.
func skimByHour(originCol, destCol, hourCol string) sim.ExternalFn {
	return func(ctx *sim.EvalContext) ([]float64, error) {
		skims, err := ctx.Skims()
		if err != nil {
			return nil, err
		}
		origins, err := ctx.IntColumn(originCol)
		if err != nil {
			return nil, err
		}
		dests, err := ctx.IntColumn(destCol)
		if err != nil {
			return nil, err
		}
		hours, err := ctx.Column(hourCol)
		if err != nil {
			return nil, err
		}
		return skims.Lookup(origins, dests, hours)
	}
}

// logPlusOne computes ln(col + 1), the usual attraction size term.
func logPlusOne(col string) sim.ExternalFn {
	return func(ctx *sim.EvalContext) ([]float64, error) {
		src, err := ctx.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = math.Log(v + 1)
		}
		return out, nil
	}
}

// negLog computes -ln(col), the sampling correction applied when a
// simulate phase re-evaluates a sampled alternative set.
func negLog(col string) sim.ExternalFn {
	return func(ctx *sim.EvalContext) ([]float64, error) {
		src, err := ctx.Column(col)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = -math.Log(v)
		}
		return out, nil
	}
}

// segmentPositions returns row positions where the flag column is
// nonzero.
func segmentPositions(t *sim.Table, col string) ([]int, error) {
	flags, ok := t.Column(col)
	if !ok {
		return nil, errors.Wrapf(sim.ErrUnresolvedReference, "%s.%s", t.Name, col)
	}
	var out []int
	for i, v := range flags {
		if v != 0 {
			out = append(out, i)
		}
	}
	return out, nil
}

// fillColumn builds a constant column of the given length.
func fillColumn(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
