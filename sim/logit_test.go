package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbabilities_SumToOne(t *testing.T) {
	cases := [][]float64{
		{0, 0, 0},
		{1, 2, 3},
		{-5, 0, 5},
		{700, 710, 720}, // would overflow without the max shift
		{-745, -745, -745},
	}
	for _, utils := range cases {
		probs, _, ok := probabilities(utils)
		require.True(t, ok, "utils %v", utils)
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "utils %v", utils)
	}
}

func TestProbabilities_LogsumMatchesShiftedFormula(t *testing.T) {
	utils := []float64{1.5, -2.0, 3.25, 0.0}

	_, logsum, ok := probabilities(utils)
	require.True(t, ok)

	// logsum must equal log(sum(exp(u - max))) + max
	maxU := math.Inf(-1)
	for _, u := range utils {
		maxU = math.Max(maxU, u)
	}
	sum := 0.0
	for _, u := range utils {
		sum += math.Exp(u - maxU)
	}
	assert.InDelta(t, math.Log(sum)+maxU, logsum, 1e-12)
}

func TestProbabilities_ShiftInvariant(t *testing.T) {
	// Adding a constant to every utility must not change probabilities.
	a, _, _ := probabilities([]float64{1, 2, 3})
	b, _, _ := probabilities([]float64{101, 102, 103})
	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-12)
	}
}

func TestProbabilities_AllNonFinite(t *testing.T) {
	_, _, ok := probabilities([]float64{math.Inf(-1), math.NaN()})
	assert.False(t, ok)

	_, _, ok = probabilities(nil)
	assert.False(t, ok)
}

func TestProbabilities_InfiniteUtilityWinsOutright(t *testing.T) {
	// A +Inf utility is a forced choice: the degenerate distribution,
	// never NaN probabilities.
	probs, logsum, ok := probabilities([]float64{math.Inf(1), 1})
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0}, probs)
	assert.True(t, math.IsInf(logsum, 1))

	// ties between +Inf utilities break to the first in id order
	probs, _, ok = probabilities([]float64{-2, math.Inf(1), math.Inf(1)})
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0}, probs)
}

func TestMakeChoice_InfiniteUtilityAlternative(t *testing.T) {
	altIDs := []int64{10, 20}
	probs, _, ok := probabilities([]float64{math.Inf(1), 1})
	require.True(t, ok)

	rng := NewChoiceRNG(NewRunKey(5), "forced")
	alt, p := makeChoice(altIDs, probs, rng.ForChooser(1))
	assert.Equal(t, int64(10), alt)
	assert.Equal(t, 1.0, p)
}

func TestProbabilities_NegInfAlternativeGetsZero(t *testing.T) {
	probs, _, ok := probabilities([]float64{0, math.Inf(-1), 0})
	require.True(t, ok)
	assert.Equal(t, 0.0, probs[1])
	assert.InDelta(t, 0.5, probs[0], 1e-12)
}

func TestMakeChoice_InverseCDF(t *testing.T) {
	altIDs := []int64{10, 20, 30}
	probs := []float64{0.2, 0.3, 0.5}

	// GIVEN a deterministic rng, the same draw always lands in the
	// same cumulative interval
	rng := NewChoiceRNG(NewRunKey(5), "step")
	alt1, p1 := makeChoice(altIDs, probs, rng.ForChooser(1))
	alt2, p2 := makeChoice(altIDs, probs, rng.ForChooser(1))
	assert.Equal(t, alt1, alt2)
	assert.Equal(t, p1, p2)

	// AND the returned probability is the chosen alternative's
	for i, id := range altIDs {
		if id == alt1 {
			assert.Equal(t, probs[i], p1)
		}
	}
}

func TestMakeChoice_DistributionRoughlyMatches(t *testing.T) {
	// With many independent chooser draws, empirical shares approach
	// the probabilities.
	altIDs := []int64{1, 2, 3}
	probs := []float64{0.2, 0.3, 0.5}
	rng := NewChoiceRNG(NewRunKey(11), "dist")

	counts := map[int64]int{}
	const n = 20000
	for c := int64(0); c < n; c++ {
		alt, _ := makeChoice(altIDs, probs, rng.ForChooser(c))
		counts[alt]++
	}
	assert.InDelta(t, 0.2, float64(counts[1])/n, 0.02)
	assert.InDelta(t, 0.3, float64(counts[2])/n, 0.02)
	assert.InDelta(t, 0.5, float64(counts[3])/n, 0.02)
}

func TestSampleWithoutReplacement_NoDuplicates(t *testing.T) {
	altIDs := []int64{1, 2, 3, 4, 5}
	probs := []float64{0.1, 0.2, 0.3, 0.2, 0.2}
	rng := NewChoiceRNG(NewRunKey(3), "sample")

	for c := int64(0); c < 200; c++ {
		got := sampleWithoutReplacement(altIDs, probs, 3, rng.ForChooser(c))
		require.Len(t, got, 3)
		seen := map[int64]bool{}
		for _, s := range got {
			assert.False(t, seen[s.Alternative], "chooser %d drew %d twice", c, s.Alternative)
			seen[s.Alternative] = true
			assert.Equal(t, 1, s.PickCount)
			assert.Greater(t, s.Probability, 0.0)
		}
	}
}

func TestSampleWithoutReplacement_CappedAtSetSize(t *testing.T) {
	altIDs := []int64{7, 8}
	probs := []float64{0.5, 0.5}
	rng := NewChoiceRNG(NewRunKey(3), "sample")

	got := sampleWithoutReplacement(altIDs, probs, 10, rng.ForChooser(1))
	assert.Len(t, got, 2)
}

func TestSampleWithoutReplacement_UnderflowedProbabilityIsFloored(t *testing.T) {
	// Utilities ~800 apart: the weaker alternative's marginal
	// probability underflows to exactly zero, yet the tail fallback can
	// still pick it. The recorded probability must stay positive so the
	// -log(prob) correction on re-evaluation is finite.
	altIDs := []int64{10, 20}
	probs, _, ok := probabilities([]float64{0, -800})
	require.True(t, ok)
	require.Equal(t, 0.0, probs[1])

	rng := NewChoiceRNG(NewRunKey(3), "sample")
	got := sampleWithoutReplacement(altIDs, probs, 2, rng.ForChooser(1))
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Greater(t, s.Probability, 0.0)
		assert.False(t, math.IsInf(-math.Log(s.Probability), 1))
	}
}

func TestCheckVariability(t *testing.T) {
	assert.ErrorIs(t, CheckVariability([]float64{2, 2, 2, 2}), ErrDegenerateUtility)
	assert.NoError(t, CheckVariability([]float64{1, 2}))
	assert.NoError(t, CheckVariability([]float64{5})) // single row cannot vary
	assert.NoError(t, CheckVariability(nil))
}

func TestNestedProbabilities_SumToOne(t *testing.T) {
	spec := &NestSpec{Nests: []Nest{
		{Name: "motorized", Coefficient: 0.5, Alternatives: []int64{1, 2}},
		{Name: "transit", Coefficient: 0.7, Alternatives: []int64{3}},
	}}
	altIDs := []int64{1, 2, 3, 4} // 4 is an implicit singleton nest
	utils := []float64{-1.0, -1.5, -2.0, -3.0}

	probs, logsum, ok := nestedProbabilities(altIDs, utils, spec)
	require.True(t, ok)
	require.Len(t, probs, 4)

	sum := 0.0
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.False(t, math.IsNaN(logsum))
}

func TestNestedProbabilities_UnitCoefficientsCollapseToMNL(t *testing.T) {
	// With every nest coefficient at 1, nesting must not change the
	// multinomial logit probabilities.
	spec := &NestSpec{Nests: []Nest{
		{Name: "a", Coefficient: 1, Alternatives: []int64{1, 2}},
		{Name: "b", Coefficient: 1, Alternatives: []int64{3}},
	}}
	altIDs := []int64{1, 2, 3}
	utils := []float64{0.3, -0.4, 1.1}

	nested, nestedLS, ok := nestedProbabilities(altIDs, utils, spec)
	require.True(t, ok)
	flat, flatLS, ok := probabilities(utils)
	require.True(t, ok)

	for i := range flat {
		assert.InDelta(t, flat[i], nested[i], 1e-12)
	}
	assert.InDelta(t, flatLS, nestedLS, 1e-12)
}

func TestNestedProbabilities_InfiniteUtility(t *testing.T) {
	spec := &NestSpec{Nests: []Nest{
		{Name: "a", Coefficient: 0.5, Alternatives: []int64{1, 2}},
	}}
	probs, logsum, ok := nestedProbabilities([]int64{1, 2, 3},
		[]float64{-1, math.Inf(1), 0}, spec)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0}, probs)
	assert.True(t, math.IsInf(logsum, 1))
}

func TestNestedProbabilities_AllNonFinite(t *testing.T) {
	spec := &NestSpec{}
	_, _, ok := nestedProbabilities([]int64{1}, []float64{math.Inf(-1)}, spec)
	assert.False(t, ok)
}
