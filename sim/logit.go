package sim

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChoiceMode selects what the simulator does with a utility column.
type ChoiceMode int

const (
	// ModeSimulate makes one Monte Carlo choice per chooser.
	ModeSimulate ChoiceMode = iota
	// ModeSample draws k alternatives per chooser without replacement
	// for later full-utility re-evaluation.
	ModeSample
	// ModeLogsums computes the expected-maximum-utility summary per
	// chooser, with no randomness.
	ModeLogsums
)

func (m ChoiceMode) String() string {
	switch m {
	case ModeSimulate:
		return "simulate"
	case ModeSample:
		return "sample"
	case ModeLogsums:
		return "logsums"
	}
	return "unknown"
}

// Choice is one chooser's outcome in simulate or logsums mode.
type Choice struct {
	ChooserID   int64
	Alternative int64
	Probability float64
	Logsum      float64
}

// SampledAlternative is one member of a chooser's sampled alternative
// set. Sampling is without replacement, so PickCount is 1 per distinct
// alternative; the field is carried because downstream re-evaluation
// weights rows by it.
type SampledAlternative struct {
	Alternative int64
	Probability float64
	PickCount   int
}

// ChooserSample is the sampled alternative set for one chooser.
type ChooserSample struct {
	ChooserID    int64
	Alternatives []SampledAlternative
}

// ChoiceResult maps choosers to outcomes for one model step. Choosers
// recorded in Failed are excluded from Choices/Samples.
type ChoiceResult struct {
	Mode    ChoiceMode
	Choices []Choice
	Samples []ChooserSample
	Failed  *NoViableAlternative
}

func (r *ChoiceResult) append(other *ChoiceResult) {
	r.Choices = append(r.Choices, other.Choices...)
	r.Samples = append(r.Samples, other.Samples...)
	if !other.Failed.Empty() {
		if r.Failed == nil {
			r.Failed = &NoViableAlternative{}
		}
		r.Failed.Merge(other.Failed)
	}
}

// probabilities converts one chooser's utilities to multinomial logit
// probabilities, shifting by the max utility before exponentiation so
// large utilities cannot overflow. Returns the logsum alongside. ok is
// false when no alternative has a finite utility.
func probabilities(utils []float64) (probs []float64, logsum float64, ok bool) {
	maxU := math.Inf(-1)
	for _, u := range utils {
		if !math.IsNaN(u) && u > maxU {
			maxU = u
		}
	}
	if math.IsInf(maxU, -1) {
		return nil, 0, false
	}
	if math.IsInf(maxU, 1) {
		// An unbounded utility is a forced choice: all mass on the first
		// +Inf alternative in id order. Exponentiating against a +Inf
		// logsum would turn every probability into NaN or 0.
		probs = make([]float64, len(utils))
		for i, u := range utils {
			if math.IsInf(u, 1) {
				probs[i] = 1
				break
			}
		}
		return probs, maxU, true
	}
	// floats.LogSumExp performs the same max-shift internally; using it
	// keeps the logsum consistent with the probabilities to the ulp.
	shifted := make([]float64, len(utils))
	for i, u := range utils {
		if math.IsNaN(u) {
			shifted[i] = math.Inf(-1)
		} else {
			shifted[i] = u
		}
	}
	logsum = floats.LogSumExp(shifted)
	probs = make([]float64, len(utils))
	for i, u := range shifted {
		probs[i] = math.Exp(u - logsum)
	}
	return probs, logsum, true
}

// makeChoice draws one alternative by inverse-CDF sampling against a
// single uniform. Ties break to the first alternative whose cumulative
// probability reaches the draw; altIDs must be in strictly increasing
// id order for that rule to be meaningful.
func makeChoice(altIDs []int64, probs []float64, rng *rand.Rand) (int64, float64) {
	draw := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if draw < cum {
			return altIDs[i], p
		}
	}
	// Float64 rounding can leave cum fractionally below 1; the draw
	// then belongs to the last alternative.
	last := len(altIDs) - 1
	return altIDs[last], probs[last]
}

// minSampleProb floors recorded sampling probabilities. A marginal
// probability that underflowed to zero would make the -log(prob)
// correction applied on re-evaluation infinite.
const minSampleProb = math.SmallestNonzeroFloat64

// sampleWithoutReplacement draws up to k distinct alternatives by
// cumulative-weight sampling with mass removal. Reported probabilities
// are the full-set marginal probabilities, which is what the second
// stage of a sample-then-simulate destination model corrects for.
func sampleWithoutReplacement(altIDs []int64, probs []float64, k int, rng *rand.Rand) []SampledAlternative {
	n := len(altIDs)
	if k > n {
		k = n
	}
	remaining := append([]float64(nil), probs...)
	total := 1.0
	taken := make([]bool, n)
	out := make([]SampledAlternative, 0, k)
	for draw := 0; draw < k; draw++ {
		target := rng.Float64() * total
		cum := 0.0
		pick := -1
		for i := 0; i < n; i++ {
			if taken[i] {
				continue
			}
			cum += remaining[i]
			if target < cum {
				pick = i
				break
			}
		}
		if pick < 0 {
			// rounding at the tail: take the last untaken alternative
			for i := n - 1; i >= 0; i-- {
				if !taken[i] {
					pick = i
					break
				}
			}
		}
		taken[pick] = true
		total -= remaining[pick]
		p := probs[pick]
		if p < minSampleProb {
			p = minSampleProb
		}
		out = append(out, SampledAlternative{
			Alternative: altIDs[pick],
			Probability: p,
			PickCount:   1,
		})
	}
	return out
}

// CheckVariability is the precondition guard run once per model step
// when enabled: a constant utility surface signals a broken expression,
// so simulation must not proceed to draw from it.
func CheckVariability(utils []float64) error {
	if len(utils) < 2 {
		return nil
	}
	if stat.Variance(utils, nil) == 0 {
		return errors.Wrapf(ErrDegenerateUtility, "constant value %v over %d rows",
			utils[0], len(utils))
	}
	return nil
}

// chooserGroup is one chooser's contiguous row range in an interaction
// table, with the alternative ids those rows represent.
type chooserGroup struct {
	chooserID int64
	altIDs    []int64
	lo, hi    int // row range [lo, hi) into the utility column
}

// simulateGroups applies one choice mode to every chooser group over a
// shared utility column. Choosers with no viable alternative are
// recorded and skipped; the rest of the batch proceeds.
func simulateGroups(mode ChoiceMode, utils []float64, groups []chooserGroup,
	sampleSize int, nests *NestSpec, rng *ChoiceRNG) *ChoiceResult {

	res := &ChoiceResult{Mode: mode}
	for _, g := range groups {
		u := utils[g.lo:g.hi]
		var (
			probs  []float64
			logsum float64
			ok     bool
		)
		if nests != nil {
			probs, logsum, ok = nestedProbabilities(g.altIDs, u, nests)
		} else {
			probs, logsum, ok = probabilities(u)
		}
		if len(u) == 0 || !ok {
			if res.Failed == nil {
				res.Failed = &NoViableAlternative{}
			}
			res.Failed.Add(g.chooserID)
			continue
		}
		switch mode {
		case ModeLogsums:
			res.Choices = append(res.Choices, Choice{
				ChooserID: g.chooserID,
				Logsum:    logsum,
			})
		case ModeSimulate:
			alt, p := makeChoice(g.altIDs, probs, rng.ForChooser(g.chooserID))
			res.Choices = append(res.Choices, Choice{
				ChooserID:   g.chooserID,
				Alternative: alt,
				Probability: p,
				Logsum:      logsum,
			})
		case ModeSample:
			alts := sampleWithoutReplacement(g.altIDs, probs, sampleSize,
				rng.ForChooser(g.chooserID))
			res.Samples = append(res.Samples, ChooserSample{
				ChooserID:    g.chooserID,
				Alternatives: alts,
			})
		}
	}
	return res
}
