package sim

import (
	"math"
)

// Nest groups alternatives that share unobserved attributes (e.g. the
// transit modes). The coefficient scales the in-nest logsum; at 1.0
// the nest collapses to plain multinomial logit.
type Nest struct {
	Name         string
	Coefficient  float64
	Alternatives []int64
}

// NestSpec is a one-level nesting structure over an alternative set.
// An alternative absent from every nest is treated as its own
// singleton nest with coefficient 1.
type NestSpec struct {
	Nests []Nest
}

// nestOf returns the nest index for an alternative, or -1.
func (s *NestSpec) nestOf(alt int64) int {
	for i, n := range s.Nests {
		for _, a := range n.Alternatives {
			if a == alt {
				return i
			}
		}
	}
	return -1
}

// nestedProbabilities computes one chooser's choice probabilities and
// logsum under one-level nested logit.
//
// Within nest m with coefficient c: P(a|m) ∝ exp(u_a/c), the nest's
// composite utility is I_m = c·log Σ exp(u_b/c), and nests compete as
// P(m) ∝ exp(I_m). Utilities are shifted by the chooser's max before
// exponentiation; the shift cancels in every ratio and is added back
// into the logsum.
func nestedProbabilities(altIDs []int64, utils []float64, spec *NestSpec) (probs []float64, logsum float64, ok bool) {
	shift := math.Inf(-1)
	for _, u := range utils {
		if !math.IsNaN(u) && u > shift {
			shift = u
		}
	}
	if math.IsInf(shift, -1) {
		return nil, 0, false
	}
	if math.IsInf(shift, 1) {
		// Forced choice, same rule as the multinomial path: all mass on
		// the first +Inf alternative in id order.
		probs = make([]float64, len(altIDs))
		for i, u := range utils {
			if math.IsInf(u, 1) {
				probs[i] = 1
				break
			}
		}
		return probs, shift, true
	}

	// Partition alternatives into nests; unassigned ones become
	// singleton nests so coverage is total.
	type group struct {
		coef    float64
		members []int // positions into altIDs
	}
	var groups []group
	nestPos := make(map[int]int) // spec nest index -> groups index
	for i, alt := range altIDs {
		ni := spec.nestOf(alt)
		if ni < 0 {
			groups = append(groups, group{coef: 1, members: []int{i}})
			continue
		}
		gi, seen := nestPos[ni]
		if !seen {
			gi = len(groups)
			nestPos[ni] = gi
			groups = append(groups, group{coef: spec.Nests[ni].Coefficient})
		}
		groups[gi].members = append(groups[gi].members, i)
	}

	probs = make([]float64, len(altIDs))
	nestUtil := make([]float64, len(groups))
	within := make([][]float64, len(groups))
	for gi, g := range groups {
		sum := 0.0
		within[gi] = make([]float64, len(g.members))
		for mi, pos := range g.members {
			u := utils[pos]
			if math.IsNaN(u) {
				u = math.Inf(-1)
			}
			within[gi][mi] = math.Exp((u - shift) / g.coef)
			sum += within[gi][mi]
		}
		if sum > 0 {
			nestUtil[gi] = g.coef * math.Log(sum)
			for mi := range within[gi] {
				within[gi][mi] /= sum
			}
		} else {
			nestUtil[gi] = math.Inf(-1)
		}
	}

	nestSum := 0.0
	for _, iu := range nestUtil {
		nestSum += math.Exp(iu)
	}
	if nestSum == 0 {
		return nil, 0, false
	}
	for gi, g := range groups {
		pNest := math.Exp(nestUtil[gi]) / nestSum
		for mi, pos := range g.members {
			probs[pos] = pNest * within[gi][mi]
		}
	}
	return probs, math.Log(nestSum) + shift, true
}
