package sim

import (
	"hash/fnv"
	"math/rand"
)

// === RunKey ===

// RunKey uniquely identifies a reproducible pipeline run.
// Two runs with the same RunKey and identical configuration MUST
// produce bit-for-bit identical choices.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

// === ChoiceRNG ===

// ChoiceRNG derives deterministic uniform draws per (step, chooser).
//
// Derivation formula: masterSeed XOR fnv1a64(stepName) XOR mix(chooserID).
//
// Seeding by chooser id rather than chunk position is what makes
// choices independent of the chunk budget and of worker scheduling:
// every chooser sees the same draw stream no matter which batch or
// goroutine evaluates it.
//
// Thread-safety: ForChooser returns a fresh *rand.Rand each call, so
// concurrent batches never share generator state.
type ChoiceRNG struct {
	key      RunKey
	stepHash int64
}

// NewChoiceRNG creates a ChoiceRNG scoped to one model step. Distinct
// step names yield independent draw streams for the same chooser.
func NewChoiceRNG(key RunKey, stepName string) *ChoiceRNG {
	return &ChoiceRNG{
		key:      key,
		stepHash: fnv1a64(stepName),
	}
}

// ForChooser returns a deterministically-seeded RNG for one chooser.
// Never returns nil.
func (c *ChoiceRNG) ForChooser(chooserID int64) *rand.Rand {
	seed := int64(c.key) ^ c.stepHash ^ mix64(chooserID)
	return rand.New(rand.NewSource(seed))
}

// Key returns the RunKey used to create this ChoiceRNG.
func (c *ChoiceRNG) Key() RunKey {
	return c.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// mix64 is a splitmix64 finalizer. Raw chooser ids are typically
// small sequential integers; mixing spreads them across the seed
// space so neighboring choosers do not get correlated streams.
func mix64(v int64) int64 {
	z := uint64(v) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
