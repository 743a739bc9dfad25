package pipeline

import (
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible pipeline run.
// Two runs with the same RunKey and identical configuration produce identical
// frames, samples and predictions.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

// RNG subsystems of the driver.
const (
	SubsystemStages        = "stages"
	SubsystemOutcomes      = "outcomes"
	SubsystemInput         = "input"
	SubsystemPartialUpdate = "partial_update"
	SubsystemBreakdown     = "breakdown"
	SubsystemIDs           = "ids"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// seeded with masterSeed XOR fnv1a64(subsystemName). Drawing from one subsystem
// never shifts another's sequence.
//
// Not thread-safe.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached, deterministically seeded RNG for name.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the RunKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
