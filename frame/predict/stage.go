package predict

import "fmt"

// StageLatencyPredictor forecasts per-stage latency plus total frame latency.
// The total slot is fed its own sample, never derived from the stage slots.
type StageLatencyPredictor struct {
	numStages int
	slots     *Smoother // numStages stage slots followed by the total slot
}

// NewStageLatencyPredictor creates a predictor for numStages pipeline stages.
func NewStageLatencyPredictor(numStages int) *StageLatencyPredictor {
	if numStages <= 0 {
		panic(fmt.Sprintf("predict: numStages must be > 0, got %d", numStages))
	}
	return &StageLatencyPredictor{
		numStages: numStages,
		slots:     NewSmoother(numStages+1, true),
	}
}

// NumStages returns the number of per-stage slots (excluding the total).
func (p *StageLatencyPredictor) NumStages() int {
	return p.numStages
}

// TotalSlot is the index of the total slot in a Snapshot.
func (p *StageLatencyPredictor) TotalSlot() int {
	return p.numStages
}

// Update feeds one stage duration. Zero samples are ignored.
func (p *StageLatencyPredictor) Update(stage int, sample int64) {
	if stage < 0 || stage >= p.numStages {
		panic(fmt.Sprintf("predict: stage %d out of range [0,%d)", stage, p.numStages))
	}
	p.slots.Update(stage, Observed(sample))
}

// UpdateTotal feeds one total frame latency. Zero samples are ignored.
func (p *StageLatencyPredictor) UpdateTotal(sample int64) {
	p.slots.Update(p.numStages, Observed(sample))
}

// Stage returns the forecast for one stage, or Unset.
func (p *StageLatencyPredictor) Stage(stage int) int64 {
	v, ok := p.slots.Value(stage)
	if !ok {
		return Unset
	}
	return v
}

// Total returns the total forecast, or Unset.
func (p *StageLatencyPredictor) Total() int64 {
	return p.Stage(p.numStages)
}

// Snapshot returns numStages+1 values: every stage slot followed by the total slot.
func (p *StageLatencyPredictor) Snapshot() []int64 {
	out := make([]int64, p.numStages+1)
	p.slots.snapshotInto(out)
	return out
}

// Restore loads a previously taken Snapshot.
func (p *StageLatencyPredictor) Restore(snapshot []int64) error {
	if err := p.slots.Restore(snapshot); err != nil {
		return fmt.Errorf("stage predictor: %w", err)
	}
	return nil
}
