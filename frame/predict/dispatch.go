package predict

import "fmt"

// DispatchLatencyPredictor forecasts per-dispatch-phase latency of input events.
// Unlike StageLatencyPredictor, zero is a valid sample here and the total is the sum
// of the phase forecasts (unset phases count as zero).
type DispatchLatencyPredictor struct {
	slots *Smoother
}

// NewDispatchLatencyPredictor creates a predictor for numPhases dispatch phases.
func NewDispatchLatencyPredictor(numPhases int) *DispatchLatencyPredictor {
	if numPhases <= 0 {
		panic(fmt.Sprintf("predict: numPhases must be > 0, got %d", numPhases))
	}
	return &DispatchLatencyPredictor{slots: NewSmoother(numPhases, false)}
}

// NumPhases returns the number of phase slots (excluding the total).
func (p *DispatchLatencyPredictor) NumPhases() int {
	return p.slots.Len()
}

// Update feeds one sample per phase. Not-applicable samples leave their phase
// unchanged. Panics if len(samples) differs from NumPhases.
func (p *DispatchLatencyPredictor) Update(samples []Sample) {
	if len(samples) != p.slots.Len() {
		panic(fmt.Sprintf("predict: dispatch update needs %d samples, got %d", p.slots.Len(), len(samples)))
	}
	for i, s := range samples {
		p.slots.Update(i, s)
	}
}

// Phase returns the forecast for one phase, or Unset.
func (p *DispatchLatencyPredictor) Phase(i int) int64 {
	v, ok := p.slots.Value(i)
	if !ok {
		return Unset
	}
	return v
}

// Total returns the sum of all seeded phase forecasts.
func (p *DispatchLatencyPredictor) Total() int64 {
	var sum int64
	for i := 0; i < p.slots.Len(); i++ {
		if v, ok := p.slots.Value(i); ok {
			sum += v
		}
	}
	return sum
}

// Snapshot returns NumPhases+1 values: every phase slot followed by the total.
func (p *DispatchLatencyPredictor) Snapshot() []int64 {
	n := p.slots.Len()
	out := make([]int64, n+1)
	p.slots.snapshotInto(out[:n])
	out[n] = p.Total()
	return out
}

// Restore loads the phase slots of a previously taken Snapshot. The trailing total
// is recomputed, so its value in snapshot is ignored.
func (p *DispatchLatencyPredictor) Restore(snapshot []int64) error {
	n := p.slots.Len()
	if len(snapshot) != n+1 {
		return fmt.Errorf("dispatch predictor: restore needs %d values, got %d", n+1, len(snapshot))
	}
	if err := p.slots.Restore(snapshot[:n]); err != nil {
		return fmt.Errorf("dispatch predictor: %w", err)
	}
	return nil
}
