// Package predict provides the short-horizon latency forecasts fed by terminating frames.
//
// Both predictors share one integer low-pass recurrence (Smoother):
//
//	seed:   slot = sample                        (slot unset)
//	update: slot = (1*sample + 3*slot) / 4       (floor division)
//
// StageLatencyPredictor keeps one slot per pipeline stage plus an independently
// sampled total slot and ignores zero samples. DispatchLatencyPredictor keeps one slot
// per input dispatch phase and derives its total as the sum of the phase slots.
//
// Values are plain int64 counts of whatever unit the caller feeds; frame reports feed
// microseconds. Nothing here is safe for concurrent use.
package predict

import "fmt"

// Unset is the sentinel reported by Snapshot for slots that never received a sample.
const Unset int64 = -1

// Smoothing weights: NewSampleWeight/WeightDenominator on the new sample,
// HistoryWeight/WeightDenominator on the previous forecast.
const (
	NewSampleWeight   int64 = 1
	HistoryWeight     int64 = 3
	WeightDenominator int64 = NewSampleWeight + HistoryWeight
)

// Sample is one observation for a slot. The zero value is "not applicable".
type Sample struct {
	Value      int64
	Applicable bool
}

// Observed returns an applicable sample carrying v.
func Observed(v int64) Sample {
	return Sample{Value: v, Applicable: true}
}

// NotApplicable returns a sample that leaves its slot unchanged.
func NotApplicable() Sample {
	return Sample{}
}

// Smoother is a fixed set of exponentially smoothed slots.
type Smoother struct {
	slots    []int64
	set      []bool
	skipZero bool
}

// NewSmoother creates a smoother with n unset slots. When skipZero is true a zero
// sample is treated as non-informative and never seeds or moves a slot.
// Panics if n is not positive.
func NewSmoother(n int, skipZero bool) *Smoother {
	if n <= 0 {
		panic(fmt.Sprintf("predict: slot count must be > 0, got %d", n))
	}
	return &Smoother{
		slots:    make([]int64, n),
		set:      make([]bool, n),
		skipZero: skipZero,
	}
}

// Len returns the number of slots.
func (s *Smoother) Len() int {
	return len(s.slots)
}

// Update applies one sample to slot i. Not-applicable samples are ignored.
func (s *Smoother) Update(i int, sample Sample) {
	if !sample.Applicable {
		return
	}
	if sample.Value == 0 && s.skipZero {
		return
	}
	if !s.set[i] {
		s.slots[i] = sample.Value
		s.set[i] = true
		return
	}
	s.slots[i] = Smooth(s.slots[i], sample.Value)
}

// Value returns slot i and whether it has been seeded.
func (s *Smoother) Value(i int) (int64, bool) {
	return s.slots[i], s.set[i]
}

// Smooth returns the next forecast given the previous one and a new sample.
func Smooth(prev, sample int64) int64 {
	return floorDiv(NewSampleWeight*sample+HistoryWeight*prev, WeightDenominator)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Restore replaces every slot with values, where Unset marks a slot as never seeded.
func (s *Smoother) Restore(values []int64) error {
	if len(values) != len(s.slots) {
		return fmt.Errorf("predict: restore needs %d values, got %d", len(s.slots), len(values))
	}
	for i, v := range values {
		if v < Unset {
			return fmt.Errorf("predict: restore value[%d] = %d is negative", i, v)
		}
	}
	for i, v := range values {
		s.slots[i] = v
		s.set[i] = v != Unset
		if v == Unset {
			s.slots[i] = 0
		}
	}
	return nil
}

// snapshotInto writes every slot into dst, unset slots as Unset.
func (s *Smoother) snapshotInto(dst []int64) {
	for i := range s.slots {
		if s.set[i] {
			dst[i] = s.slots[i]
		} else {
			dst[i] = Unset
		}
	}
}
