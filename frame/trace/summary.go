package trace

import "github.com/inference-sim/framelat/frame/sink"

// Status names as recorded in FrameRecord.Status.
const (
	StatusPresented     = "Presented"
	StatusDidNotPresent = "DidNotPresent"
	StatusSuperseded    = "Superseded"
)

// TraceSummary aggregates statistics from a FrameTrace.
type TraceSummary struct {
	TotalFrames      int
	PresentedCount   int
	DroppedCount     int
	SupersededCount  int
	PartialUpdates   int // frames with a decider
	EvictedCount     int
	PresentedLatency sink.Distribution // total latency of presented frames, µs
	StatusCounts     map[string]int
}

// Summarize computes aggregate statistics from a FrameTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ft *FrameTrace) *TraceSummary {
	summary := &TraceSummary{
		StatusCounts: make(map[string]int),
	}
	if ft == nil {
		return summary
	}

	summary.TotalFrames = len(ft.Frames)
	var presented []float64
	for _, f := range ft.Frames {
		summary.StatusCounts[f.Status]++
		switch f.Status {
		case StatusPresented:
			summary.PresentedCount++
			if f.TotalUs >= 0 {
				presented = append(presented, float64(f.TotalUs))
			}
		case StatusDidNotPresent:
			summary.DroppedCount++
		case StatusSuperseded:
			summary.SupersededCount++
		}
		if f.Decider != "" {
			summary.PartialUpdates++
		}
		summary.EvictedCount += len(f.Evicted)
	}
	summary.PresentedLatency = sink.NewDistribution(presented)

	return summary
}
