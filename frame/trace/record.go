// Package trace provides per-frame decision recording for pipeline analysis.
// This package has no dependencies on frame/ and stores pure data types.
package trace

// StageRecord captures one closed stage of a frame.
type StageRecord struct {
	Stage      string
	DurationUs int64
}

// FrameRecord captures the outcome of one frame attempt.
type FrameRecord struct {
	FrameID  string
	Sequence int64
	Status   string // frame.TerminationStatus name
	Stages   []StageRecord
	TotalUs  int64    // -1 if no total latency was emitted
	Events   int      // attached input events
	Decider  string   // partial update decider's frame ID ("" if none)
	Evicted  []string // frame IDs destroyed when this frame was adopted
}

// PredictionRecord captures the predictor state after a frame was fed to it.
type PredictionRecord struct {
	Sequence int64
	Stages   []int64 // stage slots followed by the total slot, -1 = unset
	Dispatch []int64 // dispatch phase slots followed by their sum
}
