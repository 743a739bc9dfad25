package frame

import (
	"time"

	"github.com/inference-sim/framelat/frame/predict"
)

// MetricSink receives one latency sample per call. Implementations must not block.
// See frame/sink for in-memory, Prometheus, OpenTelemetry and log-backed sinks.
type MetricSink interface {
	Record(bucket string, sample time.Duration)
}

// MetricSinkFunc adapts a function to MetricSink.
type MetricSinkFunc func(bucket string, sample time.Duration)

func (f MetricSinkFunc) Record(bucket string, sample time.Duration) {
	f(bucket, sample)
}

type discardSink struct{}

func (discardSink) Record(string, time.Duration) {}

// StageForecaster consumes per-stage and total frame latency samples in microseconds.
// *predict.StageLatencyPredictor implements it.
type StageForecaster interface {
	Update(stage int, sample int64)
	UpdateTotal(sample int64)
}

// DispatchForecaster consumes one microsecond sample per input dispatch phase.
// *predict.DispatchLatencyPredictor implements it.
type DispatchForecaster interface {
	Update(samples []predict.Sample)
}

// Trackers are the long-lived collaborators a FrameReport reports into on termination.
// They are shared across frames and never owned by a report. Nil fields, including
// nil *predict predictors, are skipped.
type Trackers struct {
	Sink     MetricSink
	Stage    StageForecaster
	Dispatch DispatchForecaster
}

// normalized replaces a nil Sink with a discarding one and drops nil predictor
// pointers stored in the forecaster interfaces.
func (t Trackers) normalized() Trackers {
	if t.Sink == nil {
		t.Sink = discardSink{}
	}
	if p, ok := t.Stage.(*predict.StageLatencyPredictor); ok && p == nil {
		t.Stage = nil
	}
	if p, ok := t.Dispatch.(*predict.DispatchLatencyPredictor); ok && p == nil {
		t.Dispatch = nil
	}
	return t
}

// NewStagePredictor returns a stage predictor sized for the pipeline's stages.
func NewStagePredictor() *predict.StageLatencyPredictor {
	return predict.NewStageLatencyPredictor(NumStages)
}

// NewDispatchPredictor returns a dispatch predictor sized for the input dispatch phases.
func NewDispatchPredictor() *predict.DispatchLatencyPredictor {
	return predict.NewDispatchLatencyPredictor(NumDispatchPhases)
}
