// Package frame tracks the latency of individual rendered frames.
//
// # Reading Guide
//
//   - report.go: FrameReport, the per-frame state machine (Idle -> InProgress -> Terminated)
//   - dependents.go: the bounded partial-update dependent queues a decider keeps
//   - names.go: metric bucket naming
//   - stage.go, event.go, breakdown.go: the data a report records
//
// A driver creates one FrameReport per frame attempt, marks stage boundaries with
// StartStage and ends it with TerminateFrame. On termination the report emits duration
// samples to a MetricSink and, for presented frames, feeds the shared stage and
// dispatch predictors from frame/predict.
//
// Sub-packages:
//   - frame/predict: the smoothed latency forecasts
//   - frame/sink: MetricSink implementations (memory, Prometheus, OpenTelemetry, log)
//   - frame/trace: per-frame decision records
//   - frame/pipeline: a synthetic pipeline driver that owns the predictors
package frame
