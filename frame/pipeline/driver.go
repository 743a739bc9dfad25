// Package pipeline drives FrameReports through a synthetic compositing pipeline.
//
// The Driver owns the long-lived stage and dispatch predictors, creates one
// FrameReport per frame attempt and exercises every report operation: stages,
// input events, sub-phase and main-thread breakdowns, the three termination
// outcomes and partial-update chains with adoption and eviction. Randomness comes
// from a PartitionedRNG so runs are reproducible per seed.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/framelat/frame"
	"github.com/inference-sim/framelat/frame/predict"
	"github.com/inference-sim/framelat/frame/trace"
)

// Epoch is the simulated start time of the first frame.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Result summarizes a Run.
type Result struct {
	Frames     int
	Presented  int
	Dropped    int
	Superseded int
	Adopted    int
	Evicted    int
	Stage      []int64 // final stage predictor snapshot
	Dispatch   []int64 // final dispatch predictor snapshot
	Summary    *trace.TraceSummary
}

// Driver runs frames through FrameReports. Not safe for concurrent use.
type Driver struct {
	cfg      Config
	rng      *PartitionedRNG
	sink     frame.MetricSink
	stage    *predict.StageLatencyPredictor
	dispatch *predict.DispatchLatencyPredictor
	trace    *trace.FrameTrace
	now      time.Time
	seq      int64

	// decider is the frame whose partial update later frames may reuse.
	decider *frame.FrameReport

	result Result
}

// NewDriver validates cfg and creates a driver reporting into sink.
// Predictors are restored from cfg.Predictors when given.
func NewDriver(cfg Config, sink frame.MetricSink) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:      cfg,
		rng:      NewPartitionedRNG(NewRunKey(cfg.Seed)),
		sink:     sink,
		stage:    frame.NewStagePredictor(),
		dispatch: frame.NewDispatchPredictor(),
		trace:    trace.NewFrameTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.TraceLevel)}),
		now:      Epoch,
	}
	if len(cfg.Predictors.Stage) > 0 {
		if err := d.stage.Restore(cfg.Predictors.Stage); err != nil {
			return nil, fmt.Errorf("restoring predictors: %w", err)
		}
	}
	if len(cfg.Predictors.Dispatch) > 0 {
		if err := d.dispatch.Restore(cfg.Predictors.Dispatch); err != nil {
			return nil, fmt.Errorf("restoring predictors: %w", err)
		}
	}
	return d, nil
}

// StagePredictor returns the driver's stage predictor.
func (d *Driver) StagePredictor() *predict.StageLatencyPredictor {
	return d.stage
}

// DispatchPredictor returns the driver's dispatch predictor.
func (d *Driver) DispatchPredictor() *predict.DispatchLatencyPredictor {
	return d.dispatch
}

// Trace returns the frame records collected so far.
func (d *Driver) Trace() *trace.FrameTrace {
	return d.trace
}

// Run drives cfg.Frames frames and returns the outcome. It stops early with
// ctx's error if ctx is cancelled between frames.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	logrus.Infof("Starting pipeline run: seed=%d frames=%d interval=%dus", d.cfg.Seed, d.cfg.Frames, d.cfg.FrameIntervalUs)
	for i := 0; i < d.cfg.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline run stopped after %d frames: %w", i, err)
		}
		d.Step()
	}
	d.Close()
	res := d.Result()
	logrus.Infof("Pipeline run complete: %d presented, %d dropped, %d superseded, %d adopted, %d evicted",
		res.Presented, res.Dropped, res.Superseded, res.Adopted, res.Evicted)
	return res, nil
}

// Result returns the counters and predictor snapshots accumulated so far.
func (d *Driver) Result() *Result {
	res := d.result
	res.Stage = d.stage.Snapshot()
	res.Dispatch = d.dispatch.Snapshot()
	res.Summary = trace.Summarize(d.trace)
	return &res
}

// Close destroys the current partial-update decider and everything it owns.
func (d *Driver) Close() {
	if d.decider != nil {
		d.decider.Destroy()
		d.decider = nil
	}
}

// Step drives one frame attempt from begin to termination and returns its report.
// The report may already be destroyed unless it became the current decider or was
// adopted by it.
func (d *Driver) Step() *frame.FrameReport {
	d.seq++
	start := d.now
	d.now = d.now.Add(time.Duration(d.cfg.FrameIntervalUs) * time.Microsecond)

	r := frame.NewFrameReport(d.newID(), frame.Config{MaxOwnedDependents: d.cfg.MaxOwnedDependents},
		frame.Trackers{Sink: d.sink, Stage: d.stage, Dispatch: d.dispatch})

	decider := d.declareDecider(r)
	r.AddEventsMetrics(d.events(start)...)

	status := d.outcome()
	end := d.runStages(r, start, status)
	r.TerminateFrame(status, end)
	d.count(status)

	// Destroy releases a report's events, so count them before settling.
	events := len(r.Events())
	evicted := d.settle(r, decider)
	d.record(r, decider, events, evicted)
	logrus.Debugf("frame %d (%s): %s with %d stages", d.seq, r.ID(), status, r.StageHistorySize())
	return r
}

func (d *Driver) newID() uuid.UUID {
	id, err := uuid.NewRandomFromReader(d.rng.ForSubsystem(SubsystemIDs))
	if err != nil {
		// *rand.Rand never fails to fill a buffer.
		logrus.Panicf("generating frame id: %v", err)
	}
	return id
}

// declareDecider makes r reuse the current decider's partial update with the
// configured probability and returns that decider, or nil.
func (d *Driver) declareDecider(r *frame.FrameReport) *frame.FrameReport {
	rng := d.rng.ForSubsystem(SubsystemPartialUpdate)
	if d.decider == nil || rng.Float64() >= d.cfg.PartialUpdate.Probability {
		return nil
	}
	r.SetPartialUpdateDecider(d.decider)
	return d.decider
}

// settle hands r to its owner once terminated: adopted by its decider, promoted
// to the new decider, or destroyed. It returns the frames evicted by adoption.
func (d *Driver) settle(r, decider *frame.FrameReport) []*frame.FrameReport {
	if decider != nil {
		rng := d.rng.ForSubsystem(SubsystemPartialUpdate)
		if rng.Float64() < d.cfg.PartialUpdate.AdoptProbability {
			d.result.Adopted++
			if evicted := decider.AdoptReporter(r); evicted != nil {
				d.result.Evicted++
				return []*frame.FrameReport{evicted}
			}
			return nil
		}
		r.Destroy()
		return nil
	}
	if r.Status() == frame.Presented {
		// A fully presented frame decides the next partial updates; the previous
		// decider goes away together with the dependents it owns.
		if d.decider != nil {
			d.decider.Destroy()
		}
		d.decider = r
		return nil
	}
	r.Destroy()
	return nil
}

func (d *Driver) outcome() frame.TerminationStatus {
	u := d.rng.ForSubsystem(SubsystemOutcomes).Float64()
	switch {
	case u < d.cfg.Outcomes.SupersedeProbability:
		return frame.Superseded
	case u < d.cfg.Outcomes.SupersedeProbability+d.cfg.Outcomes.DropProbability:
		return frame.DidNotPresent
	default:
		return frame.Presented
	}
}

// runStages walks r through the stages of one frame starting at start and returns
// the termination time. Superseded frames stop before submission.
func (d *Driver) runStages(r *frame.FrameReport, start time.Time, status frame.TerminationStatus) time.Time {
	rng := d.rng.ForSubsystem(SubsystemStages)
	stages := []frame.Stage{frame.BeginImplFrameToSendBeginMainFrame}
	mainFrame := rng.Float64() < d.cfg.Outcomes.MainFrameProbability
	if mainFrame {
		stages = append(stages, frame.SendBeginMainFrameToCommit, frame.Commit,
			frame.EndCommitToActivation, frame.Activation)
	}
	stages = append(stages, frame.EndActivateToSubmitCompositorFrame,
		frame.SubmitCompositorFrameToPresentationCompositorFrame)
	if status == frame.Superseded {
		// Keep at least one stage and never reach submission.
		stages = stages[:1+rng.Intn(len(stages)-1)]
	}

	t := start
	var mainFrameDuration time.Duration
	for _, s := range stages {
		r.StartStage(s, t)
		dur := sampleDuration(rng, d.cfg.StageDuration(s))
		if s == frame.SubmitCompositorFrameToPresentationCompositorFrame {
			d.subPhaseBreakdown(r, t, dur)
		}
		if s == frame.SendBeginMainFrameToCommit {
			mainFrameDuration = dur
		}
		t = t.Add(dur)
	}
	if mainFrame && status != frame.Superseded {
		d.mainThreadBreakdown(r, mainFrameDuration)
	}
	return t
}

// subPhaseBreakdown reports display timestamps for a submit stage of length dur
// starting at submit. Presentation lands after the stage's end.
func (d *Driver) subPhaseBreakdown(r *frame.FrameReport, submit time.Time, dur time.Duration) {
	rng := d.rng.ForSubsystem(SubsystemBreakdown)
	if rng.Float64() >= d.cfg.Breakdown.SubPhaseProbability {
		return
	}
	// Split the stage at four ordered cut points.
	var cuts [4]float64
	for i := range cuts {
		cuts[i] = rng.Float64()
	}
	sort.Float64s(cuts[:])
	at := func(f float64) time.Time {
		return submit.Add(time.Duration(f * float64(dur)).Truncate(time.Microsecond))
	}
	delay := sampleDuration(rng, d.cfg.Breakdown.PresentationDelayUs)
	r.SetSubPhaseBreakdown(frame.SubPhaseBreakdown{
		ReceivedCompositorFrame: at(cuts[0]),
		DrawStart:               at(cuts[1]),
		SwapStart:               at(cuts[2]),
		SwapEnd:                 at(cuts[3]),
		Presentation:            submit.Add(dur + delay),
	})
}

// mainThreadBreakdown splits the main-frame stage's duration across the nine
// main-thread phases with random weights.
func (d *Driver) mainThreadBreakdown(r *frame.FrameReport, total time.Duration) {
	rng := d.rng.ForSubsystem(SubsystemBreakdown)
	if rng.Float64() >= d.cfg.Breakdown.MainThreadProbability {
		return
	}
	var weights [frame.NumMainThreadPhases]float64
	sum := 0.0
	for i := range weights {
		weights[i] = rng.Float64()
		sum += weights[i]
	}
	var parts [frame.NumMainThreadPhases]time.Duration
	for i, w := range weights {
		parts[i] = time.Duration(w / sum * float64(total)).Truncate(time.Microsecond)
	}
	r.SetMainThreadBreakdown(frame.MainThreadBreakdown{
		HandleInputEvents: parts[frame.HandleInputEvents],
		Animate:           parts[frame.Animate],
		StyleUpdate:       parts[frame.StyleUpdate],
		LayoutUpdate:      parts[frame.LayoutUpdate],
		CompositingInputs: parts[frame.CompositingInputs],
		Prepaint:          parts[frame.Prepaint],
		Paint:             parts[frame.Paint],
		CompositeCommit:   parts[frame.CompositeCommit],
		UpdateLayers:      parts[frame.UpdateLayers],
	})
}

// eventKinds are the event shapes the driver generates.
var eventKinds = []func(rng *rand.Rand, generated time.Time) *frame.InputEvent{
	func(_ *rand.Rand, t time.Time) *frame.InputEvent { return frame.NewInputEvent(frame.TouchMoved, t) },
	func(_ *rand.Rand, t time.Time) *frame.InputEvent { return frame.NewInputEvent(frame.MousePressed, t) },
	func(_ *rand.Rand, t time.Time) *frame.InputEvent { return frame.NewInputEvent(frame.KeyPressed, t) },
	func(rng *rand.Rand, t time.Time) *frame.InputEvent {
		return frame.NewScrollEvent(frame.GestureScrollBegin, scrollInput(rng), false, t)
	},
	func(rng *rand.Rand, t time.Time) *frame.InputEvent {
		update := frame.ScrollUpdateContinued
		if rng.Intn(4) == 0 {
			update = frame.ScrollUpdateStarted
		}
		return frame.NewScrollUpdateEvent(scrollInput(rng), rng.Intn(3) == 0, update, t)
	},
	func(rng *rand.Rand, t time.Time) *frame.InputEvent {
		input := frame.Touchscreen
		if rng.Intn(2) == 0 {
			input = frame.Wheel
		}
		return frame.NewPinchEvent(frame.GesturePinchUpdate, input, t)
	},
}

func scrollInput(rng *rand.Rand) frame.ScrollInputType {
	return frame.ScrollInputType(rng.Intn(int(frame.Scrollbar) + 1))
}

// events generates the input events a frame starting at start responds to. Each is
// generated within one frame interval before start.
func (d *Driver) events(start time.Time) []*frame.InputEvent {
	rng := d.rng.ForSubsystem(SubsystemInput)
	if rng.Float64() >= d.cfg.Input.EventProbability {
		return nil
	}
	n := 1 + rng.Intn(d.cfg.Input.MaxEventsPerFrame)
	out := make([]*frame.InputEvent, 0, n)
	for i := 0; i < n; i++ {
		ago := time.Duration(rng.Int63n(d.cfg.FrameIntervalUs)+1) * time.Microsecond
		e := eventKinds[rng.Intn(len(eventKinds))](rng, start.Add(-ago))

		// Compositor-only events stop at RendererCompositorFinished.
		last := frame.RendererCompositorFinished
		if rng.Float64() < d.cfg.Input.MainThreadProbability {
			last = frame.RendererMainFinished
		}
		t := start.Add(-ago)
		for s := frame.ArrivedInRendererCompositor; s <= last; s++ {
			t = t.Add(sampleDuration(rng, d.cfg.Input.Dispatch[s-1]))
			e.SetDispatchStageTimestamp(s, t)
		}
		out = append(out, e)
	}
	return out
}

func (d *Driver) count(status frame.TerminationStatus) {
	d.result.Frames++
	switch status {
	case frame.Presented:
		d.result.Presented++
	case frame.DidNotPresent:
		d.result.Dropped++
	case frame.Superseded:
		d.result.Superseded++
	}
}

func (d *Driver) record(r, decider *frame.FrameReport, events int, evicted []*frame.FrameReport) {
	if !d.trace.Config.Enabled() {
		return
	}
	rec := trace.FrameRecord{
		FrameID:  r.ID().String(),
		Sequence: d.seq,
		Status:   r.Status().String(),
		TotalUs:  -1,
		Events:   events,
	}
	for _, iv := range r.StageHistory() {
		rec.Stages = append(rec.Stages, trace.StageRecord{Stage: iv.Stage.String(), DurationUs: iv.Duration().Microseconds()})
	}
	if r.Status() != frame.Superseded {
		if total, ok := r.TotalLatency(); ok {
			rec.TotalUs = total.Microseconds()
		}
	}
	if decider != nil {
		rec.Decider = decider.ID().String()
	}
	for _, e := range evicted {
		rec.Evicted = append(rec.Evicted, e.ID().String())
	}
	d.trace.RecordFrame(rec)

	if d.trace.Config.PredictionsEnabled() && r.Status() == frame.Presented {
		d.trace.RecordPrediction(trace.PredictionRecord{
			Sequence: d.seq,
			Stages:   d.stage.Snapshot(),
			Dispatch: d.dispatch.Snapshot(),
		})
	}
}

// sampleDuration draws from a normal distribution, clamped at zero and truncated
// to whole microseconds.
func sampleDuration(rng *rand.Rand, c DurationConfig) time.Duration {
	us := c.MeanUs + c.StdevUs*rng.NormFloat64()
	if us < 0 || math.IsNaN(us) {
		us = 0
	}
	return time.Duration(us) * time.Microsecond
}
