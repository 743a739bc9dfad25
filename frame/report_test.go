package frame

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/framelat/frame/internal/testutil"
	"github.com/inference-sim/framelat/frame/predict"
)

type reportFixture struct {
	clock    *testutil.Clock
	hist     *testutil.HistogramTester
	stage    *predict.StageLatencyPredictor
	dispatch *predict.DispatchLatencyPredictor
}

func newReportFixture() *reportFixture {
	return &reportFixture{
		clock:    testutil.NewClock(),
		hist:     testutil.NewHistogramTester(),
		stage:    NewStagePredictor(),
		dispatch: NewDispatchPredictor(),
	}
}

func (f *reportFixture) trackers() Trackers {
	return Trackers{Sink: f.hist, Stage: f.stage, Dispatch: f.dispatch}
}

func (f *reportFixture) newReport() *FrameReport {
	return NewFrameReport(uuid.Nil, Config{}, f.trackers())
}

// runAllStages starts every stage step apart and returns the time the last stage
// would close.
func (f *reportFixture) runAllStages(r *FrameReport, step time.Duration) time.Time {
	for _, s := range Stages() {
		r.StartStage(s, f.clock.Now())
		f.clock.Advance(step)
	}
	return f.clock.Now()
}

func TestFrameReport_PresentedUniformStages(t *testing.T) {
	// GIVEN a frame that spends 3µs in each of the seven stages
	f := newReportFixture()
	r := f.newReport()
	end := f.runAllStages(r, 3*time.Microsecond)

	// WHEN it is presented
	r.TerminateFrame(Presented, end)

	// THEN every stage bucket holds 3µs and the total is 21µs
	for _, s := range Stages() {
		f.hist.ExpectUniqueSample(t, StageBucket(Presented, s), 3*time.Microsecond)
	}
	f.hist.ExpectUniqueSample(t, "CompositorLatency.TotalLatency", 21*time.Microsecond)
	f.hist.ExpectNoSamplesWithPrefix(t, DroppedFramePrefix)

	// AND the stage predictor is seeded with the frame's values
	for i := 0; i < NumStages; i++ {
		assert.Equal(t, int64(3), f.stage.Stage(i), "stage %d", i)
	}
	assert.Equal(t, int64(21), f.stage.Total())
	assert.Equal(t, Presented, r.Status())
	assert.Equal(t, NumStages, r.StageHistorySize())
}

func TestFrameReport_StageHistoryRecordsIntervals(t *testing.T) {
	// GIVEN three stages with distinct durations
	f := newReportFixture()
	r := f.newReport()
	t0 := f.clock.Now()
	r.StartStage(BeginImplFrameToSendBeginMainFrame, t0)
	r.StartStage(SendBeginMainFrameToCommit, f.clock.Advance(2*time.Microsecond))
	r.StartStage(Commit, f.clock.Advance(5*time.Microsecond))

	// WHEN the frame terminates
	r.TerminateFrame(Presented, f.clock.Advance(7*time.Microsecond))

	// THEN the history holds contiguous closed intervals in order
	h := r.StageHistory()
	require.Len(t, h, 3)
	assert.Equal(t, BeginImplFrameToSendBeginMainFrame, h[0].Stage)
	assert.Equal(t, t0, h[0].Start)
	assert.Equal(t, 2*time.Microsecond, h[0].Duration())
	assert.Equal(t, 5*time.Microsecond, h[1].Duration())
	assert.Equal(t, 7*time.Microsecond, h[2].Duration())
	for i := 1; i < len(h); i++ {
		assert.Equal(t, h[i-1].End, h[i].Start)
	}

	// AND mutating the returned copy does not change the report
	h[0].Stage = Activation
	assert.Equal(t, BeginImplFrameToSendBeginMainFrame, r.StageHistory()[0].Stage)
}

func TestFrameReport_TotalEqualsSumOfStagesWithoutOverride(t *testing.T) {
	// GIVEN contiguous stages of uneven length and no sub-phase breakdown
	f := newReportFixture()
	r := f.newReport()
	durations := []time.Duration{1, 4, 9, 16, 25, 36, 49}
	for i, d := range durations {
		r.StartStage(Stage(i), f.clock.Now())
		f.clock.Advance(d * time.Microsecond)
	}

	// WHEN presented
	r.TerminateFrame(Presented, f.clock.Now())

	// THEN the total is the sum of the stage durations
	var sum time.Duration
	for _, iv := range r.StageHistory() {
		sum += iv.Duration()
	}
	total, ok := r.TotalLatency()
	require.True(t, ok)
	assert.Equal(t, sum, total)
	f.hist.ExpectUniqueSample(t, TotalLatencyBucket(Presented), sum)
}

func TestFrameReport_DidNotPresentUsesDroppedBuckets(t *testing.T) {
	// GIVEN a frame with two stages and an attached event
	f := newReportFixture()
	r := f.newReport()
	r.AddEventsMetrics(NewInputEvent(TouchMoved, f.clock.Now()))
	r.StartStage(BeginImplFrameToSendBeginMainFrame, f.clock.Advance(time.Microsecond))
	r.StartStage(SendBeginMainFrameToCommit, f.clock.Advance(4*time.Microsecond))

	// WHEN it is dropped
	r.TerminateFrame(DidNotPresent, f.clock.Advance(6*time.Microsecond))

	// THEN samples go to the dropped buckets only
	f.hist.ExpectUniqueSample(t, "CompositorLatency.DroppedFrame.BeginImplFrameToSendBeginMainFrame", 4*time.Microsecond)
	f.hist.ExpectUniqueSample(t, "CompositorLatency.DroppedFrame.SendBeginMainFrameToCommit", 6*time.Microsecond)
	f.hist.ExpectUniqueSample(t, "CompositorLatency.DroppedFrame.TotalLatency", 10*time.Microsecond)
	f.hist.ExpectTotalCount(t, StageBucket(Presented, BeginImplFrameToSendBeginMainFrame), 0)

	// AND no event latency is reported and no predictor moves
	f.hist.ExpectNoSamplesWithPrefix(t, EventLatencyPrefix)
	assert.Equal(t, []int64{-1, -1, -1, -1, -1, -1, -1, -1}, f.stage.Snapshot())
	assert.Equal(t, []int64{-1, -1, -1, -1, -1, 0}, f.dispatch.Snapshot())
	_, ok := r.PresentationTime()
	assert.False(t, ok)
}

func TestFrameReport_SupersededReportsNothing(t *testing.T) {
	// GIVEN a frame with stages, events and a breakdown
	f := newReportFixture()
	r := f.newReport()
	r.AddEventsMetrics(NewInputEvent(KeyPressed, f.clock.Now()))
	f.runAllStages(r, time.Microsecond)
	r.SetSubPhaseBreakdown(SubPhaseBreakdown{Presentation: f.clock.Advance(time.Microsecond)})

	// WHEN it is superseded
	r.TerminateFrame(Superseded, f.clock.Now())

	// THEN nothing is emitted and predictors are untouched
	assert.Equal(t, 0, f.hist.Total())
	assert.Equal(t, []int64{-1, -1, -1, -1, -1, -1, -1, -1}, f.stage.Snapshot())
	assert.Equal(t, Superseded, r.Status())
}

func TestFrameReport_TerminatedWithoutStagesEmitsNoTotal(t *testing.T) {
	f := newReportFixture()
	r := f.newReport()

	r.TerminateFrame(Presented, f.clock.Now())

	assert.Equal(t, 0, f.hist.Total())
	_, ok := r.TotalLatency()
	assert.False(t, ok)
	assert.Equal(t, predict.Unset, f.stage.Total())
}

func TestFrameReport_EventLatencyFromPresentationOverride(t *testing.T) {
	// GIVEN a scroll update generated 10µs before the first stage
	f := newReportFixture()
	r := f.newReport()
	generated := f.clock.Now()
	r.AddEventsMetrics(NewScrollUpdateEvent(Wheel, false, ScrollUpdateContinued, generated))
	r.StartStage(BeginImplFrameToSendBeginMainFrame, f.clock.Advance(10*time.Microsecond))
	r.StartStage(SubmitCompositorFrameToPresentationCompositorFrame, f.clock.Advance(10*time.Microsecond))
	terminated := f.clock.Advance(10 * time.Microsecond)

	// AND the display service reports presentation 5µs after termination
	presented := terminated.Add(5 * time.Microsecond)
	r.SetSubPhaseBreakdown(SubPhaseBreakdown{Presentation: presented})

	// WHEN the frame is presented
	r.TerminateFrame(Presented, terminated)

	// THEN the event latency and the total are measured to the reported presentation
	f.hist.ExpectUniqueSample(t, "EventLatency.GestureScrollUpdate.Wheel.TotalLatency", 35*time.Microsecond)
	f.hist.ExpectUniqueSample(t, EventTotalLatencyBucket, 35*time.Microsecond)
	f.hist.ExpectUniqueSample(t, TotalLatencyBucket(Presented), 25*time.Microsecond)
	got, ok := r.PresentationTime()
	require.True(t, ok)
	assert.Equal(t, presented, got)
}

func TestFrameReport_EventLatencyWithoutOverrideUsesTermination(t *testing.T) {
	// GIVEN two events generated at different times and no breakdown
	f := newReportFixture()
	r := f.newReport()
	r.AddEventsMetrics(
		NewInputEvent(TouchPressed, f.clock.Now()),
		NewPinchEvent(GesturePinchUpdate, Wheel, f.clock.Advance(2*time.Microsecond)),
		nil,
	)
	r.StartStage(Commit, f.clock.Advance(time.Microsecond))

	// WHEN the frame is presented 10µs later
	r.TerminateFrame(Presented, f.clock.Advance(10*time.Microsecond))

	// THEN each event is attributed to its own bucket and to the umbrella bucket
	f.hist.ExpectUniqueSample(t, "EventLatency.TouchPressed.TotalLatency", 13*time.Microsecond)
	f.hist.ExpectUniqueSample(t, "EventLatency.GesturePinchUpdate.Touchpad.TotalLatency", 11*time.Microsecond)
	f.hist.ExpectTotalCount(t, EventTotalLatencyBucket, 2)
	assert.Len(t, r.Events(), 2)
}

func TestFrameReport_EventsWithoutGenerationTimeAreSkipped(t *testing.T) {
	f := newReportFixture()
	r := f.newReport()
	r.AddEventsMetrics(&InputEvent{Type: MousePressed})
	r.StartStage(Commit, f.clock.Now())

	r.TerminateFrame(Presented, f.clock.Advance(time.Microsecond))

	f.hist.ExpectNoSamplesWithPrefix(t, EventLatencyPrefix)
}

func TestFrameReport_NegativeEventLatencyIsDropped(t *testing.T) {
	// GIVEN an event generated after the frame's presentation
	f := newReportFixture()
	r := f.newReport()
	r.StartStage(Commit, f.clock.Now())
	terminated := f.clock.Advance(time.Microsecond)
	r.AddEventsMetrics(NewInputEvent(KeyPressed, terminated.Add(time.Millisecond)))

	// WHEN presented
	r.TerminateFrame(Presented, terminated)

	// THEN no event latency is recorded
	f.hist.ExpectNoSamplesWithPrefix(t, EventLatencyPrefix)
	f.hist.ExpectTotalCount(t, TotalLatencyBucket(Presented), 1)
}

func TestFrameReport_SubPhaseBreakdown(t *testing.T) {
	// GIVEN a frame whose submit stage starts at s and a complete breakdown
	f := newReportFixture()
	r := f.newReport()
	r.StartStage(EndActivateToSubmitCompositorFrame, f.clock.Now())
	s := f.clock.Advance(time.Microsecond)
	r.StartStage(SubmitCompositorFrameToPresentationCompositorFrame, s)
	r.SetSubPhaseBreakdown(SubPhaseBreakdown{
		ReceivedCompositorFrame: s.Add(1 * time.Microsecond),
		DrawStart:               s.Add(3 * time.Microsecond),
		SwapStart:               s.Add(6 * time.Microsecond),
		SwapEnd:                 s.Add(10 * time.Microsecond),
		Presentation:            s.Add(15 * time.Microsecond),
	})

	// WHEN presented
	r.TerminateFrame(Presented, s.Add(12*time.Microsecond))

	// THEN every sub-phase is reported under the submit stage bucket
	prefix := "CompositorLatency.SubmitCompositorFrameToPresentationCompositorFrame."
	f.hist.ExpectUniqueSample(t, prefix+"SubmitToReceiveCompositorFrame", 1*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"ReceivedCompositorFrameToStartDraw", 2*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"StartDrawToSwapStart", 3*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"SwapStartToSwapEnd", 4*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"SwapEndToPresentationCompositorFrame", 5*time.Microsecond)
	f.hist.ExpectUniqueSample(t, TotalLatencyBucket(Presented), 16*time.Microsecond)
}

func TestFrameReport_SubPhaseBreakdownPartial(t *testing.T) {
	// GIVEN a dropped frame whose breakdown lacks draw and swap timestamps
	f := newReportFixture()
	r := f.newReport()
	s := f.clock.Now()
	r.StartStage(SubmitCompositorFrameToPresentationCompositorFrame, s)
	r.SetSubPhaseBreakdown(SubPhaseBreakdown{ReceivedCompositorFrame: s.Add(2 * time.Microsecond)})

	// WHEN it is dropped
	r.TerminateFrame(DidNotPresent, s.Add(5*time.Microsecond))

	// THEN only the sub-phase with both end points is reported
	prefix := "CompositorLatency.DroppedFrame.SubmitCompositorFrameToPresentationCompositorFrame."
	f.hist.ExpectUniqueSample(t, prefix+"SubmitToReceiveCompositorFrame", 2*time.Microsecond)
	f.hist.ExpectTotalCount(t, prefix+"ReceivedCompositorFrameToStartDraw", 0)
	f.hist.ExpectTotalCount(t, prefix+"SwapEndToPresentationCompositorFrame", 0)
}

func TestFrameReport_SubPhaseBreakdownWithoutSubmitStage(t *testing.T) {
	f := newReportFixture()
	r := f.newReport()
	s := f.clock.Now()
	r.StartStage(Commit, s)
	r.SetSubPhaseBreakdown(SubPhaseBreakdown{ReceivedCompositorFrame: s.Add(time.Microsecond)})

	r.TerminateFrame(Presented, s.Add(2*time.Microsecond))

	f.hist.ExpectNoSamplesWithPrefix(t, StageBucket(Presented, SubmitCompositorFrameToPresentationCompositorFrame))
}

func TestFrameReport_MainThreadBreakdown(t *testing.T) {
	// GIVEN a frame that ran the main-frame stage and a main-thread breakdown
	f := newReportFixture()
	r := f.newReport()
	r.StartStage(SendBeginMainFrameToCommit, f.clock.Now())
	r.SetMainThreadBreakdown(MainThreadBreakdown{
		HandleInputEvents: 1 * time.Microsecond,
		Animate:           2 * time.Microsecond,
		Paint:             7 * time.Microsecond,
	})

	// WHEN presented
	r.TerminateFrame(Presented, f.clock.Advance(20*time.Microsecond))

	// THEN each of the nine phases is reported, zero durations included
	prefix := "CompositorLatency.SendBeginMainFrameToCommit."
	f.hist.ExpectUniqueSample(t, prefix+"HandleInputEvents", 1*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"Animate", 2*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"Paint", 7*time.Microsecond)
	f.hist.ExpectUniqueSample(t, prefix+"UpdateLayers", 0)
	for p := 0; p < NumMainThreadPhases; p++ {
		f.hist.ExpectTotalCount(t, MainThreadBucket(Presented, MainThreadPhase(p)), 1)
	}
}

func TestFrameReport_StagePredictorSmoothsAcrossFrames(t *testing.T) {
	// GIVEN a predictor seeded by a frame with 4µs stages
	f := newReportFixture()
	first := f.newReport()
	first.StartStage(Commit, f.clock.Now())
	first.TerminateFrame(Presented, f.clock.Advance(4*time.Microsecond))

	// WHEN a second frame spends 8µs in the same stage
	second := f.newReport()
	second.StartStage(Commit, f.clock.Now())
	second.TerminateFrame(Presented, f.clock.Advance(8*time.Microsecond))

	// THEN the slot moves a quarter of the way: (8 + 3*4) / 4 = 5
	assert.Equal(t, int64(5), f.stage.Stage(int(Commit)))
	assert.Equal(t, predict.Unset, f.stage.Stage(int(Activation)))
}

func TestFrameReport_DispatchPhasesAveragedAcrossEvents(t *testing.T) {
	// GIVEN two events: one with every dispatch stage, one missing the main thread
	f := newReportFixture()
	r := f.newReport()
	base := f.clock.Now()
	full := NewInputEvent(TouchMoved, base)
	partial := NewInputEvent(TouchMoved, base)
	offsetsFull := []time.Duration{0, 100, 300, 600, 1000, 1500}
	offsetsPartial := []time.Duration{0, 200, 500, 1000}
	for i, off := range offsetsFull {
		full.SetDispatchStageTimestamp(DispatchStage(i), base.Add(off*time.Microsecond))
	}
	for i, off := range offsetsPartial {
		partial.SetDispatchStageTimestamp(DispatchStage(i), base.Add(off*time.Microsecond))
	}
	r.AddEventsMetrics(full, partial)
	r.StartStage(Commit, base.Add(2*time.Millisecond))

	// WHEN presented
	r.TerminateFrame(Presented, base.Add(3*time.Millisecond))

	// THEN each phase is the floor average of the events that completed it
	assert.Equal(t, []predict.Sample{
		predict.Observed(150), predict.Observed(250), predict.Observed(400),
		predict.Observed(400), predict.Observed(500),
	}, r.DispatchSamples())
	assert.Equal(t, []int64{150, 250, 400, 400, 500, 1700}, f.dispatch.Snapshot())
}

func TestFrameReport_DispatchPredictorUntouchedWithoutApplicablePhases(t *testing.T) {
	f := newReportFixture()
	r := f.newReport()
	r.AddEventsMetrics(NewInputEvent(KeyPressed, f.clock.Now()))
	r.StartStage(Commit, f.clock.Advance(time.Microsecond))

	r.TerminateFrame(Presented, f.clock.Advance(time.Microsecond))

	assert.Equal(t, []int64{-1, -1, -1, -1, -1, 0}, f.dispatch.Snapshot())
}

func TestFrameReport_NilTrackersAreSkipped(t *testing.T) {
	clock := testutil.NewClock()
	r := NewFrameReport(uuid.Nil, Config{}, Trackers{})
	r.AddEventsMetrics(NewInputEvent(KeyPressed, clock.Now()))
	r.StartStage(Commit, clock.Advance(time.Microsecond))

	assert.NotPanics(t, func() { r.TerminateFrame(Presented, clock.Advance(time.Microsecond)) })
	assert.NotEqual(t, uuid.Nil, r.ID())
}

func TestFrameReport_NilPredictorPointersAreSkipped(t *testing.T) {
	// GIVEN trackers holding nil predictor pointers
	clock := testutil.NewClock()
	var stage *predict.StageLatencyPredictor
	var dispatch *predict.DispatchLatencyPredictor
	r := NewFrameReport(uuid.Nil, Config{}, Trackers{Stage: stage, Dispatch: dispatch})
	e := NewInputEvent(KeyPressed, clock.Now())
	e.SetDispatchStageTimestamp(ArrivedInRendererCompositor, clock.Advance(time.Microsecond))
	r.AddEventsMetrics(e)
	r.StartStage(Commit, clock.Advance(time.Microsecond))

	// WHEN the presented frame feeds its predictors
	// THEN nothing dereferences the nil pointers
	assert.NotPanics(t, func() { r.TerminateFrame(Presented, clock.Advance(time.Microsecond)) })
}

func TestFrameReport_MetricSinkFuncReceivesSamplesInOrder(t *testing.T) {
	// GIVEN a report whose sink is a plain function
	clock := testutil.NewClock()
	var buckets []string
	var samples []time.Duration
	sinkFn := MetricSinkFunc(func(bucket string, sample time.Duration) {
		buckets = append(buckets, bucket)
		samples = append(samples, sample)
	})
	r := NewFrameReport(uuid.Nil, Config{}, Trackers{Sink: sinkFn})

	// WHEN two stages run and the frame is dropped
	r.StartStage(BeginImplFrameToSendBeginMainFrame, clock.Now())
	r.StartStage(EndActivateToSubmitCompositorFrame, clock.Advance(2*time.Microsecond))
	r.TerminateFrame(DidNotPresent, clock.Advance(5*time.Microsecond))

	// THEN stage samples arrive in history order followed by the total
	assert.Equal(t, []string{
		"CompositorLatency.DroppedFrame.BeginImplFrameToSendBeginMainFrame",
		"CompositorLatency.DroppedFrame.EndActivateToSubmitCompositorFrame",
		"CompositorLatency.DroppedFrame.TotalLatency",
	}, buckets)
	assert.Equal(t, []time.Duration{2 * time.Microsecond, 5 * time.Microsecond, 7 * time.Microsecond}, samples)
}

func TestFrameReport_KeepsCallerID(t *testing.T) {
	id := uuid.MustParse("6f1c2f0e-93a4-4a8b-bd39-2c1d0b6f7e11")

	r := NewFrameReport(id, Config{}, Trackers{})

	assert.Equal(t, id, r.ID())
}

func TestFrameReport_SequencingViolationsPanic(t *testing.T) {
	clock := testutil.NewClock()
	terminated := func() *FrameReport {
		r := NewFrameReport(uuid.Nil, Config{}, Trackers{})
		r.StartStage(Commit, clock.Now())
		r.TerminateFrame(Presented, clock.Now())
		return r
	}
	tests := []struct {
		name string
		fn   func()
	}{
		{"start stage after termination", func() { terminated().StartStage(Activation, clock.Now()) }},
		{"terminate twice", func() { terminated().TerminateFrame(DidNotPresent, clock.Now()) }},
		{"add events after termination", func() { terminated().AddEventsMetrics(NewInputEvent(KeyPressed, clock.Now())) }},
		{"breakdown after termination", func() { terminated().SetSubPhaseBreakdown(SubPhaseBreakdown{}) }},
		{"main thread breakdown after termination", func() { terminated().SetMainThreadBreakdown(MainThreadBreakdown{}) }},
		{"terminate with NotTerminated", func() {
			NewFrameReport(uuid.Nil, Config{}, Trackers{}).TerminateFrame(NotTerminated, clock.Now())
		}},
		{"invalid stage", func() {
			NewFrameReport(uuid.Nil, Config{}, Trackers{}).StartStage(Stage(NumStages), clock.Now())
		}},
		{"stage closed before its start", func() {
			r := NewFrameReport(uuid.Nil, Config{}, Trackers{})
			r.StartStage(Commit, clock.Now())
			r.StartStage(Activation, clock.Now().Add(-time.Microsecond))
		}},
		{"start stage on destroyed report", func() {
			r := NewFrameReport(uuid.Nil, Config{}, Trackers{})
			r.Destroy()
			r.StartStage(Commit, clock.Now())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestFrameReport_CurrentStage(t *testing.T) {
	clock := testutil.NewClock()
	r := NewFrameReport(uuid.Nil, Config{}, Trackers{})

	_, open := r.CurrentStage()
	assert.False(t, open)

	r.StartStage(Activation, clock.Now())
	s, open := r.CurrentStage()
	assert.True(t, open)
	assert.Equal(t, Activation, s)

	r.TerminateFrame(DidNotPresent, clock.Advance(time.Microsecond))
	_, open = r.CurrentStage()
	assert.False(t, open)
}
