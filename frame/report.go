package frame

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/framelat/frame/predict"
)

// Config tunes FrameReport behavior. The zero value uses the package defaults.
type Config struct {
	// MaxOwnedDependents caps owned partial-update dependents
	// (0 = MaxOwnedPartialUpdateDependents).
	MaxOwnedDependents int
}

func (c Config) ownedCapacity() int {
	if c.MaxOwnedDependents <= 0 {
		return MaxOwnedPartialUpdateDependents
	}
	return c.MaxOwnedDependents
}

// FrameReport follows one frame attempt through the pipeline.
//
// Lifecycle: Idle -> InProgress(stage) -> Terminated(status). StartStage closes the open
// stage and opens the next; TerminateFrame closes the last one, emits metrics to the
// sink and, for presented frames, feeds the stage and dispatch predictors.
//
// Sequencing violations (starting a stage or terminating after termination, a stage
// timestamp earlier than the open stage's start) panic. A FrameReport is not safe for
// concurrent use; every report, its dependents and the shared trackers must be driven
// from the same goroutine.
type FrameReport struct {
	id       uuid.UUID
	cfg      Config
	trackers Trackers

	history []StageInterval
	current StageInterval
	inStage bool

	status       TerminationStatus
	terminatedAt time.Time

	events     []*InputEvent
	subPhase   *SubPhaseBreakdown
	mainThread *MainThreadBreakdown

	self       *handle
	alive      bool
	decider    *handle
	owner      *FrameReport
	dependents *DependentFrameRegistry
}

// NewFrameReport starts tracking a frame attempt. A nil id is replaced by a random one.
func NewFrameReport(id uuid.UUID, cfg Config, trackers Trackers) *FrameReport {
	if id == uuid.Nil {
		id = uuid.New()
	}
	trackers = trackers.normalized()
	r := &FrameReport{
		id:         id,
		cfg:        cfg,
		trackers:   trackers,
		alive:      true,
		dependents: newDependentFrameRegistry(cfg.ownedCapacity()),
	}
	r.self = &handle{target: r}
	return r
}

// ID returns the report's identifier.
func (r *FrameReport) ID() uuid.UUID {
	return r.id
}

// Status returns the termination status, or NotTerminated while in flight.
func (r *FrameReport) Status() TerminationStatus {
	return r.status
}

// CurrentStage returns the open stage, if any.
func (r *FrameReport) CurrentStage() (Stage, bool) {
	return r.current.Stage, r.inStage
}

// StageHistory returns a copy of the closed stage intervals in recording order.
func (r *FrameReport) StageHistory() []StageInterval {
	out := make([]StageInterval, len(r.history))
	copy(out, r.history)
	return out
}

// StageHistorySize returns the number of closed stage intervals.
func (r *FrameReport) StageHistorySize() int {
	return len(r.history)
}

// Events returns the attached input events.
func (r *FrameReport) Events() []*InputEvent {
	return r.events
}

func (r *FrameReport) mustBeActive(op string) {
	if !r.alive {
		panic(fmt.Sprintf("frame %s: %s on a destroyed report", r.id, op))
	}
	if r.status != NotTerminated {
		panic(fmt.Sprintf("frame %s: %s after termination (%s)", r.id, op, r.status))
	}
}

// StartStage closes the open stage at t and opens stage at t.
func (r *FrameReport) StartStage(stage Stage, t time.Time) {
	r.mustBeActive("StartStage")
	if !stage.Valid() {
		panic(fmt.Sprintf("frame %s: StartStage with invalid %s", r.id, stage))
	}
	r.closeStage(t)
	r.current = StageInterval{Stage: stage, Start: t}
	r.inStage = true
}

func (r *FrameReport) closeStage(t time.Time) {
	if !r.inStage {
		return
	}
	if t.Before(r.current.Start) {
		panic(fmt.Sprintf("frame %s: stage %s closed at %v, before its start %v",
			r.id, r.current.Stage, t, r.current.Start))
	}
	r.current.End = t
	r.history = append(r.history, r.current)
	r.current = StageInterval{}
	r.inStage = false
}

// AddEventsMetrics attaches input events the frame responds to. The report takes
// ownership; callers must not modify the events afterwards.
func (r *FrameReport) AddEventsMetrics(events ...*InputEvent) {
	r.mustBeActive("AddEventsMetrics")
	for _, e := range events {
		if e != nil {
			r.events = append(r.events, e)
		}
	}
}

// SetSubPhaseBreakdown stores the display service's timestamps for this frame.
func (r *FrameReport) SetSubPhaseBreakdown(b SubPhaseBreakdown) {
	r.mustBeActive("SetSubPhaseBreakdown")
	r.subPhase = &b
}

// SetMainThreadBreakdown stores the main thread's time split for this frame.
func (r *FrameReport) SetMainThreadBreakdown(b MainThreadBreakdown) {
	r.mustBeActive("SetMainThreadBreakdown")
	r.mainThread = &b
}

// TerminateFrame closes the open stage at t and finalizes the frame with status.
func (r *FrameReport) TerminateFrame(status TerminationStatus, t time.Time) {
	r.mustBeActive("TerminateFrame")
	if status == NotTerminated {
		panic(fmt.Sprintf("frame %s: TerminateFrame with %s", r.id, status))
	}
	r.closeStage(t)
	r.status = status
	r.terminatedAt = t
	logrus.Debugf("frame %s terminated: %s, %d stages, %d events", r.id, status, len(r.history), len(r.events))

	r.reportCompositorLatency()
	if status != Presented {
		return
	}
	r.reportEventLatency()
	r.feedStagePredictor()
	r.feedDispatchPredictor()
}

// PresentationTime returns the time the frame reached the display: the sub-phase
// breakdown's presentation timestamp if known, else the termination time.
// The second result is false unless the frame was presented.
func (r *FrameReport) PresentationTime() (time.Time, bool) {
	if r.status != Presented {
		return time.Time{}, false
	}
	if r.subPhase != nil && !r.subPhase.Presentation.IsZero() {
		return r.subPhase.Presentation, true
	}
	return r.terminatedAt, true
}

// TotalLatency returns the time from the first stage's start to the frame's end
// (presentation for presented frames, termination otherwise). The second result is
// false for in-flight frames and frames that never started a stage.
func (r *FrameReport) TotalLatency() (time.Duration, bool) {
	if r.status == NotTerminated || len(r.history) == 0 {
		return 0, false
	}
	end := r.terminatedAt
	if p, ok := r.PresentationTime(); ok {
		end = p
	}
	total := end.Sub(r.history[0].Start)
	if total < 0 {
		logrus.Warnf("frame %s: presentation %v precedes first stage start %v, dropping total latency",
			r.id, end, r.history[0].Start)
		return 0, false
	}
	return total, true
}

func (r *FrameReport) reportCompositorLatency() {
	if _, ok := statusPrefix(r.status); !ok {
		return
	}
	sink := r.trackers.Sink
	for _, iv := range r.history {
		sink.Record(StageBucket(r.status, iv.Stage), iv.Duration())
	}
	if r.subPhase != nil {
		if iv, ok := r.firstInterval(SubmitCompositorFrameToPresentationCompositorFrame); ok {
			for i, s := range r.subPhase.durations(iv.Start) {
				if s.ok {
					sink.Record(SubPhaseBucket(r.status, SubPhase(i)), s.d)
				}
			}
		}
	}
	if r.mainThread != nil {
		if _, ok := r.firstInterval(SendBeginMainFrameToCommit); ok {
			for i, d := range r.mainThread.durations() {
				sink.Record(MainThreadBucket(r.status, MainThreadPhase(i)), d)
			}
		}
	}
	if total, ok := r.TotalLatency(); ok {
		sink.Record(TotalLatencyBucket(r.status), total)
	}
}

func (r *FrameReport) firstInterval(stage Stage) (StageInterval, bool) {
	for _, iv := range r.history {
		if iv.Stage == stage {
			return iv, true
		}
	}
	return StageInterval{}, false
}

func (r *FrameReport) reportEventLatency() {
	presented, _ := r.PresentationTime()
	for _, e := range r.events {
		generated, ok := e.GenerationTime()
		if !ok {
			continue
		}
		latency := presented.Sub(generated)
		if latency < 0 {
			logrus.Warnf("frame %s: %s event generated after presentation, dropping sample", r.id, e.Classification())
			continue
		}
		r.trackers.Sink.Record(EventBucket(e), latency)
		r.trackers.Sink.Record(EventTotalLatencyBucket, latency)
	}
}

func (r *FrameReport) feedStagePredictor() {
	p := r.trackers.Stage
	if p == nil {
		return
	}
	for _, iv := range r.history {
		p.Update(int(iv.Stage), iv.Duration().Microseconds())
	}
	if total, ok := r.TotalLatency(); ok {
		p.UpdateTotal(total.Microseconds())
	}
}

// DispatchSamples averages each dispatch phase across the attached events that reached
// both of its end points. Phases no event completed are not applicable.
func (r *FrameReport) DispatchSamples() []predict.Sample {
	var sums, counts [NumDispatchPhases]int64
	for _, e := range r.events {
		for i := 0; i < NumDispatchPhases; i++ {
			d, ok := e.PhaseDuration(i)
			if !ok {
				continue
			}
			if d < 0 {
				logrus.Warnf("frame %s: %s dispatch phase %d has negative duration %v, skipping",
					r.id, e.Classification(), i, d)
				continue
			}
			sums[i] += d.Microseconds()
			counts[i]++
		}
	}
	out := make([]predict.Sample, NumDispatchPhases)
	for i := range out {
		if counts[i] > 0 {
			out[i] = predict.Observed(sums[i] / counts[i])
		}
	}
	return out
}

func (r *FrameReport) feedDispatchPredictor() {
	p := r.trackers.Dispatch
	if p == nil || len(r.events) == 0 {
		return
	}
	samples := r.DispatchSamples()
	for _, s := range samples {
		if s.Applicable {
			p.Update(samples)
			return
		}
	}
}

// SetPartialUpdateDecider declares that this frame reuses decider's partial update.
// It registers a weak reference to this report with decider.
func (r *FrameReport) SetPartialUpdateDecider(decider *FrameReport) {
	if decider == nil || decider == r {
		panic(fmt.Sprintf("frame %s: invalid partial update decider", r.id))
	}
	if !r.alive || !decider.alive {
		panic(fmt.Sprintf("frame %s: SetPartialUpdateDecider with a destroyed report", r.id))
	}
	if r.decider.get() != nil {
		panic(fmt.Sprintf("frame %s: partial update decider already set", r.id))
	}
	r.decider = decider.self
	decider.dependents.Register(r)
}

// PartialUpdateDecider returns the decider, or nil if none was set or it was destroyed.
func (r *FrameReport) PartialUpdateDecider() *FrameReport {
	return r.decider.get()
}

// AdoptReporter transfers ownership of dependent, which must have declared r as its
// decider, to r. If r then owns more than its cap, the oldest owned dependent is
// destroyed and returned.
func (r *FrameReport) AdoptReporter(dependent *FrameReport) (evicted *FrameReport) {
	switch {
	case !r.alive:
		panic(fmt.Sprintf("frame %s: AdoptReporter on a destroyed report", r.id))
	case dependent == nil || dependent == r:
		panic(fmt.Sprintf("frame %s: invalid dependent for adoption", r.id))
	case !dependent.alive:
		panic(fmt.Sprintf("frame %s: adopting destroyed report %s", r.id, dependent.id))
	case dependent.owner != nil:
		panic(fmt.Sprintf("frame %s: report %s is already owned by %s", r.id, dependent.id, dependent.owner.id))
	case dependent.decider.get() != r:
		panic(fmt.Sprintf("frame %s: report %s did not declare it as decider", r.id, dependent.id))
	}
	dependent.owner = r
	return r.dependents.Adopt(dependent)
}

// PartialUpdateDependentsSize returns the size of the weak dependents queue,
// including entries not yet pruned.
func (r *FrameReport) PartialUpdateDependentsSize() int {
	return r.dependents.Len()
}

// OwnedPartialUpdateDependentsSize returns the number of owned dependents.
func (r *FrameReport) OwnedPartialUpdateDependentsSize() int {
	return r.dependents.OwnedLen()
}

// PartialUpdateDependents returns the live dependents in declaration order.
func (r *FrameReport) PartialUpdateDependents() []*FrameReport {
	return r.dependents.Dependents()
}

// IsAlive reports whether the report has not been destroyed.
func (r *FrameReport) IsAlive() bool {
	return r.alive
}

// Destroy releases the report and every dependent it owns. Weak references held by
// deciders observe the report as gone. Destroying twice is a no-op.
func (r *FrameReport) Destroy() {
	if !r.alive {
		return
	}
	r.alive = false
	r.self.target = nil
	r.dependents.destroyOwned()
	r.events = nil
}
