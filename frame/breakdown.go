package frame

import "time"

// SubPhaseBreakdown holds the display service's timestamps for the
// submit-to-presentation stage. Any field may be zero when not reported.
// A non-zero Presentation overrides the termination time as the frame's presented time.
type SubPhaseBreakdown struct {
	ReceivedCompositorFrame time.Time
	DrawStart               time.Time
	SwapStart               time.Time
	SwapEnd                 time.Time
	Presentation            time.Time
}

// SubPhase is one interval of the submit-to-presentation stage.
type SubPhase int

const (
	SubmitToReceiveCompositorFrame SubPhase = iota
	ReceivedCompositorFrameToStartDraw
	StartDrawToSwapStart
	SwapStartToSwapEnd
	SwapEndToPresentationCompositorFrame

	NumSubPhases = int(SwapEndToPresentationCompositorFrame) + 1
)

var subPhaseNames = [NumSubPhases]string{
	"SubmitToReceiveCompositorFrame",
	"ReceivedCompositorFrameToStartDraw",
	"StartDrawToSwapStart",
	"SwapStartToSwapEnd",
	"SwapEndToPresentationCompositorFrame",
}

func (p SubPhase) String() string {
	return subPhaseNames[p]
}

// durations splits the stage that started at submit into sub-phases. An entry is
// reported only when both of its end points are known and ordered.
func (b *SubPhaseBreakdown) durations(submit time.Time) [NumSubPhases]subPhaseSample {
	points := [NumSubPhases + 1]time.Time{
		submit, b.ReceivedCompositorFrame, b.DrawStart, b.SwapStart, b.SwapEnd, b.Presentation,
	}
	var out [NumSubPhases]subPhaseSample
	for i := 0; i < NumSubPhases; i++ {
		from, to := points[i], points[i+1]
		if from.IsZero() || to.IsZero() || to.Before(from) {
			continue
		}
		out[i] = subPhaseSample{d: to.Sub(from), ok: true}
	}
	return out
}

type subPhaseSample struct {
	d  time.Duration
	ok bool
}

// MainThreadBreakdown holds the main thread's time split for the
// begin-main-frame-to-commit stage.
type MainThreadBreakdown struct {
	HandleInputEvents time.Duration
	Animate           time.Duration
	StyleUpdate       time.Duration
	LayoutUpdate      time.Duration
	CompositingInputs time.Duration
	Prepaint          time.Duration
	Paint             time.Duration
	CompositeCommit   time.Duration
	UpdateLayers      time.Duration
}

// MainThreadPhase is one entry of a MainThreadBreakdown.
type MainThreadPhase int

const (
	HandleInputEvents MainThreadPhase = iota
	Animate
	StyleUpdate
	LayoutUpdate
	CompositingInputs
	Prepaint
	Paint
	CompositeCommit
	UpdateLayers

	NumMainThreadPhases = int(UpdateLayers) + 1
)

var mainThreadPhaseNames = [NumMainThreadPhases]string{
	"HandleInputEvents",
	"Animate",
	"StyleUpdate",
	"LayoutUpdate",
	"CompositingInputs",
	"Prepaint",
	"Paint",
	"CompositeCommit",
	"UpdateLayers",
}

func (p MainThreadPhase) String() string {
	return mainThreadPhaseNames[p]
}

func (b *MainThreadBreakdown) durations() [NumMainThreadPhases]time.Duration {
	return [NumMainThreadPhases]time.Duration{
		b.HandleInputEvents,
		b.Animate,
		b.StyleUpdate,
		b.LayoutUpdate,
		b.CompositingInputs,
		b.Prepaint,
		b.Paint,
		b.CompositeCommit,
		b.UpdateLayers,
	}
}
