package frame

import (
	"fmt"
	"time"
)

// Stage is one phase of a frame's trip through the compositing pipeline.
type Stage int

const (
	BeginImplFrameToSendBeginMainFrame Stage = iota
	SendBeginMainFrameToCommit
	Commit
	EndCommitToActivation
	Activation
	EndActivateToSubmitCompositorFrame
	SubmitCompositorFrameToPresentationCompositorFrame

	// NumStages is the number of pipeline stages.
	NumStages = int(SubmitCompositorFrameToPresentationCompositorFrame) + 1
)

var stageNames = [NumStages]string{
	"BeginImplFrameToSendBeginMainFrame",
	"SendBeginMainFrameToCommit",
	"Commit",
	"EndCommitToActivation",
	"Activation",
	"EndActivateToSubmitCompositorFrame",
	"SubmitCompositorFrameToPresentationCompositorFrame",
}

// Valid reports whether s names a pipeline stage.
func (s Stage) Valid() bool {
	return s >= 0 && int(s) < NumStages
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	out := make([]Stage, NumStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// StageInterval is one recorded stage. End is zero while the stage is open.
type StageInterval struct {
	Stage Stage
	Start time.Time
	End   time.Time
}

// Duration returns End - Start for a closed interval.
func (iv StageInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// TerminationStatus is the final outcome of a frame attempt.
type TerminationStatus int

const (
	// NotTerminated is the status of a frame that is still in flight.
	NotTerminated TerminationStatus = iota
	// Presented frames reached the display.
	Presented
	// DidNotPresent frames were processed but never displayed.
	DidNotPresent
	// Superseded frames were replaced by a newer attempt before submission.
	Superseded
)

func (s TerminationStatus) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case Presented:
		return "Presented"
	case DidNotPresent:
		return "DidNotPresent"
	case Superseded:
		return "Superseded"
	default:
		return fmt.Sprintf("TerminationStatus(%d)", int(s))
	}
}
