package frame

import (
	"fmt"
	"time"
)

// EventType classifies an input event.
type EventType int

const (
	MousePressed EventType = iota
	MouseReleased
	MouseWheel
	KeyPressed
	KeyReleased
	TouchPressed
	TouchMoved
	TouchReleased
	GestureScrollBegin
	GestureScrollUpdate
	GestureScrollEnd
	GesturePinchBegin
	GesturePinchUpdate
	GesturePinchEnd
	GestureTap

	numEventTypes = int(GestureTap) + 1
)

var eventTypeNames = [numEventTypes]string{
	"MousePressed",
	"MouseReleased",
	"MouseWheel",
	"KeyPressed",
	"KeyReleased",
	"TouchPressed",
	"TouchMoved",
	"TouchReleased",
	"GestureScrollBegin",
	"GestureScrollUpdate",
	"GestureScrollEnd",
	"GesturePinchBegin",
	"GesturePinchUpdate",
	"GesturePinchEnd",
	"GestureTap",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= numEventTypes {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

// IsScroll reports whether t is a scroll gesture.
func (t EventType) IsScroll() bool {
	return t == GestureScrollBegin || t == GestureScrollUpdate || t == GestureScrollEnd
}

// IsPinch reports whether t is a pinch gesture.
func (t EventType) IsPinch() bool {
	return t == GesturePinchBegin || t == GesturePinchUpdate || t == GesturePinchEnd
}

// ScrollInputType is the device that produced a scroll or pinch gesture.
type ScrollInputType int

const (
	Touchscreen ScrollInputType = iota
	Wheel
	Autoscroll
	Scrollbar
)

func (s ScrollInputType) String() string {
	switch s {
	case Touchscreen:
		return "Touchscreen"
	case Wheel:
		return "Wheel"
	case Autoscroll:
		return "Autoscroll"
	case Scrollbar:
		return "Scrollbar"
	default:
		return fmt.Sprintf("ScrollInputType(%d)", int(s))
	}
}

// pinchName names the device for pinch gestures; a wheel-driven pinch comes from a touchpad.
func (s ScrollInputType) pinchName() string {
	if s == Wheel {
		return "Touchpad"
	}
	return s.String()
}

// ScrollUpdateType distinguishes the first update of a scroll from the rest.
type ScrollUpdateType int

const (
	ScrollUpdateStarted ScrollUpdateType = iota
	ScrollUpdateContinued
)

// DispatchStage is a point on an input event's way to the compositor.
type DispatchStage int

const (
	Generated DispatchStage = iota
	ArrivedInRendererCompositor
	RendererCompositorStarted
	RendererCompositorFinished
	RendererMainStarted
	RendererMainFinished

	NumDispatchStages = int(RendererMainFinished) + 1

	// NumDispatchPhases is the number of intervals between consecutive dispatch stages.
	NumDispatchPhases = NumDispatchStages - 1
)

var dispatchStageNames = [NumDispatchStages]string{
	"Generated",
	"ArrivedInRendererCompositor",
	"RendererCompositorStarted",
	"RendererCompositorFinished",
	"RendererMainStarted",
	"RendererMainFinished",
}

func (d DispatchStage) String() string {
	if d < 0 || int(d) >= NumDispatchStages {
		return fmt.Sprintf("DispatchStage(%d)", int(d))
	}
	return dispatchStageNames[d]
}

// InputEvent is an input event a frame responds to. It is built by the event
// producer; once attached to a FrameReport the report treats it as read-only.
type InputEvent struct {
	Type         EventType
	ScrollInput  ScrollInputType
	ScrollUpdate ScrollUpdateType
	Inertial     bool

	// Timestamps holds one entry per DispatchStage; a zero time means the stage was
	// never reached. Timestamps[Generated] is the event's generation time.
	Timestamps [NumDispatchStages]time.Time
}

// NewInputEvent creates a plain event generated at generated.
func NewInputEvent(t EventType, generated time.Time) *InputEvent {
	e := &InputEvent{Type: t}
	e.Timestamps[Generated] = generated
	return e
}

// NewScrollEvent creates a scroll begin or end event. Panics for other types.
func NewScrollEvent(t EventType, input ScrollInputType, inertial bool, generated time.Time) *InputEvent {
	if t != GestureScrollBegin && t != GestureScrollEnd {
		panic(fmt.Sprintf("frame: NewScrollEvent called with %s", t))
	}
	e := NewInputEvent(t, generated)
	e.ScrollInput = input
	e.Inertial = inertial
	return e
}

// NewScrollUpdateEvent creates a scroll update event.
func NewScrollUpdateEvent(input ScrollInputType, inertial bool, update ScrollUpdateType, generated time.Time) *InputEvent {
	e := NewInputEvent(GestureScrollUpdate, generated)
	e.ScrollInput = input
	e.Inertial = inertial
	e.ScrollUpdate = update
	return e
}

// NewPinchEvent creates a pinch event from a touchscreen or a touchpad (Wheel).
// Panics for non-pinch types and other input devices.
func NewPinchEvent(t EventType, input ScrollInputType, generated time.Time) *InputEvent {
	if !t.IsPinch() {
		panic(fmt.Sprintf("frame: NewPinchEvent called with %s", t))
	}
	if input != Touchscreen && input != Wheel {
		panic(fmt.Sprintf("frame: NewPinchEvent called with %s input", input))
	}
	e := NewInputEvent(t, generated)
	e.ScrollInput = input
	return e
}

// SetDispatchStageTimestamp records when the event reached stage.
func (e *InputEvent) SetDispatchStageTimestamp(stage DispatchStage, t time.Time) {
	e.Timestamps[stage] = t
}

// DispatchStageTimestamp returns when the event reached stage (zero if never).
func (e *InputEvent) DispatchStageTimestamp(stage DispatchStage) time.Time {
	return e.Timestamps[stage]
}

// GenerationTime returns the event's generation time, if known.
func (e *InputEvent) GenerationTime() (time.Time, bool) {
	t := e.Timestamps[Generated]
	return t, !t.IsZero()
}

// PhaseDuration returns the time between dispatch stage i and i+1. The second result
// is false when either end point is missing.
func (e *InputEvent) PhaseDuration(i int) (time.Duration, bool) {
	if i < 0 || i >= NumDispatchPhases {
		return 0, false
	}
	from, to := e.Timestamps[i], e.Timestamps[i+1]
	if from.IsZero() || to.IsZero() {
		return 0, false
	}
	return to.Sub(from), true
}

// Classification returns the name of the event's latency bucket, e.g.
// "TouchMoved", "GestureScrollBegin.Wheel", "InertialGestureScrollUpdate.Touchscreen"
// or "GesturePinchUpdate.Touchpad".
func (e *InputEvent) Classification() string {
	switch {
	case e.Type == GestureScrollUpdate:
		name := "GestureScrollUpdate"
		if e.ScrollUpdate == ScrollUpdateStarted {
			name = "FirstGestureScrollUpdate"
		} else if e.Inertial {
			name = "InertialGestureScrollUpdate"
		}
		return name + "." + e.ScrollInput.String()
	case e.Type.IsScroll():
		return e.Type.String() + "." + e.ScrollInput.String()
	case e.Type.IsPinch():
		return e.Type.String() + "." + e.ScrollInput.pinchName()
	default:
		return e.Type.String()
	}
}
