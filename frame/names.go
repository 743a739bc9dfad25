package frame

import "sort"

// Bucket name fragments.
const (
	CompositorLatencyPrefix = "CompositorLatency"
	DroppedFramePrefix      = CompositorLatencyPrefix + ".DroppedFrame"
	EventLatencyPrefix      = "EventLatency"
	TotalLatencySuffix      = "TotalLatency"

	// EventTotalLatencyBucket receives every attributed event latency.
	EventTotalLatencyBucket = EventLatencyPrefix + "." + TotalLatencySuffix
)

// statusPrefix returns the bucket prefix for frames with status s. Superseded and
// in-flight frames report nothing.
func statusPrefix(s TerminationStatus) (string, bool) {
	switch s {
	case Presented:
		return CompositorLatencyPrefix, true
	case DidNotPresent:
		return DroppedFramePrefix, true
	default:
		return "", false
	}
}

// StageBucket names the bucket for stage under status, or "" if status reports nothing.
func StageBucket(status TerminationStatus, stage Stage) string {
	prefix, ok := statusPrefix(status)
	if !ok {
		return ""
	}
	return prefix + "." + stage.String()
}

// TotalLatencyBucket names the total frame latency bucket under status.
func TotalLatencyBucket(status TerminationStatus) string {
	prefix, ok := statusPrefix(status)
	if !ok {
		return ""
	}
	return prefix + "." + TotalLatencySuffix
}

// SubPhaseBucket names a submit-to-presentation sub-phase bucket under status.
func SubPhaseBucket(status TerminationStatus, p SubPhase) string {
	stage := StageBucket(status, SubmitCompositorFrameToPresentationCompositorFrame)
	if stage == "" {
		return ""
	}
	return stage + "." + p.String()
}

// MainThreadBucket names a main-thread breakdown bucket under status.
func MainThreadBucket(status TerminationStatus, p MainThreadPhase) string {
	stage := StageBucket(status, SendBeginMainFrameToCommit)
	if stage == "" {
		return ""
	}
	return stage + "." + p.String()
}

// EventBucket names the per-classification latency bucket for e.
func EventBucket(e *InputEvent) string {
	return EventLatencyPrefix + "." + e.Classification() + "." + TotalLatencySuffix
}

// BucketNames lists, sorted, every bucket a FrameReport can emit into.
func BucketNames() []string {
	var names []string
	for _, status := range []TerminationStatus{Presented, DidNotPresent} {
		for _, stage := range Stages() {
			names = append(names, StageBucket(status, stage))
		}
		for p := 0; p < NumSubPhases; p++ {
			names = append(names, SubPhaseBucket(status, SubPhase(p)))
		}
		for p := 0; p < NumMainThreadPhases; p++ {
			names = append(names, MainThreadBucket(status, MainThreadPhase(p)))
		}
		names = append(names, TotalLatencyBucket(status))
	}
	names = append(names, EventTotalLatencyBucket)
	for _, class := range eventClassifications() {
		names = append(names, EventLatencyPrefix+"."+class+"."+TotalLatencySuffix)
	}
	sort.Strings(names)
	return names
}

func eventClassifications() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(e *InputEvent) {
		c := e.Classification()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	inputs := []ScrollInputType{Touchscreen, Wheel, Autoscroll, Scrollbar}
	for t := 0; t < numEventTypes; t++ {
		et := EventType(t)
		switch {
		case et == GestureScrollUpdate:
			for _, in := range inputs {
				add(&InputEvent{Type: et, ScrollInput: in, ScrollUpdate: ScrollUpdateStarted})
				add(&InputEvent{Type: et, ScrollInput: in, ScrollUpdate: ScrollUpdateContinued})
				add(&InputEvent{Type: et, ScrollInput: in, ScrollUpdate: ScrollUpdateContinued, Inertial: true})
			}
		case et.IsScroll():
			for _, in := range inputs {
				add(&InputEvent{Type: et, ScrollInput: in})
			}
		case et.IsPinch():
			for _, in := range []ScrollInputType{Touchscreen, Wheel} {
				add(&InputEvent{Type: et, ScrollInput: in})
			}
		default:
			add(&InputEvent{Type: et})
		}
	}
	return out
}
