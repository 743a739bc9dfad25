package frame

import (
	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
)

// MaxOwnedPartialUpdateDependents caps how many dependent reports a decider owns.
const MaxOwnedPartialUpdateDependents = 300

// handle is a non-owning reference to a FrameReport. Its target is cleared when the
// report is destroyed, so holders observe liveness without keeping the report alive.
type handle struct {
	target *FrameReport
}

func (h *handle) get() *FrameReport {
	if h == nil {
		return nil
	}
	return h.target
}

// DependentFrameRegistry tracks the reports that use one decider's partial update.
//
// all holds a weak handle per dependent in the order they declared the decider.
// owned holds the dependents the decider has adopted, in adoption order, and never
// grows beyond its capacity: adopting past the cap destroys the oldest owned report.
// Stale handles are pruned lazily and only from the front of all.
type DependentFrameRegistry struct {
	capacity int
	all      deque.Deque[*handle]
	owned    deque.Deque[*FrameReport]
}

func newDependentFrameRegistry(capacity int) *DependentFrameRegistry {
	return &DependentFrameRegistry{capacity: capacity}
}

// Register appends a weak reference to dependent.
func (q *DependentFrameRegistry) Register(dependent *FrameReport) {
	q.all.PushBack(dependent.self)
}

// Adopt takes ownership of dependent. If that puts the registry over capacity the
// oldest owned report is destroyed and returned, and the dead prefix of the weak
// queue is dropped.
func (q *DependentFrameRegistry) Adopt(dependent *FrameReport) (evicted *FrameReport) {
	q.owned.PushBack(dependent)
	if q.owned.Len() <= q.capacity {
		return nil
	}
	evicted = q.owned.PopFront()
	evicted.Destroy()
	pruned := 0
	for q.all.Len() > 0 && q.all.Front().get() == nil {
		q.all.PopFront()
		pruned++
	}
	logrus.Debugf("partial update: evicted dependent %s, pruned %d stale entries (all=%d owned=%d)",
		evicted.id, pruned, q.all.Len(), q.owned.Len())
	return evicted
}

// Len returns the number of entries in the weak queue, stale ones included.
func (q *DependentFrameRegistry) Len() int {
	return q.all.Len()
}

// OwnedLen returns the number of owned dependents.
func (q *DependentFrameRegistry) OwnedLen() int {
	return q.owned.Len()
}

// Dependents returns the live reports in the weak queue, in declaration order.
func (q *DependentFrameRegistry) Dependents() []*FrameReport {
	out := make([]*FrameReport, 0, q.all.Len())
	for i := 0; i < q.all.Len(); i++ {
		if r := q.all.At(i).get(); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// destroyOwned destroys every owned report and empties both queues.
func (q *DependentFrameRegistry) destroyOwned() {
	for q.owned.Len() > 0 {
		q.owned.PopFront().Destroy()
	}
	q.all.Clear()
}
