package frame

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareReport() *FrameReport {
	return NewFrameReport(uuid.Nil, Config{}, Trackers{})
}

func assertQueueSizes(t *testing.T, decider *FrameReport, all, owned int) {
	t.Helper()
	assert.Equal(t, all, decider.PartialUpdateDependentsSize(), "all dependents")
	assert.Equal(t, owned, decider.OwnedPartialUpdateDependentsSize(), "owned dependents")
}

func TestPartialUpdateDependentQueues_CapAndLazyPruning(t *testing.T) {
	decider := newBareReport()
	deps := []*FrameReport{newBareReport(), newBareReport(), newBareReport()}

	// GIVEN deps[0] declared and adopted at once
	deps[0].SetPartialUpdateDecider(decider)
	decider.AdoptReporter(deps[0])
	assertQueueSizes(t, decider, 1, 1)

	// AND deps[1] declared but not adopted yet
	deps[1].SetPartialUpdateDecider(decider)
	assertQueueSizes(t, decider, 2, 1)

	// AND deps[2] declared and adopted before deps[1]
	deps[2].SetPartialUpdateDecider(decider)
	decider.AdoptReporter(deps[2])
	assertQueueSizes(t, decider, 3, 2)
	decider.AdoptReporter(deps[1])
	assertQueueSizes(t, decider, 3, 3)

	// AND the queues filled to the cap:
	//   all:   [0, 1, 2, 3, ..., n-1]
	//   owned: [0, 2, 1, 3, ..., n-1]
	for decider.OwnedPartialUpdateDependentsSize() < MaxOwnedPartialUpdateDependents {
		d := newBareReport()
		d.SetPartialUpdateDecider(decider)
		require.Nil(t, decider.AdoptReporter(d))
	}
	assertQueueSizes(t, decider, MaxOwnedPartialUpdateDependents, MaxOwnedPartialUpdateDependents)

	adoptNew := func() *FrameReport {
		d := newBareReport()
		d.SetPartialUpdateDecider(decider)
		return decider.AdoptReporter(d)
	}

	// WHEN one more is adopted
	// THEN deps[0] is evicted from owned and, being at the front of all, pruned from it
	evicted := adoptNew()
	assert.Same(t, deps[0], evicted)
	assert.False(t, deps[0].IsAlive())
	assertQueueSizes(t, decider, MaxOwnedPartialUpdateDependents, MaxOwnedPartialUpdateDependents)

	// WHEN another is adopted
	// THEN deps[2] is evicted but stays in all behind the live deps[1]
	evicted = adoptNew()
	assert.Same(t, deps[2], evicted)
	assert.False(t, deps[2].IsAlive())
	assertQueueSizes(t, decider, MaxOwnedPartialUpdateDependents+1, MaxOwnedPartialUpdateDependents)

	// WHEN a third is adopted
	// THEN deps[1] is evicted and the stale deps[2] entry behind it is pruned too
	evicted = adoptNew()
	assert.Same(t, deps[1], evicted)
	assertQueueSizes(t, decider, MaxOwnedPartialUpdateDependents, MaxOwnedPartialUpdateDependents)
	assert.True(t, decider.IsAlive())
}

func TestPartialUpdateDependents_OneOverCapEvictsOldest(t *testing.T) {
	// GIVEN a decider that adopted exactly the cap of dependents
	decider := newBareReport()
	var deps []*FrameReport
	for i := 0; i < MaxOwnedPartialUpdateDependents+1; i++ {
		d := newBareReport()
		d.SetPartialUpdateDecider(decider)
		deps = append(deps, d)
	}
	for _, d := range deps[:MaxOwnedPartialUpdateDependents] {
		decider.AdoptReporter(d)
	}

	// WHEN the 301st is adopted
	evicted := decider.AdoptReporter(deps[MaxOwnedPartialUpdateDependents])

	// THEN the first is destroyed and the queues stay at the cap
	assert.Same(t, deps[0], evicted)
	assert.False(t, deps[0].IsAlive())
	assertQueueSizes(t, decider, MaxOwnedPartialUpdateDependents, MaxOwnedPartialUpdateDependents)
	live := decider.PartialUpdateDependents()
	require.Len(t, live, MaxOwnedPartialUpdateDependents)
	assert.Same(t, deps[1], live[0])
}

func TestPartialUpdateDependents_ConfiguredCap(t *testing.T) {
	// GIVEN a decider capped at two owned dependents
	decider := NewFrameReport(uuid.Nil, Config{MaxOwnedDependents: 2}, Trackers{})
	var deps []*FrameReport
	for i := 0; i < 3; i++ {
		d := newBareReport()
		d.SetPartialUpdateDecider(decider)
		deps = append(deps, d)
	}

	// WHEN three are adopted
	assert.Nil(t, decider.AdoptReporter(deps[0]))
	assert.Nil(t, decider.AdoptReporter(deps[1]))
	evicted := decider.AdoptReporter(deps[2])

	// THEN the oldest is evicted
	assert.Same(t, deps[0], evicted)
	assertQueueSizes(t, decider, 2, 2)
}

func TestPartialUpdateDependents_DeclaredOnlyStaysAlive(t *testing.T) {
	// GIVEN a dependent that declared a decider but was never adopted
	decider := newBareReport()
	d := newBareReport()
	d.SetPartialUpdateDecider(decider)
	require.Same(t, decider, d.PartialUpdateDecider())

	// WHEN the decider is destroyed
	decider.Destroy()

	// THEN the dependent survives and observes its decider as gone
	assert.True(t, d.IsAlive())
	assert.Nil(t, d.PartialUpdateDecider())
}

func TestFrameReport_DestroyCascadesToOwnedDependents(t *testing.T) {
	// GIVEN a chain a -> b -> c where each decider owns the next
	a, b, c := newBareReport(), newBareReport(), newBareReport()
	b.SetPartialUpdateDecider(a)
	a.AdoptReporter(b)
	c.SetPartialUpdateDecider(b)
	b.AdoptReporter(c)

	// WHEN the head is destroyed
	a.Destroy()

	// THEN every owned report goes with it
	assert.False(t, a.IsAlive())
	assert.False(t, b.IsAlive())
	assert.False(t, c.IsAlive())
	assertQueueSizes(t, a, 0, 0)

	// AND destroying again is a no-op
	assert.NotPanics(t, a.Destroy)
}

func TestFrameReport_DestroyedDependentIsSkippedInListing(t *testing.T) {
	decider := newBareReport()
	d1, d2 := newBareReport(), newBareReport()
	d1.SetPartialUpdateDecider(decider)
	d2.SetPartialUpdateDecider(decider)

	d1.Destroy()

	assert.Equal(t, []*FrameReport{d2}, decider.PartialUpdateDependents())
	assert.Equal(t, 2, decider.PartialUpdateDependentsSize())
}

func TestFrameReport_PartialUpdateMisusePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"decider is self", func() {
			r := newBareReport()
			r.SetPartialUpdateDecider(r)
		}},
		{"nil decider", func() { newBareReport().SetPartialUpdateDecider(nil) }},
		{"decider set twice", func() {
			r := newBareReport()
			r.SetPartialUpdateDecider(newBareReport())
			r.SetPartialUpdateDecider(newBareReport())
		}},
		{"destroyed decider", func() {
			decider := newBareReport()
			decider.Destroy()
			newBareReport().SetPartialUpdateDecider(decider)
		}},
		{"adopt undeclared dependent", func() { newBareReport().AdoptReporter(newBareReport()) }},
		{"adopt self", func() {
			r := newBareReport()
			r.AdoptReporter(r)
		}},
		{"adopt destroyed dependent", func() {
			decider, d := newBareReport(), newBareReport()
			d.SetPartialUpdateDecider(decider)
			d.Destroy()
			decider.AdoptReporter(d)
		}},
		{"adopt twice", func() {
			decider, d := newBareReport(), newBareReport()
			d.SetPartialUpdateDecider(decider)
			decider.AdoptReporter(d)
			decider.AdoptReporter(d)
		}},
		{"adopt by destroyed decider", func() {
			decider, d := newBareReport(), newBareReport()
			d.SetPartialUpdateDecider(decider)
			decider.Destroy()
			decider.AdoptReporter(d)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}
