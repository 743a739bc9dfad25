// Package testutil provides shared test infrastructure for the frame packages:
// a histogram tester over sink.MemorySink and a manually advanced clock.
package testutil

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/inference-sim/framelat/frame/sink"
)

// HistogramTester records samples and asserts on what each bucket received.
// It implements frame.MetricSink.
type HistogramTester struct {
	*sink.MemorySink
}

// NewHistogramTester returns an empty tester.
func NewHistogramTester() *HistogramTester {
	return &HistogramTester{MemorySink: sink.NewMemorySink()}
}

// ExpectTotalCount fails t unless bucket received exactly n samples.
func (h *HistogramTester) ExpectTotalCount(t *testing.T, bucket string, n int) {
	t.Helper()
	if got := h.Count(bucket); got != n {
		t.Errorf("%s: got %d samples, want %d (samples=%v)", bucket, got, n, h.Samples(bucket))
	}
}

// ExpectUniqueSample fails t unless bucket received exactly one sample equal to want.
func (h *HistogramTester) ExpectUniqueSample(t *testing.T, bucket string, want time.Duration) {
	t.Helper()
	got := h.Samples(bucket)
	if len(got) != 1 || got[0] != want {
		t.Errorf("%s: got samples %v, want exactly [%v]", bucket, got, want)
	}
}

// ExpectBucketCount fails t unless bucket received sample exactly n times.
func (h *HistogramTester) ExpectBucketCount(t *testing.T, bucket string, sample time.Duration, n int) {
	t.Helper()
	count := 0
	for _, s := range h.Samples(bucket) {
		if s == sample {
			count++
		}
	}
	if count != n {
		t.Errorf("%s: got %d samples of %v, want %d (samples=%v)", bucket, count, sample, n, h.Samples(bucket))
	}
}

// ExpectNoSamplesWithPrefix fails t if any bucket starting with prefix received samples.
func (h *HistogramTester) ExpectNoSamplesWithPrefix(t *testing.T, prefix string) {
	t.Helper()
	for _, b := range h.Buckets() {
		if strings.HasPrefix(b, prefix) {
			t.Errorf("unexpected samples in %s: %v", b, h.Samples(b))
		}
	}
}

// Clock is a manually advanced time source starting at a fixed instant.
type Clock struct {
	now time.Time
}

// NewClock returns a clock set to a fixed, non-zero instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
