package sink

import (
	"sort"
	"sync"
	"time"
)

// MemorySink keeps every recorded sample, grouped by bucket. It is safe for
// concurrent use so a reporter can be read while frames are still being recorded.
type MemorySink struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
	total   int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{samples: make(map[string][]time.Duration)}
}

// Record appends sample to bucket.
func (m *MemorySink) Record(bucket string, sample time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[bucket] = append(m.samples[bucket], sample)
	m.total++
}

// Samples returns a copy of bucket's samples in recording order.
func (m *MemorySink) Samples(bucket string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.samples[bucket]
	out := make([]time.Duration, len(src))
	copy(out, src)
	return out
}

// Count returns the number of samples in bucket.
func (m *MemorySink) Count(bucket string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples[bucket])
}

// Total returns the number of samples across all buckets.
func (m *MemorySink) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Buckets returns the names of buckets with at least one sample, sorted.
func (m *MemorySink) Buckets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.samples))
	for b := range m.samples {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Summary returns bucket's distribution in microseconds.
func (m *MemorySink) Summary(bucket string) Distribution {
	samples := m.Samples(bucket)
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = float64(s.Microseconds())
	}
	return NewDistribution(values)
}

// Reset drops every sample.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = make(map[string][]time.Duration)
	m.total = 0
}
