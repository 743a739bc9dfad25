package sink

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// BucketLabel is the label (and OpenTelemetry attribute) carrying the bucket name.
const BucketLabel = "bucket"

// LatencyBuckets are the histogram bounds in microseconds: 100µs doubling up to ~3.3s.
var LatencyBuckets = prometheus.ExponentialBuckets(100, 2, 16)

// PrometheusSink exports samples as one histogram labelled by bucket name.
type PrometheusSink struct {
	latency *prometheus.HistogramVec
}

// NewPrometheusSink registers the latency histogram with reg. A nil reg leaves the
// histogram unregistered.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "framelat",
			Name:      "latency_microseconds",
			Help:      "Frame and input event latency by metric bucket",
			Buckets:   LatencyBuckets,
		}, []string{BucketLabel}),
	}
}

// Record observes sample in microseconds under bucket.
func (s *PrometheusSink) Record(bucket string, sample time.Duration) {
	s.latency.WithLabelValues(bucket).Observe(float64(sample.Microseconds()))
}

// WriteText writes every family gathered from g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
