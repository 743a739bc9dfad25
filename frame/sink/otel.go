package sink

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelInstrumentName is the name of the OpenTelemetry latency histogram.
const OTelInstrumentName = "framelat.latency"

// OTelSink exports samples as an OpenTelemetry Int64Histogram in microseconds with
// the bucket name as an attribute.
type OTelSink struct {
	latency metric.Int64Histogram
}

// NewOTelSink creates the latency histogram on meter.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	h, err := meter.Int64Histogram(
		OTelInstrumentName,
		metric.WithDescription("Frame and input event latency by metric bucket"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", OTelInstrumentName, err)
	}
	return &OTelSink{latency: h}, nil
}

// Record observes sample in microseconds under bucket.
func (s *OTelSink) Record(bucket string, sample time.Duration) {
	s.latency.Record(context.Background(), sample.Microseconds(),
		metric.WithAttributes(attribute.String(BucketLabel, bucket)))
}
