// Package sink provides MetricSink implementations for frame latency samples.
//
// Every sink takes a bucket name and a duration and records the duration in
// microseconds. MemorySink keeps raw samples for tests and summaries; PrometheusSink
// and OTelSink export them as histograms; LogSink writes them to the logger; Tee
// fans out to several sinks.
package sink

import "time"

// Recorder is the sample-recording contract shared by every sink. It matches
// frame.MetricSink.
type Recorder interface {
	Record(bucket string, sample time.Duration)
}
