package sink

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LogSink writes each sample to the package logger at debug level.
type LogSink struct{}

// Record logs sample under bucket.
func (LogSink) Record(bucket string, sample time.Duration) {
	logrus.Debugf("latency %s = %dus", bucket, sample.Microseconds())
}

// Tee returns a Recorder that forwards every sample to each of sinks in order.
// Nil sinks are skipped.
func Tee(sinks ...Recorder) Recorder {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Recorder

func (t tee) Record(bucket string, sample time.Duration) {
	for _, s := range t {
		s.Record(bucket, sample)
	}
}
