package queue

import "time"

// Recorder observes queue activity, typically to export metrics.
type Recorder interface {
	RecordEnqueued(owner string, depth int)
	RecordRejected(owner string)
	RecordStarted(owner string)
	RecordCompleted(owner string, duration time.Duration, success, drained bool)
}

// NopRecorder drops everything.
type NopRecorder struct{}

func (NopRecorder) RecordEnqueued(string, int)                        {}
func (NopRecorder) RecordRejected(string)                             {}
func (NopRecorder) RecordStarted(string)                              {}
func (NopRecorder) RecordCompleted(string, time.Duration, bool, bool) {}
