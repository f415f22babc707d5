package metrics

import "time"

// ResultLabel enumerates dispatch result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for publish runs.
type Recorder interface {
	// IncDispatch counts one remote call by action (create|update) and result.
	IncDispatch(action string, result ResultLabel)
	// IncRunOutcome counts finished runs by outcome.
	IncRunOutcome(outcome string)
	// ObserveRunDuration records the wall time of a run.
	ObserveRunDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncDispatch(string, ResultLabel)  {}
func (NoopRecorder) IncRunOutcome(string)             {}
func (NoopRecorder) ObserveRunDuration(time.Duration) {}
