package metrics

import "time"

// ResultLabel enumerates target and asset result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailure ResultLabel = "failure"
)

// Recorder defines observability hooks for exports.
type Recorder interface {
	ObserveTargetDuration(format string, d time.Duration)
	IncTargetResult(format string, result ResultLabel)
	ObserveStageDuration(stage string, d time.Duration)
	IncAssetResult(success bool)
	SetInFlightTargets(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTargetDuration(string, time.Duration) {}
func (NoopRecorder) IncTargetResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)  {}
func (NoopRecorder) IncAssetResult(bool)                         {}
func (NoopRecorder) SetInFlightTargets(int)                      {}

// Result converts an error into a result label.
func Result(err error) ResultLabel {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
