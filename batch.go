package docexport

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alnah/go-docexport/internal/metrics"
)

// Execution pairs a target with the function that builds it.
type Execution struct {
	Target ExportTarget
	Run    func(ctx context.Context) BuildResult
}

// BatchExecutor runs independent executions concurrently and settles all
// of them. One failing or panicking target never cancels the others.
type BatchExecutor struct {
	maxParallel int
	recorder    metrics.Recorder
	logger      *log.Logger
}

// NewBatchExecutor creates an executor. maxParallel <= 0 runs every target
// at once.
func NewBatchExecutor(maxParallel int, recorder metrics.Recorder, logger *log.Logger) *BatchExecutor {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &BatchExecutor{maxParallel: maxParallel, recorder: recorder, logger: logger}
}

// Execute runs every execution and returns one result per execution, in
// submission order.
func (b *BatchExecutor) Execute(ctx context.Context, execs []Execution) []BuildResult {
	var inFlight atomic.Int64
	fns := make([]func(context.Context) (BuildResult, error), len(execs))
	for i, ex := range execs {
		fns[i] = func(ctx context.Context) (BuildResult, error) {
			b.recorder.SetInFlightTargets(int(inFlight.Add(1)))
			defer func() { b.recorder.SetInFlightTargets(int(inFlight.Add(-1))) }()

			b.logger.Info("export started", "target", ex.Target.String(), "format", ex.Target.Format)
			r := ex.Run(ctx)
			r.Target = ex.Target
			return r, r.Err
		}
	}

	settled := SettleAll(ctx, b.maxParallel, fns)
	results := make([]BuildResult, len(execs))
	for i, s := range settled {
		r := s.Value
		r.Target = execs[i].Target
		if s.Err != nil && r.Err == nil {
			r.Err = s.Err
		}
		var pe *PanicError
		if errors.As(r.Err, &pe) {
			b.logger.Error("export panicked", "target", r.Target.String(), "panic", pe.Value, "stack", string(pe.Stack))
		}
		b.record(r)
		results[i] = r
	}
	return results
}

func (b *BatchExecutor) record(r BuildResult) {
	format := string(r.Target.Format)
	b.recorder.ObserveTargetDuration(format, r.Duration)
	b.recorder.IncTargetResult(format, metrics.Result(r.Err))
	if r.Err != nil {
		b.logger.Error("export failed", "target", r.Target.String(), "duration", r.Duration.Round(time.Millisecond), "err", r.Err)
		return
	}
	b.logger.Info("export done", "target", r.Target.String(), "duration", r.Duration.Round(time.Millisecond), "artifacts", len(r.Artifacts))
}

// Summary counts outcomes of a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures.
func Summarize(results []BuildResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Failures returns the failed results in order.
func Failures(results []BuildResult) []BuildResult {
	var out []BuildResult
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// AllSucceeded reports whether every result is a success. An empty batch
// succeeds.
func AllSucceeded(results []BuildResult) bool {
	return Summarize(results).Failed == 0
}
