package docexport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alnah/go-docexport/internal/metrics"
)

// Phase is the coarse state of a pipeline run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PipelineState is Idle, Running(Stage), Done, or Failed(Stage, Err).
type PipelineState struct {
	Phase Phase
	Stage int // index of the running or failed stage
	Err   error
}

// Pipeline runs its stages in order, stopping at the first failure.
// A Pipeline drives one execution; build a new one per target.
type Pipeline struct {
	stages   []Stage
	recorder metrics.Recorder

	mu    sync.Mutex
	state PipelineState
}

// ErrPipelineUsed reports a second Run on the same pipeline.
var ErrPipelineUsed = errors.New("pipeline already ran")

// NewPipeline creates an idle pipeline over stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, recorder: metrics.NoopRecorder{}}
}

// WithRecorder sets the metrics recorder for stage durations.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

// Stages returns the stage sequence.
func (p *Pipeline) Stages() []Stage { return p.stages }

// State returns a snapshot of the state machine.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) set(s PipelineState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run feeds src through every stage. Each stage gets the previous output.
// Failures are returned as *StageExecutionError; no later stage runs.
func (p *Pipeline) Run(ctx context.Context, sc *StageContext, src Artifact) (Artifact, error) {
	p.mu.Lock()
	if p.state.Phase != PhaseIdle {
		p.mu.Unlock()
		return Artifact{}, ErrPipelineUsed
	}
	p.state = PipelineState{Phase: PhaseRunning}
	p.mu.Unlock()

	logger := sc.logger()
	current := src
	for i, stage := range p.stages {
		p.set(PipelineState{Phase: PhaseRunning, Stage: i})

		if err := ctx.Err(); err != nil {
			return Artifact{}, p.fail(i, &StageExecutionError{Stage: stage.Name(), Err: err})
		}
		if current.Kind != "" && stage.Input() != "" && current.Kind != stage.Input() {
			err := fmt.Errorf("stage expects %s input, got %s", stage.Input(), current.Kind)
			return Artifact{}, p.fail(i, &StageExecutionError{Stage: stage.Name(), Err: err})
		}

		logger.Debug("stage started", "target", sc.Target.String(), "stage", stage.Name())
		start := time.Now()
		out, err := stage.Run(ctx, sc, current)
		elapsed := time.Since(start)
		p.recorder.ObserveStageDuration(stage.Name(), elapsed)

		if err != nil {
			var se *StageExecutionError
			if !errors.As(err, &se) {
				err = &StageExecutionError{Stage: stage.Name(), Err: err}
			}
			logger.Debug("stage failed", "target", sc.Target.String(), "stage", stage.Name(), "duration", elapsed, "err", err)
			return Artifact{}, p.fail(i, err)
		}
		if out.Kind == "" {
			out.Kind = stage.Output()
		}
		logger.Debug("stage done", "target", sc.Target.String(), "stage", stage.Name(), "duration", elapsed, "path", out.Path)
		current = out
	}

	p.set(PipelineState{Phase: PhaseDone, Stage: len(p.stages)})
	return current, nil
}

func (p *Pipeline) fail(i int, err error) error {
	p.set(PipelineState{Phase: PhaseFailed, Stage: i, Err: err})
	return err
}
