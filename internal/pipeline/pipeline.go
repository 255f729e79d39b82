package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/ndireport/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run state
// accumulated by previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the run to modify.
	Do(ctx context.Context, run *model.ExportRun) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// onStep is called with the step name before each step runs.
	onStep func(name string)
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStepHook sets a function called with the step name before each step.
// The CLI uses it to print progress.
func WithStepHook(fn func(name string)) Option {
	return func(p *Pipeline) {
		p.onStep = fn
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// The context is checked before each step; steps handle their own
// timeouts while they run.
//
// Execute returns the first error encountered, which is also recorded in
// run.Error. When a step sets run.NoData the remaining steps are skipped
// and Execute returns nil.
func (p *Pipeline) Execute(ctx context.Context, run *model.ExportRun) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.Error = ctx.Err()
			return ctx.Err()
		default:
		}

		if p.onStep != nil {
			p.onStep(step.Name())
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"site", run.SiteName,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", run.SiteName,
				"error", err,
			)
			run.Error = err
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"site", run.SiteName,
		)
		run.PerformedSteps = append(run.PerformedSteps, step.Name())

		if run.NoData {
			p.logger.Info("no data to process, stopping",
				"step", step.Name(),
				"site", run.SiteName,
			)
			return nil
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
