// Package pipeline sequences the content generation phases for a job.
//
// A run walks research, plan, write and edit, each wrapped by a retry
// executor, then a built-in finalize phase that checks the final text. Phase
// failures never escape Run; they end the job in the failed state.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/retry"
)

// Stage binds a phase to the step that implements it.
type Stage struct {
	Phase model.Phase
	Step  Step
	Retry retry.Config
}

// Steps names the four externally supplied steps of the content pipeline.
type Steps struct {
	Researcher Step
	Planner    Step
	Writer     Step
	Editor     Step
}

// Stages builds the canonical stage list, every step sharing cfg.
func (s Steps) Stages(cfg retry.Config) []Stage {
	return []Stage{
		{Phase: model.PhaseResearch, Step: s.Researcher, Retry: cfg},
		{Phase: model.PhasePlan, Step: s.Planner, Retry: cfg},
		{Phase: model.PhaseWrite, Step: s.Writer, Retry: cfg},
		{Phase: model.PhaseEdit, Step: s.Editor, Retry: cfg},
	}
}

type boundStage struct {
	Stage
	exec *retry.Executor
}

// Orchestrator runs jobs through the fixed phase sequence.
type Orchestrator struct {
	stages []boundStage
	log    *zap.SugaredLogger
	sleep  retry.SleepFunc
	now    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithSleep replaces the retry backoff sleep.
func WithSleep(s retry.SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New validates stages and builds an Orchestrator. stages must hold exactly
// research, plan, write and edit in that order; finalize is built in.
func New(stages []Stage, opts ...Option) (*Orchestrator, error) {
	if err := validateStages(stages); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		log: logger.ComponentLogger("pipeline"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	execOpts := []retry.Option{retry.WithLogger(o.log)}
	if o.sleep != nil {
		execOpts = append(execOpts, retry.WithSleep(o.sleep))
	}
	for _, st := range stages {
		o.stages = append(o.stages, boundStage{
			Stage: st,
			exec:  retry.NewExecutor(st.Retry, execOpts...),
		})
	}
	return o, nil
}

// NewContentPipeline is New over steps with one retry policy for all phases.
func NewContentPipeline(steps Steps, cfg retry.Config, opts ...Option) (*Orchestrator, error) {
	return New(steps.Stages(cfg), opts...)
}

func validateStages(stages []Stage) error {
	expected := model.Phases[:len(model.Phases)-1]
	if len(stages) != len(expected) {
		return errors.Wrapf(ErrInvalidPhases, "expected %d stages %v, got %d", len(expected), expected, len(stages))
	}

	seen := make(map[model.Phase]bool, len(stages))
	for i, st := range stages {
		if seen[st.Phase] {
			return errors.Wrapf(ErrInvalidPhases, "duplicate phase %q", st.Phase)
		}
		seen[st.Phase] = true

		if st.Phase != expected[i] {
			return errors.Wrapf(ErrInvalidPhases, "stage %d is %q, expected %q", i, st.Phase, expected[i])
		}
		if st.Step == nil {
			return errors.Wrapf(ErrInvalidPhases, "phase %q has no step", st.Phase)
		}
	}
	return nil
}

// Run drives job to a terminal state and returns it. It never fails: step
// errors are recorded on the job. Cancelling ctx does not abort a started run.
func (o *Orchestrator) Run(ctx context.Context, job *model.Job, reporter Reporter) *model.Job {
	if reporter == nil {
		reporter = NopReporter{}
	}
	ctx = logger.WithJobID(context.WithoutCancel(ctx), job.ID)
	log := logger.FromContext(ctx, o.log)

	if job.Phase != "" || job.IsTerminal() {
		log.Warnw("job already ran, ignoring", logger.FieldStatus, job.Status, logger.FieldPhase, job.Phase)
		return job
	}

	started := o.now()
	job.StartedAt = &started
	if job.PhaseTimings == nil {
		job.PhaseTimings = make(map[model.Phase]time.Duration)
	}
	log.Infow("starting content generation", "topic", truncate(job.Request.Topic, 50))
	reporter.Started(ctx, job)

	for _, st := range o.stages {
		if job.Error != "" {
			break
		}
		o.enter(ctx, job, st.Phase, reporter)
		if err := o.runStage(ctx, job, st); err != nil {
			o.fail(ctx, job, st.Phase, err, reporter)
		}
	}

	if job.Error == "" {
		o.enter(ctx, job, model.PhaseFinalize, reporter)
		if err := o.finalize(job); err != nil {
			o.fail(ctx, job, model.PhaseFinalize, err, reporter)
		}
	}

	if job.Error == "" {
		o.complete(ctx, job, reporter)
	}
	return job
}

func (o *Orchestrator) enter(ctx context.Context, job *model.Job, phase model.Phase, reporter Reporter) {
	job.Phase = phase
	job.Status = phase.Status()
	logger.FromContext(ctx, o.log).Debugw("phase started", logger.FieldPhase, phase)
	reporter.PhaseStarted(ctx, job, phase)
}

func (o *Orchestrator) runStage(ctx context.Context, job *model.Job, st boundStage) error {
	start := o.now()
	payload := job.Payload()

	out, err := retry.Do(ctx, st.exec, string(st.Phase)+" step", func(ctx context.Context) (model.Payload, error) {
		return safeProcess(ctx, st.Step, payload)
	})

	elapsed := o.now().Sub(start)
	job.PhaseTimings[st.Phase] = elapsed
	if err != nil {
		return err
	}

	job.ApplyOutput(st.Phase, out)
	logger.FromContext(ctx, o.log).Infow("phase completed",
		logger.FieldPhase, st.Phase,
		logger.FieldDurationMS, elapsed.Milliseconds(),
	)
	return nil
}

func (o *Orchestrator) finalize(job *model.Job) error {
	start := o.now()
	defer func() { job.PhaseTimings[model.PhaseFinalize] = o.now().Sub(start) }()

	if job.Content == "" {
		return ErrNoContent
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *model.Job, phase model.Phase, err error, reporter Reporter) {
	phaseErr := &PhaseError{Phase: phase, Err: err}
	job.Error = phaseErr.Error()
	job.FailedPhase = phase
	job.Status = model.StatusFailed
	o.markCompleted(job)

	logger.FromContext(ctx, o.log).Warnw("content generation failed",
		logger.FieldPhase, phase,
		logger.FieldError, err,
	)
	reporter.Failed(ctx, job, phase, phaseErr)
}

func (o *Orchestrator) complete(ctx context.Context, job *model.Job, reporter Reporter) {
	job.Status = model.StatusCompleted
	o.markCompleted(job)

	d, _ := job.ProcessingTime()
	logger.FromContext(ctx, o.log).Infow("content generation completed",
		logger.FieldDurationMS, d.Milliseconds(),
	)
	reporter.Completed(ctx, job)
}

func (o *Orchestrator) markCompleted(job *model.Job) {
	if job.CompletedAt != nil {
		return
	}
	now := o.now()
	job.CompletedAt = &now
}

// safeProcess turns a panicking step into a permanent error.
func safeProcess(ctx context.Context, step Step, payload model.Payload) (out model.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errStepPanic, "%v", r)
		}
	}()
	return step.Process(ctx, payload)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
