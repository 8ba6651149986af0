package pipeline

import (
	"context"

	"github.com/contentforge/api/internal/model"
)

// Step produces the output of one phase from the payload accumulated so far.
// Only the field owned by the step's phase is kept from the returned payload.
type Step interface {
	Process(ctx context.Context, payload model.Payload) (model.Payload, error)
}

// StepFunc adapts an ordinary function to the Step interface.
type StepFunc func(ctx context.Context, payload model.Payload) (model.Payload, error)

// Process calls f(ctx, payload).
func (f StepFunc) Process(ctx context.Context, payload model.Payload) (model.Payload, error) {
	return f(ctx, payload)
}

// Reporter receives the lifecycle events of a single run.
type Reporter interface {
	Started(ctx context.Context, job *model.Job)
	PhaseStarted(ctx context.Context, job *model.Job, phase model.Phase)
	Completed(ctx context.Context, job *model.Job)
	Failed(ctx context.Context, job *model.Job, phase model.Phase, err error)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) Started(context.Context, *model.Job) {}
func (NopReporter) PhaseStarted(context.Context, *model.Job, model.Phase) {}
func (NopReporter) Completed(context.Context, *model.Job) {}
func (NopReporter) Failed(context.Context, *model.Job, model.Phase, error) {}

type multiReporter []Reporter

// MultiReporter forwards every event to each non-nil reporter in order.
func MultiReporter(reporters ...Reporter) Reporter {
	var rs multiReporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return rs
}

func (m multiReporter) Started(ctx context.Context, job *model.Job) {
	for _, r := range m {
		r.Started(ctx, job)
	}
}

func (m multiReporter) PhaseStarted(ctx context.Context, job *model.Job, phase model.Phase) {
	for _, r := range m {
		r.PhaseStarted(ctx, job, phase)
	}
}

func (m multiReporter) Completed(ctx context.Context, job *model.Job) {
	for _, r := range m {
		r.Completed(ctx, job)
	}
}

func (m multiReporter) Failed(ctx context.Context, job *model.Job, phase model.Phase, err error) {
	for _, r := range m {
		r.Failed(ctx, job, phase, err)
	}
}
