package worker

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/service"
	"github.com/contentforge/api/internal/store"
)

// JobExecutor is the part of the content service the worker needs.
type JobExecutor interface {
	GetContent(ctx context.Context, jobID string) (*model.Job, error)
	Execute(ctx context.Context, job *model.Job) *model.Job
}

// ContentWorker processes queued content generation jobs
type ContentWorker struct {
	contents JobExecutor
	log      *zap.SugaredLogger
}

// NewContentWorker creates a new content worker
func NewContentWorker(contents JobExecutor) *ContentWorker {
	return &ContentWorker{
		contents: contents,
		log:      logger.ComponentLogger("worker.content"),
	}
}

// Register adds the worker's handlers to mux.
func (w *ContentWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(service.TaskTypeContent, w.ProcessTask)
}

// ProcessTask runs one queued job. Pipeline failures are recorded on the job
// and are not asynq failures; only malformed or stale tasks return errors,
// and those are never retried.
func (w *ContentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ContentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return errors.Wrapf(asynq.SkipRetry, "failed to unmarshal task payload: %v", err)
	}
	if payload.ContentID == "" {
		return errors.Wrap(asynq.SkipRetry, "task payload has no content_id")
	}

	log := w.log.With(logger.FieldJobID, payload.ContentID)

	job, err := w.contents.GetContent(ctx, payload.ContentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("queued job no longer exists")
			return errors.Wrapf(asynq.SkipRetry, "content %s not found", payload.ContentID)
		}
		return err
	}

	if job.Phase != "" || job.IsTerminal() {
		log.Warnw("job already processed, skipping", logger.FieldStatus, job.Status)
		return nil
	}

	log.Infow("starting content job", "topic", job.Request.Topic)
	job = w.contents.Execute(ctx, job)

	if job.Status == model.StatusFailed {
		log.Warnw("content job failed",
			logger.FieldPhase, job.FailedPhase,
			logger.FieldError, job.Error,
		)
	}
	return nil
}
