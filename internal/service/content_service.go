package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/pipeline"
	"github.com/contentforge/api/internal/retry"
	"github.com/contentforge/api/internal/store"
	"github.com/contentforge/api/internal/websocket"
)

const (
	TaskTypeContent = "content:generate"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

var (
	// ErrNotFound is returned when a content job does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrQueueUnavailable is returned by StartGeneration without a queue.
	ErrQueueUnavailable = errors.New("background generation is not configured")
)

// Runner drives a job through the pipeline.
type Runner interface {
	Run(ctx context.Context, job *model.Job, reporter pipeline.Reporter) *model.Job
}

// JobCache holds live jobs and progress snapshots.
type JobCache interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	SetProgress(ctx context.Context, event model.ProgressEvent) error
	GetProgress(ctx context.Context, jobID string) (*model.ProgressEvent, error)
}

// JobRepository stores job history.
type JobRepository interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	List(ctx context.Context, opts store.ListOptions) ([]*model.Job, error)
	Count(ctx context.Context, status model.ContentStatus) (int, error)
	Delete(ctx context.Context, jobID string) error
}

// Enqueuer queues background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ContentTaskPayload is the asynq payload of a generation task
type ContentTaskPayload struct {
	ContentID string `json:"content_id"`
}

// ContentService handles content job management
type ContentService struct {
	runner   Runner
	cache    JobCache
	repo     JobRepository
	queue    Enqueuer
	trackers *websocket.TrackerRegistry
	storage  client.StorageClient
	archiver *retry.Executor

	queueName string
	log       *zap.SugaredLogger
}

// ContentServiceOption configures a ContentService.
type ContentServiceOption func(*ContentService)

// WithQueue enables asynchronous generation through q.
func WithQueue(q Enqueuer, queueName string) ContentServiceOption {
	return func(s *ContentService) {
		s.queue = q
		s.queueName = queueName
	}
}

// WithStorage archives finished content to storage.
func WithStorage(storage client.StorageClient) ContentServiceOption {
	return func(s *ContentService) { s.storage = storage }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *zap.SugaredLogger) ContentServiceOption {
	return func(s *ContentService) { s.log = l }
}

// WithArchiveRetry replaces the retry executor used for archive uploads.
func WithArchiveRetry(e *retry.Executor) ContentServiceOption {
	return func(s *ContentService) { s.archiver = e }
}

func NewContentService(runner Runner, cache JobCache, repo JobRepository, trackers *websocket.TrackerRegistry, opts ...ContentServiceOption) *ContentService {
	s := &ContentService{
		runner:    runner,
		cache:     cache,
		repo:      repo,
		trackers:  trackers,
		queueName: "content",
		log:       logger.ComponentLogger("service.content"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.archiver == nil {
		s.archiver = retry.NewExecutor(retry.NetworkConfig, retry.WithLogger(s.log))
	}
	return s
}

// NewProgressSink stores each progress event as the job's latest snapshot.
func NewProgressSink(cache JobCache) websocket.EventSink {
	log := logger.ComponentLogger("service.progress")
	return func(ctx context.Context, event model.ProgressEvent) {
		if err := cache.SetProgress(ctx, event); err != nil {
			log.Warnw("failed to cache progress", logger.FieldJobID, event.JobID, logger.FieldError, err)
		}
	}
}

// Generate runs a job to completion and returns it.
func (s *ContentService) Generate(ctx context.Context, req model.ContentRequest) (*model.Job, error) {
	req.ApplyDefaults()
	job := model.NewJob(req)

	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	return s.Execute(ctx, job), nil
}

// StartGeneration queues a new job for a worker
func (s *ContentService) StartGeneration(ctx context.Context, req model.ContentRequest) (*model.ContentAcceptedResponse, error) {
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}

	req.ApplyDefaults()
	job := model.NewJob(req)

	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}

	task, err := NewContentTask(job.ID)
	if err != nil {
		return nil, err
	}

	_, err = s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.queueName),
		asynq.MaxRetry(0),
		asynq.TaskID(job.ID),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enqueue task")
	}

	s.log.Infow("content generation queued", logger.FieldJobID, job.ID)

	return &model.ContentAcceptedResponse{
		ContentID: job.ID,
		Status:    "processing",
		CreatedAt: job.CreatedAt,
	}, nil
}

// Execute runs job through the pipeline, publishing progress and storing
// the outcome. It is shared by synchronous requests and the worker.
func (s *ContentService) Execute(ctx context.Context, job *model.Job) *model.Job {
	ctx = logger.WithJobID(ctx, job.ID)
	log := logger.FromContext(ctx, s.log)

	tracker := s.trackers.Open(job.ID, job.Request.Topic)
	defer s.trackers.Close(job.ID)

	recorder := &snapshotRecorder{cache: s.cache, log: log}
	s.runner.Run(ctx, job, pipeline.MultiReporter(tracker, recorder))

	if job.Status == model.StatusCompleted {
		s.archive(ctx, job)
	}

	// The run is over; storing its outcome must not depend on the caller.
	ctx = context.WithoutCancel(ctx)
	if err := s.persist(ctx, job); err != nil {
		log.Errorw("failed to store finished job", logger.FieldError, err)
	}

	log.Infow("content generation finished",
		logger.FieldStatus, job.Status,
		logger.FieldPhase, job.Phase,
	)
	return job
}

// GetContent returns a job from the cache, falling back to the repository
func (s *ContentService) GetContent(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.cache.GetJob(ctx, jobID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Warnw("cache read failed", logger.FieldJobID, jobID, logger.FieldError, err)
	}

	job, err = s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SaveJob(ctx, job); err != nil {
		s.log.Warnw("failed to refill cache", logger.FieldJobID, jobID, logger.FieldError, err)
	}
	return job, nil
}

// GetStatus returns the status view of a job with its latest progress event
func (s *ContentService) GetStatus(ctx context.Context, jobID string) (*model.ContentStatusResponse, error) {
	job, err := s.GetContent(ctx, jobID)
	if err != nil {
		return nil, err
	}

	progress, err := s.cache.GetProgress(ctx, jobID)
	if err != nil {
		progress = nil
	}

	resp := job.ToStatusResponse(progress)
	return &resp, nil
}

// List returns one page of jobs, newest first
func (s *ContentService) List(ctx context.Context, limit, offset int, status model.ContentStatus) (*model.ContentListResponse, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.repo.List(ctx, store.ListOptions{Limit: limit, Offset: offset, Status: status})
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, status)
	if err != nil {
		return nil, err
	}

	items := make([]model.ContentResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, job.ToResponse())
	}

	return &model.ContentListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Delete removes a job everywhere it is stored
func (s *ContentService) Delete(ctx context.Context, jobID string) error {
	repoErr := s.repo.Delete(ctx, jobID)
	if repoErr != nil && !errors.Is(repoErr, store.ErrNotFound) {
		return repoErr
	}

	_, cacheErr := s.cache.GetJob(ctx, jobID)
	if err := s.cache.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	if errors.Is(repoErr, store.ErrNotFound) && errors.Is(cacheErr, store.ErrNotFound) {
		return ErrNotFound
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, client.ArchiveKey(jobID)); err != nil {
			s.log.Warnw("failed to delete archive", logger.FieldJobID, jobID, logger.FieldError, err)
		}
	}
	return nil
}

func (s *ContentService) persist(ctx context.Context, job *model.Job) error {
	if err := s.cache.SaveJob(ctx, job); err != nil {
		return errors.Wrap(err, "failed to save job")
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return errors.Wrap(err, "failed to save job")
	}
	return nil
}

// archive uploads finished content. Failures are logged, never fatal.
func (s *ContentService) archive(ctx context.Context, job *model.Job) {
	if s.storage == nil {
		return
	}

	key := client.ArchiveKey(job.ID)
	url, err := retry.Do(ctx, s.archiver, "archive", func(ctx context.Context) (string, error) {
		return s.storage.Upload(ctx, key, strings.NewReader(job.Content), "text/markdown; charset=utf-8")
	})
	if err != nil {
		s.log.Warnw("failed to archive content", logger.FieldJobID, job.ID, logger.FieldError, err)
		return
	}
	job.ArchiveURL = url
}

// NewContentTask builds the asynq task for jobID.
func NewContentTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(ContentTaskPayload{ContentID: jobID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal task payload")
	}
	return asynq.NewTask(TaskTypeContent, data), nil
}

// snapshotRecorder keeps the cached job in step with the run so status
// reads see the current phase.
type snapshotRecorder struct {
	pipeline.NopReporter
	cache JobCache
	log   *zap.SugaredLogger
}

func (r *snapshotRecorder) Started(ctx context.Context, job *model.Job) {
	r.save(ctx, job)
}

func (r *snapshotRecorder) PhaseStarted(ctx context.Context, job *model.Job, _ model.Phase) {
	r.save(ctx, job)
}

func (r *snapshotRecorder) save(ctx context.Context, job *model.Job) {
	if err := r.cache.SaveJob(ctx, job); err != nil {
		r.log.Warnw("failed to cache job snapshot", logger.FieldError, err)
	}
}
