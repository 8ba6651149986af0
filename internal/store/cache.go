package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/contentforge/api/internal/model"
)

const (
	contentPrefix  = "content:"
	progressPrefix = "progress:"

	DefaultContentTTL  = time.Hour
	DefaultProgressTTL = 5 * time.Minute
)

// Cache keeps jobs and their latest progress event in Redis
type Cache struct {
	redis       *redis.Client
	contentTTL  time.Duration
	progressTTL time.Duration
}

// NewCache creates a cache with the default TTLs.
func NewCache(redisClient *redis.Client) *Cache {
	return &Cache{
		redis:       redisClient,
		contentTTL:  DefaultContentTTL,
		progressTTL: DefaultProgressTTL,
	}
}

// SaveJob stores job under the content TTL.
func (c *Cache) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	if err := c.redis.Set(ctx, contentPrefix+job.ID, data, c.contentTTL).Err(); err != nil {
		return errors.Wrapf(err, "failed to cache job %s", job.ID)
	}
	return nil
}

// GetJob loads a cached job.
func (c *Cache) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := c.redis.Get(ctx, contentPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal job")
	}
	return &job, nil
}

// DeleteJob removes every key held for a job.
func (c *Cache) DeleteJob(ctx context.Context, jobID string) error {
	err := c.redis.Del(ctx, contentPrefix+jobID, progressPrefix+jobID).Err()
	return errors.Wrapf(err, "failed to delete job %s", jobID)
}

// SetProgress stores the latest progress event of a job.
func (c *Cache) SetProgress(ctx context.Context, event model.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal progress")
	}
	err = c.redis.Set(ctx, progressPrefix+event.JobID, data, c.progressTTL).Err()
	return errors.Wrapf(err, "failed to cache progress of %s", event.JobID)
}

// GetProgress returns the latest progress event of a job.
func (c *Cache) GetProgress(ctx context.Context, jobID string) (*model.ProgressEvent, error) {
	data, err := c.redis.Get(ctx, progressPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read progress of %s", jobID)
	}

	var event model.ProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal progress")
	}
	return &event, nil
}
