package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/agent"
	"github.com/contentforge/api/internal/client"
	"github.com/contentforge/api/internal/config"
	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/pipeline"
	"github.com/contentforge/api/internal/service"
	"github.com/contentforge/api/internal/store"
	ws "github.com/contentforge/api/internal/websocket"
)

// deps is everything the commands share.
type deps struct {
	redis    *redis.Client
	repo     *store.Repository
	llm      *client.LLMClient
	storage  *client.R2Client
	hub      *ws.Hub
	trackers *ws.TrackerRegistry
	contents *service.ContentService
	queue    *asynq.Client
	log      *zap.SugaredLogger
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// buildDeps wires the content pipeline. withQueue enables async submission.
func buildDeps(ctx context.Context, cfg *config.Config, withQueue bool) (*deps, error) {
	d := &deps{log: logger.ComponentLogger("server")}

	d.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := d.redis.Ping(ctx).Err(); err != nil {
		d.log.Warnw("redis not available", logger.FieldError, err)
	}

	repo, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		d.redis.Close()
		return nil, err
	}
	d.repo = repo

	d.llm = client.NewLLMClient(&cfg.LLM)
	if !d.llm.IsConfigured() {
		d.log.Warn("LLM_API_KEY not set, agents will return mock output")
	}

	orchestrator, err := pipeline.NewContentPipeline(agent.Steps(d.llm), cfg.Retry.Policy(),
		pipeline.WithLogger(logger.ComponentLogger("pipeline")))
	if err != nil {
		d.Close()
		return nil, err
	}

	cache := store.NewCache(d.redis)
	d.hub = ws.NewHub()
	d.trackers = ws.NewTrackerRegistry(d.hub, service.NewProgressSink(cache))

	opts := []service.ContentServiceOption{}
	if cfg.R2.Enabled() {
		storage, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.storage = storage
		opts = append(opts, service.WithStorage(storage))
	}
	if withQueue {
		d.queue = asynq.NewClient(redisOpt(cfg))
		opts = append(opts, service.WithQueue(d.queue, cfg.Worker.Queue))
	}

	d.contents = service.NewContentService(orchestrator, cache, d.repo, d.trackers, opts...)
	return d, nil
}

func (d *deps) Close() {
	if d.queue != nil {
		d.queue.Close()
	}
	if d.repo != nil {
		d.repo.Close()
	}
	d.redis.Close()
}
