package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/contentforge/api/internal/config"
	"github.com/contentforge/api/internal/handler"
	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/middleware"
	"github.com/contentforge/api/internal/worker"
	ws "github.com/contentforge/api/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with an in-process worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), cfg)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the background queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer d.Close()

		srv := newWorkerServer(cfg)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			srv.Shutdown()
		}()
		return srv.Run(workerMux(d))
	},
}

func newWorkerServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			cfg.Worker.Queue: 1,
		},
		Logger: logger.ComponentLogger("asynq"),
	})
}

func workerMux(d *deps) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	worker.NewContentWorker(d.contents).Register(mux)
	return mux
}

func runServer(ctx context.Context, cfg *config.Config) error {
	d, err := buildDeps(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()

	validate := validator.New()

	stream := ws.NewStream(d.hub, d.trackers)
	routes := handler.Routes{
		Content:     handler.NewContentHandler(d.contents, validate),
		Stream:      stream,
		RateLimiter: middleware.NewRateLimiter(d.redis),
		Limits:      cfg.RateLimit,
		Services: func() fiber.Map {
			return fiber.Map{
				"llm":       d.llm.IsConfigured(),
				"r2":        d.storage != nil,
				"redis":     d.redis.Ping(context.Background()).Err() == nil,
				"observers": d.hub.JobCount(),
			}
		},
	}
	if cfg.JWT.Disabled {
		d.log.Warn("JWT authentication disabled")
	} else {
		routes.Auth = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
		BodyLimit:    1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	routes.Register(app)

	workerSrv := newWorkerServer(cfg)
	if err := workerSrv.Start(workerMux(d)); err != nil {
		d.log.Errorw("asynq worker failed to start", logger.FieldError, err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		d.log.Info("Shutting down server...")
		workerSrv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			d.log.Errorw("server shutdown error", logger.FieldError, err)
		}
	}()

	addr := ":" + cfg.Server.Port
	d.log.Infow("server starting", "addr", addr, "env", cfg.Server.Env)
	return app.Listen(addr)
}
