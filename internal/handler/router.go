package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/contentforge/api/internal/config"
	"github.com/contentforge/api/internal/middleware"
	ws "github.com/contentforge/api/internal/websocket"
	"github.com/contentforge/api/pkg/response"
)

// Routes holds everything needed to mount the API.
type Routes struct {
	Content     *ContentHandler
	Stream      *ws.Stream
	Auth        fiber.Handler
	RateLimiter *middleware.RateLimiter
	Limits      config.RateLimitConfig
	Services    func() fiber.Map
}

// Register mounts every route on app.
func (r Routes) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{"status": "ok"}
		if r.Services != nil {
			body["services"] = r.Services()
		}
		return c.JSON(body)
	})

	var apiMiddleware []fiber.Handler
	if r.Auth != nil {
		apiMiddleware = append(apiMiddleware, r.Auth)
	}
	api := app.Group("/api", apiMiddleware...)

	generateLimit := passThrough
	asyncLimit := passThrough
	if r.RateLimiter != nil {
		generateLimit = r.RateLimiter.GenerateLimit(r.Limits.GeneratePerHour)
		asyncLimit = r.RateLimiter.GenerateAsyncLimit(r.Limits.GenerateAsyncPerHour)
	}

	content := api.Group("/content")
	content.Post("/generate", generateLimit, r.Content.Generate)
	content.Post("/generate/async", asyncLimit, r.Content.GenerateAsync)
	content.Get("/", r.Content.List)
	content.Get("/:id", r.Content.Get)
	content.Get("/:id/status", r.Content.Status)
	content.Delete("/:id", r.Content.Delete)

	// WebSocket routes
	app.Use("/ws", RequireUpgrade)
	app.Get("/ws/content/:id", StreamContent(r.Stream))
	app.Get("/ws/broadcast", StreamAll(r.Stream))
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

// ErrorHandler renders unhandled errors in the API error format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
