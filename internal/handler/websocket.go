package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/contentforge/api/internal/websocket"
)

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// StreamContent handles GET /ws/content/:id
func StreamContent(stream *ws.Stream) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		stream.HandleJob(c, c.Params("id"))
	})
}

// StreamAll handles GET /ws/broadcast
func StreamAll(stream *ws.Stream) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		stream.HandleBroadcast(c)
	})
}
