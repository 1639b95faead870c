package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger returns the access log middleware. service tags each line so the
// gateway and planner logs can be told apart when interleaved.
func Logger(service string) fiber.Handler {
	return logger.New(logger.Config{
		Format:     "[${time}] " + service + " ${status} - ${latency} ${method} ${path} | Content-Type: ${reqHeader:Content-Type}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	})
}
