package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"space-planner/internal/common/config"
	"space-planner/internal/common/health"
	"space-planner/internal/common/logging"
	"space-planner/internal/common/middleware"
	"space-planner/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Space Planner Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger("gateway"))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	planner := proxy.New(cfg.PlannerURL,
		proxy.StripPrefix("/api/v1"),
		proxy.WithLogger(logging.Component(logger, "proxy")),
	)

	probes := health.New()
	probes.AddCheck("planner", planner.Ready)
	probes.Register(app)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Space Planner API v1",
			"status":  "ok",
		})
	})

	// Planner Service
	api.All("/documents", planner.Handler())
	api.All("/documents/*", planner.Handler())
	api.Get("/symbols", planner.Handler())

	// ============================================================
	// Server Start
	// ============================================================

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down gateway")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.GatewayPort)
	logger.Infof("Starting gateway on %s (env: %s)", addr, cfg.Environment)
	logger.Infof("Proxying /api/v1/documents to %s", cfg.PlannerURL)

	probes.MarkStarted()
	if err := app.Listen(addr); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
