package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/spf13/cobra"

	"space-planner/internal/common/health"
	"space-planner/internal/common/logging"
	"space-planner/internal/common/middleware"
	"space-planner/internal/planner/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the planner HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

// ============================================================
// Planner Service
// ============================================================

func serve(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.bridge.Close()

	ws := e.workspace()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(e.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(e.cfg.WriteTimeout) * time.Second,
		BodyLimit:    20 * 1024 * 1024,
		AppName:      "Space Planner",
	})

	app.Use(recover.New())
	app.Use(middleware.Logger("planner"))
	app.Use(middleware.CORS())

	probes := health.New()
	probes.AddCheck("storage", func(ctx context.Context) error {
		_, err := e.bridge.List(ctx)
		return err
	})
	probes.Register(app)

	handlers.NewPlannerHandler(ws, logging.Component(e.log, "http")).Register(app)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%s", e.cfg.Port)
		e.log.Infof("Starting planner on %s (env: %s, storage: %s)", addr, e.cfg.Environment, e.cfg.StorageDriver)
		errc <- app.Listen(addr)
	}()
	probes.MarkStarted()

	select {
	case err := <-errc:
		ws.Close()
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	e.log.Info("shutting down planner")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		e.log.Error("http shutdown", "err", err)
	}
	// Final autosave flush for every open document.
	ws.Close()
	return nil
}
