package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"space-planner/internal/common/config"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/library"
	"space-planner/internal/planner/persistence"
	"space-planner/internal/planner/workspace"
)

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Floor plan editor service",
	Long: `planner hosts the floor plan editor core: the scene store, the
interaction controller and the persistence bridge. Run "planner serve" for
the HTTP API or use the import/export commands against the same storage.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, importCmd, exportCmd, listCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env holds what every subcommand builds from the configuration.
type env struct {
	cfg     *config.Config
	log     *log.Logger
	bridge  persistence.Bridge
	catalog *library.Catalog
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	catalog, err := library.Load(cfg.SymbolCatalog)
	if err != nil {
		return nil, fmt.Errorf("symbol catalog: %w", err)
	}

	var bridge persistence.Bridge
	switch cfg.StorageDriver {
	case config.DriverFile:
		bridge, err = persistence.NewFileBridge(cfg.DataDir, logging.Component(logger, "file"))
	default:
		bridge, err = persistence.OpenSQLite(ctx, cfg.DBPath, logging.Component(logger, "sqlite"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	logger.Info("storage ready", "driver", cfg.StorageDriver, "symbols", catalog.Len())
	return &env{cfg: cfg, log: logger, bridge: bridge, catalog: catalog}, nil
}

func (e *env) workspace() *workspace.Workspace {
	wc := workspace.DefaultConfig()
	wc.HistoryLimit = e.cfg.HistoryLimit
	wc.AutosaveDelay = time.Duration(e.cfg.AutosaveDelayMS) * time.Millisecond
	wc.Interaction.DragThreshold = e.cfg.DragThreshold
	return workspace.New(e.bridge,
		workspace.WithConfig(wc),
		workspace.WithCatalog(e.catalog),
		workspace.WithLogger(logging.Component(e.log, "workspace")),
	)
}
