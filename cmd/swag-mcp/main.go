package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmagar/swag-mcp/internal/accesslog"
	"github.com/jmagar/swag-mcp/internal/api"
	"github.com/jmagar/swag-mcp/internal/config"
	"github.com/jmagar/swag-mcp/internal/orchestrator"
)

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(int(config.ExitUnhandled))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "swag-mcp",
		Short: "Manage a SWAG gateway's nginx configuration directory",
	}
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP front-end over the configuration core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	root.AddCommand(serve)

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup-backups",
		Short: "Remove backups older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(days)
		},
	}
	cleanup.Flags().IntVar(&days, "days", 0, "retention window in days (0 = use BACKUP_RETENTION_DAYS)")
	root.AddCommand(cleanup)

	return root
}

func loadOrchestrator() (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(int(config.ExitInvalidConfig))
	}

	core, err := orchestrator.New(cfg)
	if err != nil {
		slog.Error("failed to initialize core", "error", err)
		os.Exit(int(config.ExitMissingTemplate))
	}
	return core, cfg, nil
}

func runServe(addr string) error {
	core, cfg, err := loadOrchestrator()
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Bootstrap(context.Background()); err != nil {
		slog.Error("bootstrap checks failed", "error", err)
		os.Exit(int(config.ExitMissingTemplate))
	}

	logs := accesslog.New(cfg.LogDir)
	srv := api.NewServer(core, logs)

	slog.Info("swag-mcp starting", "address", addr, "config_dir", cfg.ConfigDir)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(int(config.ExitUnhandled))
	}
	return nil
}

func runCleanup(days int) error {
	core, _, err := loadOrchestrator()
	if err != nil {
		return err
	}
	defer core.Close()

	removed, err := core.BackupsCleanup(context.Background(), days)
	if err != nil {
		slog.Error("cleanup failed", "error", err)
		os.Exit(int(config.ExitUnhandled))
	}
	fmt.Printf("removed %d backup(s)\n", removed)
	return nil
}
