/*
main.go - Application entry point

PURPOSE:
  Starts the leave workflow server and hosts its maintenance commands.

COMMANDS:
  serve   Run the HTTP API (default when no command is given)
  seed    Create the default work schedule and leave types

CONFIGURATION:
  --config  Optional YAML file. Every key can be overridden with a LEAVE_*
            environment variable (LEAVE_SERVER_PORT, LEAVE_DATABASE_PATH,
            LEAVE_LOG_LEVEL, LEAVE_WORKFLOW_ROUTE_CANCELLATIONS, ...).
            A .env file in the working directory is loaded first.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server seed --config=./leave.yaml
  LEAVE_DATABASE_PATH=:memory: ./server serve

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Leave request workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	serve := newServeCmd(&configPath)
	cmd.AddCommand(serve)
	cmd.AddCommand(newSeedCmd(&configPath))
	cmd.RunE = serve.RunE
	return cmd
}

// app is everything a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *sqlite.Store
	service *leave.Service
	metrics *metrics.Collector
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	opts := []leave.Option{
		leave.WithLogger(logger),
		leave.WithCancellationRouting(cfg.Workflow.RouteCancellations),
	}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewCollector(metrics.NewRegistry())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, leave.WithMetrics(collector))
	}

	svc, err := leave.NewService(store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store, service: svc, metrics: collector}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
