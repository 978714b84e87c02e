// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, background tasks,
// instrumentation) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fundsight/tally/internal/config"
	"github.com/fundsight/tally/internal/observability"
	"github.com/fundsight/tally/pkg/database"
	"github.com/fundsight/tally/pkg/lifecycle"
	"github.com/fundsight/tally/pkg/storage"
	"github.com/fundsight/tally/pkg/tasks"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, file storage, background work, and metrics.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Tasks     *tasks.Dispatcher
	Registry  *prometheus.Registry
	Pipeline  *observability.Pipeline
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	registry := observability.NewRegistry()

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Tasks:     tasks.New(cfg.Extraction.Workers, cfg.Extraction.QueueCapacity, logger),
		Registry:  registry,
		Pipeline:  observability.NewPipeline(registry),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database, storage, and task dispatcher hooks are registered for startup
// and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Tasks.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("task dispatcher start failed: %w", err)
	}
	return nil
}
