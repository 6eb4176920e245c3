// Package server wires the sync server's building blocks together: database
// connection, migrations, schema registry and merge service. HTTP hosting is
// left to the embedding application; the merge service and the listing query
// are the surface an endpoint layer calls into.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/opsync/internal/logging"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/server/config"
	"github.com/dmitrijs2005/opsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/opsync/internal/server/services"
)

type App struct {
	Config *config.Config
	Logger logging.Logger
	DB     *sql.DB
	Tables *schema.Registry
	Merge  *services.MergeService
}

// NewApp opens the database, applies migrations and builds the merge service
// over an empty schema registry. Tables are registered afterwards via
// AddTable.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	tables := schema.NewRegistry()

	return &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Tables: tables,
		Merge:  services.NewMergeService(db, manager, tables, logger),
	}, nil
}

// AddTable registers a table the server accepts operations for. Server-side
// descriptors carry names and kinds only; no item factory is needed.
func (a *App) AddTable(desc *schema.Descriptor) error {
	return a.Tables.Register(desc)
}

func (a *App) Close() error {
	return a.DB.Close()
}
