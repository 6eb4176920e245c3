// Package storage opens the client's local SQLite database, applies the
// embedded migrations and bundles the repositories built on top of it.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/opsync/internal/client/migrations"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/operations"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/settings"
)

// Repositories bundles the local stores the sync client works with.
type Repositories struct {
	DB         *sql.DB
	Operations operations.Repository
	Records    records.Repository
	Settings   settings.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (or creates) the database at dsn, migrates it and
// returns the repository bundle.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:         db,
		Operations: operations.NewSQLiteRepository(db),
		Records:    records.NewSQLiteRepository(db),
		Settings:   settings.NewSQLiteRepository(db),
	}, nil
}

// Close releases the underlying database handle.
func (r *Repositories) Close() error {
	return r.DB.Close()
}
