// Package storage holds the relational bookkeeping (import log,
// notifications, feedback) and the batch archive sinks.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"
)

// NewPool connects to the bookkeeping database from DATABASE_URL.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// Migrate applies pending schema migrations. migrationsDir defaults to the
// MIGRATIONS_DIR env value, then "migrations".
func Migrate(migrationsDir string) error {
	if migrationsDir == "" {
		migrationsDir = util.GetEnvString("MIGRATIONS_DIR", "migrations")
	}
	m, err := migrate.New("file://"+migrationsDir, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No pending migrations")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("Migrations applied")
	return nil
}
