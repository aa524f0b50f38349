package runlog

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/harborlight/townfeed/internal/support/logger"
)

const migrationsTable = "schema_migrations"

func databaseDriver(dialect string, sqlDB *sql.DB) (database.Driver, error) {
	switch dialect {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: migrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: migrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database dialect for migration: %s", dialect)
	}
}

// Migrate applies all pending migrations from the embedded migration
// filesystem against the open run-log database.
func Migrate(db *gorm.DB, dialect string, migrationFS fs.FS, path string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	dbDriver, err := databaseDriver(dialect, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed (%s, path %s): %w", dialect, path, err)
	}

	logger.Infof("Run-log migrations applied (%s).", dialect)
	return nil
}
