package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// NewMigrator создает migrate.Migrate для встроенных SQL файлов
func NewMigrator(migrations fs.FS, dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrationURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

// MigrateUp применяет все непримененные миграции
func MigrateUp(migrations fs.FS, dsn string, log *logger.Logger) error {
	m, err := NewMigrator(migrations, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnw("Failed to close migration resources", "sourceError", sourceErr, "dbError", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("Database migrations applied")
	return nil
}

// MigrationURL переводит postgres:// DSN в схему драйвера pgx/v5 для golang-migrate
func MigrationURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
