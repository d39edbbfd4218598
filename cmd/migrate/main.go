package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Dhoini/subscription-sync/internal/config"
	"github.com/Dhoini/subscription-sync/internal/repository/postgres"
	"github.com/Dhoini/subscription-sync/migrations"
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.ParseLevel(cfg.App.LogLevel))
	defer log.Sync()

	if cfg.Database.DSN == "" {
		log.Fatal("DATABASE_DSN is required")
	}

	m, err := postgres.NewMigrator(migrations.FS, cfg.Database.DSN)
	if err != nil {
		log.Fatalw("Failed to initialize migrations", "error", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnw("Failed to close migration resources", "sourceError", sourceErr, "dbError", dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("No changes: database is already up to date")
		case err != nil:
			log.Fatalw("Failed to apply migrations", "error", err)
		default:
			log.Info("Migrations applied")
		}

	case "down":
		// Откат только последней миграции
		if err := m.Steps(-1); err != nil {
			log.Fatalw("Failed to roll back last migration", "error", err)
		}
		log.Info("Last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("Version number required")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalw("Invalid version number", "error", err)
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("No changes: database is already at version %d", version)
		case err != nil:
			log.Fatalw("Failed to migrate", "version", version, "error", err)
		default:
			log.Info("Migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("No migrations have been applied yet")
		case err != nil:
			log.Fatalw("Failed to read migration version", "error", err)
		default:
			log.Infow("Current migration version", "version", version, "dirty", dirty)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show current migration version")
}
