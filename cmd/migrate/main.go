package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/clipvault/backend/internal/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Schema migration runner. Commands:
//
//	migrate -command up           apply all pending migrations
//	migrate -command down -steps N  roll back N migrations (default 1)
//	migrate -command version      print the current schema version
//	migrate -command force -steps V  mark version V without running anything
//	migrate -command drop         drop everything (dev only)
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command       string
		steps         int
		migrationsDir string
		databaseURL   string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down, force, version, drop")
	flag.IntVar(&steps, "steps", 0, "Steps for down (default 1) or target version for force")
	flag.StringVar(&migrationsDir, "dir", "migrations", "Path to migrations directory")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	absPath, err := filepath.Abs(migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve migrations directory")
	}

	log.Info().
		Str("dir", absPath).
		Str("command", command).
		Msg("Starting migration")

	switch command {
	case "up":
		err = database.RunMigrations(databaseURL, absPath)
	case "down":
		if steps == 0 {
			steps = 1
		}
		err = database.RollbackMigration(databaseURL, absPath, steps)
	case "force":
		if steps == 0 {
			log.Fatal().Msg("Force command requires -steps with the target version")
		}
		err = database.ForceMigrationVersion(databaseURL, absPath, steps)
	case "version":
		version, dirty, verr := database.GetMigrationVersion(databaseURL, absPath)
		if verr != nil {
			log.Fatal().Err(verr).Msg("Failed to get version")
		}
		if version == 0 && !dirty {
			log.Info().Msg("No migrations have been applied yet")
			return
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current migration version")
		return
	case "drop":
		err = database.DropAll(databaseURL, absPath)
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}
