// Package main provides a CLI tool for database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialsignal/pharmacovigilance-service/internal/config"
	"github.com/trialsignal/pharmacovigilance-service/internal/database"
	"github.com/trialsignal/pharmacovigilance-service/internal/observability"
)

type action struct {
	name string
	run  func(m *database.Migrator) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Apply all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Step the schema N versions (negative rolls back)")
	version := flag.Bool("version", false, "Print the current schema version")
	force := flag.Int("force", -1, "Stamp the schema version without migrating (recovery)")
	migrationsPath := flag.String("path", "", "Override the migrations directory")
	flag.Parse()

	var actions []action
	if *up {
		actions = append(actions, action{"up", (*database.Migrator).Up})
	}
	if *down {
		actions = append(actions, action{"down", (*database.Migrator).Down})
	}
	if *steps != 0 {
		n := *steps
		actions = append(actions, action{"steps", func(m *database.Migrator) error {
			return m.Steps(n)
		}})
	}
	if *version {
		actions = append(actions, action{"version", func(*database.Migrator) error {
			return nil
		}})
	}
	if *force >= 0 {
		v := *force
		actions = append(actions, action{"force", func(m *database.Migrator) error {
			return m.Force(v)
		}})
	}

	if len(actions) == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nSpecify one of: -up, -down, -steps N, -version, -force V")
		return fmt.Errorf("no action specified")
	}
	if len(actions) > 1 {
		return fmt.Errorf("specify only one action at a time")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	act := actions[0]
	if err := act.run(migrator); err != nil {
		return fmt.Errorf("migrate %s: %w", act.name, err)
	}
	printVersion(migrator, logger)
	return nil
}

// printVersion reports the schema version after the action ran.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
