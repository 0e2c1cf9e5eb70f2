package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

const versionTimeFormat = "20060102150405"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "manage marketplace database migrations",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		createCommand(logger),
		upCommand(logger),
		downCommand(logger),
		versionCommand(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrationsPath() string {
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		return path
	}
	return "file://migrations"
}

func newMigrate(logger *slog.Logger) (*migrate.Migrate, error) {
	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		return nil, errors.New("POSTGRES_URL is required")
	}

	m, err := migrate.New(migrationsPath(), postgresURL)
	if err != nil {
		logger.Error("failed to create migrate instance", slog.String("error", err.Error()))
		return nil, err
	}
	return m, nil
}

func createCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "create a pair of up/down migration files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := time.Now().Format(versionTimeFormat)
			up := fmt.Sprintf("migrations/%s_%s.up.sql", version, args[0])
			down := fmt.Sprintf("migrations/%s_%s.down.sql", version, args[0])

			if err := os.WriteFile(up, []byte{}, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(down, []byte{}, 0o644); err != nil {
				return err
			}

			logger.Info("created migration files", slog.String("up", up), slog.String("down", down))
			return nil
		},
	}
}

func upCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(logger)
			if err != nil {
				return err
			}
			defer func() { _, _ = m.Close() }()

			err = m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no pending migrations")
				return nil
			}
			if err != nil {
				logger.Error("migration up failed", slog.String("error", err.Error()))
				return err
			}
			logger.Info("migrations applied successfully")
			return nil
		},
	}
}

func downCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(logger)
			if err != nil {
				return err
			}
			defer func() { _, _ = m.Close() }()

			err = m.Steps(-1)
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no migrations to rollback")
				return nil
			}
			if err != nil {
				logger.Error("migration down failed", slog.String("error", err.Error()))
				return err
			}
			logger.Info("migration rolled back successfully")
			return nil
		},
	}
}

func versionCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrate(logger)
			if err != nil {
				return err
			}
			defer func() { _, _ = m.Close() }()

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info("no migrations applied yet")
				return nil
			}
			if err != nil {
				logger.Error("failed to get version", slog.String("error", err.Error()))
				return err
			}
			logger.Info("current migration version",
				slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
			return nil
		},
	}
}
