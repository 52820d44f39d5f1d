package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaidashi/hire-a-tutor/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the applied state of every migration",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openDatabase() (*database.Database, func(), error) {
	cfg, l, err := bootstrap(false)

	if err != nil {
		return nil, nil, err
	}

	db, err := database.New(cfg, l)

	if err != nil {
		return nil, nil, err
	}

	return db, func() {
		db.Close()
		l.Sync()
	}, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, done, err := openDatabase()

	if err != nil {
		return err
	}
	defer done()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, done, err := openDatabase()

	if err != nil {
		return err
	}
	defer done()

	if err := db.MigrationStatus(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
