package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/kuksa/vssbroker/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending audit database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return fmt.Errorf("failed to query migration status: %w", err)
	}
	for _, s := range statuses {
		log.Printf("migration %s applied=%v checksum=%s", s.ID, s.Applied, s.Checksum)
	}
	return nil
}
