package cmd

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/db"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", envOr("DB_DRIVER", "sqlite"), "database driver (sqlite or pgx)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", envOr("DB_CONNECTION", "./data/loopfeed.db?_pragma=foreign_keys(1)"), "database connection string")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(c *cobra.Command, args []string) error {
			return withDB(driver, dsn, func(database *sqlx.DB) error {
				return db.RunMigrations(c.Context(), database.DB, driver)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(c *cobra.Command, args []string) error {
			return withDB(driver, dsn, func(database *sqlx.DB) error {
				return db.MigrateDown(c.Context(), database.DB, driver)
			})
		},
	})

	return cmd
}

func withDB(driver, dsn string, fn func(*sqlx.DB) error) error {
	database, err := db.Init(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close(database)
	return fn(database)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
