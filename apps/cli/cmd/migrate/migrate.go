package migrate

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

// DSNFunc resolves the database URL when --database-url is not given.
type DSNFunc func() (string, error)

// Command groups the schema migration commands. Migrations are embedded in the
// binary.
func Command(dsn DSNFunc) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")

	resolve := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		if dsn == nil {
			return "", errors.New("--database-url is required")
		}
		url, err := dsn()
		if err != nil {
			return "", err
		}
		if url == "" {
			return "", errors.New("--database-url or DATABASE_URL is required")
		}
		return url, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			if err := persistence.Migrate(cmd.Context(), url); err != nil {
				return err
			}
			return printVersion(cmd, url)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			url, err := resolve()
			if err != nil {
				return err
			}
			if err := persistence.Rollback(cmd.Context(), url, steps); err != nil {
				return err
			}
			return printVersion(cmd, url)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			return printVersion(cmd, url)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, url string) error {
	version, err := persistence.MigrationVersion(cmd.Context(), url)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return err
}
