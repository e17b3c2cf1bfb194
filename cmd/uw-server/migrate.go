package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/uwdesk/decisioncore/internal/config"
	"github.com/uwdesk/decisioncore/internal/platform/db"
	"github.com/uwdesk/decisioncore/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closePool()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", migrator.Schema())
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), migrator.Schema(), statuses)
			return nil
		},
	}
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR, then the embedded set)")
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	schema, _ := cmd.Flags().GetString("schema")
	if schema == "" {
		schema = cfg.DBSchema
	}
	dir, _ := cmd.Flags().GetString("dir")

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        2,
		ApplicationName: "uw-server-migrate",
	})
	if err != nil {
		return nil, nil, err
	}

	migrator, err := db.NewMigrator(pool, migrationSource(cfg, dir), schema)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return migrator, pool.Close, nil
}

func migrationSource(cfg *config.Config, dir string) fs.FS {
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		if s.Drifted {
			status = "drifted"
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
