package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/admin"
	"github.com/clinic/clinic/internal/domain/directory"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/recordstore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic appointment server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var seed adminSeed
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(seed)
		},
	}
	cmd.Flags().StringVar(&seed.Name, "admin-name", "Administrator", "Name of the bootstrap admin")
	cmd.Flags().StringVar(&seed.Email, "admin-email", "", "Create this admin at startup if it does not exist")
	cmd.Flags().StringVar(&seed.Password, "admin-password", "", "Password of the bootstrap admin")
	return cmd
}

// openMigrator connects for the migrate commands. An empty dir means
// MIGRATIONS_DIR.
func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, os.DirFS(dir), newLogger(cfg)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var seed adminSeed
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := addAdmin(ctx, recordstore.NewPostgresStore(pool), newLogger(cfg), seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created.\n", seed.Email)
			return nil
		},
	}
	addCmd.Flags().StringVar(&seed.Name, "name", "", "Admin name")
	addCmd.Flags().StringVar(&seed.Email, "email", "", "Admin email")
	addCmd.Flags().StringVar(&seed.Password, "password", "", "Admin password")
	for _, f := range []string{"name", "email", "password"} {
		_ = addCmd.MarkFlagRequired(f)
	}
	cmd.AddCommand(addCmd)
	return cmd
}

type adminSeed struct {
	Name     string
	Email    string
	Password string
}

func addAdmin(ctx context.Context, store recordstore.Store, logger zerolog.Logger, seed adminSeed) error {
	svc := admin.NewService(store, directory.New(store, logger), logger)
	return svc.AddAdmin(ctx, seed.Name, seed.Email, seed.Password)
}

// seedAdmin creates the bootstrap admin when one was requested. An existing
// account with that email is left alone.
func seedAdmin(ctx context.Context, store recordstore.Store, logger zerolog.Logger, seed adminSeed) error {
	if seed.Email == "" {
		return nil
	}
	err := addAdmin(ctx, store, logger, seed)
	if errors.Is(err, admin.ErrAdminExists) {
		return nil
	}
	return err
}
