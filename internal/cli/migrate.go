package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/migrator"
	"github.com/inkpost/inkpost/migrations"
)

type migrationResult struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back the embedded PostgreSQL migrations.

SQLite databases apply their schema automatically on open and need no migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *migrator.Migrator) error {
				applied, err := m.Up(ctx)
				if printErr := printMigrations(cmd, rootOpts, "applied", applied); printErr != nil {
					return printErr
				}
				return err
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *migrator.Migrator) error {
				rolledBack, err := m.Down(ctx, steps)
				if printErr := printMigrations(cmd, rootOpts, "rolled back", rolledBack); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 for all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *migrator.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}

				var b strings.Builder
				for _, s := range statuses {
					state := "pending"
					switch {
					case s.Dirty:
						state = "dirty"
					case s.Applied:
						state = "applied"
					}
					fmt.Fprintf(&b, "%s_%s\t%s\n", s.Version, s.Name, state)
				}
				return printResult(cmd, rootOpts, statuses, strings.TrimRight(b.String(), "\n"))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the recorded version and clear the dirty flag",
		Long: `Record VERSION as the current schema version without running any SQL.

Use after repairing a migration that failed part way. "inkctl migrate force -- -1"
records an empty database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(cmd, rootOpts, func(ctx context.Context, m *migrator.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				return printResult(cmd, rootOpts, map[string]int{"version": version}, fmt.Sprintf("forced version %d", version))
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *migrator.Migrator) error) error {
	if !isPostgresURL(opts.DatabaseURL) {
		return fmt.Errorf("migrate requires a postgres:// database URL")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	m, err := migrator.Open(ctx, opts.DatabaseURL, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(ctx, m)
}

func printMigrations(cmd *cobra.Command, opts *RootOptions, verb string, list []migrations.Migration) error {
	results := make([]migrationResult, 0, len(list))
	lines := make([]string, 0, len(list)+1)
	for _, m := range list {
		results = append(results, migrationResult{Version: m.Version, Name: m.Name})
		lines = append(lines, fmt.Sprintf("%s %s_%s", verb, m.Version, m.Name))
	}
	if len(lines) == 0 {
		lines = append(lines, "nothing to do")
	}
	return printResult(cmd, opts, results, strings.Join(lines, "\n"))
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
