// Package cli implements inkctl, the administrative command line for Inkpost.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/repository"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Format      string // "json" | "text"
	Timeout     time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for inkctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "inkctl",
		Short:         "Inkpost administration",
		Long:          "Manage the Inkpost database schema, users and API keys.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			if opts.DatabaseURL == "" {
				opts.DatabaseURL = os.Getenv("DATABASE_URL")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "database URL (defaults to $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for database operations")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSignupCommand(opts))
	cmd.AddCommand(NewIssueKeyCommand(opts))
	cmd.AddCommand(NewRevokeKeyCommand(opts))

	return cmd
}

// openGateway connects to the configured database. The caller must call the
// returned cleanup function.
func openGateway(cmd *cobra.Command, opts *RootOptions) (repository.Gateway, context.Context, func(), error) {
	if opts.DatabaseURL == "" {
		return nil, nil, nil, errors.New("database URL is required (--database-url or DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	gateway, err := repository.Open(ctx, opts.DatabaseURL)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}

	return gateway, ctx, func() {
		gateway.Close()
		cancel()
	}, nil
}
