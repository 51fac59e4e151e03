package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

type issuedKeyResult struct {
	KeyID     string `json:"key_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	KeyPrefix string `json:"key_prefix"`
	Key       string `json:"key"`
}

// NewIssueKeyCommand creates the issue-key command.
func NewIssueKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var email, name, env string

	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Create an API key for an existing user",
		Long: `Create an API key for an existing user and print it.

The plaintext key is shown once. Only its Argon2id hash is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env != auth.EnvLive && env != auth.EnvTest {
				return fmt.Errorf("invalid env %q: must be %s or %s", env, auth.EnvLive, auth.EnvTest)
			}

			gateway, ctx, cleanup, err := openGateway(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			user, err := gateway.GetUserByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return fmt.Errorf("no user with email %s; run inkctl signup first", email)
				}
				return err
			}

			issued, err := auth.IssueKey(env)
			if err != nil {
				return fmt.Errorf("generate api key: %w", err)
			}

			key := &model.APIKey{
				UserID:    user.ID,
				KeyHash:   issued.Hash,
				KeyPrefix: issued.Prefix,
				Name:      name,
			}
			if err := gateway.CreateAPIKey(ctx, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Store this key now. It cannot be shown again.")
			return printResult(cmd, rootOpts, issuedKeyResult{
				KeyID:     key.ID,
				UserID:    user.ID,
				Email:     user.Email,
				Name:      key.Name,
				KeyPrefix: key.KeyPrefix,
				Key:       issued.Plaintext,
			}, issued.Plaintext)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner's email address (required)")
	cmd.Flags().StringVar(&name, "name", "default", "label for the key")
	cmd.Flags().StringVar(&env, "env", auth.EnvLive, "key environment (live|test)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// NewRevokeKeyCommand creates the revoke-key command.
func NewRevokeKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Revoke an API key",
		Long: `Revoke an API key by ID.

Servers with a principal cache may keep accepting the key until the cached
entry expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, ctx, cleanup, err := openGateway(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := gateway.RevokeAPIKey(ctx, id); err != nil {
				if errors.Is(err, repository.ErrAPIKeyNotFound) {
					return fmt.Errorf("no active api key with id %s", id)
				}
				return err
			}

			return printResult(cmd, rootOpts, map[string]string{"key_id": id, "status": "revoked"},
				fmt.Sprintf("revoked %s", id))
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "key ID (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
