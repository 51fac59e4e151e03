package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/service"
)

type userResult struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// NewSignupCommand creates the signup command.
func NewSignupCommand(rootOpts *RootOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, ctx, cleanup, err := openGateway(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			input := service.SignupInput{Email: email}
			if name != "" {
				input.Name = &name
			}

			user, err := service.NewContentService(gateway, metrics.NewNoop()).Signup(ctx, input)
			if err != nil {
				return err
			}

			return printResult(cmd, rootOpts,
				userResult{ID: user.ID, Email: user.Email, Name: user.Name},
				fmt.Sprintf("created user %s <%s>", user.ID, user.Email),
			)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
