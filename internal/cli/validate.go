package cli

import (
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <config.yaml>",
		Short:         "Validate a configuration file",
		Long:          "Validate a configuration file against the schema and report\nproblems with file positions, without starting the host.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err := config.Validate(args[0]); err != nil {
				return f.Failure(ExitFailure, err)
			}
			return f.Success("configuration is valid")
		},
	}
}
