package cli

import (
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/identity"
)

// idResult is the output payload for identity commands.
type idResult struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name,omitempty"`
}

// NewIDCommand creates the id command group.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Identity utilities",
	}
	cmd.AddCommand(newIDDeriveCommand(rootOpts))
	cmd.AddCommand(newIDUniqueCommand(rootOpts))
	cmd.AddCommand(newIDParseCommand(rootOpts))
	return cmd
}

func newIDDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "derive <namespace> <name>",
		Short:         "Derive the identity for a named object",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			id := identity.DeriveFromName(args[0], args[1])
			if rootOpts.Format == "json" {
				return f.Success(idResult{ID: id.String(), Namespace: args[0], Name: args[1]})
			}
			return f.Success(id.String())
		},
	}
}

func newIDUniqueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unique <namespace>",
		Short:         "Mint a fresh unnamed identity",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			id, err := identity.NewUnique(args[0])
			if err != nil {
				return f.Failure(ExitCommandError, err)
			}
			if rootOpts.Format == "json" {
				return f.Success(idResult{ID: id.String(), Namespace: args[0]})
			}
			return f.Success(id.String())
		},
	}
}

func newIDParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "parse <namespace> <id>",
		Short:         "Parse an identity string and verify namespace ownership",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			id, err := identity.Parse(args[0], args[1])
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			if rootOpts.Format == "json" {
				return f.Success(idResult{ID: id.String(), Namespace: args[0]})
			}
			return f.Success("valid: " + id.String())
		},
	}
}
