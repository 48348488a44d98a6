package app

import (
	"github.com/spf13/cobra"

	"github.com/sudostake/sudostake-cli/internal/registry"
)

func (s *runtimeState) newTokensCommand() *cobra.Command {
	root := &cobra.Command{Use: "tokens", Short: "Supported fungible tokens"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tokens supported on the selected network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := registry.Tokens(s.settings.Network)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), tokens)
		},
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <symbol-or-contract>",
		Short: "Resolve a token symbol, alias, or contract to its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := registry.ResolveToken(s.settings.Network, args[0])
			if err != nil {
				// Fall back to contract lookup so either form resolves.
				token, err = registry.ResolveTokenByContract(s.settings.Network, args[0])
			}
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), token)
		},
	}

	root.AddCommand(listCmd, resolveCmd)
	return root
}
