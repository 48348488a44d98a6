package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/registry"
)

func (s *runtimeState) newVaultCommand() *cobra.Command {
	root := &cobra.Command{Use: "vault", Short: "Vault state and balance operations"}

	stateCmd := &cobra.Command{
		Use:   "state <vault-id>",
		Short: "Read the vault's on-chain state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := s.engine.VaultState(cmd.Context(), s.session, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), state)
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <vault-id>",
		Short: "Show the vault's available NEAR balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := s.engine.AvailableBalance(cmd.Context(), s.session, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), balance)
		},
	}

	delegationsCmd := &cobra.Command{
		Use:   "delegations <vault-id>",
		Short: "Summarize staked and unbonding NEAR per validator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := s.engine.Delegations(cmd.Context(), s.session, args[0])
			if clierr.IsCode(err, clierr.CodePartialSummary) {
				return s.emitPartial(trimRootPath(cmd.CommandPath()), summary, err)
			}
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), summary)
		},
	}

	mintCmd := &cobra.Command{
		Use:         "mint",
		Short:       "Mint a new vault through the factory contract",
		Args:        cobra.NoArgs,
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Mint(cmd.Context(), s.session)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}

	var transferAmount string
	transferCmd := &cobra.Command{
		Use:         "transfer <vault-id>",
		Short:       "Transfer NEAR into the vault",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Transfer(cmd.Context(), s.session, args[0], transferAmount)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	transferCmd.Flags().StringVar(&transferAmount, "amount", "", "Amount in NEAR")
	_ = transferCmd.MarkFlagRequired("amount")

	var withdrawAmount string
	var withdrawTo string
	withdrawCmd := &cobra.Command{
		Use:         "withdraw <vault-id>",
		Short:       "Withdraw available NEAR from the vault",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Withdraw(cmd.Context(), s.session, args[0], withdrawAmount, withdrawTo)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	withdrawCmd.Flags().StringVar(&withdrawAmount, "amount", "", "Amount in NEAR")
	withdrawCmd.Flags().StringVar(&withdrawTo, "to", "", "Recipient account (defaults to the vault owner)")
	_ = withdrawCmd.MarkFlagRequired("amount")

	explorerCmd := &cobra.Command{
		Use:   "explorer <vault-id>",
		Short: "Print the explorer URL for a vault account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := registry.ExplorerAccountURL(s.settings.Network, args[0])
			data := map[string]string{"vault_id": args[0], "explorer_url": url}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}

	root.AddCommand(stateCmd, balanceCmd, delegationsCmd, mintCmd, transferCmd, withdrawCmd, explorerCmd)
	return root
}
