package app

import (
	"github.com/spf13/cobra"

	"github.com/sudostake/sudostake-cli/internal/engine"
)

func (s *runtimeState) newLiquidityCommand() *cobra.Command {
	root := &cobra.Command{Use: "liquidity", Short: "Liquidity request lifecycle"}

	var openToken string
	var openAmount string
	var openInterest string
	var openCollateral string
	var openDurationDays int64
	openCmd := &cobra.Command{
		Use:         "open <vault-id>",
		Short:       "Open a liquidity request against the vault's staked collateral",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.OpenRequest(cmd.Context(), s.session, engine.OpenRequestParams{
				VaultID:        args[0],
				TokenKey:       openToken,
				Amount:         openAmount,
				Interest:       openInterest,
				CollateralNear: openCollateral,
				DurationDays:   openDurationDays,
			})
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	openCmd.Flags().StringVar(&openToken, "token", "", "Requested token (symbol, alias, or contract)")
	openCmd.Flags().StringVar(&openAmount, "amount", "", "Principal in token units")
	openCmd.Flags().StringVar(&openInterest, "interest", "", "Interest in token units")
	openCmd.Flags().StringVar(&openCollateral, "collateral", "", "Collateral in NEAR")
	openCmd.Flags().Int64Var(&openDurationDays, "duration", 0, "Loan duration in days")
	_ = openCmd.MarkFlagRequired("token")
	_ = openCmd.MarkFlagRequired("amount")
	_ = openCmd.MarkFlagRequired("interest")
	_ = openCmd.MarkFlagRequired("collateral")
	_ = openCmd.MarkFlagRequired("duration")

	acceptCmd := &cobra.Command{
		Use:         "accept <vault-id>",
		Short:       "Fund a vault's open liquidity request as lender",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.AcceptRequest(cmd.Context(), s.session, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}

	repayCmd := &cobra.Command{
		Use:         "repay <vault-id>",
		Short:       "Repay the vault's active loan",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Repay(cmd.Context(), s.session, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <vault-id>",
		Short: "Show the vault's loan lifecycle position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := s.engine.Status(cmd.Context(), s.session, args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), status)
		},
	}

	root.AddCommand(openCmd, acceptCmd, repayCmd, statusCmd)
	return root
}
