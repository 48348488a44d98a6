package app

import (
	"github.com/spf13/cobra"
)

func (s *runtimeState) newStakeCommand() *cobra.Command {
	root := &cobra.Command{Use: "stake", Short: "Delegation operations"}

	var delegateValidator string
	var delegateAmount string
	delegateCmd := &cobra.Command{
		Use:         "delegate <vault-id>",
		Short:       "Stake available vault balance with a validator",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Delegate(cmd.Context(), s.session, args[0], delegateValidator, delegateAmount)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	delegateCmd.Flags().StringVar(&delegateValidator, "validator", "", "Staking pool account")
	delegateCmd.Flags().StringVar(&delegateAmount, "amount", "", "Amount in NEAR")
	_ = delegateCmd.MarkFlagRequired("validator")
	_ = delegateCmd.MarkFlagRequired("amount")

	var undelegateValidator string
	var undelegateAmount string
	undelegateCmd := &cobra.Command{
		Use:         "undelegate <vault-id>",
		Short:       "Start unbonding staked NEAR from a validator",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.Undelegate(cmd.Context(), s.session, args[0], undelegateValidator, undelegateAmount)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	undelegateCmd.Flags().StringVar(&undelegateValidator, "validator", "", "Staking pool account")
	undelegateCmd.Flags().StringVar(&undelegateAmount, "amount", "", "Amount in NEAR")
	_ = undelegateCmd.MarkFlagRequired("validator")
	_ = undelegateCmd.MarkFlagRequired("amount")

	var claimValidator string
	claimCmd := &cobra.Command{
		Use:         "claim <vault-id>",
		Short:       "Claim matured unbonded NEAR back into the vault",
		Args:        cobra.ExactArgs(1),
		Annotations: signingAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := s.engine.ClaimUnstaked(cmd.Context(), s.session, args[0], claimValidator)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result)
		},
	}
	claimCmd.Flags().StringVar(&claimValidator, "validator", "", "Staking pool account")
	_ = claimCmd.MarkFlagRequired("validator")

	root.AddCommand(delegateCmd, undelegateCmd, claimCmd)
	return root
}
