package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/txlog"
)

func (s *runtimeState) newTxCommand() *cobra.Command {
	root := &cobra.Command{Use: "tx", Short: "Local transaction log"}

	var vaultFilter string
	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently submitted transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !s.settings.TxLogEnabled {
				return clierr.New(clierr.CodeUsage, "transaction log is disabled")
			}
			store, err := txlog.Open(s.settings.TxLogPath, s.settings.TxLogLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open transaction log", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.Recent(vaultFilter, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "read transaction log", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records)
		},
	}
	recentCmd.Flags().StringVar(&vaultFilter, "vault", "", "Filter by vault account")
	recentCmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to return")

	root.AddCommand(recentCmd)
	return root
}
