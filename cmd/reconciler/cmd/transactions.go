package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

var (
	listStatus string
	listTrash  bool
)

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "List, delete and restore stored transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live or trashed transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status models.Status
		if listStatus != "" {
			status = models.Status(listStatus)
			if !status.IsValid() {
				return errors.ValidationError(errors.CodeInvalidValue, fmt.Sprintf("invalid status %q", listStatus), nil).
					WithSuggestion("use pending-statement, pending-ledger or reconciled")
			}
		}

		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := context.Background()
		txs, err := svc.Store().List(ctx)
		if listTrash {
			txs, err = svc.Store().ListTrash(ctx)
		}
		if err != nil {
			return err
		}
		if status != "" {
			txs = models.WithStatus(txs, status)
		}
		return render(cmd, txs)
	},
}

var transactionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Move a transaction to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := svc.Store().Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to trash\n", args[0])
		return nil
	},
}

var transactionsRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a trashed transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		tx, err := svc.Store().Restore(context.Background(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, []models.Transaction{tx})
	},
}

func init() {
	rootCmd.AddCommand(transactionsCmd)
	transactionsCmd.AddCommand(transactionsListCmd, transactionsDeleteCmd, transactionsRestoreCmd)

	transactionsListCmd.Flags().StringVar(&listStatus, "status", "", "only show transactions with this status")
	transactionsListCmd.Flags().BoolVar(&listTrash, "trash", false, "list trashed transactions instead")
}
