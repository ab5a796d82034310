package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

var (
	reviewStart string
	reviewEnd   string
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Review and pair transactions the matcher left pending",
	Long: `Manual reconciliation lets you pair a pending transaction with a
pending transaction on the other side yourself.

Examples:
  reconciler manual review --start 2024-01-01 --end 2024-01-31
  reconciler manual candidates 6f1c...
  reconciler manual match 6f1c... 9a2e...`,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates <transaction-id>",
	Short: "List opposite-side transactions with the same value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		txs, err := svc.ManualCandidates(context.Background(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, txs)
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <transaction-id> <match-id>",
	Short: "Reconcile two transactions with each other",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		match, err := svc.ManualReconcile(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return render(cmd, match)
	},
}

var reviewCmd = &cobra.Command{
	Use:     "review",
	Short:   "List pending ledger rows that have no depositor",
	Args:    cobra.NoArgs,
	PreRunE: validateReviewFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, _ := reviewRange()

		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		txs, err := svc.ReviewQueue(context.Background(), start, end)
		if err != nil {
			return err
		}
		return render(cmd, txs)
	},
}

func init() {
	rootCmd.AddCommand(manualCmd)
	manualCmd.AddCommand(candidatesCmd, matchCmd, reviewCmd)

	// Date filtering flags
	reviewCmd.Flags().StringVar(&reviewStart, "start", "", "filter start date (YYYY-MM-DD)")
	reviewCmd.Flags().StringVar(&reviewEnd, "end", "", "filter end date (YYYY-MM-DD)")
}

func validateReviewFlags(cmd *cobra.Command, args []string) error {
	_, _, err := reviewRange()
	return err
}

// reviewRange parses the optional --start and --end flags
func reviewRange() (start, end *time.Time, err error) {
	if reviewStart != "" {
		t, err := models.ParseDate(reviewStart)
		if err != nil {
			return nil, nil, errors.ValidationError(errors.CodeInvalidValue,
				fmt.Sprintf("invalid start date %q", reviewStart), err).WithSuggestion("use YYYY-MM-DD")
		}
		start = &t
	}
	if reviewEnd != "" {
		t, err := models.ParseDate(reviewEnd)
		if err != nil {
			return nil, nil, errors.ValidationError(errors.CodeInvalidValue,
				fmt.Sprintf("invalid end date %q", reviewEnd), err).WithSuggestion("use YYYY-MM-DD")
		}
		end = &t
	}

	// Validate date range
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, errors.ValidationError(errors.CodeInvalidValue, "start date cannot be after end date", nil)
	}
	return start, end, nil
}
