package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// Flags for the reconcile command
var (
	bankFiles     []string
	stripeFiles   []string
	syncSheetID   string
	skipLedger    bool
	importOnly    bool
	dateTolerance int
	showProgress  bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the ledger and statements, then match pending transactions",
	Long: `Reconcile runs a full sync: it imports the ledger spreadsheet (when a
sheet is connected), imports any statement files given, and then matches
every pending-statement transaction against the pending ledger.

Each match scores date proximity, value equality and name similarity and
marks both sides reconciled. Unmatched rows stay pending for the next run
or for manual review.

Examples:
  # Match what is already in the store
  reconciler reconcile --store sqlite --dsn recon.db --skip-ledger

  # Import statements and the ledger, then match
  reconciler reconcile --bank wf.csv,wf.ofx --stripe payments.csv

  # Wider date window with progress on stderr
  reconciler reconcile --bank wf.csv --date-tolerance 3 --progress

  # Machine readable output
  reconciler reconcile --bank wf.csv --output-format json --output-file run.json`,
	Args:    cobra.NoArgs,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringSliceVarP(&bankFiles, "bank", "b", []string{}, "comma-separated bank statement files (OFX or CSV)")
	reconcileCmd.Flags().StringSliceVarP(&stripeFiles, "stripe", "s", []string{}, "comma-separated Stripe export files")
	reconcileCmd.Flags().StringVar(&syncSheetID, "sheet-id", "", "ledger spreadsheet id (default: sheets.id)")
	reconcileCmd.Flags().BoolVar(&skipLedger, "skip-ledger", false, "do not import the ledger spreadsheet")
	reconcileCmd.Flags().BoolVar(&importOnly, "import-only", false, "import without matching")

	// Matching configuration flags
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 2, "date matching tolerance in days")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Bind flags to viper
	viper.BindPFlag("matching.date_tolerance_days", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	showProgress = viper.GetBool("progress")

	if len(bankFiles) > reconciler.MaxUploadFiles {
		return errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("at most %d bank files per run", reconciler.MaxUploadFiles), nil)
	}
	if len(stripeFiles) > reconciler.MaxUploadFiles {
		return errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("at most %d stripe files per run", reconciler.MaxUploadFiles), nil)
	}

	for i, f := range bankFiles {
		if err := validateFileExists(f, fmt.Sprintf("bank file %d", i+1)); err != nil {
			return err
		}
	}
	for i, f := range stripeFiles {
		if err := validateFileExists(f, fmt.Sprintf("stripe file %d", i+1)); err != nil {
			return err
		}
	}

	// Validate tolerances
	if viper.GetInt("matching.date_tolerance_days") < 0 {
		return errors.ValidationError(errors.CodeInvalidValue, "date tolerance cannot be negative", nil)
	}

	return nil
}

// buildSyncRequest reads the statement files named on the command line
func buildSyncRequest() (reconciler.SyncRequest, error) {
	req := reconciler.SyncRequest{
		SkipLedger:    skipLedger,
		SheetID:       syncSheetID,
		SkipReconcile: importOnly,
	}

	batches := []struct {
		uploadType models.UploadType
		paths      []string
	}{
		{models.UploadTypeBank, bankFiles},
		{models.UploadTypeStripe, stripeFiles},
	}
	for _, b := range batches {
		if len(b.paths) == 0 {
			continue
		}
		files, err := readFiles(b.paths)
		if err != nil {
			return req, err
		}
		req.Uploads = append(req.Uploads, reconciler.UploadBatch{Type: b.uploadType, Files: files})
	}

	return req, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logger.WithComponent("cli")

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		if len(bankFiles) > 0 {
			fmt.Fprintf(os.Stderr, "Bank files: %s\n", strings.Join(bankFiles, ", "))
		}
		if len(stripeFiles) > 0 {
			fmt.Fprintf(os.Stderr, "Stripe files: %s\n", strings.Join(stripeFiles, ", "))
		}
		fmt.Fprintf(os.Stderr, "Output format: %s\n", cfg.Output.Format)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	req, err := buildSyncRequest()
	if err != nil {
		return err
	}

	source, err := sheetsSource()
	if err != nil {
		return err
	}
	if source == nil && !req.SkipLedger {
		log.Warn("No spreadsheet connected, skipping ledger import")
		req.SkipLedger = true
	}

	svc, closeStore, err := openService()
	if err != nil {
		return err
	}
	defer closeStore()

	orchestrator, err := reconciler.NewOrchestrator(svc, source)
	if err != nil {
		return err
	}

	// Add progress callback if requested
	if showProgress {
		orchestrator.AddProgressCallback(func(progress reconciler.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := orchestrator.Sync(ctx, req)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n") // New line after progress
	}
	if err != nil {
		if result != nil && (result.Ledger != nil || len(result.Uploads) > 0) {
			if renderErr := render(cmd, result); renderErr != nil {
				log.WithError(renderErr).Warn("Could not render partial results")
			}
		}
		return err
	}

	if err := render(cmd, result); err != nil {
		return err
	}

	// Show completion message
	if viper.GetBool("verbose") {
		progress := orchestrator.Progress()
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Imported %d transactions, found %d matches.\n", progress.Imported, progress.MatchesFound)
		for _, w := range progress.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", progress.ElapsedTime)
	}

	return nil
}
