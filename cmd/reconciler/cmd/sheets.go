package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/pkg/errors"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Work with the Google Sheets ledger",
}

var sheetsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import ledger rows from the configured spreadsheet",
	Long: `Import reads the ledger spreadsheet and stores each row as a
pending-ledger transaction. Rows without a valid date are skipped and
rows already imported are left alone.

The access token is read from sheets.access_token
(RECONCILER_SHEETS_ACCESS_TOKEN).

Examples:
  reconciler sheets import --sheet-id 1AbC...
  RECONCILER_SHEETS_ID=1AbC... reconciler sheets import --store sqlite --dsn recon.db`,
	Args: cobra.NoArgs,
	RunE: runSheetsImport,
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.AddCommand(sheetsImportCmd)

	sheetsImportCmd.Flags().String("sheet-id", "", "spreadsheet id (default: sheets.id)")
	viper.BindPFlag("sheets.id", sheetsImportCmd.Flags().Lookup("sheet-id"))
}

func runSheetsImport(cmd *cobra.Command, args []string) error {
	source, err := sheetsSource()
	if err != nil {
		return err
	}
	if source == nil {
		return errNotConnected()
	}

	svc, closeStore, err := openService()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	mapped, err := source.Import(ctx, cfg.Sheets.Ledger.SheetID)
	if err != nil {
		return err
	}

	summary, err := svc.ImportLedger(ctx, mapped.Transactions)
	if err != nil {
		return err
	}

	return render(cmd, &reconciler.SyncResult{Ledger: summary, LedgerSkips: mapped.Skipped})
}

func errNotConnected() error {
	return errors.NetworkError(errors.CodeUnauthorized, "google sheets", nil).
		WithSuggestion("set sheets.access_token or RECONCILER_SHEETS_ACCESS_TOKEN")
}
