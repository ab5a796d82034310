package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/pkg/errors"
)

var importType string

// importCmd uploads statement files into the store
var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import bank or payment-processor statement files",
	Long: `Import parses statement files and stores their rows as pending-statement
transactions. Rows already present for the same channel are skipped.

Bank uploads accept OFX files and the bank's headerless CSV export.
Stripe uploads accept the processor's CSV export.

Examples:
  reconciler import --type bank statement.csv
  reconciler import --type stripe --store sqlite --dsn recon.db payments.csv
  reconciler import --type bank jan.ofx feb.ofx --output-format json`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importType, "type", "t", "", "upload type: bank or stripe (required)")
	importCmd.MarkFlagRequired("type")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if _, err := models.ParseUploadType(importType); err != nil {
		return errors.ValidationError(errors.CodeInvalidUploadType, err.Error(), nil).
			WithSuggestion("use --type bank or --type stripe")
	}
	for _, path := range args {
		if err := validateFileExists(path, "statement file"); err != nil {
			return err
		}
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	uploadType, _ := models.ParseUploadType(importType)

	files, err := readFiles(args)
	if err != nil {
		return err
	}

	svc, closeStore, err := openService()
	if err != nil {
		return err
	}
	defer closeStore()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Importing %d %s file(s)...\n", len(files), uploadType)
	}

	summary, err := svc.ImportUpload(context.Background(), files, uploadType)
	if summary != nil {
		if renderErr := render(cmd, summary); renderErr != nil {
			return renderErr
		}
	}
	return err
}

// readFiles loads each path as an upload named after its base name
func readFiles(paths []string) ([]parsers.File, error) {
	files := make([]parsers.File, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.FileError(errors.CodeFileUnreadable, path, err)
		}
		files = append(files, parsers.File{Content: content, OriginalName: filepath.Base(path)})
	}
	return files, nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, fmt.Sprintf("%s path cannot be empty", description), nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFileUnreadable, filePath, err)
	}

	if info.IsDir() {
		return errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("%s is a directory, expected a file: %s", description, filePath), nil)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFileUnreadable, filePath, err)
	}
	file.Close()

	return nil
}
