package reporter

import (
	"fmt"
	"io"
	"os"

	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with input checks, logging and
// a console fallback when the structured encoders fail
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", formatOf(config), err)
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// Render writes any of the results the CLI produces: *reconciler.RunResult,
// *reconciler.ImportSummary, *reconciler.SyncResult, *matcher.Match or a
// []models.Transaction list
func (srg *SafeReportGenerator) Render(result interface{}, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
		"type":   fmt.Sprintf("%T", result),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		return err
	}

	err := srg.render(srg.ReportGenerator, result, writer)
	if err == nil {
		return nil
	}
	if errors.IsReconcilerError(err) {
		return err
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")
	if srg.config.Format == FormatConsole {
		return srg.wrapGenerationError(err)
	}
	return srg.generateWithFormatFallback(result, writer, err)
}

func (srg *SafeReportGenerator) render(rg *ReportGenerator, result interface{}, writer io.Writer) error {
	switch r := result.(type) {
	case *reconciler.RunResult:
		return rg.GenerateReport(r, writer)
	case *reconciler.ImportSummary:
		return rg.GenerateImportReport(r, writer)
	case *reconciler.SyncResult:
		return rg.generateSync(r, writer)
	case *matcher.Match:
		return rg.GenerateMatch(r, writer)
	case []models.Transaction:
		return rg.GenerateTransactionList("transactions", r, writer)
	default:
		return errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("cannot render result of type %T", result), nil)
	}
}

// generateSync renders each step of a sync in order
func (rg *ReportGenerator) generateSync(sync *reconciler.SyncResult, writer io.Writer) error {
	if rg.config.Format != FormatConsole {
		return rg.encode(rg.buildSyncDocument(sync), writer)
	}

	if sync.Ledger != nil {
		if err := rg.GenerateImportReport(sync.Ledger, writer); err != nil {
			return err
		}
		for _, skip := range sync.LedgerSkips {
			rg.warn.Fprintf(writer, "  ledger row %d skipped (%s)\n", skip.Row, skip.Reason)
		}
		fmt.Fprintln(writer)
	}
	for _, upload := range sync.Uploads {
		if err := rg.GenerateImportReport(upload, writer); err != nil {
			return err
		}
		fmt.Fprintln(writer)
	}
	if sync.Run != nil {
		return rg.GenerateReport(sync.Run, writer)
	}
	return nil
}

type syncDocument struct {
	Ledger       *importDocument  `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	Uploads      []importDocument `json:"uploads,omitempty" yaml:"uploads,omitempty"`
	UploadErrors []string         `json:"uploadErrors,omitempty" yaml:"upload_errors,omitempty"`
	Run          *runDocument     `json:"run,omitempty" yaml:"run,omitempty"`
}

func (rg *ReportGenerator) buildSyncDocument(sync *reconciler.SyncResult) syncDocument {
	doc := syncDocument{UploadErrors: sync.UploadErrors}
	if sync.Ledger != nil {
		ledger := newImportDocument(sync.Ledger)
		doc.Ledger = &ledger
	}
	for _, upload := range sync.Uploads {
		doc.Uploads = append(doc.Uploads, newImportDocument(upload))
	}
	if sync.Run != nil {
		run := rg.buildRunDocument(sync.Run)
		doc.Run = &run
	}
	return doc
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(result interface{}, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "nothing to report", nil).
			WithSuggestion("provide a reconciliation result")
	}

	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "report writer is required", nil).
			WithSuggestion("provide a valid output writer")
	}

	return nil
}

// generateWithFormatFallback retries in console format after a structured
// encoder failed
func (srg *SafeReportGenerator) generateWithFormatFallback(result interface{}, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := srg.render(fallbackGenerator, result, writer); err != nil {
		return errors.InternalError("report fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err))
	}

	srg.logger.Info("Report generated using format fallback")
	return nil
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError("report generation", err).
		WithSuggestion("check the output destination and report format settings")
}

func formatOf(config *ReportConfig) interface{} {
	if config == nil {
		return nil
	}
	return config.Format
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
