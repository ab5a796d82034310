package reconciler

import (
	"context"
	"fmt"

	"reconciliation-dashboard/internal/dedup"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// MaxUploadFiles caps the files accepted by one upload
const MaxUploadFiles = 10

// FileSummary describes what happened to one imported file
type FileSummary struct {
	FileName    string         `json:"fileName" yaml:"file_name"`
	Format      string         `json:"format,omitempty" yaml:"format,omitempty"`
	Layout      string         `json:"layout,omitempty" yaml:"layout,omitempty"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty"`
	Parsed      int            `json:"parsed" yaml:"parsed"`
	Imported    int            `json:"imported" yaml:"imported"`
	Duplicates  int            `json:"duplicates" yaml:"duplicates"`
	Skipped     int            `json:"skipped" yaml:"skipped"`
	SkipReasons map[string]int `json:"skipReasons,omitempty" yaml:"skip_reasons,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// ImportSummary aggregates an upload or ledger import
type ImportSummary struct {
	Files        []FileSummary        `json:"files" yaml:"files"`
	Parsed       int                  `json:"parsed" yaml:"parsed"`
	Imported     int                  `json:"imported" yaml:"imported"`
	Duplicates   int                  `json:"duplicates" yaml:"duplicates"`
	Failed       int                  `json:"failed" yaml:"failed"`
	Transactions []models.Transaction `json:"transactions" yaml:"-"`
}

func (s *ImportSummary) add(fs FileSummary, created []models.Transaction) {
	s.Files = append(s.Files, fs)
	s.Parsed += fs.Parsed
	s.Imported += fs.Imported
	s.Duplicates += fs.Duplicates
	if fs.Error != "" {
		s.Failed++
	}
	s.Transactions = append(s.Transactions, created...)
}

// ImportUpload parses each file, drops rows already stored for the same
// channel and persists the rest as pending-statement. Files are processed
// in order; a file that fails to parse is recorded and skipped, and the
// failures are returned as one parse error once the remaining files are
// imported. Store failures abort the rest of the upload.
func (s *Service) ImportUpload(ctx context.Context, files []parsers.File, uploadType models.UploadType) (*ImportSummary, error) {
	if len(files) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "no files uploaded", nil)
	}
	if len(files) > MaxUploadFiles {
		return nil, errors.ValidationError(errors.CodeInvalidValue,
			fmt.Sprintf("too many files: %d (max %d)", len(files), MaxUploadFiles), nil)
	}
	if _, err := models.ParseUploadType(string(uploadType)); err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidUploadType, err.Error(), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op := logger.StartOperation("import_upload", s.logger).
		WithField("upload_type", uploadType).
		WithField("files", len(files))

	summary := &ImportSummary{Transactions: make([]models.Transaction, 0)}
	var failures []error

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			op.Done(err, nil)
			return summary, err
		}

		fs := FileSummary{FileName: file.OriginalName}

		result, err := s.parser.ParseFile(file, uploadType)
		if err != nil {
			fs.Error = err.Error()
			summary.add(fs, nil)
			failures = append(failures, fmt.Errorf("%s: %w", file.OriginalName, err))
			op.Warning("Skipping file that could not be parsed", err)
			continue
		}

		fs.Format = result.Format
		fs.Layout = result.Layout
		fs.Parsed = len(result.Transactions)
		fs.Skipped = result.Skipped()
		fs.SkipReasons = skipReasons(result)
		fs.Source = uploadType.Channel().SourceFor(file.OriginalName)

		existing, err := s.store.List(ctx)
		if err != nil {
			op.Done(err, nil)
			return summary, err
		}

		filtered := s.filter.Apply(result.Transactions, existing, models.StatusPendingStatement, fs.Source)
		fs.Duplicates = len(filtered.Duplicates)

		created, err := s.store.CreateMany(ctx, filtered.Kept)
		if err != nil {
			op.Done(err, nil)
			return summary, err
		}
		fs.Imported = len(created)

		op.Step("file_imported", logger.Fields{
			"file":       fs.FileName,
			"parsed":     fs.Parsed,
			"imported":   fs.Imported,
			"duplicates": fs.Duplicates,
			"skipped":    fs.Skipped,
		})
		summary.add(fs, created)
	}

	var err error
	if len(failures) > 0 {
		err = errors.Wrap(errors.Join(failures), errors.CategoryParse, errors.CodeParseFailed,
			fmt.Sprintf("%d of %d files could not be imported", len(failures), len(files)))
	}
	op.Done(err, logger.Fields{
		"imported":   summary.Imported,
		"duplicates": summary.Duplicates,
		"failed":     summary.Failed,
	})
	return summary, err
}

// ImportLedger stores ledger rows as pending-ledger, skipping rows that
// already exist in the ledger channel. Car and sheet order are kept.
func (s *Service) ImportLedger(ctx context.Context, rows []models.SheetTransaction) (*ImportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := logger.StartOperation("import_ledger", s.logger).WithField("rows", len(rows))

	clean, stats := s.preprocessor.PreprocessLedger(rows)

	existing, err := s.store.List(ctx)
	if err != nil {
		op.Done(err, nil)
		return nil, err
	}
	pool := dedup.SameChannel(existing, models.ChannelGoogleSheets)

	fs := FileSummary{
		FileName: string(models.ChannelGoogleSheets),
		Format:   "sheet",
		Source:   string(models.ChannelGoogleSheets),
		Parsed:   len(clean),
		Skipped:  stats.Dropped,
	}
	if stats.Dropped > 0 {
		fs.SkipReasons = map[string]int{"missing date": stats.Dropped}
	}

	kept := make([]models.Transaction, 0, len(clean))
	for _, row := range clean {
		parsed := row.AsParsed()
		// the card shortcut would fold different clients paying the same amount
		parsed.PaymentMethod = ""
		if dedup.IsDuplicate(parsed, pool) {
			fs.Duplicates++
			continue
		}

		tx := row.ToTransaction()
		kept = append(kept, tx)
		pool = append(pool, tx)
	}

	created, err := s.store.CreateMany(ctx, kept)
	if err != nil {
		op.Done(err, nil)
		return nil, err
	}
	fs.Imported = len(created)

	summary := &ImportSummary{Transactions: make([]models.Transaction, 0)}
	summary.add(fs, created)

	op.Done(nil, logger.Fields{
		"imported":   fs.Imported,
		"duplicates": fs.Duplicates,
		"fixed":      stats.Fixed,
	})
	return summary, nil
}

func skipReasons(result *parsers.ParseResult) map[string]int {
	counts := result.SkipCounts()
	if len(counts) == 0 {
		return nil
	}

	out := make(map[string]int, len(counts))
	for reason, n := range counts {
		out[string(reason)] = n
	}
	return out
}
