// Package ledger imports the bookkeeping ledger from a Google spreadsheet.
package ledger

import (
	"context"
	stderrors "errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// DefaultRanges splits the sheet into batches that stay under the API
// response limit
var DefaultRanges = []string{"A1:F5000", "A5001:F10000", "A10001:F15000"}

// Config holds importer settings
type Config struct {
	SheetID string   `json:"sheet_id" mapstructure:"id"`
	Ranges  []string `json:"ranges" mapstructure:"ranges"`
}

// DefaultConfig returns the standard range batching with no sheet selected
func DefaultConfig() *Config {
	return &Config{Ranges: append([]string(nil), DefaultRanges...)}
}

// Validate checks that at least one range is configured
func (c *Config) Validate() error {
	if len(c.Ranges) == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "sheets.ranges", c.Ranges, nil)
	}
	return nil
}

// SheetsImporter reads ledger rows through the Sheets API
type SheetsImporter struct {
	provider TokenProvider
	config   *Config
	options  []option.ClientOption
	logger   logger.Logger
}

// NewSheetsImporter creates an importer. Extra client options are appended
// after the token source, which lets tests point it at a local endpoint.
func NewSheetsImporter(provider TokenProvider, config *Config, opts ...option.ClientOption) (*SheetsImporter, error) {
	if provider == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "sheets.access_token", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SheetsImporter{
		provider: provider,
		config:   config,
		options:  opts,
		logger:   logger.WithComponent("ledger"),
	}, nil
}

// Import fetches every configured range of sheetID, concatenates them and
// maps the rows. An empty sheetID falls back to the configured one.
func (i *SheetsImporter) Import(ctx context.Context, sheetID string) (*MapResult, error) {
	if sheetID == "" {
		sheetID = i.config.SheetID
	}
	if sheetID == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "sheet id is required", nil)
	}

	// fail early with a clear message when no account is connected
	if _, err := i.provider.Token(ctx); err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(tokenSource{ctx: ctx, provider: i.provider}),
	}, i.options...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "google sheets", err)
	}

	resp, err := srv.Spreadsheets.Values.BatchGet(sheetID).Ranges(i.config.Ranges...).Context(ctx).Do()
	if err != nil {
		return nil, classify(sheetID, err)
	}

	var rows [][]interface{}
	for _, vr := range resp.ValueRanges {
		rows = append(rows, vr.Values...)
	}

	result := MapRows(rows)

	i.logger.WithFields(logger.Fields{
		"sheet_id":  sheetID,
		"rows":      len(rows),
		"data_rows": result.DataRows,
		"imported":  len(result.Transactions),
		"skipped":   len(result.Skipped),
	}).Info("Fetched ledger rows")

	return result, nil
}

func classify(sheetID string, err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.NetworkError(errors.CodeUnauthorized, "google sheets", err).
				WithContext("sheet_id", sheetID)
		case http.StatusNotFound:
			return errors.ValidationError(errors.CodeInvalidValue, "spreadsheet not found: "+sheetID, err).
				WithContext("sheet_id", sheetID)
		}
	}
	return errors.NetworkError(errors.CodeConnectionFailed, "google sheets", err).
		WithContext("sheet_id", sheetID)
}
