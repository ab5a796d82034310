package reconciler

import (
	"fmt"
	"regexp"
	"strings"

	"reconciliation-dashboard/internal/ledger"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/logger"
)

// DataPreprocessor normalizes ledger rows before they are deduplicated and
// stored
type DataPreprocessor struct {
	config *PreprocessingConfig
	logger logger.Logger
}

// PreprocessingConfig contains configuration for data preprocessing
type PreprocessingConfig struct {
	// String normalization options
	TrimWhitespace     bool `mapstructure:"trim_whitespace"`
	CollapseWhitespace bool `mapstructure:"collapse_whitespace"`

	// DecimalPlaces rounds values; -1 leaves them untouched
	DecimalPlaces int `mapstructure:"decimal_places"`

	// DefaultName replaces an empty client name
	DefaultName string `mapstructure:"default_name"`
}

// PreprocessingStats counts what preprocessing did to one batch
type PreprocessingStats struct {
	Input   int      `json:"input"`
	Output  int      `json:"output"`
	Fixed   int      `json:"fixed"`
	Dropped int      `json:"dropped"`
	Errors  []string `json:"errors,omitempty"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// DefaultPreprocessingConfig returns a default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		TrimWhitespace:     true,
		CollapseWhitespace: true,
		DecimalPlaces:      2,
		DefaultName:        ledger.UnknownClient,
	}
}

// Validate validates the preprocessing configuration
func (c *PreprocessingConfig) Validate() error {
	if c.DecimalPlaces < -1 || c.DecimalPlaces > 8 {
		return fmt.Errorf("decimal places must be between -1 and 8, got %d", c.DecimalPlaces)
	}
	return nil
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}

	return &DataPreprocessor{
		config: config,
		logger: logger.WithComponent("preprocessor"),
	}
}

// PreprocessLedger normalizes ledger rows. Rows without a date are dropped;
// negative values are made absolute.
func (dp *DataPreprocessor) PreprocessLedger(rows []models.SheetTransaction) ([]models.SheetTransaction, *PreprocessingStats) {
	stats := &PreprocessingStats{Input: len(rows)}
	processed := make([]models.SheetTransaction, 0, len(rows))

	for _, row := range rows {
		if row.Date.IsZero() {
			stats.Dropped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: missing date", row.SheetOrder))
			continue
		}

		clean, fixed := dp.preprocessRow(row)
		if fixed {
			stats.Fixed++
		}
		processed = append(processed, clean)
	}

	stats.Output = len(processed)
	if stats.Dropped > 0 || stats.Fixed > 0 {
		dp.logger.WithFields(logger.Fields{
			"input":   stats.Input,
			"fixed":   stats.Fixed,
			"dropped": stats.Dropped,
		}).Debug("Preprocessed ledger rows")
	}

	return processed, stats
}

func (dp *DataPreprocessor) preprocessRow(row models.SheetTransaction) (models.SheetTransaction, bool) {
	original := row

	row.Date = models.NormalizeDate(row.Date)
	row.Name = dp.normalizeString(row.Name)
	row.Car = dp.normalizeString(row.Car)
	row.Depositor = dp.normalizeString(row.Depositor)
	row.PaymentMethod = dp.normalizeString(row.PaymentMethod)

	if row.Name == "" {
		row.Name = dp.config.DefaultName
	}

	row.Value = row.Value.Abs()
	if dp.config.DecimalPlaces >= 0 {
		row.Value = row.Value.Round(int32(dp.config.DecimalPlaces))
	}

	fixed := row.Name != original.Name ||
		row.Car != original.Car ||
		row.Depositor != original.Depositor ||
		row.PaymentMethod != original.PaymentMethod ||
		!row.Value.Equal(original.Value) ||
		!row.Date.Equal(original.Date)

	return row, fixed
}

// normalizeString applies string normalization rules
func (dp *DataPreprocessor) normalizeString(s string) string {
	if dp.config.TrimWhitespace {
		s = strings.TrimSpace(s)
	}
	if dp.config.CollapseWhitespace {
		s = whitespaceRun.ReplaceAllString(s, " ")
	}
	return s
}
