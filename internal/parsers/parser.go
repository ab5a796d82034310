// Package parsers turns uploaded statement files into canonical parsed
// transactions.
//
// Two formats are understood:
//   - OFX/SGML bank statements, scanned block by block
//   - CSV exports, either the bank's positional layout or a payment
//     processor export resolved through its header row
//
// Every row or block produces a RowResult, so callers can see why a row was
// dropped without scraping logs. A file only fails as a whole when it cannot
// be tokenized at all or its extension is not supported.
package parsers

import (
	"fmt"
	"path/filepath"
	"strings"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// File is one uploaded file
type File struct {
	Content      []byte
	OriginalName string
}

// Parser parses statement files according to its configuration
type Parser struct {
	config *ParserConfig
	logger logger.Logger
}

// NewParser creates a Parser; a nil config uses DefaultParserConfig
func NewParser(config *ParserConfig) (*Parser, error) {
	if config == nil {
		config = DefaultParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parser configuration: %w", err)
	}

	log := logger.GetGlobalLogger().WithComponent("parser")
	log.WithField("card_timestamp_offset", config.CardTimestampOffset.String()).Debug("Created parser")

	return &Parser{config: config, logger: log}, nil
}

// ParseFile dispatches on the file extension
func (p *Parser) ParseFile(file File, uploadType models.UploadType) (*ParseResult, error) {
	content := string(file.Content)

	switch strings.ToLower(filepath.Ext(file.OriginalName)) {
	case ".ofx":
		return p.ParseOFX(content, file.OriginalName), nil
	case ".csv":
		return p.ParseCSV(content, file.OriginalName, uploadType)
	default:
		p.logger.WithField("file", file.OriginalName).Warn("Rejected file with unsupported extension")
		return nil, errors.FileError(errors.CodeUnsupportedFormat, file.OriginalName, nil)
	}
}
