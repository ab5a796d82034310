package parsers

import (
	"fmt"
	"time"
)

// ParserConfig holds the tunables shared by every format parser
type ParserConfig struct {
	// CardTimestampOffset is subtracted from processor UTC timestamps
	// before truncating them to a calendar day.
	CardTimestampOffset time.Duration `json:"card_timestamp_offset" mapstructure:"card_timestamp_offset"`
}

// DefaultParserConfig returns a configuration with the production defaults
func DefaultParserConfig() *ParserConfig {
	return &ParserConfig{
		CardTimestampOffset: 4 * time.Hour,
	}
}

// Validate checks if the parser configuration is valid
func (c *ParserConfig) Validate() error {
	if c.CardTimestampOffset < -14*time.Hour || c.CardTimestampOffset > 14*time.Hour {
		return fmt.Errorf("card timestamp offset must be within ±14h, got %s", c.CardTimestampOffset)
	}
	return nil
}

// HeaderAliases lists, in priority order, the column names accepted for
// each logical field of a processor export. Matching is case-insensitive.
type HeaderAliases struct {
	Date        []string `json:"date"`
	Value       []string `json:"value"`
	Description []string `json:"description"`
	Captured    []string `json:"captured"`
}

// ProcessorHeaderAliases are the column names seen in payment processor
// exports, including the Portuguese variants used by the office's
// spreadsheets.
var ProcessorHeaderAliases = HeaderAliases{
	Date:        []string{"Date", "DATA", "Created date (UTC)", "Created Date"},
	Value:       []string{"Amount", "Value", "VALOR"},
	Description: []string{"Description", "Name", "DESCRICAO"},
	Captured:    []string{"Captured"},
}
