package parsers

import (
	"fmt"

	"reconciliation-dashboard/internal/models"
)

// SkipReason explains why a row did not produce a transaction
type SkipReason string

const (
	ReasonTooFewColumns SkipReason = "too few columns"
	ReasonMissingDate   SkipReason = "missing date"
	ReasonMissingValue  SkipReason = "missing value"
	ReasonInvalidDate   SkipReason = "invalid date"
	ReasonInvalidValue  SkipReason = "non-numeric value"
	ReasonZeroValue     SkipReason = "zero value"
	ReasonNotCaptured   SkipReason = "charge not captured"
)

// RowResult records the outcome of a single CSV row or OFX block
type RowResult struct {
	// Line is the 1-based CSV line, or the 1-based block ordinal for OFX
	Line   int        `json:"line"`
	Kept   bool       `json:"kept"`
	Reason SkipReason `json:"reason,omitempty"`
}

// ParseResult is the outcome of parsing one file
type ParseResult struct {
	FileName     string                     `json:"fileName"`
	Format       string                     `json:"format"`
	Layout       string                     `json:"layout,omitempty"`
	Transactions []models.ParsedTransaction `json:"transactions"`
	Rows         []RowResult                `json:"rows"`
}

func newResult(filename, format string) *ParseResult {
	return &ParseResult{
		FileName:     filename,
		Format:       format,
		Transactions: make([]models.ParsedTransaction, 0),
		Rows:         make([]RowResult, 0),
	}
}

func (r *ParseResult) keep(line int, tx models.ParsedTransaction) {
	r.Transactions = append(r.Transactions, tx)
	r.Rows = append(r.Rows, RowResult{Line: line, Kept: true})
}

func (r *ParseResult) skip(line int, reason SkipReason) {
	r.Rows = append(r.Rows, RowResult{Line: line, Reason: reason})
}

// Skipped returns the number of rows that were skipped
func (r *ParseResult) Skipped() int {
	n := 0
	for _, row := range r.Rows {
		if !row.Kept {
			n++
		}
	}
	return n
}

// SkipCounts groups skipped rows by reason
func (r *ParseResult) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, row := range r.Rows {
		if !row.Kept {
			counts[row.Reason]++
		}
	}
	return counts
}

// String returns a human-readable summary of the parse
func (r *ParseResult) String() string {
	return fmt.Sprintf("%s (%s): %d transactions, %d rows skipped",
		r.FileName, r.Format, len(r.Transactions), r.Skipped())
}
