package reporter

import (
	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/reconciler"
)

// The view types below flatten decimals, dates and durations to strings so
// the JSON and YAML renderings carry the same values.

type transactionView struct {
	ID                   string `json:"id" yaml:"id"`
	Date                 string `json:"date" yaml:"date"`
	Name                 string `json:"name" yaml:"name"`
	Car                  string `json:"car,omitempty" yaml:"car,omitempty"`
	Depositor            string `json:"depositor,omitempty" yaml:"depositor,omitempty"`
	Value                string `json:"value" yaml:"value"`
	Status               string `json:"status" yaml:"status"`
	Source               string `json:"source" yaml:"source"`
	PaymentMethod        string `json:"paymentMethod,omitempty" yaml:"payment_method,omitempty"`
	Confidence           *int   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	MatchedTransactionID string `json:"matchedTransactionId,omitempty" yaml:"matched_transaction_id,omitempty"`
}

type matchView struct {
	Statement  transactionView `json:"statement" yaml:"statement"`
	Ledger     transactionView `json:"ledger" yaml:"ledger"`
	Confidence int             `json:"confidence" yaml:"confidence"`
	Type       string          `json:"type" yaml:"type"`
	Reasons    []string        `json:"reasons" yaml:"reasons"`
}

type summaryView struct {
	StatementCount          int     `json:"statementCount" yaml:"statement_count"`
	LedgerCount             int     `json:"ledgerCount" yaml:"ledger_count"`
	Matched                 int     `json:"matched" yaml:"matched"`
	MatchRate               float64 `json:"matchRate" yaml:"match_rate"`
	UnmatchedStatement      int     `json:"unmatchedStatement" yaml:"unmatched_statement"`
	UnmatchedLedger         int     `json:"unmatchedLedger" yaml:"unmatched_ledger"`
	ExactMatches            int     `json:"exactMatches" yaml:"exact_matches"`
	CloseMatches            int     `json:"closeMatches" yaml:"close_matches"`
	FuzzyMatches            int     `json:"fuzzyMatches" yaml:"fuzzy_matches"`
	ValueMatched            string  `json:"valueMatched" yaml:"value_matched"`
	ValueUnmatchedLedger    string  `json:"valueUnmatchedLedger" yaml:"value_unmatched_ledger"`
	ValueUnmatchedStatement string  `json:"valueUnmatchedStatement" yaml:"value_unmatched_statement"`
}

type runDocument struct {
	Summary            summaryView       `json:"summary" yaml:"summary"`
	Persisted          int               `json:"persisted" yaml:"persisted"`
	Duration           string            `json:"duration" yaml:"duration"`
	Matches            []matchView       `json:"matches,omitempty" yaml:"matches,omitempty"`
	UnmatchedStatement []transactionView `json:"unmatchedStatement,omitempty" yaml:"unmatched_statement,omitempty"`
	UnmatchedLedger    []transactionView `json:"unmatchedLedger,omitempty" yaml:"unmatched_ledger,omitempty"`
}

type importDocument struct {
	Files      []reconciler.FileSummary `json:"files" yaml:"files"`
	Parsed     int                      `json:"parsed" yaml:"parsed"`
	Imported   int                      `json:"imported" yaml:"imported"`
	Duplicates int                      `json:"duplicates" yaml:"duplicates"`
	Failed     int                      `json:"failed" yaml:"failed"`
}

func newTransactionView(tx models.Transaction) transactionView {
	return transactionView{
		ID:                   tx.ID,
		Date:                 tx.Date.Format(models.DateLayout),
		Name:                 tx.Name,
		Car:                  tx.Car,
		Depositor:            tx.Depositor,
		Value:                tx.Value.StringFixed(2),
		Status:               tx.Status.String(),
		Source:               tx.Source,
		PaymentMethod:        tx.PaymentMethod,
		Confidence:           tx.Confidence,
		MatchedTransactionID: tx.MatchedTransactionID,
	}
}

func transactionViews(txs []models.Transaction) []transactionView {
	views := make([]transactionView, len(txs))
	for i, tx := range txs {
		views[i] = newTransactionView(tx)
	}
	return views
}

func newMatchView(m matcher.Match) matchView {
	return matchView{
		Statement:  newTransactionView(m.Statement),
		Ledger:     newTransactionView(m.Ledger),
		Confidence: m.Confidence,
		Type:       m.Type.String(),
		Reasons:    m.Reasons,
	}
}

func (rg *ReportGenerator) buildRunDocument(run *reconciler.RunResult) runDocument {
	s := run.Summary
	doc := runDocument{
		Summary: summaryView{
			StatementCount:          s.StatementCount,
			LedgerCount:             s.LedgerCount,
			Matched:                 s.Matched,
			MatchRate:               s.MatchRate(),
			UnmatchedStatement:      s.UnmatchedStatement,
			UnmatchedLedger:         s.UnmatchedLedger,
			ExactMatches:            s.ExactMatches,
			CloseMatches:            s.CloseMatches,
			FuzzyMatches:            s.FuzzyMatches,
			ValueMatched:            s.ValueMatched.StringFixed(2),
			ValueUnmatchedLedger:    s.ValueUnmatchedLedger.StringFixed(2),
			ValueUnmatchedStatement: s.ValueUnmatchedStmt.StringFixed(2),
		},
		Persisted: run.Persisted,
		Duration:  run.Duration.String(),
	}

	if rg.config.IncludeMatches {
		for _, m := range run.Matches {
			doc.Matches = append(doc.Matches, newMatchView(m))
		}
	}
	if rg.config.IncludeUnmatched {
		doc.UnmatchedStatement = transactionViews(run.UnmatchedStatement)
		doc.UnmatchedLedger = transactionViews(run.UnmatchedLedger)
	}

	return doc
}

func newImportDocument(summary *reconciler.ImportSummary) importDocument {
	return importDocument{
		Files:      summary.Files,
		Parsed:     summary.Parsed,
		Imported:   summary.Imported,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
	}
}
