package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/similarity"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// Engine is the core engine responsible for transaction matching
type Engine struct {
	config *MatchingConfig
	logger logger.Logger
}

// Match is an accepted statement/ledger pair. Both sides already carry the
// reconciled state and point at each other.
type Match struct {
	Statement  models.Transaction `json:"statement" yaml:"statement"`
	Ledger     models.Transaction `json:"ledger" yaml:"ledger"`
	Confidence int                `json:"confidence" yaml:"confidence"`
	Type       MatchType          `json:"-" yaml:"-"`
	Reasons    []string           `json:"reasons" yaml:"reasons"`
}

// Result represents the complete result of a reconciliation pass
type Result struct {
	Matches            []Match              `json:"matches"`
	UnmatchedStatement []models.Transaction `json:"unmatchedStatement"`
	UnmatchedLedger    []models.Transaction `json:"unmatchedLedger"`
	Summary            Summary              `json:"summary"`
}

// Summary provides aggregate statistics about a reconciliation pass
type Summary struct {
	StatementCount       int             `json:"statementCount"`
	LedgerCount          int             `json:"ledgerCount"`
	Matched              int             `json:"matched"`
	UnmatchedStatement   int             `json:"unmatchedStatement"`
	UnmatchedLedger      int             `json:"unmatchedLedger"`
	ExactMatches         int             `json:"exactMatches"`
	CloseMatches         int             `json:"closeMatches"`
	FuzzyMatches         int             `json:"fuzzyMatches"`
	ValueMatched         decimal.Decimal `json:"valueMatched"`
	ValueUnmatchedLedger decimal.Decimal `json:"valueUnmatchedLedger"`
	ValueUnmatchedStmt   decimal.Decimal `json:"valueUnmatchedStatement"`
}

// Candidate is the score of one statement/ledger pair that passed every gate
type Candidate struct {
	Confidence int
	Reasons    []string
}

// NewEngine creates a new matching engine with the specified configuration
func NewEngine(config *MatchingConfig) (*Engine, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.String(), err)
	}

	return &Engine{
		config: config.Clone(),
		logger: logger.WithComponent("matcher"),
	}, nil
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() *MatchingConfig {
	return e.config.Clone()
}

// Reconcile pairs statement transactions with ledger transactions. Statement
// rows are visited in order; each takes the highest scoring ledger row that
// is still free, the earliest one on ties. Rows already reconciled or on the
// wrong pending side are never candidates. The inputs are not modified.
func (e *Engine) Reconcile(statement, ledger []models.Transaction) *Result {
	index := newLedgerIndex(ledger)
	consumed := make([]bool, len(ledger))
	matchedStmt := make([]bool, len(statement))

	var matches []Match

	for i := range statement {
		stmt := &statement[i]
		if !eligible(stmt, models.StatusPendingStatement) {
			continue
		}

		best := -1
		var bestCandidate Candidate

		for _, pos := range index.candidates(stmt.Date, e.config.DateToleranceDays) {
			if consumed[pos] || !eligible(&ledger[pos], models.StatusPendingLedger) {
				continue
			}

			candidate, ok := e.Score(stmt, &ledger[pos])
			if !ok {
				continue
			}

			if candidate.Confidence > bestCandidate.Confidence {
				best = pos
				bestCandidate = candidate
			}
		}

		if best < 0 {
			continue
		}

		consumed[best] = true
		matchedStmt[i] = true

		s := withRole(stmt.Clone(), models.StatusPendingStatement)
		l := withRole(ledger[best].Clone(), models.StatusPendingLedger)
		if err := ApplyMatch(&s, &l, bestCandidate.Confidence); err != nil {
			// only pending rows reach the matcher; anything else is left alone
			e.logger.WithError(err).WithField("statement_id", stmt.ID).Warn("Skipping match")
			consumed[best] = false
			matchedStmt[i] = false
			continue
		}

		matches = append(matches, Match{
			Statement:  s,
			Ledger:     l,
			Confidence: bestCandidate.Confidence,
			Type:       e.config.matchType(bestCandidate.Confidence),
			Reasons:    bestCandidate.Reasons,
		})

		e.logger.WithFields(logger.Fields{
			"statement_id": stmt.ID,
			"ledger_id":    ledger[best].ID,
			"confidence":   bestCandidate.Confidence,
		}).Debug("Matched transaction")
	}

	result := &Result{Matches: matches}

	for i, stmt := range statement {
		if !matchedStmt[i] {
			result.UnmatchedStatement = append(result.UnmatchedStatement, stmt)
		}
	}

	for i, l := range ledger {
		if !consumed[i] {
			result.UnmatchedLedger = append(result.UnmatchedLedger, l)
		}
	}

	result.Summary = e.summarize(len(statement), len(ledger), result)

	e.logger.WithFields(logger.Fields{
		"statement": len(statement),
		"ledger":    len(ledger),
		"matched":   len(matches),
	}).Info("Reconciliation pass finished")

	return result
}

// eligible reports whether tx can take the given pending role. A row without
// a status takes its role from the pool it was passed in.
func eligible(tx *models.Transaction, role models.Status) bool {
	return tx.Status == "" || tx.Status == role
}

func withRole(tx models.Transaction, role models.Status) models.Transaction {
	if tx.Status == "" {
		tx.Status = role
	}
	return tx
}

// Score runs the gates over a single pair. The second return value is false
// when any gate rejects the pair.
func (e *Engine) Score(stmt, ledger *models.Transaction) (Candidate, bool) {
	if !e.methodCompatible(stmt, ledger) {
		return Candidate{}, false
	}

	days := models.DaysApart(stmt.Date, ledger.Date)
	if days > e.config.DateToleranceDays {
		return Candidate{}, false
	}

	if !models.ValuesEqual(stmt.Value, ledger.Value, e.config.ValueEpsilon) {
		return Candidate{}, false
	}

	confidence := e.config.DatePoints + e.config.ValuePoints
	reasons := []string{
		fmt.Sprintf("Date within %d days (+%d)", days, e.config.DatePoints),
		fmt.Sprintf("Value matches (+%d)", e.config.ValuePoints),
	}

	if stmt.PaymentMethod == models.PaymentMethodCreditCard {
		confidence += e.config.NamePoints
		reasons = append(reasons, fmt.Sprintf("Credit card payment (+%d)", e.config.NamePoints))
		return Candidate{Confidence: confidence, Reasons: reasons}, true
	}

	sim := similarity.Best(
		[2]string{stmt.Depositor, ledger.Name},
		[2]string{stmt.Depositor, ledger.Depositor},
		[2]string{stmt.Name, ledger.Name},
	)
	if sim < e.config.NameThreshold {
		return Candidate{}, false
	}

	points := int(math.Round(float64(sim) / 100 * float64(e.config.NamePoints)))
	confidence += points
	reasons = append(reasons, fmt.Sprintf("Name similarity %d%% (+%d)", sim, points))

	return Candidate{Confidence: confidence, Reasons: reasons}, true
}

// methodCompatible is the hard payment method / source gate. Ledger rows
// without a recognised method pass.
func (e *Engine) methodCompatible(stmt, ledger *models.Transaction) bool {
	method := strings.ToLower(ledger.PaymentMethod)

	switch {
	case strings.Contains(method, "credit") || strings.Contains(method, "card"):
		return strings.HasPrefix(stmt.Source, string(e.config.CardChannel))
	case strings.Contains(method, "zelle") || strings.Contains(method, "deposit"):
		return strings.HasPrefix(stmt.Source, string(e.config.BankChannel))
	default:
		return true
	}
}

func (e *Engine) summarize(statementCount, ledgerCount int, result *Result) Summary {
	summary := Summary{
		StatementCount:       statementCount,
		LedgerCount:          ledgerCount,
		Matched:              len(result.Matches),
		UnmatchedStatement:   len(result.UnmatchedStatement),
		UnmatchedLedger:      len(result.UnmatchedLedger),
		ValueMatched:         decimal.Zero,
		ValueUnmatchedLedger: decimal.Zero,
		ValueUnmatchedStmt:   decimal.Zero,
	}

	for _, m := range result.Matches {
		switch m.Type {
		case MatchExact:
			summary.ExactMatches++
		case MatchClose:
			summary.CloseMatches++
		default:
			summary.FuzzyMatches++
		}
		summary.ValueMatched = summary.ValueMatched.Add(m.Statement.Value)
	}

	for _, tx := range result.UnmatchedStatement {
		summary.ValueUnmatchedStmt = summary.ValueUnmatchedStmt.Add(tx.Value)
	}
	for _, tx := range result.UnmatchedLedger {
		summary.ValueUnmatchedLedger = summary.ValueUnmatchedLedger.Add(tx.Value)
	}

	return summary
}

// MatchRate returns the share of statement rows that were matched, 0-100
func (s Summary) MatchRate() float64 {
	if s.StatementCount == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.StatementCount) * 100
}

// ApplyMatch moves both transactions to reconciled, links them to each other
// and records the shared confidence. It refuses anything that is not a
// pending pair of complementary statuses, so a reconciled transaction is
// never re-linked.
func ApplyMatch(a, b *models.Transaction, confidence int) error {
	if err := checkPair(a, b); err != nil {
		return err
	}

	aID, bID := a.ID, b.ID
	for _, pair := range []struct {
		tx      *models.Transaction
		partner string
	}{{a, bID}, {b, aID}} {
		c := confidence
		pair.tx.Status = models.StatusReconciled
		pair.tx.MatchedTransactionID = pair.partner
		pair.tx.Confidence = &c
	}

	return nil
}

func checkPair(a, b *models.Transaction) error {
	if a == nil || b == nil {
		return errors.ValidationError(errors.CodeMissingField, "both transactions are required", nil)
	}

	if a.ID != "" && a.ID == b.ID {
		return errors.ValidationError(errors.CodeSelfMatch, "cannot match a transaction with itself", nil).
			WithContext("id", a.ID)
	}

	if a.Status == models.StatusReconciled || b.Status == models.StatusReconciled {
		return errors.ValidationError(errors.CodeAlreadyReconciled, "transaction is already reconciled", nil).
			WithContext("transaction_id", a.ID).
			WithContext("match_id", b.ID)
	}

	if !a.Status.IsPending() || a.Status.Complement() != b.Status {
		return errors.ValidationError(errors.CodeIncompatibleStatus,
			fmt.Sprintf("cannot match %s with %s", a.Status, b.Status), nil).
			WithContext("transaction_id", a.ID).
			WithContext("match_id", b.ID)
	}

	return nil
}
