// Package matcher pairs statement transactions with ledger transactions.
//
// Every candidate pair passes through a fixed sequence of gates:
//  1. payment method / source compatibility (hard gate)
//  2. date within the tolerance window (+DatePoints)
//  3. value within one cent (+ValuePoints)
//  4. name credit: automatic for card payments, otherwise the best of three
//     name similarities must reach NameThreshold (+up to NamePoints)
//
// The best scoring pair wins, earlier ledger rows win ties, and each
// ledger row is consumed by at most one statement row. Statement rows are
// processed in input order; there is no global optimisation.
//
// Example usage:
//
//	engine, err := matcher.NewEngine(matcher.DefaultMatchingConfig())
//	result := engine.Reconcile(statementTxs, ledgerTxs)
//	for _, m := range result.Matches {
//		fmt.Println(m.Statement.ID, m.Ledger.ID, m.Confidence)
//	}
package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
)

// MatchType classifies how strong an accepted match is
type MatchType int

const (
	// MatchExact is a full-confidence match
	MatchExact MatchType = iota
	// MatchClose passed every gate with a strong name score
	MatchClose
	// MatchFuzzy passed every gate with a name score near the threshold
	MatchFuzzy
)

// String returns the string representation of MatchType
func (mt MatchType) String() string {
	switch mt {
	case MatchExact:
		return "Exact"
	case MatchClose:
		return "Close"
	case MatchFuzzy:
		return "Fuzzy"
	default:
		return "Unknown"
	}
}

// MatchingConfig holds the scoring parameters of the matcher
type MatchingConfig struct {
	// DateToleranceDays is the inclusive window, in calendar days, within
	// which two transactions may be paired
	DateToleranceDays int `json:"date_tolerance_days" mapstructure:"date_tolerance_days"`

	DatePoints  int `json:"date_points" mapstructure:"date_points"`
	ValuePoints int `json:"value_points" mapstructure:"value_points"`
	NamePoints  int `json:"name_points" mapstructure:"name_points"`

	// NameThreshold is the minimum similarity (0-100) for non-card pairs
	NameThreshold int `json:"name_threshold" mapstructure:"name_threshold"`

	// ValueEpsilon is the exclusive bound on the value difference
	ValueEpsilon decimal.Decimal `json:"value_epsilon" mapstructure:"value_epsilon"`

	// CardChannel and BankChannel are the source prefixes required by
	// card and zelle/deposit ledger payment methods
	CardChannel models.Channel `json:"card_channel" mapstructure:"card_channel"`
	BankChannel models.Channel `json:"bank_channel" mapstructure:"bank_channel"`

	// CloseMatchThreshold is the confidence at or above which a non-exact
	// match is reported as close rather than fuzzy
	CloseMatchThreshold int `json:"close_match_threshold" mapstructure:"close_match_threshold"`
}

// DefaultValueEpsilon is one cent
var DefaultValueEpsilon = decimal.New(1, -2)

// DefaultMatchingConfig returns the production scoring
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		DateToleranceDays:   2,
		DatePoints:          30,
		ValuePoints:         30,
		NamePoints:          40,
		NameThreshold:       50,
		ValueEpsilon:        DefaultValueEpsilon,
		CardChannel:         models.ChannelStripe,
		BankChannel:         models.ChannelWellsFargo,
		CloseMatchThreshold: 85,
	}
}

// StrictMatchingConfig requires same-day dates and near-identical names
func StrictMatchingConfig() *MatchingConfig {
	c := DefaultMatchingConfig()
	c.DateToleranceDays = 0
	c.NameThreshold = 80
	return c
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", mc.DateToleranceDays)
	}

	if mc.DatePoints < 0 || mc.ValuePoints < 0 || mc.NamePoints < 0 {
		return fmt.Errorf("points cannot be negative: date=%d value=%d name=%d",
			mc.DatePoints, mc.ValuePoints, mc.NamePoints)
	}

	if total := mc.DatePoints + mc.ValuePoints + mc.NamePoints; total != 100 {
		return fmt.Errorf("date, value and name points must sum to 100, got %d", total)
	}

	if mc.NameThreshold < 0 || mc.NameThreshold > 100 {
		return fmt.Errorf("name threshold must be between 0 and 100: %d", mc.NameThreshold)
	}

	if !mc.ValueEpsilon.IsPositive() {
		return fmt.Errorf("value epsilon must be positive: %s", mc.ValueEpsilon)
	}

	if strings.TrimSpace(string(mc.CardChannel)) == "" || strings.TrimSpace(string(mc.BankChannel)) == "" {
		return fmt.Errorf("card and bank channels cannot be empty")
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	c := *mc
	return &c
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{DateTolerance: ±%d days, Points: %d/%d/%d, NameThreshold: %d%%, Epsilon: %s}",
		mc.DateToleranceDays, mc.DatePoints, mc.ValuePoints, mc.NamePoints, mc.NameThreshold, mc.ValueEpsilon)
}

// matchType classifies an accepted confidence
func (mc *MatchingConfig) matchType(confidence int) MatchType {
	switch {
	case confidence >= 100:
		return MatchExact
	case confidence >= mc.CloseMatchThreshold:
		return MatchClose
	default:
		return MatchFuzzy
	}
}
