// Package dedup suppresses re-import of transactions already stored for the
// same upload channel.
package dedup

import (
	"strings"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/logger"
)

// IsDuplicate reports whether parsed already exists in pool. The pool is
// expected to be restricted to the parsed row's channel.
func IsDuplicate(parsed models.ParsedTransaction, pool []models.Transaction) bool {
	for i := range pool {
		if matches(parsed, &pool[i]) {
			return true
		}
	}
	return false
}

func matches(parsed models.ParsedTransaction, existing *models.Transaction) bool {
	if !models.SameDay(parsed.Date, existing.Date) || !parsed.Value.Equal(existing.Value) {
		return false
	}

	switch {
	case parsed.PaymentMethod == models.PaymentMethodCreditCard:
		// no identity to compare on card payments
		return true
	case parsed.Depositor != "" && existing.Depositor != "":
		return equalFold(parsed.Depositor, existing.Depositor)
	default:
		return equalFold(parsed.Name, existing.Name)
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SameChannel returns the transactions whose source belongs to channel
func SameChannel(txs []models.Transaction, channel models.Channel) []models.Transaction {
	return models.Filter(txs, func(t *models.Transaction) bool {
		return models.ChannelOf(t.Source) == channel
	})
}

// Filter applies the duplicate rule for one file's worth of parsed rows
type Filter struct {
	logger logger.Logger
}

// NewFilter creates a Filter
func NewFilter() *Filter {
	return &Filter{logger: logger.GetGlobalLogger().WithComponent("dedup")}
}

// Result is the outcome of filtering one file
type Result struct {
	Kept       []models.Transaction
	Duplicates []models.ParsedTransaction
}

// Apply compares parsed rows against existing transactions of the same
// channel and against rows already accepted from this batch, so repeats
// inside one file collapse too. Survivors are returned as transactions
// with the given status and source, ready to persist.
func (f *Filter) Apply(parsed []models.ParsedTransaction, existing []models.Transaction, status models.Status, source string) Result {
	channel := models.ChannelOf(source)
	pool := SameChannel(existing, channel)

	result := Result{
		Kept:       make([]models.Transaction, 0, len(parsed)),
		Duplicates: make([]models.ParsedTransaction, 0),
	}

	for _, p := range parsed {
		if IsDuplicate(p, pool) {
			f.logger.WithFields(logger.Fields{
				"channel": channel,
				"date":    p.Date.Format(models.DateLayout),
				"value":   p.Value.StringFixed(2),
			}).Debug("Dropping duplicate row")
			result.Duplicates = append(result.Duplicates, p)
			continue
		}

		tx := p.ToTransaction(source)
		tx.Status = status
		result.Kept = append(result.Kept, tx)
		pool = append(pool, tx)
	}

	f.logger.WithFields(logger.Fields{
		"channel":    channel,
		"kept":       len(result.Kept),
		"duplicates": len(result.Duplicates),
	}).Debug("Applied duplicate filter")

	return result
}
