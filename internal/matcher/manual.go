package matcher

import "reconciliation-dashboard/internal/models"

const (
	// MaxManualCandidates caps the suggestions returned for one transaction
	MaxManualCandidates = 10

	// ManualConfidence is recorded on both sides of a user-confirmed match
	ManualConfidence = 100
)

// ManualReason is the single reason attached to a user-confirmed match
const ManualReason = "Manually reconciled"

// FindManualCandidates lists pending transactions on the opposite side whose
// value is within a cent of tx, in pool order. A transaction that is not
// pending has no candidates.
func FindManualCandidates(tx models.Transaction, pool []models.Transaction) []models.Transaction {
	want := tx.Status.Complement()
	if want == "" {
		return nil
	}

	var candidates []models.Transaction
	for _, other := range pool {
		if other.ID == tx.ID || other.Status != want {
			continue
		}
		if !models.ValuesEqual(tx.Value, other.Value, DefaultValueEpsilon) {
			continue
		}

		candidates = append(candidates, other)
		if len(candidates) == MaxManualCandidates {
			break
		}
	}

	return candidates
}

// NeedsManualReview reports whether a ledger row lacks the depositor the
// automatic name gate usually relies on
func NeedsManualReview(tx models.Transaction) bool {
	return tx.Status == models.StatusPendingLedger && tx.Depositor == ""
}

// ValidateManualMatch checks that a and b can be reconciled with each other
func ValidateManualMatch(a, b *models.Transaction) error {
	return checkPair(a, b)
}

// ManualMatch validates and applies a user-confirmed pairing. The returned
// Match holds the statement side in Statement whatever the argument order.
func ManualMatch(a, b *models.Transaction) (Match, error) {
	aWasLedger := a != nil && a.Status == models.StatusPendingLedger

	if err := ApplyMatch(a, b, ManualConfidence); err != nil {
		return Match{}, err
	}

	match := Match{
		Statement:  *a,
		Ledger:     *b,
		Confidence: ManualConfidence,
		Type:       MatchExact,
		Reasons:    []string{ManualReason},
	}
	if aWasLedger {
		match.Statement, match.Ledger = *b, *a
	}

	return match, nil
}
