package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

func TestFindManualCandidates(t *testing.T) {
	target := ledgerTx("l1", "Ana", models.Date(2024, 1, 1), "100.00")

	pool := []models.Transaction{
		target,
		statementTx("s1", bankSource, models.Date(2024, 5, 1), "100.00"),
		statementTx("s2", bankSource, models.Date(2024, 1, 1), "100.01"),
		statementTx("s3", bankSource, models.Date(2024, 1, 1), "100.005"),
		ledgerTx("l2", "Ana", models.Date(2024, 1, 1), "100.00"),
		func() models.Transaction {
			tx := statementTx("s4", bankSource, models.Date(2024, 1, 1), "100.00")
			tx.Status = models.StatusReconciled
			return tx
		}(),
	}

	candidates := FindManualCandidates(target, pool)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"s1", "s3"}, ids)
}

func TestFindManualCandidates_Capped(t *testing.T) {
	target := statementTx("s0", cardSource, models.Date(2024, 1, 1), "20.00")

	var pool []models.Transaction
	for i := 0; i < 15; i++ {
		pool = append(pool, ledgerTx(fmt.Sprintf("l%02d", i), "Client", models.Date(2024, 1, 1), "20.00"))
	}

	candidates := FindManualCandidates(target, pool)

	require.Len(t, candidates, MaxManualCandidates)
	assert.Equal(t, "l00", candidates[0].ID)
	assert.Equal(t, "l09", candidates[9].ID)
}

func TestFindManualCandidates_ReconciledInput(t *testing.T) {
	target := statementTx("s0", cardSource, models.Date(2024, 1, 1), "20.00")
	target.Status = models.StatusReconciled

	pool := []models.Transaction{ledgerTx("l1", "Client", models.Date(2024, 1, 1), "20.00")}

	assert.Empty(t, FindManualCandidates(target, pool))
}

func TestNeedsManualReview(t *testing.T) {
	ledger := ledgerTx("l1", "Client", models.Date(2024, 1, 1), "20.00")
	assert.True(t, NeedsManualReview(ledger))

	ledger.Depositor = "CLIENT LLC"
	assert.False(t, NeedsManualReview(ledger))

	stmt := statementTx("s1", bankSource, models.Date(2024, 1, 1), "20.00")
	assert.False(t, NeedsManualReview(stmt))
}

func TestValidateManualMatch(t *testing.T) {
	reconciled := func(tx models.Transaction) models.Transaction {
		tx.Status = models.StatusReconciled
		tx.MatchedTransactionID = "x"
		return tx
	}

	stmt := statementTx("s1", bankSource, models.Date(2024, 1, 1), "20.00")
	ledger := ledgerTx("l1", "Client", models.Date(2024, 1, 1), "99.00")

	tests := []struct {
		name string
		a, b models.Transaction
		code errors.ErrorCode
	}{
		{"self match", stmt, stmt, errors.CodeSelfMatch},
		{"already reconciled", reconciled(stmt), ledger, errors.CodeAlreadyReconciled},
		{"partner reconciled", stmt, reconciled(ledger), errors.CodeAlreadyReconciled},
		{"two statement rows", stmt, statementTx("s2", bankSource, models.Date(2024, 1, 1), "20.00"), errors.CodeIncompatibleStatus},
		{"two ledger rows", ledger, ledgerTx("l2", "Other", models.Date(2024, 1, 1), "20.00"), errors.CodeIncompatibleStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := tt.a, tt.b
			err := ValidateManualMatch(&a, &b)
			require.Error(t, err)

			re, ok := errors.AsReconcilerError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategoryValidation, re.Category)
			assert.Equal(t, tt.code, re.Code)
		})
	}

	t.Run("missing transaction", func(t *testing.T) {
		err := ValidateManualMatch(&stmt, nil)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	})

	t.Run("values need not agree", func(t *testing.T) {
		a, b := stmt, ledger
		assert.NoError(t, ValidateManualMatch(&a, &b))
	})
}

func TestManualMatch(t *testing.T) {
	ledger := ledgerTx("l1", "Client", models.Date(2024, 1, 1), "20.00")
	stmt := statementTx("s1", bankSource, models.Date(2024, 1, 3), "20.00")

	match, err := ManualMatch(&ledger, &stmt)
	require.NoError(t, err)

	assert.Equal(t, "s1", match.Statement.ID)
	assert.Equal(t, "l1", match.Ledger.ID)
	assert.Equal(t, ManualConfidence, match.Confidence)
	assert.Equal(t, []string{ManualReason}, match.Reasons)

	assert.Equal(t, models.StatusReconciled, ledger.Status)
	assert.Equal(t, "s1", ledger.MatchedTransactionID)
	assert.Equal(t, "l1", stmt.MatchedTransactionID)
	assert.Equal(t, 100, stmt.ConfidenceValue())

	_, err = ManualMatch(&ledger, &stmt)
	assert.Error(t, err)
}

func TestLedgerIndex_CandidatesInInputOrder(t *testing.T) {
	ledger := []models.Transaction{
		ledgerTx("a", "x", models.Date(2024, 1, 12), "1"),
		ledgerTx("b", "x", models.Date(2024, 1, 10), "1"),
		ledgerTx("c", "x", models.Date(2024, 1, 20), "1"),
		ledgerTx("d", "x", models.Date(2024, 1, 8), "1"),
		ledgerTx("e", "x", models.Date(2024, 1, 7), "1"),
	}

	index := newLedgerIndex(ledger)

	assert.Equal(t, []int{0, 1, 3}, index.candidates(models.Date(2024, 1, 10), 2))
	assert.Equal(t, []int{1}, index.candidates(models.Date(2024, 1, 10), 0))
	assert.Empty(t, index.candidates(models.Date(2023, 1, 10), 2))
}
