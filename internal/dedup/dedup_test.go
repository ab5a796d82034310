package dedup

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-dashboard/internal/models"
)

func parsed(day int, value, name, depositor, method string) models.ParsedTransaction {
	return models.ParsedTransaction{
		Date:          models.Date(2024, 1, day),
		Name:          name,
		Value:         decimal.RequireFromString(value),
		PaymentMethod: method,
		Depositor:     depositor,
	}
}

func stored(day int, value, name, depositor, source string) models.Transaction {
	return models.Transaction{
		ID:        name + source,
		Date:      models.Date(2024, 1, day),
		Name:      name,
		Depositor: depositor,
		Value:     decimal.RequireFromString(value),
		Status:    models.StatusPendingStatement,
		Source:    source,
	}
}

func TestIsDuplicate(t *testing.T) {
	pool := []models.Transaction{
		stored(15, "500.00", "ZELLE FROM JOHN SMITH ON 01/15", "JOHN SMITH", "Wells Fargo - a.csv"),
		stored(16, "120.00", "Credit Card Payment", "", "Stripe - b.csv"),
		stored(17, "42.00", "Gusto Net Pay", "", "Wells Fargo - a.csv"),
	}

	tests := []struct {
		name string
		row  models.ParsedTransaction
		want bool
	}{
		{"same depositor different case", parsed(15, "500", "other text", "john smith", "Zelle"), true},
		{"different depositor", parsed(15, "500", "ZELLE FROM JOHN SMITH ON 01/15", "JANE DOE", "Zelle"), false},
		{"different day", parsed(14, "500", "", "JOHN SMITH", "Zelle"), false},
		{"different value", parsed(15, "500.01", "", "JOHN SMITH", "Zelle"), false},
		{"credit card date and value only", parsed(16, "120", "anything", "", "Credit Card"), true},
		{"name fallback", parsed(17, "42", " GUSTO NET PAY ", "", ""), true},
		{"name fallback mismatch", parsed(17, "42", "Gusto Payroll", "", ""), false},
		{"depositor only on one side falls back to name", parsed(17, "42", "gusto net pay", "GUSTO", ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicate(tt.row, pool))
		})
	}
}

func TestFilterApply_RestrictsToChannel(t *testing.T) {
	existing := []models.Transaction{
		stored(16, "120.00", "Credit Card Payment", "", "Stripe - b.csv"),
		stored(16, "120.00", "Credit Card Payment", "", "Google Sheets"),
	}
	rows := []models.ParsedTransaction{parsed(16, "120", "Credit Card Payment", "", "Credit Card")}

	res := NewFilter().Apply(rows, existing, models.StatusPendingStatement, models.ChannelWellsFargo.SourceFor("c.csv"))

	require.Len(t, res.Kept, 1, "Stripe and Sheets rows must not suppress a Wells Fargo row")
	assert.Equal(t, "Wells Fargo - c.csv", res.Kept[0].Source)
	assert.Equal(t, models.StatusPendingStatement, res.Kept[0].Status)
	assert.Empty(t, res.Duplicates)
}

func TestFilterApply_DepositorDuplicatesInOneFile(t *testing.T) {
	rows := []models.ParsedTransaction{
		parsed(15, "500", "ZELLE FROM JOHN SMITH ON 01/15 REF 1", "JOHN SMITH", "Zelle"),
		parsed(15, "500", "ZELLE FROM JOHN SMITH ON 01/15 REF 2", "JOHN SMITH", "Zelle"),
	}

	res := NewFilter().Apply(rows, nil, models.StatusPendingStatement, "Wells Fargo - x.csv")

	assert.Len(t, res.Kept, 1)
	assert.Len(t, res.Duplicates, 1)
}

func TestFilterApply_Idempotent(t *testing.T) {
	rows := []models.ParsedTransaction{
		parsed(15, "500", "ZELLE FROM JOHN SMITH ON 01/15", "JOHN SMITH", "Zelle"),
		parsed(16, "4363.67", "GUSTO NET PAY", "", ""),
		parsed(17, "9.99", "Bank Transaction", "", ""),
	}
	f := NewFilter()

	first := f.Apply(rows, nil, models.StatusPendingStatement, "Wells Fargo - x.csv")
	require.Len(t, first.Kept, 3)

	// a second import of the same file, possibly under another file name
	second := f.Apply(rows, first.Kept, models.StatusPendingStatement, "Wells Fargo - x (1).csv")
	assert.Empty(t, second.Kept)
	assert.Len(t, second.Duplicates, 3)
}

func TestSameChannel(t *testing.T) {
	txs := []models.Transaction{
		stored(1, "1", "a", "", "Stripe - 1.csv"),
		stored(1, "1", "b", "", "Wells Fargo - 1.csv"),
		stored(1, "1", "c", "", "Stripe - 2.csv"),
	}
	got := SameChannel(txs, models.ChannelStripe)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
}
