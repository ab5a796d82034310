package reconciler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
)

const bankCSV = `01/15/24,"500.00","","ZELLE FROM JOHN SMITH ON 01/15 REF # ABC"
01/16/24,"250.00","","ZELLE FROM MARIA SILVA ON 01/16 REF # DEF"
13/45/24,"1.00","","BAD DATE"
`

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := NewService(st, nil)
	require.NoError(t, err)
	return svc, st
}

func bankFile(name, content string) parsers.File {
	return parsers.File{Content: []byte(content), OriginalName: name}
}

func sheetRow(order int, date time.Time, name, depositor, value, method string) models.SheetTransaction {
	return models.SheetTransaction{
		Date:          date,
		Name:          name,
		Depositor:     depositor,
		Value:         decimal.RequireFromString(value),
		PaymentMethod: method,
		SheetOrder:    order,
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))

	cfg := DefaultConfig()
	cfg.Matching.NamePoints = 10
	_, err = NewService(store.NewMemoryStore(), cfg)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))

	cfg = DefaultConfig()
	cfg.Preprocessing.DecimalPlaces = 12
	_, err = NewService(store.NewMemoryStore(), cfg)
	assert.Error(t, err)

	svc, err := NewService(store.NewMemoryStore(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.MatchingConfig().DateToleranceDays)
	assert.NotNil(t, svc.Store())
}

func TestImportUpload_Bank(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	summary, err := svc.ImportUpload(ctx, []parsers.File{bankFile("wf.csv", bankCSV)}, models.UploadTypeBank)
	require.NoError(t, err)

	require.Len(t, summary.Files, 1)
	fs := summary.Files[0]
	assert.Equal(t, "wf.csv", fs.FileName)
	assert.Equal(t, "Wells Fargo - wf.csv", fs.Source)
	assert.Equal(t, 2, fs.Parsed)
	assert.Equal(t, 2, fs.Imported)
	assert.Equal(t, 1, fs.Skipped)
	assert.Equal(t, map[string]int{"invalid date": 1}, fs.SkipReasons)
	assert.Equal(t, 2, summary.Imported)
	assert.Len(t, summary.Transactions, 2)

	stored, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, tx := range stored {
		assert.Equal(t, models.StatusPendingStatement, tx.Status)
		assert.Equal(t, "Wells Fargo - wf.csv", tx.Source)
		assert.NotEmpty(t, tx.ID)
	}
	assert.Equal(t, "JOHN SMITH", stored[0].Depositor)
}

func TestImportUpload_ReuploadIsDeduplicated(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	_, err := svc.ImportUpload(ctx, []parsers.File{bankFile("wf.csv", bankCSV)}, models.UploadTypeBank)
	require.NoError(t, err)

	summary, err := svc.ImportUpload(ctx, []parsers.File{bankFile("wf-again.csv", bankCSV)}, models.UploadTypeBank)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 2, summary.Duplicates)

	stored, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestImportUpload_OtherChannelIsNotADuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.ImportUpload(ctx, []parsers.File{bankFile("wf.csv", bankCSV)}, models.UploadTypeBank)
	require.NoError(t, err)

	card := "Created date (UTC),Amount\n2024-01-15 12:00:00,500.00\n"
	summary, err := svc.ImportUpload(ctx, []parsers.File{bankFile("stripe.csv", card)}, models.UploadTypeStripe)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, "Stripe - stripe.csv", summary.Transactions[0].Source)
}

func TestImportUpload_FailedFileDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	files := []parsers.File{
		bankFile("statement.pdf", "%PDF"),
		bankFile("wf.csv", bankCSV),
	}
	summary, err := svc.ImportUpload(ctx, files, models.UploadTypeBank)

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryParse))
	assert.Contains(t, err.Error(), "statement.pdf")
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Failed)
	assert.NotEmpty(t, summary.Files[0].Error)
	assert.Equal(t, 2, summary.Imported)

	stored, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestImportUpload_RejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.ImportUpload(ctx, nil, models.UploadTypeBank)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = svc.ImportUpload(ctx, []parsers.File{bankFile("a.csv", bankCSV)}, models.UploadType("paypal"))
	re, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidUploadType, re.Code)

	many := make([]parsers.File, MaxUploadFiles+1)
	for i := range many {
		many[i] = bankFile("f.csv", bankCSV)
	}
	_, err = svc.ImportUpload(ctx, many, models.UploadTypeBank)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestImportLedger(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	day := models.Date(2024, 1, 15)

	rows := []models.SheetTransaction{
		sheetRow(0, day, "  John   Smith ", "John Smith", "500", models.PaymentMethodZelle),
		sheetRow(1, day, "", "", "-80.5", ""),
		sheetRow(2, time.Time{}, "No Date", "", "10", ""),
		sheetRow(3, day, "Ana", "", "99", models.PaymentMethodCreditCard),
		sheetRow(4, day, "Bia", "", "99", models.PaymentMethodCreditCard),
		sheetRow(5, day, "Ana", "", "99", models.PaymentMethodCreditCard),
	}

	summary, err := svc.ImportLedger(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Imported)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Files[0].Skipped)

	stored, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	assert.Equal(t, "John Smith", stored[0].Name)
	assert.Equal(t, models.StatusPendingLedger, stored[0].Status)
	assert.Equal(t, "Google Sheets", stored[0].Source)
	require.NotNil(t, stored[0].SheetOrder)
	assert.Equal(t, 0, *stored[0].SheetOrder)

	assert.Equal(t, "Unknown", stored[1].Name)
	assert.True(t, stored[1].Value.Equal(decimal.RequireFromString("80.5")))

	assert.Equal(t, "Ana", stored[2].Name)
	assert.Equal(t, "Bia", stored[3].Name)

	again, err := svc.ImportLedger(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, 5, again.Duplicates)
}

func TestRunReconciliation_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	_, err := svc.ImportLedger(ctx, []models.SheetTransaction{
		sheetRow(0, models.Date(2024, 1, 14), "John Smith", "John Smith", "500", models.PaymentMethodZelle),
		sheetRow(1, models.Date(2024, 3, 1), "Nobody", "Nobody", "42", models.PaymentMethodZelle),
	})
	require.NoError(t, err)
	_, err = svc.ImportUpload(ctx, []parsers.File{bankFile("wf.csv", bankCSV)}, models.UploadTypeBank)
	require.NoError(t, err)

	run, err := svc.RunReconciliation(ctx)
	require.NoError(t, err)

	require.Len(t, run.Matches, 1)
	m := run.Matches[0]
	assert.Equal(t, 100, m.Confidence)
	assert.Equal(t, matcher.MatchExact, m.Type)
	assert.Equal(t, 1, run.Persisted)
	assert.Len(t, run.UnmatchedStatement, 1)
	assert.Len(t, run.UnmatchedLedger, 1)
	assert.Equal(t, 1, run.Summary.Matched)

	stmt, err := st.Get(ctx, m.Statement.ID)
	require.NoError(t, err)
	led, err := st.Get(ctx, m.Ledger.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReconciled, stmt.Status)
	assert.Equal(t, models.StatusReconciled, led.Status)
	assert.Equal(t, led.ID, stmt.MatchedTransactionID)
	assert.Equal(t, stmt.ID, led.MatchedTransactionID)
	assert.Equal(t, 100, stmt.ConfidenceValue())
	assert.Equal(t, 100, led.ConfidenceValue())

	again, err := svc.RunReconciliation(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Matches)
	assert.Equal(t, 0, again.Persisted)
}

func TestRunReconciliation_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	run, err := svc.RunReconciliation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.Matches)
	assert.Empty(t, run.UnmatchedStatement)
	assert.Empty(t, run.UnmatchedLedger)
	assert.Equal(t, 0, run.Summary.Matched)
}

func seed(t *testing.T, st store.Store, txs ...models.Transaction) []models.Transaction {
	t.Helper()
	created, err := st.CreateMany(context.Background(), txs)
	require.NoError(t, err)
	return created
}

func pendingTx(name, value string, status models.Status, source string, date time.Time) models.Transaction {
	return models.Transaction{
		Date:   date,
		Name:   name,
		Value:  decimal.RequireFromString(value),
		Status: status,
		Source: source,
	}
}

func TestManualCandidatesAndReconcile(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	day := models.Date(2024, 2, 1)

	txs := seed(t, st,
		pendingTx("Client", "120.00", models.StatusPendingLedger, "Google Sheets", day),
		pendingTx("Deposit A", "120.00", models.StatusPendingStatement, "Wells Fargo - a.csv", day),
		pendingTx("Deposit B", "120.01", models.StatusPendingStatement, "Wells Fargo - a.csv", day),
		pendingTx("Other ledger", "120.00", models.StatusPendingLedger, "Google Sheets", day),
	)
	ledgerID, stmtID := txs[0].ID, txs[1].ID

	candidates, err := svc.ManualCandidates(ctx, ledgerID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, stmtID, candidates[0].ID)

	match, err := svc.ManualReconcile(ctx, ledgerID, stmtID)
	require.NoError(t, err)
	assert.Equal(t, stmtID, match.Statement.ID)
	assert.Equal(t, ledgerID, match.Ledger.ID)
	assert.Equal(t, []string{matcher.ManualReason}, match.Reasons)

	stored, err := st.Get(ctx, ledgerID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReconciled, stored.Status)
	assert.Equal(t, stmtID, stored.MatchedTransactionID)
	assert.Equal(t, matcher.ManualConfidence, stored.ConfidenceValue())

	candidates, err = svc.ManualCandidates(ctx, ledgerID)
	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)

	_, err = svc.ManualReconcile(ctx, txs[3].ID, stmtID)
	re, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeAlreadyReconciled, re.Code)
}

func TestManualReconcile_Errors(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	day := models.Date(2024, 2, 1)

	txs := seed(t, st,
		pendingTx("L1", "10", models.StatusPendingLedger, "Google Sheets", day),
		pendingTx("L2", "10", models.StatusPendingLedger, "Google Sheets", day),
	)

	tests := []struct {
		name     string
		id       string
		matchID  string
		category errors.ErrorCategory
		code     errors.ErrorCode
	}{
		{"missing id", "", txs[0].ID, errors.CategoryValidation, errors.CodeMissingField},
		{"missing match id", txs[0].ID, " ", errors.CategoryValidation, errors.CodeMissingField},
		{"unknown id", "nope", txs[0].ID, errors.CategoryNotFound, errors.CodeTransactionNotFound},
		{"unknown match id", txs[0].ID, "nope", errors.CategoryNotFound, errors.CodeTransactionNotFound},
		{"self match", txs[0].ID, txs[0].ID, errors.CategoryValidation, errors.CodeSelfMatch},
		{"same side", txs[0].ID, txs[1].ID, errors.CategoryValidation, errors.CodeIncompatibleStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ManualReconcile(ctx, tt.id, tt.matchID)
			re, ok := errors.AsReconcilerError(err)
			require.True(t, ok, "expected ReconcilerError, got %v", err)
			assert.Equal(t, tt.category, re.Category)
			assert.Equal(t, tt.code, re.Code)
		})
	}

	stored, err := st.List(ctx)
	require.NoError(t, err)
	for _, tx := range stored {
		assert.Equal(t, models.StatusPendingLedger, tx.Status)
	}
}

// lostRowStore behaves like a MemoryStore whose copy of one row vanished
// before the write reached it
type lostRowStore struct {
	*store.MemoryStore
	lostID string
}

func (s *lostRowStore) Update(ctx context.Context, id string, patch store.Patch) (models.Transaction, error) {
	if id == s.lostID {
		return models.Transaction{}, errors.NotFoundError(id)
	}
	return s.MemoryStore.Update(ctx, id, patch)
}

func (s *lostRowStore) UpdateMany(ctx context.Context, updates []store.Update) ([]models.Transaction, error) {
	redirected := make([]store.Update, len(updates))
	for i, u := range updates {
		if u.ID == s.lostID {
			u.ID = "lost-" + u.ID
		}
		redirected[i] = u
	}
	return s.MemoryStore.UpdateMany(ctx, redirected)
}

func TestManualReconcile_FailedWriteLeavesBothSidesPending(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	day := models.Date(2024, 2, 1)

	txs := seed(t, mem,
		pendingTx("Deposit", "75.00", models.StatusPendingStatement, "Wells Fargo - a.csv", day),
		pendingTx("Client", "75.00", models.StatusPendingLedger, "Google Sheets", day),
	)
	stmtID, ledgerID := txs[0].ID, txs[1].ID

	svc, err := NewService(&lostRowStore{MemoryStore: mem, lostID: ledgerID}, nil)
	require.NoError(t, err)

	_, err = svc.ManualReconcile(ctx, ledgerID, stmtID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryReconciliation))

	for _, id := range []string{stmtID, ledgerID} {
		stored, err := mem.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.Status.IsPending(), "%s should still be pending", stored.Name)
		assert.Empty(t, stored.MatchedTransactionID)
		assert.Nil(t, stored.Confidence)
	}
}

func TestReviewQueue(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	withDepositor := pendingTx("Has Depositor", "10", models.StatusPendingLedger, "Google Sheets", models.Date(2024, 1, 10))
	withDepositor.Depositor = "Someone"

	seed(t, st,
		pendingTx("Jan", "10", models.StatusPendingLedger, "Google Sheets", models.Date(2024, 1, 5)),
		pendingTx("Feb", "10", models.StatusPendingLedger, "Google Sheets", models.Date(2024, 2, 5)),
		withDepositor,
		pendingTx("Statement", "10", models.StatusPendingStatement, "Wells Fargo - a.csv", models.Date(2024, 1, 5)),
	)

	all, err := svc.ReviewQueue(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan", "Feb"}, names(all))

	start, end := models.Date(2024, 2, 1), models.Date(2024, 2, 5)
	feb, err := svc.ReviewQueue(ctx, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, []string{"Feb"}, names(feb))

	janEnd := models.Date(2024, 1, 31)
	jan, err := svc.ReviewQueue(ctx, nil, &janEnd)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan"}, names(jan))
}

func names(txs []models.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Name
	}
	return out
}

func TestPreprocessLedger(t *testing.T) {
	dp := NewDataPreprocessor(nil)
	day := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	out, stats := dp.PreprocessLedger([]models.SheetTransaction{
		sheetRow(0, day, " A  B ", " x ", "10.005", ""),
		sheetRow(1, models.Date(2024, 1, 16), "Clean", "", "5.00", ""),
		sheetRow(2, time.Time{}, "Gone", "", "1", ""),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "A B", out[0].Name)
	assert.Equal(t, "x", out[0].Depositor)
	assert.True(t, out[0].Date.Equal(models.Date(2024, 1, 15)))
	assert.True(t, out[0].Value.Equal(decimal.RequireFromString("10.01")))
	assert.Equal(t, 3, stats.Input)
	assert.Equal(t, 2, stats.Output)
	assert.Equal(t, 1, stats.Fixed)
	assert.Equal(t, 1, stats.Dropped)
	assert.True(t, strings.Contains(stats.Errors[0], "row 2"))
}
