package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-dashboard/internal/ledger"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/pkg/errors"
)

type fakeLedgerSource struct {
	result  *ledger.MapResult
	err     error
	sheetID string
}

func (f *fakeLedgerSource) Import(_ context.Context, sheetID string) (*ledger.MapResult, error) {
	f.sheetID = sheetID
	return f.result, f.err
}

func TestNewOrchestrator_RequiresService(t *testing.T) {
	_, err := NewOrchestrator(nil, nil)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestOrchestrator_Sync(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	source := &fakeLedgerSource{result: &ledger.MapResult{
		Transactions: []models.SheetTransaction{
			sheetRow(0, models.Date(2024, 1, 15), "John Smith", "John Smith", "500", models.PaymentMethodZelle),
		},
		Skipped:  []ledger.SkippedRow{{Row: 1, Reason: "invalid date"}},
		DataRows: 2,
	}}

	orch, err := NewOrchestrator(svc, source)
	require.NoError(t, err)

	var updates []Progress
	orch.AddProgressCallback(func(p Progress) { updates = append(updates, p) })

	result, err := orch.Sync(ctx, SyncRequest{
		SheetID: "sheet-1",
		Uploads: []UploadBatch{{
			Type: models.UploadTypeBank,
			Files: []parsers.File{
				bankFile("wf.csv", bankCSV),
				bankFile("notes.txt", "hello"),
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "sheet-1", source.sheetID)
	require.NotNil(t, result.Ledger)
	assert.Equal(t, 1, result.Ledger.Imported)
	assert.Len(t, result.LedgerSkips, 1)
	require.Len(t, result.Uploads, 1)
	assert.Equal(t, 2, result.Uploads[0].Imported)
	require.Len(t, result.UploadErrors, 1)
	assert.Contains(t, result.UploadErrors[0], "notes.txt")
	require.NotNil(t, result.Run)
	assert.Equal(t, 1, result.Run.Summary.Matched)

	progress := orch.Progress()
	assert.Equal(t, 3, progress.TotalSteps)
	assert.Equal(t, 3, progress.CompletedSteps)
	assert.InDelta(t, 100.0, progress.PercentComplete, 0.001)
	assert.Equal(t, 3, progress.Imported)
	assert.Equal(t, 1, progress.MatchesFound)
	assert.Len(t, progress.Warnings, 2)

	require.NotEmpty(t, updates)
	assert.Equal(t, "Importing ledger", updates[0].CurrentStep)
	assert.Equal(t, "Reconciling", updates[len(updates)-1].CurrentStep)
	assert.Equal(t, 3, updates[len(updates)-1].CompletedSteps)
}

func TestOrchestrator_SyncWithoutLedgerSource(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	orch, err := NewOrchestrator(svc, nil)
	require.NoError(t, err)

	_, err = orch.Sync(ctx, SyncRequest{})
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))

	result, err := orch.Sync(ctx, SyncRequest{SkipLedger: true, SkipReconcile: true})
	require.NoError(t, err)
	assert.Nil(t, result.Ledger)
	assert.Nil(t, result.Run)
}

func TestOrchestrator_LedgerFailureStopsSync(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	source := &fakeLedgerSource{err: errors.NetworkError(errors.CodeUnauthorized, "sheets", nil)}
	orch, err := NewOrchestrator(svc, source)
	require.NoError(t, err)

	_, err = orch.Sync(ctx, SyncRequest{
		Uploads: []UploadBatch{{Type: models.UploadTypeBank, Files: []parsers.File{bankFile("wf.csv", bankCSV)}}},
	})
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))

	stored, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
