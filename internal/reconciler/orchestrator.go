package reconciler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"reconciliation-dashboard/internal/ledger"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// LedgerSource fetches ledger rows from the spreadsheet. An empty sheetID
// selects the source's configured sheet.
type LedgerSource interface {
	Import(ctx context.Context, sheetID string) (*ledger.MapResult, error)
}

// UploadBatch is a set of statement files sharing one upload type
type UploadBatch struct {
	Type  models.UploadType
	Files []parsers.File
}

// SyncRequest describes one end-to-end sync
type SyncRequest struct {
	// SkipLedger leaves the spreadsheet alone
	SkipLedger bool
	SheetID    string
	Uploads    []UploadBatch

	// SkipReconcile imports without running the matcher
	SkipReconcile bool
}

// SyncResult collects the outcome of each sync step
type SyncResult struct {
	Ledger       *ImportSummary      `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	LedgerSkips  []ledger.SkippedRow `json:"ledgerSkips,omitempty" yaml:"ledger_skips,omitempty"`
	Uploads      []*ImportSummary    `json:"uploads,omitempty" yaml:"uploads,omitempty"`
	Run          *RunResult          `json:"run,omitempty" yaml:"run,omitempty"`
	UploadErrors []string            `json:"uploadErrors,omitempty" yaml:"upload_errors,omitempty"`
}

// Progress tracks how far a sync has got
type Progress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	Imported        int           `json:"imported"`
	MatchesFound    int           `json:"matches_found"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// ProgressCallback is called after each sync step
type ProgressCallback func(Progress)

// Orchestrator runs ledger import, statement uploads and a reconciliation
// run as one sync, reporting progress between steps
type Orchestrator struct {
	service *Service
	source  LedgerSource
	logger  logger.Logger

	callbacks     []ProgressCallback
	progress      Progress
	progressMutex sync.RWMutex
}

// NewOrchestrator creates an orchestrator. source may be nil when every
// request sets SkipLedger.
func NewOrchestrator(service *Service, source LedgerSource) (*Orchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "reconciliation service is required", nil)
	}

	return &Orchestrator{
		service: service,
		source:  source,
		logger:  logger.WithComponent("orchestrator"),
	}, nil
}

// AddProgressCallback registers a callback for progress updates
func (o *Orchestrator) AddProgressCallback(callback ProgressCallback) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()
	o.callbacks = append(o.callbacks, callback)
}

// Progress returns a snapshot of the current progress
func (o *Orchestrator) Progress() Progress {
	o.progressMutex.RLock()
	defer o.progressMutex.RUnlock()

	p := o.progress
	p.Warnings = append([]string(nil), o.progress.Warnings...)
	return p
}

// Sync imports the ledger, then each upload batch, then reconciles.
// Upload parse failures are collected as warnings and do not stop the
// sync; ledger and store failures do.
func (o *Orchestrator) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if !req.SkipLedger && o.source == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "sheets", nil, nil)
	}

	total := len(req.Uploads)
	if !req.SkipLedger {
		total++
	}
	if !req.SkipReconcile {
		total++
	}
	o.reset(total)

	result := &SyncResult{}

	if !req.SkipLedger {
		o.begin("Importing ledger")
		mapped, err := o.source.Import(ctx, req.SheetID)
		if err != nil {
			return result, err
		}

		summary, err := o.service.ImportLedger(ctx, mapped.Transactions)
		if err != nil {
			return result, err
		}
		result.Ledger = summary
		result.LedgerSkips = mapped.Skipped
		o.complete(func(p *Progress) {
			p.Imported += summary.Imported
			if n := len(mapped.Skipped); n > 0 {
				p.Warnings = append(p.Warnings, pluralRows(n)+" skipped in ledger")
			}
		})
	}

	for _, batch := range req.Uploads {
		o.begin("Importing " + string(batch.Type) + " files")
		summary, err := o.service.ImportUpload(ctx, batch.Files, batch.Type)
		if summary == nil {
			return result, err
		}
		result.Uploads = append(result.Uploads, summary)
		if err != nil {
			if !errors.HasCategory(err, errors.CategoryParse) {
				return result, err
			}
			result.UploadErrors = append(result.UploadErrors, err.Error())
		}
		o.complete(func(p *Progress) {
			p.Imported += summary.Imported
			if err != nil {
				p.Warnings = append(p.Warnings, err.Error())
			}
		})
	}

	if !req.SkipReconcile {
		o.begin("Reconciling")
		run, err := o.service.RunReconciliation(ctx)
		result.Run = run
		if err != nil {
			return result, err
		}
		o.complete(func(p *Progress) {
			p.MatchesFound = run.Summary.Matched
		})
	}

	progress := o.Progress()
	o.logger.WithFields(logger.Fields{
		"imported": progress.Imported,
		"matches":  progress.MatchesFound,
		"elapsed":  progress.ElapsedTime.String(),
	}).Info("Sync completed")

	return result, nil
}

func (o *Orchestrator) reset(total int) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()
	o.progress = Progress{TotalSteps: total, StartTime: time.Now()}
}

func (o *Orchestrator) begin(step string) {
	o.update(func(p *Progress) { p.CurrentStep = step })
}

func (o *Orchestrator) complete(apply func(p *Progress)) {
	o.update(func(p *Progress) {
		apply(p)
		p.CompletedSteps++
	})
}

func (o *Orchestrator) update(apply func(p *Progress)) {
	o.progressMutex.Lock()
	apply(&o.progress)
	o.progress.ElapsedTime = time.Since(o.progress.StartTime)
	if o.progress.TotalSteps > 0 {
		o.progress.PercentComplete = float64(o.progress.CompletedSteps) / float64(o.progress.TotalSteps) * 100
	}
	snapshot := o.progress
	snapshot.Warnings = append([]string(nil), o.progress.Warnings...)
	callbacks := append([]ProgressCallback(nil), o.callbacks...)
	o.progressMutex.Unlock()

	for _, cb := range callbacks {
		cb(snapshot)
	}
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return strconv.Itoa(n) + " rows"
}
