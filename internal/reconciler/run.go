package reconciler

import (
	"context"
	"time"

	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// RunResult is the outcome of one reconciliation run over the store
type RunResult struct {
	matcher.Result `yaml:",inline"`

	// Persisted counts the matches written back on both sides
	Persisted int           `json:"persisted" yaml:"persisted"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// RunReconciliation matches every pending-statement transaction against
// the pending ledger and writes both sides of each match back. A store
// failure stops the run; matches persisted before it stay reconciled.
func (s *Service) RunReconciliation(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	op := logger.StartOperation("reconcile", s.logger)

	statement, ledger, err := s.pending(ctx)
	if err != nil {
		op.Done(err, nil)
		return nil, err
	}
	op.Step("loaded", logger.Fields{"statement": len(statement), "ledger": len(ledger)})

	run := &RunResult{Result: *s.engine.Reconcile(statement, ledger)}

	for _, m := range run.Matches {
		if err := s.persistMatch(ctx, m); err != nil {
			run.Duration = time.Since(start)
			err = errors.ReconciliationError(errors.CodePersistFailed, "reconcile", err).
				WithContext("persisted", run.Persisted)
			op.Done(err, nil)
			return run, err
		}
		run.Persisted++
	}

	run.Duration = time.Since(start)
	op.Done(nil, logger.Fields{
		"matched":   run.Summary.Matched,
		"persisted": run.Persisted,
	})
	return run, nil
}

// persistMatch writes both sides of m in one store call so a pair is never
// left half reconciled
func (s *Service) persistMatch(ctx context.Context, m matcher.Match) error {
	_, err := s.store.UpdateMany(ctx, []store.Update{
		{ID: m.Statement.ID, Patch: store.ReconciledPatch(m.Statement)},
		{ID: m.Ledger.ID, Patch: store.ReconciledPatch(m.Ledger)},
	})
	return err
}
