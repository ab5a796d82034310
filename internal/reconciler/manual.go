package reconciler

import (
	"context"
	"strings"
	"time"

	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// ManualCandidates lists opposite-side pending transactions whose value
// matches the transaction with the given id
func (s *Service) ManualCandidates(ctx context.Context, id string) ([]models.Transaction, error) {
	tx, err := s.lookup(ctx, "transactionId", id)
	if err != nil {
		return nil, err
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	candidates := matcher.FindManualCandidates(tx, all)
	if candidates == nil {
		candidates = make([]models.Transaction, 0)
	}
	return candidates, nil
}

// ManualReconcile pairs two transactions chosen by the user and persists
// both sides with full confidence in a single store write. A blank id is a
// validation error; an id that matches no live transaction is reported as
// not_found rather than validation, so the API answers 404 for it.
func (s *Service) ManualReconcile(ctx context.Context, id, matchID string) (*matcher.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookup(ctx, "transactionId", id)
	if err != nil {
		return nil, err
	}
	b, err := s.lookup(ctx, "matchId", matchID)
	if err != nil {
		return nil, err
	}

	match, err := matcher.ManualMatch(&a, &b)
	if err != nil {
		return nil, err
	}

	if err := s.persistMatch(ctx, match); err != nil {
		return nil, errors.ReconciliationError(errors.CodePersistFailed, "manual reconcile", err)
	}

	s.logger.WithFields(logger.Fields{
		"statement_id": match.Statement.ID,
		"ledger_id":    match.Ledger.ID,
	}).Info("Manually reconciled transactions")

	return &match, nil
}

// ReviewQueue lists pending ledger rows without a depositor, optionally
// narrowed to an inclusive date range
func (s *Service) ReviewQueue(ctx context.Context, start, end *time.Time) ([]models.Transaction, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	return models.Filter(all, func(t *models.Transaction) bool {
		if !matcher.NeedsManualReview(*t) {
			return false
		}
		date := models.NormalizeDate(t.Date)
		if start != nil && date.Before(models.NormalizeDate(*start)) {
			return false
		}
		if end != nil && date.After(models.NormalizeDate(*end)) {
			return false
		}
		return true
	}), nil
}

func (s *Service) lookup(ctx context.Context, field, id string) (models.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return models.Transaction{}, errors.ValidationError(errors.CodeMissingField, field+" is required", nil).
			WithContext("field", field)
	}
	return s.store.Get(ctx, id)
}
