package store

import (
	"context"
	"sync"
	"time"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

// MemoryStore keeps transactions in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*models.Transaction
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*models.Transaction),
		now:  time.Now,
	}
}

func (s *MemoryStore) List(_ context.Context) ([]models.Transaction, error) {
	return s.collect(false), nil
}

func (s *MemoryStore) ListTrash(_ context.Context) ([]models.Transaction, error) {
	return s.collect(true), nil
}

func (s *MemoryStore) collect(trashed bool) []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Transaction, 0, len(s.order))
	for _, id := range s.order {
		tx := s.byID[id]
		if (tx.DeletedAt != nil) == trashed {
			result = append(result, tx.Clone())
		}
	}
	return result
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[id]
	if !ok || tx.DeletedAt != nil {
		return models.Transaction{}, errors.NotFoundError(id)
	}
	return tx.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	created, err := s.CreateMany(ctx, []models.Transaction{tx})
	if err != nil {
		return models.Transaction{}, err
	}
	return created[0], nil
}

func (s *MemoryStore) CreateMany(_ context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prepared := make([]models.Transaction, 0, len(txs))
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		p, err := prepare(tx, now)
		if err != nil {
			return nil, err
		}
		if _, exists := s.byID[p.ID]; exists || seen[p.ID] {
			return nil, duplicateID(p.ID)
		}
		seen[p.ID] = true
		prepared = append(prepared, p)
	}

	for i := range prepared {
		stored := prepared[i].Clone()
		s.byID[stored.ID] = &stored
		s.order = append(s.order, stored.ID)
	}
	return prepared, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (models.Transaction, error) {
	updated, err := s.UpdateMany(ctx, []Update{{ID: id, Patch: patch}})
	if err != nil {
		return models.Transaction{}, err
	}
	return updated[0], nil
}

func (s *MemoryStore) UpdateMany(_ context.Context, updates []Update) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*models.Transaction, len(updates))
	for _, u := range updates {
		current, ok := staged[u.ID]
		if !ok {
			stored, found := s.byID[u.ID]
			if !found || stored.DeletedAt != nil {
				return nil, errors.NotFoundError(u.ID)
			}
			clone := stored.Clone()
			current = &clone
		}

		u.Patch.Apply(current)
		if err := validate(*current); err != nil {
			return nil, err
		}
		staged[u.ID] = current
	}

	result := make([]models.Transaction, 0, len(updates))
	for id, tx := range staged {
		s.byID[id] = tx
	}
	for _, u := range updates {
		result = append(result, staged[u.ID].Clone())
	}
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok || tx.DeletedAt != nil {
		return errors.NotFoundError(id)
	}

	deleted := s.now().UTC()
	tx.DeletedAt = &deleted
	return nil
}

func (s *MemoryStore) Restore(_ context.Context, id string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok || tx.DeletedAt == nil {
		return models.Transaction{}, errors.NotFoundError(id)
	}

	tx.DeletedAt = nil
	return tx.Clone(), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
