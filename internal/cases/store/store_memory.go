// Package store persists cases. The memory store backs tests and single
// node deployments; the postgres store is the production backend.
package store

import (
	"context"
	"sort"
	"sync"

	"credence/internal/cases/models"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// MemoryStore is an in-memory case store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[id.CaseID]*models.Case
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[id.CaseID]*models.Case)}
}

// Create inserts a new case.
func (s *MemoryStore) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.ID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "case %s already exists", c.ID)
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

// Get retrieves a case by ID.
func (s *MemoryStore) Get(_ context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[caseID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
	}
	return cloneCase(c), nil
}

// Update saves changes to an existing case.
func (s *MemoryStore) Update(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.ID]; !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "case %s not found", c.ID)
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

// ListPending returns up to limit pending cases, oldest first.
func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.Case
	for _, c := range s.cases {
		if c.Status == models.StatusPending {
			pending = append(pending, cloneCase(c))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// Stats aggregates counts by status, type and assessed risk level.
func (s *MemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
		ByRiskLevel: make(map[string]int),
	}
	for _, c := range s.cases {
		stats.Total++
		stats.ByStatus[string(c.Status)]++
		stats.ByType[string(c.Type)]++
		if c.Outcome != nil {
			stats.Violations += len(c.Outcome.Violations)
			if c.Outcome.Assessment != nil {
				stats.ByRiskLevel[string(c.Outcome.Assessment.Level)]++
			}
		}
	}
	return stats, nil
}

// cloneCase copies the fields callers mutate between store round trips.
// Nested result slices are written once by the processor and treated as
// immutable afterwards, so a shallow copy of those is sufficient.
func cloneCase(c *models.Case) *models.Case {
	cp := *c
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	if c.Outcome != nil {
		o := *c.Outcome
		cp.Outcome = &o
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
