package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credence/internal/cases/models"
	"credence/internal/risk"
	"credence/internal/rules"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// Justification for unit tests:
// the memory store backs the service suite and single node deployments, so
// its conflict, not-found, isolation and pending-ordering behavior must match
// the postgres store exactly.

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) newCase(status models.CaseStatus, createdAt time.Time) *models.Case {
	return &models.Case{
		ID:        id.NewCaseID(),
		UserID:    id.UserID("2f5a0f28-6a7d-4fb9-9f58-2d0b3a9c1e11"),
		Type:      models.CaseComplianceCheck,
		Status:    status,
		Inputs:    rules.Inputs{UserData: map[string]any{"age": 30}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func (s *MemoryStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	c := s.newCase(models.StatusPending, time.Now())

	s.Require().NoError(s.store.Create(ctx, c))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)
	s.Equal(models.StatusPending, got.Status)

	s.Run("duplicate create conflicts", func() {
		err := s.store.Create(ctx, c)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.Get(ctx, id.NewCaseID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("callers cannot mutate stored state", func() {
		got.Status = models.StatusFailed
		reread, err := s.store.Get(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, reread.Status)
	})
}

func (s *MemoryStoreSuite) TestUpdate() {
	ctx := context.Background()
	c := s.newCase(models.StatusPending, time.Now())
	s.Require().NoError(s.store.Create(ctx, c))

	now := time.Now()
	s.Require().NoError(c.Transition(models.StatusProcessing, now))
	s.Require().NoError(s.store.Update(ctx, c))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessing, got.Status)

	s.Run("updating a missing case is not found", func() {
		missing := s.newCase(models.StatusPending, time.Now())
		err := s.store.Update(ctx, missing)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MemoryStoreSuite) TestListPending() {
	ctx := context.Background()
	base := time.Now()

	newest := s.newCase(models.StatusPending, base)
	oldest := s.newCase(models.StatusPending, base.Add(-2*time.Hour))
	middle := s.newCase(models.StatusPending, base.Add(-time.Hour))
	done := s.newCase(models.StatusCompleted, base.Add(-3*time.Hour))
	for _, c := range []*models.Case{newest, oldest, middle, done} {
		s.Require().NoError(s.store.Create(ctx, c))
	}

	pending, err := s.store.ListPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 3)
	s.Equal(oldest.ID, pending[0].ID, "oldest first")
	s.Equal(middle.ID, pending[1].ID)
	s.Equal(newest.ID, pending[2].ID)

	s.Run("limit caps the batch", func() {
		pending, err := s.store.ListPending(ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(oldest.ID, pending[0].ID)
	})
}

func (s *MemoryStoreSuite) TestStats() {
	ctx := context.Background()

	completed := s.newCase(models.StatusCompleted, time.Now())
	completed.Outcome = &models.Outcome{
		Violations: []rules.Violation{{}, {}},
		Assessment: &risk.Assessment{Level: risk.LevelLow},
	}
	pending := s.newCase(models.StatusPending, time.Now())
	pending.Type = models.CaseRiskAssessment
	for _, c := range []*models.Case{completed, pending} {
		s.Require().NoError(s.store.Create(ctx, c))
	}

	stats, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.ByStatus[string(models.StatusCompleted)])
	s.Equal(1, stats.ByStatus[string(models.StatusPending)])
	s.Equal(1, stats.ByType[string(models.CaseRiskAssessment)])
	s.Equal(1, stats.ByRiskLevel[string(risk.LevelLow)])
	s.Equal(2, stats.Violations)
}
