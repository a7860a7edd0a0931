//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credence/internal/cases/models"
	"credence/internal/platform/postgres"
	"credence/internal/rules"
	"credence/migrations"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
	"credence/pkg/testutil/containers"
)

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg := containers.NewPostgres(t)
	require.NoError(t, postgres.Migrate(pg.DB, migrations.FS))

	store, err := NewPostgresStore(pg.DB)
	require.NoError(t, err)

	userID := id.UserID(uuid.NewString())
	c := &models.Case{
		ID:     id.NewCaseID(),
		UserID: userID,
		Type:   models.CaseComplianceCheck,
		Status: models.StatusPending,
		Inputs: rules.Inputs{
			UserData: map[string]any{"name": "Dana", "age": float64(30), "country": "US"},
		},
		Metadata:  map[string]any{"channel": "api"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("create and get round-trips the case", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, c))

		got, err := store.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, c.UserID, got.UserID)
		assert.Equal(t, models.CaseComplianceCheck, got.Type)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, "Dana", got.Inputs.UserData["name"])
		assert.Equal(t, "api", got.Metadata["channel"])
		assert.Nil(t, got.Outcome)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		err := store.Create(ctx, c)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("update persists outcome and terminal state", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		c.Status = models.StatusCompleted
		c.Outcome = &models.Outcome{
			Passed: false,
			Violations: []rules.Violation{
				{Type: rules.ViolationComplianceRule, SourceID: "rule-1", SourceName: "Rule One", Severity: rules.SeverityMedium, Description: "rule unmet"},
			},
		}
		c.UpdatedAt = now
		c.CompletedAt = &now
		require.NoError(t, store.Update(ctx, c))

		got, err := store.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)
		require.NotNil(t, got.Outcome)
		assert.False(t, got.Outcome.Passed)
		require.Len(t, got.Outcome.Violations, 1)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("list pending returns oldest first", func(t *testing.T) {
		older := &models.Case{
			ID:        id.NewCaseID(),
			UserID:    userID,
			Type:      models.CaseRiskAssessment,
			Status:    models.StatusPending,
			CreatedAt: time.Now().UTC().Add(-time.Hour),
			UpdatedAt: time.Now().UTC().Add(-time.Hour),
		}
		newer := &models.Case{
			ID:        id.NewCaseID(),
			UserID:    userID,
			Type:      models.CaseRiskAssessment,
			Status:    models.StatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.Create(ctx, newer))
		require.NoError(t, store.Create(ctx, older))

		pending, err := store.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, older.ID, pending[0].ID)
		assert.Equal(t, newer.ID, pending[1].ID)
	})

	t.Run("stats aggregate across statuses and count violations", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.ByStatus[string(models.StatusPending)])
		assert.Equal(t, 1, stats.ByStatus[string(models.StatusCompleted)])
		assert.Equal(t, 1, stats.Violations)
	})

	t.Run("get unknown case is not found", func(t *testing.T) {
		_, err := store.Get(ctx, id.NewCaseID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
