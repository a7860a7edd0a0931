//go:build integration

package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credence/internal/cases/models"
	id "credence/pkg/domain"
	"credence/pkg/testutil/containers"
)

func TestRedisCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache, err := NewRedisCache(rc.Client, logger)
	require.NoError(t, err)

	completedAt := time.Now().UTC().Truncate(time.Millisecond)
	c := &models.Case{
		ID:          id.NewCaseID(),
		UserID:      id.UserID(uuid.NewString()),
		Type:        models.CaseComplianceCheck,
		Status:      models.StatusCompleted,
		Outcome:     &models.Outcome{Passed: true},
		CreatedAt:   completedAt.Add(-time.Second),
		UpdatedAt:   completedAt,
		CompletedAt: &completedAt,
	}

	t.Run("miss before set", func(t *testing.T) {
		got, err := cache.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		require.NoError(t, cache.SetCase(ctx, c, time.Minute))

		got, err := cache.GetCase(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, models.StatusCompleted, got.Status)
		require.NotNil(t, got.Outcome)
		assert.True(t, got.Outcome.Passed)
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		require.NoError(t, cache.InvalidateCase(ctx, c.ID))

		got, err := cache.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("poisoned entry degrades to a miss", func(t *testing.T) {
		require.NoError(t, rc.Client.Set(ctx, "credence:case:"+c.ID.String(), "{not json", time.Minute).Err())

		got, err := cache.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		// The bad entry is evicted, not just skipped.
		exists, err := rc.Client.Exists(ctx, "credence:case:"+c.ID.String()).Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("entries expire with the ttl", func(t *testing.T) {
		require.NoError(t, cache.SetCase(ctx, c, 50*time.Millisecond))
		time.Sleep(120 * time.Millisecond)

		got, err := cache.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
