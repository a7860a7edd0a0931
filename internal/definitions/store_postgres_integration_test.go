//go:build integration

package definitions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credence/internal/platform/postgres"
	"credence/migrations"
	"credence/pkg/testutil/containers"
)

func TestLoadActiveIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg := containers.NewPostgres(t)
	require.NoError(t, postgres.Migrate(pg.DB, migrations.FS))

	seed := func(kind, id string, position int, active bool, body string) {
		_, err := pg.DB.ExecContext(ctx,
			`INSERT INTO definitions (kind, id, body, active, position) VALUES ($1, $2, $3, $4, $5)`,
			kind, id, body, active, position)
		require.NoError(t, err)
	}

	seed(KindRule, "rule-age", 2, true,
		`{"id": "rule-age", "name": "Minimum age", "priority": 20,
		  "conditions": [{"type": "user_data", "field": "age", "operator": "greater_than_or_equal", "value": 18}]}`)
	seed(KindRule, "rule-country", 1, true,
		`{"id": "rule-country", "name": "Permitted country", "priority": 10,
		  "conditions": [{"type": "user_data", "field": "country", "operator": "not_in", "value": ["KP", "IR"]}]}`)
	seed(KindRule, "rule-inactive", 3, false,
		`{"id": "rule-inactive", "name": "Inactive", "priority": 5}`)
	seed(KindTier, "tier-basic", 1, true,
		`{"id": "tier-basic", "name": "Basic", "level": 1}`)
	seed(KindTier, "tier-premium", 2, true,
		`{"id": "tier-premium", "name": "Premium", "level": 3}`)
	seed(KindModel, "model-default", 1, true,
		`{"id": "model-default", "parameters": {"financial": 1.0}}`)
	seed("future_kind", "whatever", 1, true, `{"id": "whatever"}`)

	snapshot, err := LoadActive(ctx, pg.DB)
	require.NoError(t, err)

	// Inactive rows and unknown kinds are excluded; rules come back in
	// priority order.
	require.Len(t, snapshot.Rules, 2)
	assert.Equal(t, "rule-country", snapshot.Rules[0].ID)
	assert.Equal(t, "rule-age", snapshot.Rules[1].ID)

	// Tiers are sorted highest level first.
	require.Len(t, snapshot.Tiers, 2)
	assert.Equal(t, "tier-premium", snapshot.Tiers[0].ID)

	require.Len(t, snapshot.Models, 1)
	assert.Equal(t, "postgres", snapshot.Source)
	assert.False(t, snapshot.Empty())
}

func TestLoadActiveIntegration_EmptyTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.NewPostgres(t)
	require.NoError(t, postgres.Migrate(pg.DB, migrations.FS))

	snapshot, err := LoadActive(context.Background(), pg.DB)
	require.NoError(t, err)
	assert.True(t, snapshot.Empty())
}
