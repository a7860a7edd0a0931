package definitions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
	dErrors "credence/pkg/domain-errors"
)

// Definition kinds as stored in the definitions table.
const (
	KindRule       = "rule"
	KindRegulation = "regulation"
	KindFactor     = "risk_factor"
	KindModel      = "risk_model"
	KindTier       = "tier"
	KindWorkflow   = "workflow"
	KindMilestone  = "milestone"
)

// LoadActive reads every active definition row into one snapshot. Rows are
// ordered by position within their kind; the snapshot re-sorts on the
// domain ordering fields afterwards.
func LoadActive(ctx context.Context, db *sqlx.DB) (*Snapshot, error) {
	type row struct {
		Kind string          `db:"kind"`
		ID   string          `db:"id"`
		Body json.RawMessage `db:"body"`
	}

	var defRows []row
	query := `
		SELECT kind, id, body
		FROM definitions
		WHERE active
		ORDER BY kind, position, id`

	if err := db.SelectContext(ctx, &defRows, query); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load active definitions")
	}

	snapshot := &Snapshot{Source: "postgres", LoadedAt: time.Now()}
	for _, r := range defRows {
		if err := mergeDefinition(snapshot, r.Kind, r.Body); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration,
				"decode definition "+r.Kind+"/"+r.ID)
		}
	}
	snapshot.normalize()
	return snapshot, nil
}

func mergeDefinition(snapshot *Snapshot, kind string, body []byte) error {
	switch kind {
	case KindRule:
		var v rules.Rule
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Rules = append(snapshot.Rules, v)
	case KindRegulation:
		var v rules.Regulation
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Regulations = append(snapshot.Regulations, v)
	case KindFactor:
		var v risk.Factor
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Factors = append(snapshot.Factors, v)
	case KindModel:
		var v risk.Model
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Models = append(snapshot.Models, v)
	case KindTier:
		var v tier.Tier
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Tiers = append(snapshot.Tiers, v)
	case KindWorkflow:
		var v workflow.Definition
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Workflows = append(snapshot.Workflows, v)
	case KindMilestone:
		var v workflow.Milestone
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Milestones = append(snapshot.Milestones, v)
	}
	// Unknown kinds are skipped so a newer writer does not break an older
	// reader.
	return nil
}
