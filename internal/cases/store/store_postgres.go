package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"credence/internal/cases/models"
	"credence/internal/rules"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// PostgresStore persists cases in the cases table. Structured fields
// (inputs, outcome, metadata) are stored as JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a case store over an existing connection pool.
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &PostgresStore{db: db}, nil
}

type caseRow struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	Type        string          `db:"case_type"`
	Status      string          `db:"status"`
	Inputs      []byte          `db:"inputs"`
	Outcome     json.RawMessage `db:"outcome"`
	Error       sql.NullString  `db:"error"`
	Metadata    json.RawMessage `db:"metadata"`
	CreatedBy   sql.NullString  `db:"created_by"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt sql.NullTime    `db:"completed_at"`
}

// Create inserts a new case.
func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases
			(id, user_id, case_type, status, inputs, outcome, error, metadata,
			 created_by, created_at, updated_at, completed_at)
		VALUES
			(:id, :user_id, :case_type, :status, :inputs, :outcome, :error, :metadata,
			 :created_by, :created_at, :updated_at, :completed_at)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return dErrors.Newf(dErrors.CodeConflict, "case %s already exists", c.ID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "create case")
	}
	return nil
}

// Get retrieves a case by ID.
func (s *PostgresStore) Get(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	var row caseRow
	query := `
		SELECT id, user_id, case_type, status, inputs, outcome, error, metadata,
		       created_by, created_at, updated_at, completed_at
		FROM cases
		WHERE id = $1`

	err := s.db.GetContext(ctx, &row, query, caseID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", caseID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get case")
	}
	return fromRow(&row)
}

// Update saves changes to an existing case.
func (s *PostgresStore) Update(ctx context.Context, c *models.Case) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE cases
		SET status = :status, outcome = :outcome, error = :error,
		    metadata = :metadata, updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update case")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update case")
	}
	if affected == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "case %s not found", c.ID)
	}
	return nil
}

// ListPending returns up to limit pending cases, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*models.Case, error) {
	var rows []caseRow
	query := `
		SELECT id, user_id, case_type, status, inputs, outcome, error, metadata,
		       created_by, created_at, updated_at, completed_at
		FROM cases
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	if err := s.db.SelectContext(ctx, &rows, query, string(models.StatusPending), limit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending cases")
	}

	cases := make([]*models.Case, 0, len(rows))
	for i := range rows {
		c, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Stats aggregates counts by status, type and assessed risk level.
func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
		ByRiskLevel: make(map[string]int),
	}

	type countRow struct {
		Status string `db:"status"`
		Type   string `db:"case_type"`
		Count  int    `db:"count"`
	}
	var counts []countRow
	query := `
		SELECT status, case_type, COUNT(*) AS count
		FROM cases
		GROUP BY status, case_type`

	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "case stats")
	}
	for _, row := range counts {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByType[row.Type] += row.Count
	}

	type levelRow struct {
		Level string `db:"level"`
		Count int    `db:"count"`
	}
	var levels []levelRow
	levelQuery := `
		SELECT outcome->'risk_assessment'->>'level' AS level, COUNT(*) AS count
		FROM cases
		WHERE outcome->'risk_assessment'->>'level' IS NOT NULL
		GROUP BY 1`

	if err := s.db.SelectContext(ctx, &levels, levelQuery); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "case risk level stats")
	}
	for _, row := range levels {
		stats.ByRiskLevel[row.Level] = row.Count
	}

	violationsQuery := `
		SELECT COALESCE(SUM(jsonb_array_length(outcome->'violations')), 0)
		FROM cases
		WHERE outcome ? 'violations'`

	if err := s.db.GetContext(ctx, &stats.Violations, violationsQuery); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "case violation stats")
	}
	return stats, nil
}

func toRow(c *models.Case) (*caseRow, error) {
	inputs, err := json.Marshal(c.Inputs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal case inputs")
	}

	row := &caseRow{
		ID:        c.ID.String(),
		UserID:    c.UserID.String(),
		Type:      string(c.Type),
		Status:    string(c.Status),
		Inputs:    inputs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Outcome != nil {
		raw, err := json.Marshal(c.Outcome)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal case outcome")
		}
		row.Outcome = raw
	}
	if c.Error != "" {
		row.Error = sql.NullString{String: c.Error, Valid: true}
	}
	if c.Metadata != nil {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal case metadata")
		}
		row.Metadata = raw
	}
	if !c.CreatedBy.IsNil() {
		row.CreatedBy = sql.NullString{String: c.CreatedBy.String(), Valid: true}
	}
	if c.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *c.CompletedAt, Valid: true}
	}
	return row, nil
}

func fromRow(row *caseRow) (*models.Case, error) {
	c := &models.Case{
		ID:        id.CaseID(row.ID),
		UserID:    id.UserID(row.UserID),
		Type:      models.CaseType(row.Type),
		Status:    models.CaseStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Inputs) > 0 {
		var inputs rules.Inputs
		if err := json.Unmarshal(row.Inputs, &inputs); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unmarshal case inputs")
		}
		c.Inputs = inputs
	}
	if len(row.Outcome) > 0 {
		var outcome models.Outcome
		if err := json.Unmarshal(row.Outcome, &outcome); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unmarshal case outcome")
		}
		c.Outcome = &outcome
	}
	if row.Error.Valid {
		c.Error = row.Error.String
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &c.Metadata); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unmarshal case metadata")
		}
	}
	if row.CreatedBy.Valid {
		c.CreatedBy = id.ActorID(row.CreatedBy.String)
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		c.CompletedAt = &t
	}
	return c, nil
}
