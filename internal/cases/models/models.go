// Package models holds the case aggregate and its request/response shapes.
package models

import (
	"time"

	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// CaseType selects which decision pipeline a case runs through.
type CaseType string

const (
	CaseComplianceCheck      CaseType = "compliance_check"
	CaseRiskAssessment       CaseType = "risk_assessment"
	CaseTierAssignment       CaseType = "tier_assignment"
	CaseDocumentVerification CaseType = "document_verification"
	CaseIdentityVerification CaseType = "identity_verification"
	CaseOnboarding           CaseType = "onboarding"
)

// IsValid checks if the case type is one of the supported pipelines.
func (t CaseType) IsValid() bool {
	switch t {
	case CaseComplianceCheck, CaseRiskAssessment, CaseTierAssignment,
		CaseDocumentVerification, CaseIdentityVerification, CaseOnboarding:
		return true
	}
	return false
}

// ParseCaseType creates a CaseType from a string, validating it.
func ParseCaseType(s string) (CaseType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "case type cannot be empty")
	}
	t := CaseType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid case type: %s", s)
	}
	return t, nil
}

// String returns the string representation.
func (t CaseType) String() string {
	return string(t)
}

// CaseStatus is the lifecycle state of a case. Transitions are strictly
// pending -> processing -> completed|failed; terminal states never change.
type CaseStatus string

const (
	StatusPending    CaseStatus = "pending"
	StatusProcessing CaseStatus = "processing"
	StatusCompleted  CaseStatus = "completed"
	StatusFailed     CaseStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s CaseStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo checks the lifecycle ordering.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Outcome is the decision attached to a completed case.
type Outcome struct {
	Passed          bool                     `json:"passed"`
	RuleResults     []rules.RuleResult       `json:"rule_results,omitempty"`
	Regulations     []rules.RegulationResult `json:"regulation_results,omitempty"`
	Violations      []rules.Violation        `json:"violations,omitempty"`
	Recommendations []rules.Recommendation   `json:"recommendations,omitempty"`
	Assessment      *risk.Assessment         `json:"risk_assessment,omitempty"`
	Tier            *tier.Result             `json:"tier,omitempty"`
	Workflow        *workflow.Tracker        `json:"workflow,omitempty"`
}

// Case is one decisioning request tracked through its lifecycle.
type Case struct {
	ID          id.CaseID      `json:"id"`
	UserID      id.UserID      `json:"user_id"`
	Type        CaseType       `json:"type"`
	Status      CaseStatus     `json:"status"`
	Inputs      rules.Inputs   `json:"inputs"`
	Outcome     *Outcome       `json:"outcome,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedBy   id.ActorID     `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Transition moves the case to next at the given instant, enforcing the
// lifecycle ordering. CompletedAt is set exactly when a terminal state is
// entered.
func (c *Case) Transition(next CaseStatus, at time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"illegal case transition %s -> %s", c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = at
	if next.IsTerminal() {
		t := at
		c.CompletedAt = &t
	}
	return nil
}

// Stats aggregates case counts for the stats endpoint. ByRiskLevel counts
// only cases whose outcome carries a risk assessment.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByType      map[string]int `json:"by_type"`
	ByRiskLevel map[string]int `json:"by_risk_level"`
	Violations  int            `json:"violations"`
}
