package models

import (
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// CheckRequest opens a new case for a user. ActorID records who asked, for
// audit only; it is carried on the case but never authorized here.
type CheckRequest struct {
	UserID     string         `json:"user_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Type       string         `json:"type"`
	UserData   map[string]any `json:"user_data"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	ModelID    string         `json:"model_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate normalizes and checks the request, returning the parsed fields.
func (r *CheckRequest) Validate() (id.UserID, CaseType, error) {
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return "", "", err
	}
	caseType, err := ParseCaseType(r.Type)
	if err != nil {
		return "", "", err
	}
	if r.ActorID != "" {
		if _, err := id.ParseActorID(r.ActorID); err != nil {
			return "", "", err
		}
	}
	if caseType == CaseOnboarding && r.WorkflowID == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "onboarding cases require a workflow_id")
	}
	return userID, caseType, nil
}
