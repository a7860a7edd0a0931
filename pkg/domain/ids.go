// Package domain holds the shared identifier types. IDs are validated UUIDs;
// parsing happens once at trust boundaries so the rest of the code can treat
// them as opaque.
package domain

import (
	"github.com/google/uuid"

	dErrors "credence/pkg/domain-errors"
)

// CaseID identifies a long-lived check/assessment/tracker record.
type CaseID string

// UserID identifies the customer a case belongs to.
type UserID string

// ActorID identifies who requested an operation (an operator or a system).
type ActorID string

func (id CaseID) String() string  { return string(id) }
func (id UserID) String() string  { return string(id) }
func (id ActorID) String() string { return string(id) }

func (id CaseID) IsNil() bool  { return id == "" }
func (id UserID) IsNil() bool  { return id == "" }
func (id ActorID) IsNil() bool { return id == "" }

// NewCaseID generates a fresh random case ID.
func NewCaseID() CaseID {
	return CaseID(uuid.NewString())
}

// ParseCaseID validates raw as a non-nil UUID.
func ParseCaseID(raw string) (CaseID, error) {
	if err := parseUUID(raw, "case_id"); err != nil {
		return "", err
	}
	return CaseID(raw), nil
}

// ParseUserID validates raw as a non-nil UUID.
func ParseUserID(raw string) (UserID, error) {
	if err := parseUUID(raw, "user_id"); err != nil {
		return "", err
	}
	return UserID(raw), nil
}

// ParseActorID validates raw as a non-nil UUID.
func ParseActorID(raw string) (ActorID, error) {
	if err := parseUUID(raw, "actor_id"); err != nil {
		return "", err
	}
	return ActorID(raw), nil
}

func parseUUID(raw, name string) error {
	if raw == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", name)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", name)
	}
	if parsed == uuid.Nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", name)
	}
	return nil
}
