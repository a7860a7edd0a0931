// Package ports defines shared interfaces for the cases module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"credence/internal/cases/models"
	id "credence/pkg/domain"
)

// Store persists cases.
type Store interface {
	// Create inserts a new case. Fails with CodeConflict on duplicate ID.
	Create(ctx context.Context, c *models.Case) error

	// Get retrieves a case by ID.
	Get(ctx context.Context, caseID id.CaseID) (*models.Case, error)

	// Update saves changes to an existing case.
	Update(ctx context.Context, c *models.Case) error

	// ListPending returns up to limit pending cases, oldest first.
	ListPending(ctx context.Context, limit int) ([]*models.Case, error)

	// Stats aggregates counts by status and type.
	Stats(ctx context.Context) (*models.Stats, error)
}

// Cache is a read-through accelerator in front of the store. Implementations
// must treat misses and backend failures alike: the store remains the source
// of truth.
type Cache interface {
	// GetCase returns the cached case, or (nil, nil) on a miss.
	GetCase(ctx context.Context, caseID id.CaseID) (*models.Case, error)

	// SetCase caches a case for ttl.
	SetCase(ctx context.Context, c *models.Case, ttl time.Duration) error

	// InvalidateCase drops a cached case.
	InvalidateCase(ctx context.Context, caseID id.CaseID) error
}

// Event is one lifecycle notification emitted while processing a case.
type Event struct {
	Kind       string         `json:"kind"`
	CaseID     string         `json:"case_id"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Event kinds published during case processing.
const (
	EventCheckCompleted      = "check.completed"
	EventAssessmentCompleted = "assessment.completed"
	EventWorkflowCompleted   = "workflow.completed"
	EventWorkflowFailed      = "workflow.failed"
	EventMilestoneAchieved   = "milestone.achieved"
)

// EventPublisher emits case lifecycle events. Publishing is best-effort;
// a failed publish never fails the case.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
