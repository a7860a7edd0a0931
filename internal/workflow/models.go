// Package workflow implements the step-sequenced progress engine: named steps
// executed in configured order through typed handlers, progress and milestone
// tracking on a per-case tracker, and terminal completed/failed states.
package workflow

import (
	"time"

	"credence/internal/rules"
	"credence/pkg/domain"
)

// StepType dispatches a step to its registered handler. The set is closed:
// a type outside it is a configuration error that fails the tracker.
type StepType string

const (
	StepDocumentVerification StepType = "document_verification"
	StepIdentityVerification StepType = "identity_verification"
	StepRiskAssessment       StepType = "risk_assessment"
	StepComplianceCheck      StepType = "compliance_check"
	StepTierAssignment       StepType = "tier_assignment"
	StepApproval             StepType = "approval"
	StepNotification         StepType = "notification"
	StepDataCollection       StepType = "data_collection"
	StepValidation           StepType = "validation"
	StepExternalCheck        StepType = "external_check"
)

// Step is one named unit of a workflow definition. Conditions are evaluated
// against the tracker's user data before the handler runs; an unmet condition
// fails the whole workflow, there are no skip semantics.
type Step struct {
	Name       string            `json:"name" yaml:"name"`
	Type       StepType          `json:"type" yaml:"type"`
	Conditions []rules.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Config     map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
}

// Definition is a configured workflow: an ordered step list plus metadata.
type Definition struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Order    int            `json:"order" yaml:"order"`
	Steps    []Step         `json:"steps" yaml:"steps"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MilestoneRequirements are checked conjunctively; categories left
// unconfigured are not checked.
type MilestoneRequirements struct {
	MinProgressPercentage *int              `json:"min_progress_percentage,omitempty" yaml:"min_progress_percentage,omitempty"`
	RequiredSteps         []string          `json:"required_steps,omitempty" yaml:"required_steps,omitempty"`
	UserDataFields        []string          `json:"user_data_fields,omitempty" yaml:"user_data_fields,omitempty"`
	CustomConditions      []rules.Condition `json:"custom_conditions,omitempty" yaml:"custom_conditions,omitempty"`
}

// Milestone is a one-time achievement marker. Once recorded on a tracker it
// is never re-evaluated or revoked.
type Milestone struct {
	ID           string                `json:"id" yaml:"id"`
	Name         string                `json:"name" yaml:"name"`
	Requirements MilestoneRequirements `json:"requirements" yaml:"requirements"`
}

// TrackerStatus is the tracker state machine: active is the only non-terminal
// state.
type TrackerStatus string

const (
	TrackerActive    TrackerStatus = "active"
	TrackerCompleted TrackerStatus = "completed"
	TrackerFailed    TrackerStatus = "failed"
)

// CompletedStep records one finished step on the tracker history.
type CompletedStep struct {
	Name        string         `json:"name"`
	Type        StepType       `json:"type"`
	Output      map[string]any `json:"output,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// AchievedMilestone is a permanent milestone record with its timestamp.
type AchievedMilestone struct {
	MilestoneID string    `json:"milestone_id"`
	Name        string    `json:"name"`
	AchievedAt  time.Time `json:"achieved_at"`
}

// Tracker is the long-lived progress record for one onboarding run. The
// current step index is persisted so a crashed run resumes without replaying
// completed steps; the index only increases and the milestone set only grows.
type Tracker struct {
	ID                 domain.CaseID       `json:"id"`
	UserID             domain.UserID       `json:"user_id"`
	WorkflowID         string              `json:"workflow_id"`
	UserData           map[string]any      `json:"user_data"`
	Status             TrackerStatus       `json:"status"`
	CurrentStepIndex   int                 `json:"current_step_index"`
	CompletedSteps     []CompletedStep     `json:"completed_steps"`
	ProgressPercentage int                 `json:"progress_percentage"`
	Milestones         []AchievedMilestone `json:"milestones"`
	FailureReason      string              `json:"failure_reason,omitempty"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
}

// HasMilestone reports whether a milestone is already recorded.
func (t *Tracker) HasMilestone(milestoneID string) bool {
	for _, m := range t.Milestones {
		if m.MilestoneID == milestoneID {
			return true
		}
	}
	return false
}

// CompletedStepNames returns the history as a name set for milestone checks.
func (t *Tracker) CompletedStepNames() map[string]struct{} {
	names := make(map[string]struct{}, len(t.CompletedSteps))
	for _, s := range t.CompletedSteps {
		names[s.Name] = struct{}{}
	}
	return names
}

// StepResult is a handler outcome. Success false fails the tracker.
type StepResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}
