package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"credence/internal/rules"
	dErrors "credence/pkg/domain-errors"
)

// Handler executes one step type. Handlers validate their own inputs before
// doing work and report malformed input as a CodeValidation error; any other
// returned error fails the tracker with the error message.
type Handler interface {
	Execute(ctx context.Context, step Step, tracker *Tracker) (StepResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, step Step, tracker *Tracker) (StepResult, error)

func (f HandlerFunc) Execute(ctx context.Context, step Step, tracker *Tracker) (StepResult, error) {
	return f(ctx, step, tracker)
}

// Signals receives workflow lifecycle notifications. Implementations must be
// non-blocking; the engine calls them inline.
type Signals interface {
	WorkflowCompleted(ctx context.Context, tracker *Tracker)
	WorkflowFailed(ctx context.Context, tracker *Tracker, reason string)
	MilestoneAchieved(ctx context.Context, tracker *Tracker, milestone Milestone)
}

// NopSignals discards all notifications.
type NopSignals struct{}

func (NopSignals) WorkflowCompleted(context.Context, *Tracker)            {}
func (NopSignals) WorkflowFailed(context.Context, *Tracker, string)       {}
func (NopSignals) MilestoneAchieved(context.Context, *Tracker, Milestone) {}

// Checkpoint persists the tracker between steps so a crash mid-workflow
// resumes from the stored index instead of replaying completed steps.
type Checkpoint func(ctx context.Context, tracker *Tracker) error

// Engine drives trackers through workflow definitions. Handlers are
// registered once at construction; the step-type set is closed.
type Engine struct {
	handlers   map[StepType]Handler
	evaluator  *rules.Evaluator
	signals    Signals
	checkpoint Checkpoint
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSignals sets the lifecycle signal receiver.
func WithSignals(signals Signals) Option {
	return func(e *Engine) { e.signals = signals }
}

// WithCheckpoint sets the between-step persistence hook.
func WithCheckpoint(checkpoint Checkpoint) Option {
	return func(e *Engine) { e.checkpoint = checkpoint }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds a workflow engine over the given handler registry.
func NewEngine(handlers map[StepType]Handler, opts ...Option) (*Engine, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("step handlers are required")
	}
	e := &Engine{
		handlers:  handlers,
		evaluator: rules.NewEvaluator(),
		signals:   NopSignals{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewTracker starts a tracker for one user against a workflow definition.
func (e *Engine) NewTracker(id Tracker, def Definition) *Tracker {
	tracker := id
	tracker.WorkflowID = def.ID
	tracker.Status = TrackerActive
	tracker.StartedAt = e.now()
	if tracker.UserData == nil {
		tracker.UserData = map[string]any{}
	}
	return &tracker
}

// Run advances the tracker through the definition's steps from its persisted
// index until a terminal state. The loop is the single advance mechanism:
// step index only increases, terminal states are final, and any uncaught
// error fails the tracker so it can never hang in an intermediate state.
// The returned error is reserved for checkpoint (persistence) failures.
func (e *Engine) Run(ctx context.Context, def Definition, milestones []Milestone, tracker *Tracker) (err error) {
	if tracker.Status != TrackerActive {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, tracker, fmt.Sprintf("step processing panic: %v", r))
			err = e.persist(ctx, tracker)
		}
	}()

	total := len(def.Steps)
	for {
		if tracker.CurrentStepIndex >= total {
			e.complete(ctx, tracker)
			return e.persist(ctx, tracker)
		}

		step := def.Steps[tracker.CurrentStepIndex]

		if !e.stepConditionsMet(step, tracker) {
			e.fail(ctx, tracker, fmt.Sprintf("step %q conditions not met", step.Name))
			return e.persist(ctx, tracker)
		}

		result, execErr := e.executeStep(ctx, step, tracker)
		if execErr != nil {
			reason := execErr.Error()
			if dErrors.HasCode(execErr, dErrors.CodeValidation) {
				reason = fmt.Sprintf("step %q input validation failed: %v", step.Name, execErr)
			}
			e.fail(ctx, tracker, reason)
			return e.persist(ctx, tracker)
		}
		if !result.Success {
			reason := result.Message
			if reason == "" {
				reason = fmt.Sprintf("step %q reported failure", step.Name)
			}
			e.fail(ctx, tracker, reason)
			return e.persist(ctx, tracker)
		}

		tracker.CompletedSteps = append(tracker.CompletedSteps, CompletedStep{
			Name:        step.Name,
			Type:        step.Type,
			Output:      result.Output,
			CompletedAt: e.now(),
		})
		tracker.CurrentStepIndex++
		tracker.ProgressPercentage = progressPercentage(len(tracker.CompletedSteps), total)

		e.evaluateMilestones(ctx, milestones, tracker)

		if err := e.persist(ctx, tracker); err != nil {
			return err
		}
	}
}

func (e *Engine) stepConditionsMet(step Step, tracker *Tracker) bool {
	inputs := rules.Inputs{UserData: tracker.UserData}
	for _, cond := range step.Conditions {
		if !e.evaluator.Evaluate(cond, inputs).Met {
			return false
		}
	}
	return true
}

func (e *Engine) executeStep(ctx context.Context, step Step, tracker *Tracker) (StepResult, error) {
	handler, ok := e.handlers[step.Type]
	if !ok {
		// Closed set: an unregistered type is configuration, not a default
		// branch.
		return StepResult{}, dErrors.Newf(dErrors.CodeConfiguration, "unknown step type %q", step.Type)
	}
	return handler.Execute(ctx, step, tracker)
}

func (e *Engine) complete(ctx context.Context, tracker *Tracker) {
	now := e.now()
	tracker.Status = TrackerCompleted
	tracker.ProgressPercentage = 100
	tracker.CompletedAt = &now
	e.logger.Info("workflow completed",
		"tracker_id", tracker.ID,
		"workflow_id", tracker.WorkflowID,
		"steps", len(tracker.CompletedSteps),
	)
	e.signals.WorkflowCompleted(ctx, tracker)
}

func (e *Engine) fail(ctx context.Context, tracker *Tracker, reason string) {
	now := e.now()
	tracker.Status = TrackerFailed
	tracker.FailureReason = reason
	tracker.CompletedAt = &now
	e.logger.Warn("workflow failed",
		"tracker_id", tracker.ID,
		"workflow_id", tracker.WorkflowID,
		"reason", reason,
	)
	e.signals.WorkflowFailed(ctx, tracker, reason)
}

func (e *Engine) persist(ctx context.Context, tracker *Tracker) error {
	if e.checkpoint == nil {
		return nil
	}
	return dErrors.Wrap(e.checkpoint(ctx, tracker), dErrors.CodeInternal, "checkpoint tracker")
}

func progressPercentage(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
