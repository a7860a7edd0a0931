package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credence/internal/rules"
	"credence/pkg/domain"
)

// =============================================================================
// Workflow Engine Test Suite
// =============================================================================
// Justification for unit tests: progress arithmetic, fail-fast condition
// semantics, milestone permanence, and checkpoint resume are state machine
// contracts the onboarding pipeline depends on.

type recordedSignals struct {
	completed  int
	failed     []string
	milestones []string
}

func (r *recordedSignals) WorkflowCompleted(context.Context, *Tracker) { r.completed++ }
func (r *recordedSignals) WorkflowFailed(_ context.Context, _ *Tracker, reason string) {
	r.failed = append(r.failed, reason)
}
func (r *recordedSignals) MilestoneAchieved(_ context.Context, _ *Tracker, m Milestone) {
	r.milestones = append(r.milestones, m.ID)
}

type WorkflowEngineSuite struct {
	suite.Suite
	signals *recordedSignals
	logger  *slog.Logger
}

func TestWorkflowEngineSuite(t *testing.T) {
	suite.Run(t, new(WorkflowEngineSuite))
}

func (s *WorkflowEngineSuite) SetupTest() {
	s.signals = &recordedSignals{}
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func succeedStep(context.Context, Step, *Tracker) (StepResult, error) {
	return StepResult{Success: true}, nil
}

func (s *WorkflowEngineSuite) newEngine(handlers map[StepType]Handler, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(s.logger), WithSignals(s.signals)}, opts...)
	engine, err := NewEngine(handlers, opts...)
	s.Require().NoError(err)
	return engine
}

func (s *WorkflowEngineSuite) tracker(userData map[string]any) *Tracker {
	return &Tracker{
		ID:       domain.NewCaseID(),
		UserID:   domain.UserID("6f9619ff-8b86-4d01-b42d-00cf4fc964ff"),
		Status:   TrackerActive,
		UserData: userData,
	}
}

func fourStepDefinition() Definition {
	return Definition{
		ID:   "wf-onboarding",
		Name: "onboarding",
		Steps: []Step{
			{Name: "collect", Type: StepDataCollection, Config: map[string]any{"required_fields": []any{"name"}}},
			{Name: "notify", Type: StepNotification, Config: map[string]any{"template": "welcome"}},
			{Name: "approve", Type: StepApproval},
			{Name: "final_notify", Type: StepNotification, Config: map[string]any{"template": "done"}},
		},
	}
}

func (s *WorkflowEngineSuite) TestCompletion() {
	engine := s.newEngine(BaseHandlers(s.logger))
	tracker := s.tracker(map[string]any{"name": "Ada", "approved": true})

	err := engine.Run(context.Background(), fourStepDefinition(), nil, tracker)
	s.Require().NoError(err)

	s.Equal(TrackerCompleted, tracker.Status)
	s.Equal(100, tracker.ProgressPercentage)
	s.Len(tracker.CompletedSteps, 4)
	s.NotNil(tracker.CompletedAt)
	s.Equal(1, s.signals.completed)
}

func (s *WorkflowEngineSuite) TestProgressArithmetic() {
	// Progress after step k of n is round(k/n*100); checkpoints observe every
	// intermediate value.
	var observed []int
	checkpoint := func(_ context.Context, t *Tracker) error {
		observed = append(observed, t.ProgressPercentage)
		return nil
	}

	handlers := map[StepType]Handler{StepNotification: HandlerFunc(succeedStep)}
	engine := s.newEngine(handlers, WithCheckpoint(checkpoint))

	def := Definition{ID: "wf", Steps: []Step{
		{Name: "a", Type: StepNotification},
		{Name: "b", Type: StepNotification},
		{Name: "c", Type: StepNotification},
	}}
	tracker := s.tracker(nil)

	s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
	s.Equal([]int{33, 67, 100, 100}, observed)
}

func (s *WorkflowEngineSuite) TestStepConditionFailure() {
	// Step 2's own conditions are unmet: the whole workflow fails, one step
	// completed, nothing after it executes.
	var executed []string
	recording := HandlerFunc(func(_ context.Context, step Step, _ *Tracker) (StepResult, error) {
		executed = append(executed, step.Name)
		return StepResult{Success: true}, nil
	})

	engine := s.newEngine(map[StepType]Handler{StepNotification: recording})
	def := Definition{ID: "wf", Steps: []Step{
		{Name: "one", Type: StepNotification},
		{Name: "two", Type: StepNotification, Conditions: []rules.Condition{
			{Type: rules.ConditionUserData, Field: "kyc_ready", Operator: rules.OpEquals, Value: true},
		}},
		{Name: "three", Type: StepNotification},
		{Name: "four", Type: StepNotification},
	}}
	tracker := s.tracker(map[string]any{})

	s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))

	s.Equal(TrackerFailed, tracker.Status)
	s.Len(tracker.CompletedSteps, 1)
	s.Equal([]string{"one"}, executed)
	s.Contains(tracker.FailureReason, "conditions not met")
	s.Len(s.signals.failed, 1)
}

func (s *WorkflowEngineSuite) TestHandlerOutcomes() {
	s.Run("handler failure fails the tracker", func() {
		failing := HandlerFunc(func(context.Context, Step, *Tracker) (StepResult, error) {
			return StepResult{Success: false, Message: "document expired"}, nil
		})
		engine := s.newEngine(map[StepType]Handler{StepDocumentVerification: failing})
		tracker := s.tracker(nil)

		def := Definition{ID: "wf", Steps: []Step{{Name: "docs", Type: StepDocumentVerification}}}
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Equal("document expired", tracker.FailureReason)
	})

	s.Run("unknown step type is a configuration failure", func() {
		engine := s.newEngine(map[StepType]Handler{StepNotification: HandlerFunc(succeedStep)})
		tracker := s.tracker(nil)

		def := Definition{ID: "wf", Steps: []Step{{Name: "mystery", Type: "quantum_check"}}}
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Contains(tracker.FailureReason, "unknown step type")
	})

	s.Run("handler panic is caught and fails the tracker", func() {
		panicking := HandlerFunc(func(context.Context, Step, *Tracker) (StepResult, error) {
			panic("nil dereference in handler")
		})
		engine := s.newEngine(map[StepType]Handler{StepExternalCheck: panicking})
		tracker := s.tracker(nil)

		def := Definition{ID: "wf", Steps: []Step{{Name: "ext", Type: StepExternalCheck}}}
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Contains(tracker.FailureReason, "panic")
	})

	s.Run("terminal trackers are never re-entered", func() {
		engine := s.newEngine(BaseHandlers(s.logger))
		tracker := s.tracker(nil)
		tracker.Status = TrackerFailed
		tracker.FailureReason = "earlier failure"

		s.Require().NoError(engine.Run(context.Background(), fourStepDefinition(), nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Empty(tracker.CompletedSteps)
	})
}

func (s *WorkflowEngineSuite) TestCheckpointResume() {
	s.Run("checkpoint errors propagate", func() {
		boom := errors.New("store unavailable")
		engine := s.newEngine(
			map[StepType]Handler{StepNotification: HandlerFunc(succeedStep)},
			WithCheckpoint(func(context.Context, *Tracker) error { return boom }),
		)
		def := Definition{ID: "wf", Steps: []Step{{Name: "a", Type: StepNotification}}}
		err := engine.Run(context.Background(), def, nil, s.tracker(nil))
		s.Require().Error(err)
		s.ErrorIs(err, boom)
	})

	s.Run("resumes from the persisted index without replaying", func() {
		var executed []string
		recording := HandlerFunc(func(_ context.Context, step Step, _ *Tracker) (StepResult, error) {
			executed = append(executed, step.Name)
			return StepResult{Success: true}, nil
		})
		engine := s.newEngine(map[StepType]Handler{StepNotification: recording})

		def := Definition{ID: "wf", Steps: []Step{
			{Name: "a", Type: StepNotification},
			{Name: "b", Type: StepNotification},
			{Name: "c", Type: StepNotification},
		}}
		tracker := s.tracker(nil)
		tracker.CurrentStepIndex = 2
		tracker.CompletedSteps = []CompletedStep{{Name: "a"}, {Name: "b"}}

		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal([]string{"c"}, executed)
		s.Equal(TrackerCompleted, tracker.Status)
	})
}

func (s *WorkflowEngineSuite) TestMilestones() {
	minProgress := func(p int) *int { return &p }

	milestones := []Milestone{
		{ID: "halfway", Name: "Halfway", Requirements: MilestoneRequirements{
			MinProgressPercentage: minProgress(50),
		}},
		{ID: "verified", Name: "Verified", Requirements: MilestoneRequirements{
			RequiredSteps:  []string{"a", "b"},
			UserDataFields: []string{"email"},
			CustomConditions: []rules.Condition{
				{Type: rules.ConditionUserData, Field: "age", Operator: rules.OpGreaterThanOrEqual, Value: 18},
			},
		}},
	}

	handlers := map[StepType]Handler{StepNotification: HandlerFunc(succeedStep)}
	def := Definition{ID: "wf", Steps: []Step{
		{Name: "a", Type: StepNotification},
		{Name: "b", Type: StepNotification},
	}}

	s.Run("conjunctive categories, achieved once with timestamp", func() {
		clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		engine := s.newEngine(handlers, WithClock(func() time.Time { return clock }))
		tracker := s.tracker(map[string]any{"email": "a@b.c", "age": 30})

		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Empty(tracker.Milestones)

		tracker = s.tracker(map[string]any{"email": "a@b.c", "age": 30})
		s.Require().NoError(engine.Run(context.Background(), def, milestones, tracker))
		s.Require().Len(tracker.Milestones, 2)
		s.Equal("halfway", tracker.Milestones[0].MilestoneID)
		s.Equal("verified", tracker.Milestones[1].MilestoneID)
		s.Equal(clock, tracker.Milestones[0].AchievedAt)
	})

	s.Run("unmet category blocks achievement", func() {
		engine := s.newEngine(handlers)
		tracker := s.tracker(map[string]any{"email": "a@b.c", "age": 15})

		s.Require().NoError(engine.Run(context.Background(), def, milestones, tracker))
		s.Require().Len(tracker.Milestones, 1)
		s.Equal("halfway", tracker.Milestones[0].MilestoneID)
	})

	s.Run("re-evaluation never duplicates or removes", func() {
		engine := s.newEngine(handlers)
		tracker := s.tracker(map[string]any{"email": "a@b.c", "age": 30})

		s.Require().NoError(engine.Run(context.Background(), def, milestones, tracker))
		achieved := len(tracker.Milestones)

		engine.evaluateMilestones(context.Background(), milestones, tracker)
		engine.evaluateMilestones(context.Background(), milestones, tracker)
		s.Len(tracker.Milestones, achieved)
	})
}

func (s *WorkflowEngineSuite) TestBaseHandlers() {
	engine := s.newEngine(BaseHandlers(s.logger))

	s.Run("data_collection reports missing fields", func() {
		def := Definition{ID: "wf", Steps: []Step{
			{Name: "collect", Type: StepDataCollection, Config: map[string]any{"required_fields": []any{"name", "email"}}},
		}}
		tracker := s.tracker(map[string]any{"name": "Ada"})
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Contains(tracker.FailureReason, "email")
	})

	s.Run("notification without template is a validation failure", func() {
		def := Definition{ID: "wf", Steps: []Step{{Name: "notify", Type: StepNotification}}}
		tracker := s.tracker(nil)
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Contains(tracker.FailureReason, "input validation failed")
	})

	s.Run("external_check consumes recorded provider results", func() {
		def := Definition{ID: "wf", Steps: []Step{
			{Name: "ext", Type: StepExternalCheck, Config: map[string]any{"provider": "sanctions_api"}},
		}}
		tracker := s.tracker(map[string]any{
			"external_checks": map[string]any{"sanctions_api": true},
		})
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerCompleted, tracker.Status)
	})

	s.Run("validation step evaluates configured checks", func() {
		def := Definition{ID: "wf", Steps: []Step{
			{Name: "validate", Type: StepValidation, Config: map[string]any{
				"checks": []any{
					map[string]any{"field": "age", "operator": "greater_than_or_equal", "value": 18},
				},
			}},
		}}
		tracker := s.tracker(map[string]any{"age": 17})
		s.Require().NoError(engine.Run(context.Background(), def, nil, tracker))
		s.Equal(TrackerFailed, tracker.Status)
		s.Contains(tracker.FailureReason, "validation failed")
	})
}
