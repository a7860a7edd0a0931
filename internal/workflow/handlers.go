package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"credence/internal/rules"
	dErrors "credence/pkg/domain-errors"
)

// BaseHandlers returns the handlers with no external dependencies:
// notification, data_collection, validation, approval, and external_check.
// The evaluator-backed handlers (document/identity verification, risk
// assessment, compliance check, tier assignment) are registered by the case
// service, which owns those engines.
func BaseHandlers(logger *slog.Logger) map[StepType]Handler {
	return map[StepType]Handler{
		StepNotification:   notificationHandler(logger),
		StepDataCollection: HandlerFunc(dataCollectionStep),
		StepValidation:     HandlerFunc(validationStep),
		StepApproval:       HandlerFunc(approvalStep),
		StepExternalCheck:  HandlerFunc(externalCheckStep),
	}
}

// notificationHandler records that a notification is due; delivery belongs to
// the consumers of lifecycle events.
func notificationHandler(logger *slog.Logger) Handler {
	return HandlerFunc(func(_ context.Context, step Step, tracker *Tracker) (StepResult, error) {
		template, _ := step.Config["template"].(string)
		if template == "" {
			return StepResult{}, dErrors.New(dErrors.CodeValidation, "notification step requires a template")
		}
		logger.Info("notification queued",
			"tracker_id", tracker.ID,
			"template", template,
		)
		return StepResult{Success: true, Output: map[string]any{"template": template, "queued": true}}, nil
	})
}

// dataCollectionStep verifies that every field the step names has been
// collected into the tracker's user data.
func dataCollectionStep(_ context.Context, step Step, tracker *Tracker) (StepResult, error) {
	fields, ok := toStringList(step.Config["required_fields"])
	if !ok || len(fields) == 0 {
		return StepResult{}, dErrors.New(dErrors.CodeValidation, "data_collection step requires required_fields")
	}

	var missing []string
	for _, field := range fields {
		value, found := rules.ResolvePath(tracker.UserData, field)
		if !found || value == nil || value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return StepResult{
			Success: false,
			Message: fmt.Sprintf("missing user data fields: %v", missing),
			Output:  map[string]any{"missing_fields": missing},
		}, nil
	}
	return StepResult{Success: true, Output: map[string]any{"collected_fields": fields}}, nil
}

// validationStep runs the step's configured conditions as data validation
// checks against the tracker's user data.
func validationStep(_ context.Context, step Step, tracker *Tracker) (StepResult, error) {
	checks, ok := step.Config["checks"].([]any)
	if !ok || len(checks) == 0 {
		return StepResult{}, dErrors.New(dErrors.CodeValidation, "validation step requires checks")
	}

	evaluator := rules.NewEvaluator()
	inputs := rules.Inputs{UserData: tracker.UserData}

	var failures []string
	for _, raw := range checks {
		cond, err := conditionFromConfig(raw)
		if err != nil {
			return StepResult{}, dErrors.Wrap(err, dErrors.CodeValidation, "validation step check is malformed")
		}
		if result := evaluator.Evaluate(cond, inputs); !result.Met {
			failures = append(failures, cond.Field)
		}
	}
	if len(failures) > 0 {
		return StepResult{
			Success: false,
			Message: fmt.Sprintf("validation failed for fields: %v", failures),
		}, nil
	}
	return StepResult{Success: true}, nil
}

// approvalStep applies the decision recorded on the tracker by the preceding
// evaluation steps: an assigned tier or an explicit approved flag passes.
func approvalStep(_ context.Context, _ Step, tracker *Tracker) (StepResult, error) {
	if approved, ok := tracker.UserData["approved"].(bool); ok {
		if !approved {
			return StepResult{Success: false, Message: "application explicitly rejected"}, nil
		}
		return StepResult{Success: true, Output: map[string]any{"approved": true}}, nil
	}
	if tierID, ok := tracker.UserData["assigned_tier"].(string); ok && tierID != "" {
		return StepResult{Success: true, Output: map[string]any{"approved": true, "tier": tierID}}, nil
	}
	return StepResult{Success: false, Message: "no approval decision available"}, nil
}

// externalCheckStep consumes the structured result of an external provider
// check that the surrounding system has already written into the user data.
func externalCheckStep(_ context.Context, step Step, tracker *Tracker) (StepResult, error) {
	provider, _ := step.Config["provider"].(string)
	if provider == "" {
		return StepResult{}, dErrors.New(dErrors.CodeValidation, "external_check step requires a provider")
	}

	resultField := fmt.Sprintf("external_checks.%s", provider)
	value, found := rules.ResolvePath(tracker.UserData, resultField)
	if !found {
		return StepResult{Success: false, Message: fmt.Sprintf("no result recorded for provider %s", provider)}, nil
	}
	passed, ok := value.(bool)
	if !ok || !passed {
		return StepResult{Success: false, Message: fmt.Sprintf("provider %s reported failure", provider)}, nil
	}
	return StepResult{Success: true, Output: map[string]any{"provider": provider, "passed": true}}, nil
}

func conditionFromConfig(raw any) (rules.Condition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return rules.Condition{}, fmt.Errorf("check must be an object, got %T", raw)
	}
	cond := rules.Condition{
		Type:     rules.ConditionUserData,
		Field:    stringOr(m["field"], ""),
		Operator: rules.Operator(stringOr(m["operator"], "")),
		Value:    m["value"],
	}
	if cond.Field == "" || cond.Operator == "" {
		return rules.Condition{}, fmt.Errorf("check requires field and operator")
	}
	return cond, nil
}

func toStringList(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		return items, true
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
