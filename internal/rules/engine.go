package rules

import (
	"fmt"
	"log/slog"
	"sort"
)

// Engine evaluates compliance rules and regulations against case inputs.
// Evaluation is a map over independent units: one rule never sees another
// rule's side effects within the same pass, and a failure inside one unit is
// recorded on that unit's result without touching its siblings.
type Engine struct {
	evaluator *Evaluator
	actions   map[ActionType]actionFunc
	logger    *slog.Logger
}

// actionFunc executes one configured rule action. Errors are captured on the
// action result.
type actionFunc func(rule Rule, cfg map[string]any, inputs Inputs) (map[string]any, error)

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a logger for action side effects.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine builds a rule engine with its action handlers registered up front;
// an action name outside this table is a configuration error on the rule that
// names it.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		evaluator: NewEvaluator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.actions = map[ActionType]actionFunc{
		ActionLogViolation:         e.actionLogViolation,
		ActionSendAlert:            e.actionSendAlert,
		ActionBlockUser:            e.actionBlockUser,
		ActionRequireVerification:  e.actionRequireVerification,
		ActionUpdateRiskScore:      e.actionUpdateRiskScore,
		ActionCreateRecommendation: e.actionCreateRecommendation,
	}
	return e
}

// Evaluator exposes the condition evaluator so other engines (workflow step
// preconditions, milestone custom conditions) share one implementation.
func (e *Engine) Evaluator() *Evaluator {
	return e.evaluator
}

// EvaluateRule tests every top-level condition (logical AND) and executes the
// rule's actions only when all are met. Each action is independently
// error-isolated.
func (e *Engine) EvaluateRule(rule Rule, inputs Inputs) RuleResult {
	result := RuleResult{
		RuleID: rule.ID,
		Name:   rule.Name,
		Status: RulePassed,
	}

	for _, cond := range rule.Conditions {
		cr := e.evaluator.Evaluate(cond, inputs)
		result.ConditionResults = append(result.ConditionResults, cr)
		if !cr.Met {
			result.Status = RuleFailed
		}
	}

	if result.Status != RulePassed {
		return result
	}

	result.ActionResults = e.executeActions(rule, inputs)
	return result
}

// EvaluateAll runs rules in ascending priority order.
func (e *Engine) EvaluateAll(ruleSet []Rule, inputs Inputs) []RuleResult {
	ordered := make([]Rule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	results := make([]RuleResult, 0, len(ordered))
	for _, rule := range ordered {
		results = append(results, e.EvaluateRule(rule, inputs))
	}
	return results
}

func (e *Engine) executeActions(rule Rule, inputs Inputs) []ActionResult {
	names := make([]string, 0, len(rule.Actions))
	for name := range rule.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]ActionResult, 0, len(names))
	for _, name := range names {
		results = append(results, e.executeAction(rule, ActionType(name), rule.Actions[name], inputs))
	}
	return results
}

func (e *Engine) executeAction(rule Rule, action ActionType, cfg map[string]any, inputs Inputs) (result ActionResult) {
	result = ActionResult{Action: action}

	defer func() {
		if r := recover(); r != nil {
			result.Status = "error"
			result.Message = fmt.Sprintf("action panic: %v", r)
		}
	}()

	handler, ok := e.actions[action]
	if !ok {
		result.Status = "error"
		result.Message = fmt.Sprintf("unknown action type %q", action)
		return result
	}

	output, err := handler(rule, cfg, inputs)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return result
	}
	result.Status = "executed"
	result.Output = output
	return result
}

// The action handlers record structured outcomes for the case result; real
// delivery (alerts, account blocks) belongs to downstream consumers of the
// lifecycle events.

func (e *Engine) actionLogViolation(rule Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	e.logger.Warn("rule violation logged",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"severity", cfgString(cfg, "severity", string(SeverityMedium)),
	)
	return map[string]any{"logged": true}, nil
}

func (e *Engine) actionSendAlert(rule Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	channel := cfgString(cfg, "channel", "compliance")
	e.logger.Info("alert queued", "rule_id", rule.ID, "channel", channel)
	return map[string]any{"alert_channel": channel, "queued": true}, nil
}

func (e *Engine) actionBlockUser(rule Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	return map[string]any{
		"blocked": true,
		"reason":  cfgString(cfg, "reason", fmt.Sprintf("rule %s matched", rule.Name)),
	}, nil
}

func (e *Engine) actionRequireVerification(_ Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	method := cfgString(cfg, "method", "")
	if method == "" {
		return nil, fmt.Errorf("require_additional_verification needs a method")
	}
	return map[string]any{"verification_required": method}, nil
}

func (e *Engine) actionUpdateRiskScore(_ Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	adjustment, ok := toFloat(cfg["adjustment"])
	if !ok {
		return nil, fmt.Errorf("update_risk_score needs a numeric adjustment")
	}
	return map[string]any{"risk_score_adjustment": adjustment}, nil
}

func (e *Engine) actionCreateRecommendation(rule Rule, cfg map[string]any, _ Inputs) (map[string]any, error) {
	return map[string]any{
		"recommendation": Recommendation{
			Type:        cfgString(cfg, "type", "rule_follow_up"),
			Priority:    Severity(cfgString(cfg, "priority", string(SeverityMedium))),
			Description: cfgString(cfg, "description", fmt.Sprintf("follow up on rule %s", rule.Name)),
			Action:      cfgString(cfg, "action", "review_case"),
		},
	}, nil
}

func cfgString(cfg map[string]any, key, fallback string) string {
	if cfg == nil {
		return fallback
	}
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
