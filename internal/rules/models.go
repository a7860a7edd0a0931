// Package rules implements the condition evaluator and the compliance rule
// engine: dynamically configured condition trees evaluated against a case's
// input records, plus rule actions, regulation checks, and the violation and
// recommendation derivation built on top of them.
package rules

// ConditionType selects which input record a condition is evaluated against.
type ConditionType string

const (
	ConditionUserData             ConditionType = "user_data"
	ConditionRiskAssessment       ConditionType = "risk_assessment"
	ConditionDocumentVerification ConditionType = "document_verification"
	ConditionIdentityVerification ConditionType = "identity_verification"
	ConditionCombined             ConditionType = "combined"
)

// Operator is a comparison applied to the resolved field value.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpRegex              Operator = "regex"
	OpNotRegex           Operator = "not_regex"
)

// LogicOperator combines sub-condition results of a combined condition.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Condition is a single testable predicate over one input record field.
// Conditions are immutable once loaded; combined conditions carry an ordered
// list of sub-conditions joined by LogicOperator.
type Condition struct {
	Type          ConditionType `json:"type" yaml:"type"`
	Field         string        `json:"field,omitempty" yaml:"field,omitempty"`
	Operator      Operator      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value         any           `json:"value,omitempty" yaml:"value,omitempty"`
	SubConditions []Condition   `json:"sub_conditions,omitempty" yaml:"sub_conditions,omitempty"`
	LogicOperator LogicOperator `json:"logic_operator,omitempty" yaml:"logic_operator,omitempty"`
}

// Inputs bundles the four records a condition may address. All records are
// read-only snapshots taken when the case was created.
type Inputs struct {
	UserData             map[string]any `json:"user_data,omitempty"`
	RiskAssessment       map[string]any `json:"risk_assessment,omitempty"`
	DocumentVerification map[string]any `json:"document_verification,omitempty"`
	IdentityVerification map[string]any `json:"identity_verification,omitempty"`
}

// Record returns the input record addressed by a condition type, or nil for
// combined (which has no record of its own) and unknown types.
func (in Inputs) Record(t ConditionType) map[string]any {
	switch t {
	case ConditionUserData:
		return in.UserData
	case ConditionRiskAssessment:
		return in.RiskAssessment
	case ConditionDocumentVerification:
		return in.DocumentVerification
	case ConditionIdentityVerification:
		return in.IdentityVerification
	default:
		return nil
	}
}

// ConditionResult reports a single condition evaluation. Met is false whenever
// the actual value is absent or the condition is misconfigured; Message carries
// the reason in those cases.
type ConditionResult struct {
	Type       ConditionType     `json:"type"`
	Field      string            `json:"field,omitempty"`
	Operator   Operator          `json:"operator,omitempty"`
	Expected   any               `json:"expected,omitempty"`
	Actual     any               `json:"actual,omitempty"`
	Met        bool              `json:"met"`
	Message    string            `json:"message,omitempty"`
	SubResults []ConditionResult `json:"sub_results,omitempty"`
}

// ActionType enumerates the side-effecting actions a rule may configure.
type ActionType string

const (
	ActionLogViolation         ActionType = "log_violation"
	ActionSendAlert            ActionType = "send_alert"
	ActionBlockUser            ActionType = "block_user"
	ActionRequireVerification  ActionType = "require_additional_verification"
	ActionUpdateRiskScore      ActionType = "update_risk_score"
	ActionCreateRecommendation ActionType = "create_recommendation"
)

// Rule is a named set of conditions plus actions. All top-level conditions
// must be met (logical AND) before the actions fire.
type Rule struct {
	ID         string                    `json:"id" yaml:"id"`
	Name       string                    `json:"name" yaml:"name"`
	Priority   int                       `json:"priority" yaml:"priority"`
	Conditions []Condition               `json:"conditions" yaml:"conditions"`
	Actions    map[string]map[string]any `json:"actions,omitempty" yaml:"actions,omitempty"`
	Parameters map[string]any            `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// RuleStatus is the outcome of evaluating one rule.
type RuleStatus string

const (
	RulePassed RuleStatus = "passed"
	RuleFailed RuleStatus = "failed"
	RuleError  RuleStatus = "error"
)

// ActionResult reports one executed action. Actions are error-isolated: a
// failing action is recorded here and never blocks its siblings.
type ActionResult struct {
	Action  ActionType     `json:"action"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}

// RuleResult is the full outcome of evaluating one rule against one case.
type RuleResult struct {
	RuleID           string            `json:"rule_id"`
	Name             string            `json:"name"`
	Status           RuleStatus        `json:"status"`
	ConditionResults []ConditionResult `json:"condition_results"`
	ActionResults    []ActionResult    `json:"action_results,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// Requirement is structurally a condition; regulations key them by name.
type Requirement = Condition

// Regulation is a named set of requirements plus penalties. All requirements
// must be met for compliance; penalties are surfaced (never applied) on
// failure.
type Regulation struct {
	ID           string                 `json:"id" yaml:"id"`
	Name         string                 `json:"name" yaml:"name"`
	Jurisdiction string                 `json:"jurisdiction" yaml:"jurisdiction"`
	Priority     int                    `json:"priority" yaml:"priority"`
	Requirements map[string]Requirement `json:"requirements" yaml:"requirements"`
	Penalties    map[string]any         `json:"penalties,omitempty" yaml:"penalties,omitempty"`
}

// RegulationStatus is the outcome of checking one regulation.
type RegulationStatus string

const (
	RegulationCompliant    RegulationStatus = "compliant"
	RegulationNonCompliant RegulationStatus = "non_compliant"
)

// RegulationResult is the outcome of checking one regulation against one case.
type RegulationResult struct {
	RegulationID       string                     `json:"regulation_id"`
	Name               string                     `json:"name"`
	Jurisdiction       string                     `json:"jurisdiction"`
	Status             RegulationStatus           `json:"status"`
	RequirementsMet    bool                       `json:"requirements_met"`
	RequirementResults map[string]ConditionResult `json:"requirement_results"`
	Penalties          map[string]any             `json:"penalties,omitempty"`
}

// ViolationType classifies a derived violation.
type ViolationType string

const (
	ViolationComplianceRule ViolationType = "compliance_rule_violation"
	ViolationRegulation     ViolationType = "regulation_violation"
)

// Severity grades violations and recommendations.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation is derived from a failed rule or a non-compliant regulation.
type Violation struct {
	Type        ViolationType  `json:"type"`
	SourceID    string         `json:"source_id"`
	SourceName  string         `json:"source_name"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
}

// Recommendation is a suggested follow-up derived from violations (or a single
// maintenance recommendation when there are none).
type Recommendation struct {
	Type        string   `json:"type"`
	Priority    Severity `json:"priority"`
	Description string   `json:"description"`
	Action      string   `json:"action"`
}
