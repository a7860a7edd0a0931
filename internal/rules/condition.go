package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Evaluator resolves condition fields against input records and applies
// comparison operators. It is a pure component: no I/O, no suspension, and it
// never propagates an error upward — every internal failure becomes an unmet
// result so one malformed condition cannot abort evaluation of its siblings.
type Evaluator struct {
	operators map[Operator]operatorFunc
}

// operatorFunc applies one comparison. A returned error marks the condition
// unmet with the error as the message.
type operatorFunc func(actual, expected any) (bool, error)

// NewEvaluator builds the evaluator with its operator table resolved once, so
// unknown operators surface as configuration errors rather than a default
// branch.
func NewEvaluator() *Evaluator {
	e := &Evaluator{}
	e.operators = map[Operator]operatorFunc{
		OpEquals:             func(a, b any) (bool, error) { return looseEquals(a, b), nil },
		OpNotEquals:          func(a, b any) (bool, error) { return !looseEquals(a, b), nil },
		OpGreaterThan:        numericCompare(func(a, b float64) bool { return a > b }),
		OpGreaterThanOrEqual: numericCompare(func(a, b float64) bool { return a >= b }),
		OpLessThan:           numericCompare(func(a, b float64) bool { return a < b }),
		OpLessThanOrEqual:    numericCompare(func(a, b float64) bool { return a <= b }),
		OpContains:           contains,
		OpNotContains:        negate(contains),
		OpIn:                 within,
		OpNotIn:              negate(within),
		OpRegex:              matchRegex,
		OpNotRegex:           negate(matchRegex),
	}
	return e
}

// Evaluate tests a condition against the given inputs. The result is always
// well-formed; panics inside operator application are converted to unmet
// results.
func (e *Evaluator) Evaluate(cond Condition, inputs Inputs) (result ConditionResult) {
	result = ConditionResult{
		Type:     cond.Type,
		Field:    cond.Field,
		Operator: cond.Operator,
		Expected: cond.Value,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Met = false
			result.Message = fmt.Sprintf("condition evaluation panic: %v", r)
		}
	}()

	if cond.Type == ConditionCombined {
		return e.evaluateCombined(cond, inputs)
	}

	record := inputs.Record(cond.Type)
	if record == nil && !knownConditionType(cond.Type) {
		result.Message = fmt.Sprintf("unknown condition type %q", cond.Type)
		return result
	}

	actual, found := ResolvePath(record, cond.Field)
	if !found || actual == nil {
		// Absent data is never a match, negated operators included: a missing
		// field must not satisfy not_equals/not_contains.
		result.Message = "field value is absent"
		return result
	}
	result.Actual = actual

	apply, ok := e.operators[cond.Operator]
	if !ok {
		result.Message = fmt.Sprintf("unknown operator %q", cond.Operator)
		return result
	}

	met, err := apply(actual, cond.Value)
	if err != nil {
		result.Met = false
		result.Message = err.Error()
		return result
	}
	result.Met = met
	return result
}

// evaluateCombined recursively evaluates sub-conditions and joins them with
// the configured logic operator. An unrecognized operator is a configuration
// error and yields unmet, never "true by default".
func (e *Evaluator) evaluateCombined(cond Condition, inputs Inputs) ConditionResult {
	result := ConditionResult{Type: ConditionCombined}

	sub := make([]ConditionResult, 0, len(cond.SubConditions))
	for _, sc := range cond.SubConditions {
		sub = append(sub, e.Evaluate(sc, inputs))
	}
	result.SubResults = sub

	switch cond.LogicOperator {
	case LogicAnd:
		result.Met = true
		for _, r := range sub {
			if !r.Met {
				result.Met = false
				break
			}
		}
	case LogicOr:
		for _, r := range sub {
			if r.Met {
				result.Met = true
				break
			}
		}
	default:
		result.Message = fmt.Sprintf("unknown logic operator %q", cond.LogicOperator)
	}
	return result
}

func knownConditionType(t ConditionType) bool {
	switch t {
	case ConditionUserData, ConditionRiskAssessment, ConditionDocumentVerification, ConditionIdentityVerification:
		return true
	}
	return false
}

// ResolvePath walks a dot-separated path through nested maps. Any missing
// intermediate key reports not-found. Exported because the risk scorer
// resolves sub-attribute fields with identical semantics.
func ResolvePath(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	var current any = record
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEquals compares numerically when both sides coerce to numbers and
// structurally otherwise.
func looseEquals(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func numericCompare(cmp func(a, b float64) bool) operatorFunc {
	return func(actual, expected any) (bool, error) {
		af, ok := toFloat(actual)
		if !ok {
			return false, fmt.Errorf("actual value %v is not numeric", actual)
		}
		ef, ok := toFloat(expected)
		if !ok {
			return false, fmt.Errorf("expected value %v is not numeric", expected)
		}
		return cmp(af, ef), nil
	}
}

// contains handles both shapes the rule bundles use: list membership when the
// actual value is a list, substring match when it is a string.
func contains(actual, expected any) (bool, error) {
	if items, ok := toSlice(actual); ok {
		for _, item := range items {
			if looseEquals(item, expected) {
				return true, nil
			}
		}
		return false, nil
	}
	if s, ok := actual.(string); ok {
		return strings.Contains(s, stringify(expected)), nil
	}
	return false, fmt.Errorf("contains requires a list or string actual, got %T", actual)
}

// within requires the expected value to be a list; anything else is a
// configuration error and the condition is unmet.
func within(actual, expected any) (bool, error) {
	items, ok := toSlice(expected)
	if !ok {
		return false, fmt.Errorf("in/not_in requires a list value, got %T", expected)
	}
	for _, item := range items {
		if looseEquals(actual, item) {
			return true, nil
		}
	}
	return false, nil
}

func matchRegex(actual, expected any) (bool, error) {
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("regex requires a string pattern, got %T", expected)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return re.MatchString(stringify(actual)), nil
}

func negate(fn operatorFunc) operatorFunc {
	return func(actual, expected any) (bool, error) {
		met, err := fn(actual, expected)
		if err != nil {
			// Errors stay errors: a malformed negated condition is unmet, not
			// met-by-inversion.
			return false, err
		}
		return !met, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(items))
		for i, f := range items {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(items))
		for i, n := range items {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
