// Package conditions decides whether a workflow fires for a trigger payload.
package conditions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dukex/autoflow/pkg/models"
)

// Evaluator evaluates condition lists. The zero value is not usable; use New.
// It is safe for concurrent use.
type Evaluator struct {
	regexCache sync.Map // pattern -> *regexp.Regexp, or nil for invalid patterns
}

func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate AND-combines conditions against payload. An empty list is true.
// A missing field or a type mismatch makes that condition false; Evaluate never errors.
func (e *Evaluator) Evaluate(conditions []models.ConditionSpec, payload map[string]any) bool {
	for _, c := range conditions {
		if !e.EvaluateOne(c, payload) {
			return false
		}
	}

	return true
}

// EvaluateOne evaluates a single condition.
func (e *Evaluator) EvaluateOne(c models.ConditionSpec, payload map[string]any) bool {
	field, ok := Lookup(payload, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OperatorEquals:
		eq, ok := compare(field, c.Value)

		return ok && eq
	case models.OperatorNotEquals:
		eq, ok := compare(field, c.Value)

		return ok && !eq
	case models.OperatorGreaterThan:
		a, b, ok := numbers(field, c.Value)

		return ok && a > b
	case models.OperatorLessThan:
		a, b, ok := numbers(field, c.Value)

		return ok && a < b
	case models.OperatorContains:
		found, ok := contains(field, c.Value)

		return ok && found
	case models.OperatorNotContains:
		found, ok := contains(field, c.Value)

		return ok && !found
	case models.OperatorStartsWith:
		s, prefix, ok := strs(field, c.Value)

		return ok && strings.HasPrefix(s, prefix)
	case models.OperatorEndsWith:
		s, suffix, ok := strs(field, c.Value)

		return ok && strings.HasSuffix(s, suffix)
	case models.OperatorIsEmpty:
		return isEmpty(field)
	case models.OperatorIsNotEmpty:
		return !isEmpty(field)
	case models.OperatorMatchesRegex:
		s, pattern, ok := strs(field, c.Value)
		if !ok {
			return false
		}

		re := e.compile(pattern)

		return re != nil && re.MatchString(s)
	default:
		return false
	}
}

func (e *Evaluator) compile(pattern string) *regexp.Regexp {
	if cached, ok := e.regexCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)

		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}

	e.regexCache.Store(pattern, re)

	return re
}

// Lookup resolves a dotted path ("order.customer.id") through nested maps.
// A key that itself contains dots is matched before the path is split.
func Lookup(payload map[string]any, path string) (any, bool) {
	if payload == nil || path == "" {
		return nil, false
	}

	if v, ok := payload[path]; ok {
		return v, true
	}

	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}

	next, ok := payload[head]
	if !ok {
		return nil, false
	}

	switch m := next.(type) {
	case map[string]any:
		return Lookup(m, rest)
	default:
		return nil, false
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func isNumeric(v any) bool {
	if _, ok := v.(string); ok {
		return false
	}

	_, ok := toNumber(v)

	return ok
}

func numbers(a, b any) (float64, float64, bool) {
	x, ok := toNumber(a)
	if !ok {
		return 0, 0, false
	}

	y, ok := toNumber(b)
	if !ok {
		return 0, 0, false
	}

	return x, y, true
}

func strs(a, b any) (string, string, bool) {
	x, ok := a.(string)
	if !ok {
		return "", "", false
	}

	y, ok := b.(string)
	if !ok {
		return "", "", false
	}

	return x, y, true
}

// compare compares numbers by value when either side is a number, so 5, 5.0 and "5" are equal.
// ok is false when the operands are of kinds that cannot be compared.
func compare(a, b any) (eq bool, ok bool) {
	if isNumeric(a) || isNumeric(b) {
		x, y, ok := numbers(a, b)

		return ok && x == y, ok
	}

	if kindOf(a) != kindOf(b) {
		return false, false
	}

	return reflect.DeepEqual(a, b), true
}

func equal(a, b any) bool {
	eq, ok := compare(a, b)

	return ok && eq
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any, []string:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// contains reports substring membership for strings, element membership for lists
// and key membership for maps. ok is false when the operands cannot be compared.
func contains(container, needle any) (found bool, ok bool) {
	switch c := container.(type) {
	case string:
		s, isString := needle.(string)
		if !isString {
			return false, false
		}

		return strings.Contains(c, s), true
	case []any:
		for _, item := range c {
			if equal(item, needle) {
				return true, true
			}
		}

		return false, true
	case []string:
		for _, item := range c {
			if equal(item, needle) {
				return true, true
			}
		}

		return false, true
	case map[string]any:
		key, isString := needle.(string)
		if !isString {
			return false, false
		}

		_, exists := c[key]

		return exists, true
	default:
		return false, false
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}

// Describe renders a condition for logs and error messages.
func Describe(c models.ConditionSpec) string {
	if c.Operator == models.OperatorIsEmpty || c.Operator == models.OperatorIsNotEmpty {
		return fmt.Sprintf("%s %s", c.Field, c.Operator)
	}

	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}
