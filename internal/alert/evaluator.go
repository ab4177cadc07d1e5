package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"

	"github.com/tmoradi/kestrel/internal/model"
)

// evaluate runs one rule against the cycle document. The extracted value is
// returned alongside the verdict so alerts can report what they saw.
func evaluate(rule model.AlertRule, doc any) (bool, any, error) {
	pattern, err := jsonpath.Compile(rule.Expression)
	if err != nil {
		return false, nil, fmt.Errorf("invalid JSONPath %q: %w", rule.Expression, err)
	}

	actual, err := pattern.Lookup(doc)
	if err != nil {
		// Path matched nothing: exists answers false, every other
		// operator simply does not fire.
		return false, nil, nil
	}

	matched, err := compare(rule.Operator, actual, rule.ExpectedValue)
	if err != nil {
		return false, actual, err
	}
	return matched, actual, nil
}

func compare(op string, actual, expected any) (bool, error) {
	switch op {
	case model.OpEquals:
		return looseEqual(actual, expected), nil
	case model.OpNotEquals:
		return !looseEqual(actual, expected), nil
	case model.OpGreaterThan, model.OpLessThan, model.OpGreaterEq, model.OpLessEq:
		cmp, err := compareNumeric(actual, expected)
		if err != nil {
			return false, err
		}
		switch op {
		case model.OpGreaterThan:
			return cmp > 0, nil
		case model.OpLessThan:
			return cmp < 0, nil
		case model.OpGreaterEq:
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	case model.OpContains:
		return contains(actual, expected), nil
	case model.OpExists:
		return actual != nil, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// looseEqual compares across JSON's habit of decoding every number as
// float64: numeric values compare numerically, booleans strictly, and
// everything else falls back to string form.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	na, errA := toNumber(a)
	nb, errB := toNumber(b)
	if errA == nil && errB == nil {
		return na == nb
	}

	if ba, okA := a.(bool); okA {
		bb, okB := b.(bool)
		return okB && ba == bb
	}

	return toString(a) == toString(b)
}

func contains(actual, expected any) bool {
	if arr, ok := actual.([]any); ok {
		for _, item := range arr {
			if looseEqual(item, expected) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(actual), toString(expected))
}

func compareNumeric(a, b any) (int, error) {
	na, err := toNumber(a)
	if err != nil {
		return 0, fmt.Errorf("left value: %w", err)
	}
	nb, err := toNumber(b)
	if err != nil {
		return 0, fmt.Errorf("right value: %w", err)
	}
	switch {
	case na < nb:
		return -1, nil
	case na > nb:
		return 1, nil
	default:
		return 0, nil
	}
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%T is not numeric", v)
	}
}

func toString(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
