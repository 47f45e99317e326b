// Edge condition evaluation for branch nodes.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EvaluateCondition evaluates a branch-edge condition against the execution
// variables. The language is deliberately small and deterministic:
//
//	""                  always true (unconditional edge)
//	has(name)           variable is present
//	name == literal     equality against a string or number literal
//	name != literal     inequality
//	name                truthiness of the variable value
//
// Literals may be double-quoted; unquoted literals are compared as text
// first and numerically when both sides parse as numbers. Operators inside
// a quoted literal are not split on; escaped quotes inside literals are
// not supported.
func EvaluateCondition(condition string, vars map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	if name, ok := strings.CutPrefix(condition, "has("); ok {
		name, ok = strings.CutSuffix(name, ")")
		if !ok {
			return false, fmt.Errorf("malformed condition %q", condition)
		}

		_, present := vars[strings.TrimSpace(name)]

		return present, nil
	}

	if left, right, found := cutOperator(condition, "!="); found {
		eq, err := compareOperands(left, right, vars)
		if err != nil {
			return false, err
		}

		return !eq, nil
	}

	if left, right, found := cutOperator(condition, "=="); found {
		return compareOperands(left, right, vars)
	}

	value, present := vars[condition]
	if !present {
		return false, nil
	}

	return truthy(value)
}

// cutOperator splits condition around the first occurrence of op outside
// double quotes.
func cutOperator(condition, op string) (left, right string, found bool) {
	inQuotes := false

	for i := 0; i+len(op) <= len(condition); i++ {
		if condition[i] == '"' {
			inQuotes = !inQuotes

			continue
		}

		if !inQuotes && strings.HasPrefix(condition[i:], op) {
			return condition[:i], condition[i+len(op):], true
		}
	}

	return "", "", false
}

func compareOperands(left, right string, vars map[string]any) (bool, error) {
	name := strings.TrimSpace(left)

	value, present := vars[name]
	if !present {
		return false, nil
	}

	literal := unquote(strings.TrimSpace(right))

	actual := fmt.Sprintf("%v", value)
	if actual == literal {
		return true, nil
	}

	// "10" and "10.0" should compare equal for numeric variables.
	actualNum, errA := strconv.ParseFloat(actual, 64)
	literalNum, errB := strconv.ParseFloat(literal, 64)

	if errA == nil && errB == nil {
		return actualNum == literalNum, nil
	}

	return false, nil
}

// unquote strips exactly one surrounding pair of double quotes; inner
// quotes stay part of the literal.
func unquote(literal string) string {
	if len(literal) >= 2 && literal[0] == '"' && literal[len(literal)-1] == '"' {
		return literal[1 : len(literal)-1]
	}

	return literal
}

func truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return v != "", nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}
