package rules

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
)

func eval(n node, event flatten.Flat) (any, error) {
	switch t := n.(type) {
	case literalNode:
		return t.value, nil
	case listNode:
		out := make([]any, 0, len(t.elems))
		for _, elem := range t.elems {
			v, err := eval(elem, event)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case eventNode:
		return event, nil
	case lookupNode:
		kv, err := eval(t.key, event)
		if err != nil {
			return nil, err
		}
		key, ok := kv.(string)
		if !ok {
			return nil, fmt.Errorf("event keys are strings, got %s", typeName(kv))
		}
		v, ok := event[key]
		if !ok {
			return nil, fmt.Errorf("key %q not present in event", key)
		}
		return v, nil
	case callNode:
		return evalCall(t, event)
	case notNode:
		v, err := eval(t.operand, event)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not requires a boolean operand, got %s", typeName(v))
		}
		return !b, nil
	case logicalNode:
		return evalLogical(t, event)
	case compareNode:
		return evalCompare(t, event)
	case inNode:
		return evalIn(t, event)
	}
	return nil, fmt.Errorf("unknown expression node %T", n)
}

// evalLogical short-circuits, so a failing right operand is never touched
// once the left one decides the outcome.
func evalLogical(n logicalNode, event flatten.Flat) (any, error) {
	opName := "and"
	if n.op == tokenOr {
		opName = "or"
	}
	left, err := eval(n.left, event)
	if err != nil {
		return nil, err
	}
	lb, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("%s requires boolean operands, got %s", opName, typeName(left))
	}
	if n.op == tokenAnd && !lb {
		return false, nil
	}
	if n.op == tokenOr && lb {
		return true, nil
	}
	right, err := eval(n.right, event)
	if err != nil {
		return nil, err
	}
	rb, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("%s requires boolean operands, got %s", opName, typeName(right))
	}
	return rb, nil
}

func evalCompare(n compareNode, event flatten.Flat) (any, error) {
	left, err := eval(n.left, event)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.right, event)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNeq:
		return !looseEqual(left, right), nil
	}
	switch l := left.(type) {
	case float64:
		if r, ok := right.(float64); ok {
			return ordered(n.op, l, r), nil
		}
	case string:
		if r, ok := right.(string); ok {
			return ordered(n.op, l, r), nil
		}
	}
	return nil, fmt.Errorf("cannot order %s and %s", typeName(left), typeName(right))
}

func ordered[T cmp.Ordered](op tokenKind, l, r T) bool {
	switch op {
	case tokenLt:
		return l < r
	case tokenLte:
		return l <= r
	case tokenGt:
		return l > r
	default:
		return l >= r
	}
}

// looseEqual compares values the way decoded JSON wants: same-type scalars
// by value, anything of differing types unequal rather than an error.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func evalIn(n inNode, event flatten.Flat) (any, error) {
	left, err := eval(n.left, event)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.right, event)
	if err != nil {
		return nil, err
	}
	found, err := membership(left, right)
	if err != nil {
		return nil, err
	}
	if n.negate {
		return !found, nil
	}
	return found, nil
}

// membership implements in: key presence when the right side is the event,
// element equality for lists, substring for strings.
func membership(needle, haystack any) (bool, error) {
	switch h := haystack.(type) {
	case flatten.Flat:
		key, ok := needle.(string)
		if !ok {
			return false, nil
		}
		_, present := h[key]
		return present, nil
	case []any:
		for _, elem := range h {
			if looseEqual(needle, elem) {
				return true, nil
			}
		}
		return false, nil
	case string:
		sub, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("substring check requires a string, got %s", typeName(needle))
		}
		return strings.Contains(h, sub), nil
	}
	return false, fmt.Errorf("right operand of in must be the event, a list, or a string, got %s", typeName(haystack))
}

func evalCall(n callNode, event flatten.Flat) (any, error) {
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		v, err := eval(arg, event)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch n.name {
	case "get":
		key, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("get() key must be a string, got %s", typeName(args[0]))
		}
		if v, present := event[key]; present {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	case "startswith", "endswith":
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s() requires a string, got %s", n.name, typeName(args[0]))
		}
		match := strings.HasPrefix
		if n.name == "endswith" {
			match = strings.HasSuffix
		}
		for _, v := range args[1:] {
			affix, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s() requires string arguments, got %s", n.name, typeName(v))
			}
			if match(s, affix) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		s, ok1 := args[0].(string)
		sub, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("contains() requires string arguments, got %s and %s", typeName(args[0]), typeName(args[1]))
		}
		return strings.Contains(s, sub), nil
	case "lower":
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("lower() requires a string, got %s", typeName(args[0]))
		}
		return strings.ToLower(s), nil
	case "upper":
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("upper() requires a string, got %s", typeName(args[0]))
		}
		return strings.ToUpper(s), nil
	}
	return nil, fmt.Errorf("unknown function %q", n.name)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case flatten.Flat:
		return "event"
	}
	return fmt.Sprintf("%T", v)
}
