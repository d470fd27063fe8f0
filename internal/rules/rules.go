// Package rules implements the expression language notification rules are
// written in and evaluates ordered rule sets against flattened CloudTrail
// events.
//
// A rule is one boolean expression over a single binding, event, which is
// the flattened form of a CloudTrail event:
//
//	event["eventSource"] == "cloudtrail.amazonaws.com" and event["eventName"] in ["StopLogging", "DeleteTrail"]
//
// The language is deliberately closed: string, number, boolean, and null
// literals, list literals, comparisons, boolean connectives, membership
// tests, and a handful of string helpers (get, startswith, endswith,
// contains, lower, upper). An expression cannot name anything but event,
// so rules from configuration cannot reach into the host program.
package rules

import (
	"fmt"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/flatten"
)

// Rule is a compiled rule expression.
type Rule struct {
	Source string
	root   node
}

// Compile parses a rule expression. Rules come from configuration, so a
// rule that does not compile is a deployment mistake surfaced at startup,
// never at event time.
func Compile(source string) (Rule, error) {
	tokens, err := lex(source)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling rule %q: %w", source, err)
	}
	root, err := parse(tokens)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling rule %q: %w", source, err)
	}
	return Rule{Source: source, root: root}, nil
}

// MustCompile is Compile for rule sources known to be valid; it panics on
// error.
func MustCompile(source string) Rule {
	r, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return r
}

// CompileAll compiles rule sources in order, failing on the first bad one.
func CompileAll(sources []string) ([]Rule, error) {
	compiled := make([]Rule, 0, len(sources))
	for _, source := range sources {
		r, err := Compile(source)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// Eval returns the raw value the rule expression produces for the event.
func (r Rule) Eval(event flatten.Flat) (any, error) {
	return eval(r.root, event)
}

// Matches reports whether the rule produced boolean true for the event.
// Any other result, including non-boolean values, is not a match.
func (r Rule) Matches(event flatten.Flat) (bool, error) {
	v, err := eval(r.root, event)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

// EvalError records a rule that failed to evaluate against an event.
type EvalError struct {
	Rule string
	Err  error
}

// Result is the outcome of evaluating one event against a rule set.
// MatchedRule is the source text of the deciding rule, empty when nothing
// matched. Errors lists every rule that failed to evaluate, in rule order.
type Result struct {
	Process     bool
	Ignored     bool
	MatchedRule string
	Errors      []EvalError
}

// Ruleset is an ordered pair of rule lists. Ignore rules run first and the
// first match ends evaluation with the event dropped. Match rules run
// next and the first match marks the event for processing. An event
// matching nothing is dropped.
type Ruleset struct {
	Ignore []Rule
	Match  []Rule
}

// Evaluate runs the rule set against one flattened event. A rule that
// fails to evaluate is recorded and skipped; it never ends the pass.
func (rs Ruleset) Evaluate(event flatten.Flat) Result {
	var errs []EvalError
	for _, rule := range rs.Ignore {
		ok, err := rule.Matches(event)
		if err != nil {
			errs = append(errs, EvalError{Rule: rule.Source, Err: err})
			continue
		}
		if ok {
			return Result{Ignored: true, MatchedRule: rule.Source, Errors: errs}
		}
	}
	for _, rule := range rs.Match {
		ok, err := rule.Matches(event)
		if err != nil {
			errs = append(errs, EvalError{Rule: rule.Source, Err: err})
			continue
		}
		if ok {
			return Result{Process: true, MatchedRule: rule.Source, Errors: errs}
		}
	}
	return Result{Errors: errs}
}
