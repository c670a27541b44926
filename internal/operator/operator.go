// Package operator holds the tagged-variant Operator dispatch: one struct
// with a discriminating tag and one dispatch switch, rather than a
// polymorphic interface per operator kind. This is the per-Rule hot path the
// Evaluator calls once per Rule during a RuleSet's tree walk.
package operator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/models"

	"github.com/ruletree/engine/internal/source"
)

// Context carries everything operand resolution and operator dispatch need
// for one Rule: the incoming/current records, the Rule's target selector,
// the Catalog, and the Source Registry.
type Context struct {
	New      *models.Product
	Current  *models.Product
	Target   models.Selector
	Catalog  *catalog.Catalog
	Sources  *source.Registry
}

// ResolveOperand resolves a single Operand: literals pass
// through, attribute references read row 0 of the attribute's group from
// the Rule's target record, source-callouts invoke the Source Registry.
func ResolveOperand(ctx Context, op models.Operand) (string, error) {
	switch op.Kind {
	case models.OperandLiteral:
		return op.Literal, nil
	case models.OperandAttribute:
		attr, err := ctx.Catalog.GetByName(op.AttributeName)
		if err != nil {
			return "", err
		}
		record := ctx.New
		if ctx.Target == models.SelectorCurrent {
			record = ctx.Current
		}
		value, _ := record.Get(attr.GroupID, 0, attr.ID)
		return value, nil
	case models.OperandSource:
		return ctx.Sources.ResolveAttribute(op.SourceName)
	default:
		return "", fmt.Errorf("operator: unknown operand kind %d", int(op.Kind))
	}
}

// Outcome is the per-Rule evaluation result the Evaluator folds into the
// enclosing RuleSet's verdict.
type Outcome struct {
	Passed  bool
	Failure *models.RuleFailure // nil when Passed (or when the operator always passes)
}

// Evaluate dispatches rule against ctx, returning the pass/fail outcome.
// Arithmetic-assignment and assignment operators always "pass" and mutate ctx.New as a side effect of this call — never
// ctx.Current, regardless of rule.Target.
func Evaluate(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	outcome, err := dispatch(ctx, ruleSetID, rule)
	if err != nil {
		return Outcome{}, err
	}
	severeLocalFailure := outcome.Failure != nil && outcome.Failure.Severity == models.SeveritySevere
	if rule.Operator.Tag != models.OpArith && rule.Operator.Tag != models.OpAssign && !severeLocalFailure {
		// Polarity negation applies to the predicate's boolean verdict, not
		// to a severe local parse/arithmetic failure.
		outcome.Passed = outcome.Passed != rule.Negated
		if outcome.Passed {
			outcome.Failure = nil
		} else if outcome.Failure == nil {
			outcome.Failure = &models.RuleFailure{
				RuleSetID:      ruleSetID,
				RuleID:         rule.ID,
				TargetAttrName: rule.TargetAttrName,
				Severity:       models.SeverityWarning,
			}
		}
	}
	return outcome, nil
}

func dispatch(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	switch rule.Operator.Tag {
	case models.OpPopulated:
		return evalPopulated(ctx, ruleSetID, rule)
	case models.OpCompare:
		return evalCompare(ctx, ruleSetID, rule)
	case models.OpInSet:
		return evalInSet(ctx, ruleSetID, rule)
	case models.OpRange:
		return evalRange(ctx, ruleSetID, rule)
	case models.OpArith:
		return evalArith(ctx, ruleSetID, rule)
	case models.OpAssign:
		return evalAssign(ctx, ruleSetID, rule)
	case models.OpCustom:
		return evalCustom(ctx, ruleSetID, rule)
	default:
		return Outcome{}, fmt.Errorf("operator: unknown operator tag %d", int(rule.Operator.Tag))
	}
}

func targetOperand(rule models.Rule) models.Operand {
	return models.AttributeOperand(rule.TargetAttrName)
}

// evalPopulated: true iff the resolved string is non-empty after trimming.
func evalPopulated(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	value, err := ResolveOperand(ctx, targetOperand(rule))
	if err != nil {
		return Outcome{}, err
	}
	passed := strings.TrimSpace(value) != ""
	return failureOutcome(passed, ruleSetID, rule, value, "populated", models.SeverityWarning), nil
}

// evalCompare dispatches to numeric or lexical comparison per the target
// attribute's kind.
// Integer/Decimal attributes compare numerically; a ParseError on either
// side fails the rule with a severe marker. String/Date/Enum
// attributes compare lexically, byte-wise, with dates normalized to
// YYYYMMDD first.
func evalCompare(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	lhs, err := ResolveOperand(ctx, targetOperand(rule))
	if err != nil {
		return Outcome{}, err
	}
	rhs, err := ResolveOperand(ctx, rule.Operator.RHS)
	if err != nil {
		return Outcome{}, err
	}

	attr, attrErr := ctx.Catalog.GetByName(rule.TargetAttrName)
	numeric := attrErr == nil && (attr.Kind == models.KindInteger || attr.Kind == models.KindDecimal)

	var passed bool
	if numeric {
		lNum, lOK := parseDecimal(lhs)
		rNum, rOK := parseDecimal(rhs)
		if !lOK || !rOK {
			return severeParseFailure(ruleSetID, rule, lhs, "non-numeric operand in numeric comparison"), nil
		}
		passed = compareNumeric(lNum, rNum, rule.Operator.CompareOp)
	} else {
		normL, normR := lhs, rhs
		if attrErr == nil && attr.Kind == models.KindDate {
			normL, normR = normalizeDate(lhs), normalizeDate(rhs)
		}
		passed = compareLexical(normL, normR, rule.Operator.CompareOp)
	}

	desc := fmt.Sprintf("%s %s", rule.Operator.CompareOp, rhs)
	return failureOutcome(passed, ruleSetID, rule, lhs, desc, models.SeverityWarning), nil
}

func compareNumeric(l, r float64, op models.CompareOp) bool {
	switch op {
	case models.CmpEqual:
		return l == r
	case models.CmpNotEqual:
		return l != r
	case models.CmpLess:
		return l < r
	case models.CmpLessEqual:
		return l <= r
	case models.CmpGreater:
		return l > r
	case models.CmpGreaterEqual:
		return l >= r
	default:
		return false
	}
}

func compareLexical(l, r string, op models.CompareOp) bool {
	cmp := strings.Compare(l, r)
	switch op {
	case models.CmpEqual:
		return cmp == 0
	case models.CmpNotEqual:
		return cmp != 0
	case models.CmpLess:
		return cmp < 0
	case models.CmpLessEqual:
		return cmp <= 0
	case models.CmpGreater:
		return cmp > 0
	case models.CmpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

// normalizeDate is a no-op beyond trimming: dates are expected already in
// YYYYMMDD form; byte-wise comparison of
// that form is chronological order.
func normalizeDate(v string) string {
	return strings.TrimSpace(v)
}

// evalInSet: exact, case-sensitive string equality against each literal.
func evalInSet(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	lhs, err := ResolveOperand(ctx, targetOperand(rule))
	if err != nil {
		return Outcome{}, err
	}
	for _, member := range rule.Operator.Set {
		value, err := ResolveOperand(ctx, member)
		if err != nil {
			return Outcome{}, err
		}
		if value == lhs {
			return failureOutcome(true, ruleSetID, rule, lhs, "in set", models.SeverityWarning), nil
		}
	}
	return failureOutcome(false, ruleSetID, rule, lhs, "in set", models.SeverityWarning), nil
}

// evalRange: numeric inclusive [lo, hi]; if lo > hi, the rule evaluates
// false.
func evalRange(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	lhs, err := ResolveOperand(ctx, targetOperand(rule))
	if err != nil {
		return Outcome{}, err
	}
	loStr, err := ResolveOperand(ctx, rule.Operator.Low)
	if err != nil {
		return Outcome{}, err
	}
	hiStr, err := ResolveOperand(ctx, rule.Operator.High)
	if err != nil {
		return Outcome{}, err
	}

	value, vOK := parseDecimal(lhs)
	lo, loOK := parseDecimal(loStr)
	hi, hiOK := parseDecimal(hiStr)
	if !vOK || !loOK || !hiOK {
		return severeParseFailure(ruleSetID, rule, lhs, "range requires numeric operands"), nil
	}
	passed := lo <= hi && value >= lo && value <= hi
	desc := fmt.Sprintf("in [%s, %s]", loStr, hiStr)
	return failureOutcome(passed, ruleSetID, rule, lhs, desc, models.SeverityWarning), nil
}

// evalArith: left-to-right + - * / over decimal operands; always "passes",
// assigning a fixed-point string (trailing zeros stripped) to the target
// attribute of NEW. An empty term list, a non-numeric operand or a division
// by zero instead fails the rule severe and assigns nothing.
func evalArith(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	terms := rule.Operator.Terms
	if len(terms) == 0 {
		return severeParseFailure(ruleSetID, rule, "", "arithmetic expression has no operands"), nil
	}

	seedStr, err := ResolveOperand(ctx, terms[0].Operand)
	if err != nil {
		return Outcome{}, err
	}
	acc, ok := parseDecimal(seedStr)
	if !ok {
		return severeParseFailure(ruleSetID, rule, seedStr, "non-numeric operand"), nil
	}

	for _, term := range terms[1:] {
		opndStr, err := ResolveOperand(ctx, term.Operand)
		if err != nil {
			return Outcome{}, err
		}
		opnd, ok := parseDecimal(opndStr)
		if !ok {
			return severeParseFailure(ruleSetID, rule, opndStr, "non-numeric operand"), nil
		}
		switch term.Op {
		case models.ArithAdd:
			acc += opnd
		case models.ArithSub:
			acc -= opnd
		case models.ArithMul:
			acc *= opnd
		case models.ArithDiv:
			if opnd == 0 {
				return severeParseFailure(ruleSetID, rule, opndStr, "division by zero"), nil
			}
			acc /= opnd
		}
	}

	assignAttr(ctx, rule.Operator.TargetAttribute, formatDecimal(acc))
	return Outcome{Passed: true}, nil
}

// evalAssign: sets the target attribute of NEW to a literal or looked-up
// value; always "passes".
func evalAssign(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	value, err := ResolveOperand(ctx, rule.Operator.AssignValue)
	if err != nil {
		return Outcome{}, err
	}
	assignAttr(ctx, rule.TargetAttrName, value)
	return Outcome{Passed: true}, nil
}

func assignAttr(ctx Context, attrName, value string) {
	attr, err := ctx.Catalog.GetByName(attrName)
	if err != nil {
		return
	}
	ctx.New.Set(attr, value)
}

// evalCustom: dispatches up to four stringified operands to the named
// Source. "1"/"true" -> pass, "0"/"false" -> fail, anything else is a
// severe failure of this rule.
func evalCustom(ctx Context, ruleSetID string, rule models.Rule) (Outcome, error) {
	op := rule.Operator
	var args [4]string
	for i := 0; i < op.CustomArgN; i++ {
		value, err := ResolveOperand(ctx, op.CustomArgs[i])
		if err != nil {
			return Outcome{}, err
		}
		args[i] = value
	}

	result, err := ctx.Sources.InvokeCustomOperator(op.CustomOpName, rule.TargetAttrName, args, op.CustomArgN)
	if err != nil {
		return Outcome{}, err
	}

	switch result {
	case "1", "true":
		return Outcome{Passed: true}, nil
	case "0", "false":
		return failureOutcome(false, ruleSetID, rule, result, fmt.Sprintf("custom operator %s", op.CustomOpName), models.SeverityWarning), nil
	default:
		return severeParseFailure(ruleSetID, rule, result, fmt.Sprintf("custom operator %s returned non-boolean value", op.CustomOpName)), nil
	}
}

func failureOutcome(passed bool, ruleSetID string, rule models.Rule, observed, expected string, severity models.Severity) Outcome {
	if passed {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed: false,
		Failure: &models.RuleFailure{
			RuleSetID:           ruleSetID,
			RuleID:              rule.ID,
			TargetAttrName:      rule.TargetAttrName,
			ObservedValue:       observed,
			ExpectedDescription: expected,
			OperatorName:        operatorName(rule.Operator.Tag),
			Severity:            severity,
		},
	}
}

// severeParseFailure reports a local parse/arithmetic failure as severe.
// Evaluate skips polarity negation for any severe failure (and for every
// Arith/Assign outcome), so the pass flag stays false regardless of
// rule.Negated (a severe parse error is never a "pass" under negation).
func severeParseFailure(ruleSetID string, rule models.Rule, observed, reason string) Outcome {
	return Outcome{
		Passed: false,
		Failure: &models.RuleFailure{
			RuleSetID:           ruleSetID,
			RuleID:              rule.ID,
			TargetAttrName:      rule.TargetAttrName,
			ObservedValue:       observed,
			ExpectedDescription: reason,
			OperatorName:        operatorName(rule.Operator.Tag),
			Severity:            models.SeveritySevere,
		},
	}
}

func operatorName(tag models.OperatorTag) string {
	switch tag {
	case models.OpPopulated:
		return "populated"
	case models.OpCompare:
		return "compare"
	case models.OpInSet:
		return "in_set"
	case models.OpRange:
		return "range"
	case models.OpArith:
		return "arithmetic"
	case models.OpAssign:
		return "assign"
	case models.OpCustom:
		return "custom"
	default:
		return "unknown"
	}
}

func parseDecimal(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatDecimal renders acc as a fixed-point string with trailing zeros
// (and a trailing decimal point) stripped.
func formatDecimal(acc float64) string {
	s := strconv.FormatFloat(acc, 'f', -1, 64)
	return s
}
