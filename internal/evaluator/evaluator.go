package evaluator

import (
	"context"
	"strings"
	"time"

	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/gate"
	"github.com/ruletree/engine/pkg/models"

	"go.opentelemetry.io/otel/trace"

	"github.com/ruletree/engine/internal/observability"
	"github.com/ruletree/engine/internal/operator"
	"github.com/ruletree/engine/internal/source"
)

// RecordRetriever is the caller-supplied "current record" contract:
// `(keys: name -> value) -> Product`. A typed single-method
// interface, not a bare closure.
type RecordRetriever interface {
	Retrieve(keys map[string]string) (*models.Product, error)
}

// RecordRetrieverFunc adapts a plain function to RecordRetriever.
type RecordRetrieverFunc func(keys map[string]string) (*models.Product, error)

func (f RecordRetrieverFunc) Retrieve(keys map[string]string) (*models.Product, error) {
	return f(keys)
}

// Evaluator mediates one RuleTree against incoming Products. The
// Catalog, Source Registry, Transaction-State Gate, and RecordRetriever are
// all optional; a bare Evaluator walks the tree against an empty "current"
// record and never consults a gate.
//
// An Evaluator is not safe for concurrent Validate calls that share the same
// Gate or the same incoming Product; distinct Evaluators over the
// same RuleTree and Catalog may run on separate goroutines freely, since
// both are logically immutable after construction.
type Evaluator struct {
	treeID    string
	tree      *models.RuleTree
	catalog   *catalog.Catalog
	sources   *source.Registry
	gate      *gate.Gate
	retriever RecordRetriever
}

// New returns an Evaluator over tree. Attach optional collaborators with
// WithCatalog, WithSources, WithGate, WithRecordRetriever before calling
// Validate. treeID labels traces and metrics; callers with no natural id may
// pass the empty string.
func New(treeID string, tree *models.RuleTree) *Evaluator {
	return &Evaluator{treeID: treeID, tree: tree}
}

func (e *Evaluator) WithCatalog(c *catalog.Catalog) *Evaluator {
	e.catalog = c
	return e
}

func (e *Evaluator) WithSources(s *source.Registry) *Evaluator {
	e.sources = s
	return e
}

func (e *Evaluator) WithGate(g *gate.Gate) *Evaluator {
	e.gate = g
	return e
}

func (e *Evaluator) WithRecordRetriever(r RecordRetriever) *Evaluator {
	e.retriever = r
	return e
}

// Validate runs the full pre-flight / tree-walk / post-flight cycle (spec
// §4.E) against incoming and returns the resulting RuleTreeReport. The
// Transaction-State Gate, if attached, is cleared unconditionally before
// Validate returns, success or error. ctx carries only the trace span;
// Validate never suspends or checks ctx.Done().
func (e *Evaluator) Validate(ctx context.Context, incoming *models.Product) (*models.RuleTreeReport, error) {
	start := time.Now()
	traceCtx, span := observability.StartValidateSpan(ctx, e.treeID)
	defer span.End()

	report, err := e.validate(traceCtx, incoming)

	passed := err == nil && report != nil && report.Passed()
	observability.RecordValidateResult(span, e.treeID, passed, err, time.Since(start))
	return report, err
}

func (e *Evaluator) validate(ctx context.Context, incoming *models.Product) (*models.RuleTreeReport, error) {
	if e.gate != nil {
		defer e.gate.RevokeAll()
	}

	keys, err := e.extractKeys(incoming)
	if err != nil {
		return nil, err
	}

	if e.gate != nil && !e.gate.IsConfirmed() {
		observability.RecordGateRejection(trace.SpanFromContext(ctx))
		return nil, &PermissionError{Reason: "transaction-state gate is not confirmed"}
	}

	current, err := e.obtainCurrent(keys)
	if err != nil {
		return nil, err
	}

	if e.tree == nil || e.tree.Root == nil {
		return &models.RuleTreeReport{OverallSeverity: models.OverallClean}, nil
	}

	opCtx := operator.Context{
		New:     incoming,
		Current: current,
		Sources: e.sources,
		Catalog: e.catalog,
	}

	report := &models.RuleTreeReport{}
	_, err = e.walk(ctx, opCtx, e.tree.Root, report)
	if err != nil {
		return nil, err
	}
	report.RootIndex = len(report.RuleSets) - 1

	report.OverallSeverity = aggregateSeverity(report.RuleSets)
	return report, nil
}

// extractKeys reads row 0 of every Catalog key Attribute's group from
// incoming, failing with *InputError if any is missing or empty. With no Catalog attached, there are no keys to extract.
func (e *Evaluator) extractKeys(incoming *models.Product) (map[string]string, error) {
	if e.catalog == nil {
		return nil, nil
	}
	keys := make(map[string]string)
	for _, attr := range e.catalog.Keys() {
		value, ok := incoming.Get(attr.GroupID, 0, attr.ID)
		if !ok || strings.TrimSpace(value) == "" {
			return nil, &InputError{Reason: "missing or empty value for key attribute " + attr.Name}
		}
		keys[attr.Name] = value
	}
	return keys, nil
}

// obtainCurrent calls the attached RecordRetriever with the extracted keys,
// falling back to an empty Product if none is attached.
func (e *Evaluator) obtainCurrent(keys map[string]string) (*models.Product, error) {
	if e.retriever == nil {
		return models.NewProduct(), nil
	}
	current, err := e.retriever.Retrieve(keys)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = models.NewProduct()
	}
	return current, nil
}

// walk performs the depth-first pre-order traversal of one RuleSet,
// appending its RuleSetReport to report.RuleSets and returning whether this
// RuleSet's own haltSiblings flag was raised, for its parent to consult.
func (e *Evaluator) walk(ctx context.Context, opCtx operator.Context, set *models.RuleSet, report *models.RuleTreeReport) (haltSiblings bool, err error) {
	opCtx.Target = models.SelectorNew // on-failure actions resolve operands against NEW
	report.RuleSetsEvaluated++

	traceCtx, span := observability.StartRuleSetSpan(ctx, set.ID)
	defer span.End()

	setReport := models.RuleSetReport{
		RuleSetID:   set.ID,
		Description: set.Description,
		Severity:    set.Severity,
	}

	rulesPassed, err := e.evalRules(traceCtx, opCtx, set, &setReport, report)
	if err != nil {
		return false, err
	}

	childrenPassed := true
	for _, child := range set.Children {
		childHalt, err := e.walk(traceCtx, opCtx, child, report)
		if err != nil {
			return false, err
		}
		childPassed := report.RuleSets[len(report.RuleSets)-1].Passed
		if !childPassed {
			childrenPassed = false
		}
		if childHalt {
			break
		}
	}

	setReport.Passed = rulesPassed && childrenPassed

	if !setReport.Passed {
		setReport.ErrorMessage = set.ErrorMessage
		report.RuleSetsFailed++
		e.applyFailureAction(opCtx, set, &setReport)
		if set.OnFailure.Kind == models.FailureHaltSiblings {
			setReport.HaltSiblings = true
		}
	}

	observability.RecordRuleSetResult(span, set.ID, setReport.Passed, setReport.HaltSiblings)
	report.RuleSets = append(report.RuleSets, setReport)
	return setReport.HaltSiblings, nil
}

// evalRules evaluates set's own Rules in declaration order, combining their
// verdicts by set.Mode. An empty rule list passes
// under AND, fails under OR.
func (e *Evaluator) evalRules(ctx context.Context, opCtx operator.Context, set *models.RuleSet, setReport *models.RuleSetReport, report *models.RuleTreeReport) (bool, error) {
	if len(set.Rules) == 0 {
		return set.Mode == models.ModeAND, nil
	}

	span := trace.SpanFromContext(ctx)
	passed := set.Mode == models.ModeAND
	for _, rule := range set.Rules {
		ruleCtx := opCtx
		ruleCtx.Target = rule.Target

		start := time.Now()
		outcome, err := operator.Evaluate(ruleCtx, set.ID, rule)
		if err != nil {
			return false, err
		}

		report.RulesEvaluated++
		if !outcome.Passed {
			report.RulesFailed++
			if outcome.Failure != nil {
				setReport.Failures = append(setReport.Failures, *outcome.Failure)
				observability.RecordRuleFailure(span, outcome.Failure.OperatorName, outcome.Failure.Severity.String(), time.Since(start))
			}
		}

		switch set.Mode {
		case models.ModeAND:
			passed = passed && outcome.Passed
		case models.ModeOR:
			passed = passed || outcome.Passed
		}
	}
	return passed, nil
}

// applyFailureAction performs set.OnFailure once set has been determined to
// have failed. Emit is a no-op beyond the ErrorMessage
// already recorded; Assign and CustomOp mutate NEW or invoke a Source the
// same way an OpAssign/OpCustom Rule would.
func (e *Evaluator) applyFailureAction(ctx operator.Context, set *models.RuleSet, setReport *models.RuleSetReport) {
	switch set.OnFailure.Kind {
	case models.FailureAssign:
		value, err := operator.ResolveOperand(ctx, set.OnFailure.AssignValue)
		if err != nil {
			return
		}
		attr, err := e.catalog.GetByName(set.OnFailure.AssignAttrName)
		if err != nil {
			return
		}
		ctx.New.Set(attr, value)
	case models.FailureCustomOp:
		if e.sources == nil {
			return
		}
		var args [4]string
		for i := 0; i < set.OnFailure.CustomArgN; i++ {
			value, err := operator.ResolveOperand(ctx, set.OnFailure.CustomArgs[i])
			if err != nil {
				return
			}
			args[i] = value
		}
		e.sources.InvokeCustomOperator(set.OnFailure.CustomOpName, set.ID, args, set.OnFailure.CustomArgN)
	}
}

// aggregateSeverity computes the Report's overall severity: severe if any
// failure is severe, warning if any failure occurred, clean otherwise. A
// RuleSet that passed overall (e.g. an OR set with one severe branch and one
// passing branch) can still carry a severe RuleFailure in its Failures, so
// every set's Failures are scanned regardless of its own Passed verdict.
func aggregateSeverity(sets []models.RuleSetReport) models.OverallSeverity {
	overall := models.OverallClean
	for _, s := range sets {
		if !s.Passed {
			if overall == models.OverallClean {
				overall = models.OverallWarning
			}
			if s.Severity == models.SeveritySevere {
				return models.OverallSevere
			}
		}
		for _, f := range s.Failures {
			if f.Severity == models.SeveritySevere {
				return models.OverallSevere
			}
			if overall == models.OverallClean {
				overall = models.OverallWarning
			}
		}
	}
	return overall
}
