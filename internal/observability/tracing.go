package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the OpenTelemetry tracer for the RuleTree evaluation engine.
var Tracer = otel.Tracer("ruletree.engine")

// StartValidateSpan creates a traced span around one Evaluator.Validate call.
func StartValidateSpan(ctx context.Context, treeID string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "ruletree.validate",
		trace.WithAttributes(
			attribute.String("ruletree.tree_id", treeID),
		),
	)
}

// RecordValidateResult finalizes a Validate span with its pass/fail/error
// outcome and updates the corresponding Prometheus metrics.
func RecordValidateResult(span trace.Span, treeID string, passed bool, err error, duration time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	if err != nil {
		result = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "validate completed")
	}

	span.SetAttributes(
		attribute.Bool("ruletree.passed", passed),
		attribute.Float64("ruletree.duration_ms", float64(duration.Microseconds())/1000.0),
	)

	ValidateDuration.WithLabelValues(treeID, result).Observe(duration.Seconds())
	ValidateTotal.WithLabelValues(treeID, result).Inc()
}

// StartRuleSetSpan creates a traced span around one RuleSet's evaluation.
func StartRuleSetSpan(ctx context.Context, ruleSetID string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "ruletree.ruleset.evaluate",
		trace.WithAttributes(
			attribute.String("ruletree.ruleset_id", ruleSetID),
		),
	)
}

// RecordRuleSetResult finalizes a RuleSet span and updates its metrics.
func RecordRuleSetResult(span trace.Span, ruleSetID string, passed bool, haltSiblings bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	span.SetAttributes(
		attribute.Bool("ruletree.ruleset.passed", passed),
		attribute.Bool("ruletree.ruleset.halt_siblings", haltSiblings),
	)
	if haltSiblings {
		span.AddEvent("ruletree.halt_siblings",
			trace.WithAttributes(attribute.String("ruletree.ruleset_id", ruleSetID)))
		HaltSiblingsTriggered.Inc()
	}
	RuleSetsEvaluated.WithLabelValues(result).Inc()
}

// RecordRuleFailure updates metrics for one failed Rule, by severity and
// operator kind.
func RecordRuleFailure(span trace.Span, operatorName, severity string, duration time.Duration) {
	span.AddEvent("ruletree.rule.failed",
		trace.WithAttributes(
			attribute.String("ruletree.operator", operatorName),
			attribute.String("ruletree.severity", severity),
		),
	)
	RuleEvaluationDuration.WithLabelValues(operatorName, "fail").Observe(duration.Seconds())
	RulesFailed.WithLabelValues(severity).Inc()
}

// RecordGateRejection traces and counts a Validate call aborted because the
// Transaction-State Gate was not confirmed.
func RecordGateRejection(span trace.Span) {
	span.SetStatus(codes.Error, "transaction-state gate not confirmed")
	GateRejections.Inc()
}
