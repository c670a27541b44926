package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetry metrics for the RuleTree evaluation engine, mirrored
// alongside the Prometheus metrics in metrics.go. Platform-agnostic: works
// with Prometheus, SigNoz, Kibana, Grafana, etc. via the OTLP exporter
// configured in otel.go.

var (
	meter = otel.Meter("ruletree.engine")

	metricsOnce sync.Once

	otelValidateDuration metric.Float64Histogram
	otelValidateTotal    metric.Int64Counter
	otelRuleEvalDuration metric.Float64Histogram
	otelRulesFailedTotal metric.Int64Counter
	otelGateRejections   metric.Int64Counter
	otelGroveTreesActive metric.Int64UpDownCounter
)

// InitMetrics initializes all OpenTelemetry metric instruments. Call this
// once during application startup.
func InitMetrics() error {
	var err error
	metricsOnce.Do(func() {
		otelValidateDuration, err = meter.Float64Histogram(
			"ruletree.validate_duration",
			metric.WithDescription("Time taken for one Validate call to walk a RuleTree"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		otelValidateTotal, err = meter.Int64Counter(
			"ruletree.validate_total",
			metric.WithDescription("Total number of Validate calls"),
		)
		if err != nil {
			return
		}

		otelRuleEvalDuration, err = meter.Float64Histogram(
			"ruletree.rule_evaluation_duration",
			metric.WithDescription("Time taken to evaluate a single Rule within a RuleSet"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		otelRulesFailedTotal, err = meter.Int64Counter(
			"ruletree.rules_failed_total",
			metric.WithDescription("Total number of Rule failures, by severity"),
		)
		if err != nil {
			return
		}

		otelGateRejections, err = meter.Int64Counter(
			"ruletree.gate_rejections_total",
			metric.WithDescription("Total number of Validate calls aborted by an unconfirmed Transaction-State Gate"),
		)
		if err != nil {
			return
		}

		otelGroveTreesActive, err = meter.Int64UpDownCounter(
			"ruletree.grove_trees_active",
			metric.WithDescription("Number of RuleTree descriptors currently registered in the Grove"),
		)
	})
	return err
}

// RecordValidateOTel records one Validate call's duration and outcome via
// the OTel meter, alongside the Prometheus series recorded in tracing.go.
func RecordValidateOTel(ctx context.Context, treeID, result string, durationSeconds float64) {
	if otelValidateDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tree_id", treeID),
		attribute.String("result", result), // pass|fail|error
	)
	otelValidateDuration.Record(ctx, durationSeconds, attrs)
	otelValidateTotal.Add(ctx, 1, attrs)
}

// RecordRuleEvaluationOTel records one Rule's evaluation duration.
func RecordRuleEvaluationOTel(ctx context.Context, operatorName, result string, durationSeconds float64) {
	if otelRuleEvalDuration == nil {
		return
	}
	otelRuleEvalDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operator", operatorName),
		attribute.String("result", result),
	))
}

// RecordRuleFailureOTel increments the failed-rules counter by severity.
func RecordRuleFailureOTel(ctx context.Context, severity string) {
	if otelRulesFailedTotal == nil {
		return
	}
	otelRulesFailedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
	))
}

// RecordGateRejectionOTel increments the gate-rejection counter.
func RecordGateRejectionOTel(ctx context.Context) {
	if otelGateRejections == nil {
		return
	}
	otelGateRejections.Add(ctx, 1)
}

// UpdateGroveTreesActiveOTel adjusts the active-Grove-trees gauge by delta.
func UpdateGroveTreesActiveOTel(ctx context.Context, delta int64) {
	if otelGroveTreesActive == nil {
		return
	}
	otelGroveTreesActive.Add(ctx, delta)
}
