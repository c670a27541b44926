package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the RuleTree evaluation engine.

var (
	// Evaluator Performance Metrics
	ValidateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruletree_validate_duration_seconds",
			Help:    "Time taken for one Validate call to walk a RuleTree",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1us to 1s
		},
		[]string{"tree_id", "result"}, // result: pass|fail|error
	)

	ValidateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruletree_validate_total",
			Help: "Total number of Validate calls",
		},
		[]string{"tree_id", "result"},
	)

	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruletree_rule_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single Rule within a RuleSet",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20),
		},
		[]string{"operator", "result"},
	)

	RuleSetsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruletree_rulesets_evaluated_total",
			Help: "Total number of RuleSets visited during tree walks",
		},
		[]string{"result"}, // result: pass|fail
	)

	RulesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruletree_rules_failed_total",
			Help: "Total number of Rule failures, by severity",
		},
		[]string{"severity"}, // severity: warning|severe
	)

	HaltSiblingsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruletree_halt_siblings_triggered_total",
			Help: "Total number of times a RuleSet's halt-siblings action pruned its parent's remaining children",
		},
	)

	// Gate Metrics
	GateRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruletree_gate_rejections_total",
			Help: "Total number of Validate calls aborted because the Transaction-State Gate was not confirmed",
		},
	)

	GateOwnersRegistered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ruletree_gate_owners_registered",
			Help: "Number of owners currently registered on a Transaction-State Gate",
		},
		[]string{"gate_id"},
	)

	// Grove / Catalog Metrics
	GroveTreesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruletree_grove_trees_active",
			Help: "Number of RuleTree descriptors currently registered in the Grove",
		},
	)

	CatalogAttributesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruletree_catalog_attributes_loaded",
			Help: "Number of Attributes currently loaded into the Attribute Catalog",
		},
	)

	SourceRetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruletree_source_retrieval_duration_seconds",
			Help:    "Time taken by a Source Registry retrieval or custom-operator callout",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"kind"}, // kind: attribute|custom_operator
	)

	// Process Performance Metrics
	MemoryUsageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ruletree_memory_usage_bytes",
			Help: "Memory usage of engine components",
		},
		[]string{"component"}, // component: evaluator|catalog|grove
	)

	GoroutinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruletree_goroutines_active",
			Help: "Number of active goroutines in the engine process",
		},
	)

	GCPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ruletree_gc_pause_duration_seconds",
			Help:    "Duration of garbage collection pauses",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20),
		},
	)
)
