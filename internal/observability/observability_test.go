package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestStartValidateSpanAndRecordResult(t *testing.T) {
	ctx := context.Background()

	spanCtx, span := StartValidateSpan(ctx, "tree-1")
	if spanCtx == nil {
		t.Fatal("expected non-nil context")
	}
	RecordValidateResult(span, "tree-1", true, nil, 5*time.Millisecond)
	span.End()
}

func TestStartValidateSpanRecordsError(t *testing.T) {
	ctx := context.Background()

	_, span := StartValidateSpan(ctx, "tree-2")
	RecordValidateResult(span, "tree-2", false, errTest, time.Millisecond)
	span.End()
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestStartRuleSetSpanAndRecordResult(t *testing.T) {
	ctx := context.Background()

	_, span := StartRuleSetSpan(ctx, "ruleset-1")
	RecordRuleSetResult(span, "ruleset-1", false, true)
	span.End()
}

func TestRecordRuleFailure(t *testing.T) {
	ctx := context.Background()
	_, span := StartRuleSetSpan(ctx, "ruleset-2")
	RecordRuleFailure(span, "compare", "severe", time.Microsecond)
	span.End()
}

func TestRecordGateRejection(t *testing.T) {
	span := trace.SpanFromContext(context.Background())
	RecordGateRejection(span) // should not panic on a no-op span
}

func TestInitMetrics(t *testing.T) {
	if err := InitMetrics(); err != nil {
		t.Fatalf("unexpected error initializing metrics: %v", err)
	}
	// calling twice is a no-op (sync.Once)
	if err := InitMetrics(); err != nil {
		t.Fatalf("unexpected error on second init: %v", err)
	}
}

func TestRecordValidateOTel(t *testing.T) {
	if err := InitMetrics(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	// should not panic
	RecordValidateOTel(ctx, "tree-1", "pass", 0.001)
	RecordRuleEvaluationOTel(ctx, "compare", "pass", 0.0001)
	RecordRuleFailureOTel(ctx, "warning")
	RecordGateRejectionOTel(ctx)
	UpdateGroveTreesActiveOTel(ctx, 1)
}

func TestAsyncEmitterEmitAndDrain(t *testing.T) {
	emitter := NewAsyncEmitter(4)
	emitter.Start()

	emitter.EmitFailure("tree-1", "ruleset-1", "compare", "severe", map[string]interface{}{
		"rule_id": "r1",
		"count":   3,
		"ok":      false,
	})

	emitter.Stop()

	if emitter.BufferCapacity() != 4 {
		t.Fatalf("expected buffer capacity 4, got %d", emitter.BufferCapacity())
	}
}

func TestAsyncEmitterDropsWhenFull(t *testing.T) {
	emitter := NewAsyncEmitter(0)
	// no Start(): nothing drains the buffer, so this must not block
	emitter.EmitFailure("tree-1", "ruleset-1", "compare", "warning", nil)
	if emitter.BufferSize() != 0 {
		t.Fatalf("expected dropped event to leave buffer empty, got %d", emitter.BufferSize())
	}
}
