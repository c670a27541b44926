package observability

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FailureEvent describes one Rule or RuleSet failure queued for async
// evidence emission.
type FailureEvent struct {
	TreeID    string
	RuleSetID string
	Operator  string
	Severity  string
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// AsyncEmitter provides non-blocking emission of failure evidence spans, so
// that a slow exporter never adds latency to a Validate call.
type AsyncEmitter struct {
	buffer chan FailureEvent
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAsyncEmitter creates an async failure-evidence emitter with the given
// buffer size.
func NewAsyncEmitter(bufferSize int) *AsyncEmitter {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncEmitter{
		buffer: make(chan FailureEvent, bufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background worker that exports queued events.
func (e *AsyncEmitter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case evt := <-e.buffer:
				e.exportEvent(evt)
			case <-e.ctx.Done():
				e.drainBuffer()
				return
			}
		}
	}()
	log.Println("async telemetry emitter started")
}

// EmitFailure queues a failure event for async export. Non-blocking: if the
// buffer is full the event is dropped with a logged warning rather than
// blocking the evaluating goroutine.
func (e *AsyncEmitter) EmitFailure(treeID, ruleSetID, operatorName, severity string, metadata map[string]interface{}) {
	evt := FailureEvent{
		TreeID:    treeID,
		RuleSetID: ruleSetID,
		Operator:  operatorName,
		Severity:  severity,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	select {
	case e.buffer <- evt:
	default:
		log.Printf("failure event buffer full, dropping event: %s/%s", treeID, ruleSetID)
	}
}

// Stop gracefully shuts down the emitter, draining the buffer.
func (e *AsyncEmitter) Stop() {
	e.cancel()
	e.wg.Wait()
	log.Println("async telemetry emitter stopped")
}

func (e *AsyncEmitter) drainBuffer() {
	timeout := time.After(5 * time.Second)
	drained := 0

	for {
		select {
		case evt := <-e.buffer:
			e.exportEvent(evt)
			drained++
		case <-timeout:
			remaining := len(e.buffer)
			if remaining > 0 {
				log.Printf("timeout draining failure events, %d dropped", remaining)
			}
			log.Printf("drained %d failure events before shutdown", drained)
			return
		default:
			log.Printf("drained %d failure events before shutdown", drained)
			return
		}
	}
}

func (e *AsyncEmitter) exportEvent(evt FailureEvent) {
	_, otSpan := Tracer.Start(context.Background(), "ruletree.failure_evidence")
	defer otSpan.End()

	otSpan.SetAttributes(
		attribute.String("ruletree.tree_id", evt.TreeID),
		attribute.String("ruletree.ruleset_id", evt.RuleSetID),
		attribute.String("ruletree.operator", evt.Operator),
		attribute.String("ruletree.severity", evt.Severity),
		attribute.Int64("ruletree.timestamp", evt.Timestamp.Unix()),
	)

	for key, value := range evt.Metadata {
		switch v := value.(type) {
		case string:
			otSpan.SetAttributes(attribute.String("ruletree.meta."+key, v))
		case int:
			otSpan.SetAttributes(attribute.Int("ruletree.meta."+key, v))
		case bool:
			otSpan.SetAttributes(attribute.Bool("ruletree.meta."+key, v))
		}
	}

	otSpan.AddEvent("ruletree.failure_recorded", trace.WithAttributes(
		attribute.String("ruleset_id", evt.RuleSetID),
		attribute.String("severity", evt.Severity),
	))
}

// BufferSize returns the current number of buffered events.
func (e *AsyncEmitter) BufferSize() int {
	return len(e.buffer)
}

// BufferCapacity returns the maximum buffer capacity.
func (e *AsyncEmitter) BufferCapacity() int {
	return cap(e.buffer)
}
