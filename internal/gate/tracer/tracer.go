// Package tracer provides a lightweight tracing abstraction for the gate
// coordinator.
//
// The interface keeps the coordinator decoupled from OpenTelemetry APIs
// while letting batch evaluation emit distributed traces.
//
// Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the gate coordinator.
const (
	SpanSubmitBatch = "gate.submit_batch"
	SpanEvaluate    = "gate.evaluate"
	SpanRecheck     = "gate.recheck"
)

// Attribute keys used by the gate coordinator.
const (
	AttrBatchSize    = "batch.size"
	AttrScope        = "consent.scope"
	AttrGrantedTier  = "consent.granted_tier"
	AttrRequiredTier = "policy.required_tier"
	AttrOutcome      = "policy.outcome"
	AttrActionType   = "action.type"
	AttrFate         = "suggestion.fate"
)

// Event names used by the gate coordinator.
const (
	EventSuggestionPersisted = "suggestion.persisted"
)
