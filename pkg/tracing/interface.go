package tracing

import (
	"context"

	"go.opencensus.io/trace"
)

//go:generate mockgen -destination=../../internal/domain/mocks/mock_tracer.go -package=mocks github.com/t3-nico/boxlog-app-sub014/pkg/tracing Tracer

// Tracer is the span API used by services
// codecov:ignore:start
type Tracer interface {
	// StartServiceSpan starts a span named service.method
	StartServiceSpan(ctx context.Context, serviceName, methodName string) (context.Context, *trace.Span)

	// EndSpan records err on the span, if any, and ends it
	EndSpan(span *trace.Span, err error)

	// AddAttribute adds an attribute to the span in ctx
	AddAttribute(ctx context.Context, key string, value interface{})

	// MarkSpanError marks the span in ctx as failed
	MarkSpanError(ctx context.Context, err error)
}

// DefaultTracer is the OpenCensus backed Tracer
type DefaultTracer struct{}

// NewTracer creates a new DefaultTracer
func NewTracer() Tracer {
	return &DefaultTracer{}
}

func (t *DefaultTracer) StartServiceSpan(ctx context.Context, serviceName, methodName string) (context.Context, *trace.Span) {
	return StartServiceSpan(ctx, serviceName, methodName)
}

func (t *DefaultTracer) EndSpan(span *trace.Span, err error) {
	EndSpan(span, err)
}

func (t *DefaultTracer) AddAttribute(ctx context.Context, key string, value interface{}) {
	AddAttribute(ctx, key, value)
}

func (t *DefaultTracer) MarkSpanError(ctx context.Context, err error) {
	MarkSpanError(ctx, err)
}

// codecov:ignore:end
