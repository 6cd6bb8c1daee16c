package tracing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	AttrAccountID     = attribute.Key("account.id")
	AttrPasswordValid = attribute.Key("account.password_valid")
)

type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer backed by provider. A nil provider yields a tracer
// that records nothing.
func New(provider trace.TracerProvider, name string) *Tracer {
	if provider == nil {
		provider = noop.NewTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(name)}
}

// Span is a handle over an OpenTelemetry span.
type Span struct {
	span  trace.Span
	once  sync.Once
	ended atomic.Bool
}

// Start opens a span named name. If ctx already carries a span the new one
// is its child.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, s := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: s}
}

// Run executes fn inside a child span. The span is ended on every return
// path, panics included, and an error returned by fn is recorded on it.
func (t *Tracer) Run(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := t.Start(ctx, name)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.RecordException(err)
		return err
	}
	return nil
}

func (s *Span) SetAttributes(kv ...attribute.KeyValue) {
	if s == nil || s.ended.Load() {
		return
	}
	s.span.SetAttributes(kv...)
}

func (s *Span) SetAccountID(id fmt.Stringer) {
	s.SetAttributes(AttrAccountID.String(id.String()))
}

// RecordException marks the span failed. It does not end it.
func (s *Span) RecordException(err error) {
	if s == nil || err == nil || s.ended.Load() {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End finalizes the span. Calling it more than once is a no-op.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.ended.Store(true)
		s.span.End()
	})
}

func (s *Span) Ended() bool {
	return s != nil && s.ended.Load()
}

func (s *Span) SpanContext() trace.SpanContext {
	if s == nil {
		return trace.SpanContext{}
	}
	return s.span.SpanContext()
}
