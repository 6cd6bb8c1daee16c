// Package tracing provides the span discipline used by the account service.
//
// A Tracer wraps an OpenTelemetry tracer and hands out Span handles whose
// End is idempotent and whose attribute setters become no-ops once the span
// is closed. Spans started from a context carrying another span become its
// children, so every request forms a single tree.
package tracing
