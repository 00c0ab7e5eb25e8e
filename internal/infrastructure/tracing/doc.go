// Package tracing provides lightweight request tracing for the HTTP API.
//
// Spans are propagated via X-Trace-ID and X-Span-ID headers and exported
// through structured logs. Execution and install flows reuse the trace
// context carried on the request.
package tracing
