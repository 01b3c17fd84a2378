// Package instrumentation provides OpenTelemetry-based observability for the
// calendar assistant: metrics for HTTP traffic, Google Calendar API
// operations, OAuth token refreshes and chat orchestration, plus optional
// distributed tracing.
//
// Metrics are exported via Prometheus by default; OTLP and stdout exporters
// are available for collector-based and development setups.
package instrumentation
