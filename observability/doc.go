// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Setup installs OTLP/HTTP tracer and meter providers when enabled and
// returns the Metrics used by the graph engine:
//
//	providers, err := observability.Setup(ctx, cfg, "recflow", version.Short(), log)
//	defer providers.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanNode)
//	defer span.End()
//
// With observability disabled, spans go to the global no-op provider and
// Metrics is nil.
package observability
