// Package observability wires OpenTelemetry tracing and metrics into builds.
//
// Telemetry is off unless enabled in configuration:
//
//	shutdown, err := observability.Setup(ctx, observability.Config{
//	    Enabled:  true,
//	    Endpoint: "localhost:4318",
//	    Insecure: true,
//	}, "assetflow", version.Version)
//	defer shutdown(ctx)
//
// Task spans and task metrics are recorded by the dag decorators
// (dag.WithTracing, dag.WithMetrics) through StartSpan and Metrics.
package observability
