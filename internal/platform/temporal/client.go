// Package temporal holds the workflow, activity, and client plumbing for durable
// payment processing.
package temporal

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
)

// ClientConfig selects the Temporal frontend and namespace.
type ClientConfig struct {
	Address   string
	Namespace string
}

// Dial connects a client with OpenTelemetry tracing and slog-backed logging.
func Dial(cfg ClientConfig, tracer trace.Tracer, logger *slog.Logger) (client.Client, error) {
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{Tracer: tracer})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	address := cfg.Address
	if address == "" {
		address = client.DefaultHostPort
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = client.DefaultNamespace
	}
	options := client.Options{
		HostPort:  address,
		Namespace: namespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
