package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tutorchat"

var (
	providerMu sync.Mutex
	tp         *sdktrace.TracerProvider
)

// InitTracing installs a process-wide tracer provider. With exporter "none"
// (or empty) the global no-op provider stays in place.
func InitTracing(exporter string) error {
	providerMu.Lock()
	defer providerMu.Unlock()

	if tp != nil {
		return nil
	}

	switch exporter {
	case "", "none":
		return nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		return nil
	default:
		return fmt.Errorf("unknown tracing exporter %q", exporter)
	}
}

// ShutdownTracing flushes pending spans.
func ShutdownTracing(ctx context.Context) error {
	providerMu.Lock()
	defer providerMu.Unlock()

	if tp == nil {
		return nil
	}
	err := tp.Shutdown(ctx)
	tp = nil
	return err
}

// StartSpan starts a span on the service tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// FailSpan records err on the span and marks it as failed.
func FailSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
