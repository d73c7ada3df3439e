package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and closes the tracer provider.
type ShutdownFunc func(ctx context.Context) error

/**
 * Install a global tracer provider exporting spans to a file
 * @param {string} path - Span file, appended to; empty keeps the no-op global provider
 * @param {string} runID - Added to the resource of every span
 * @returns {(ShutdownFunc, error)} Flush/close function, always non-nil
 * @description
 * - Spans are written as JSON by the stdouttrace exporter, one batch per flush
 */
func InitTracer(path, runID string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if path == "" {
		return noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return noop, fmt.Errorf("create trace directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return noop, fmt.Errorf("open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		file.Close()
		return noop, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", "stack-keeper"),
		attribute.String("run.id", runID),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
