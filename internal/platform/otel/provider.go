// Package otel wires OpenTelemetry tracing for meteorfall processes.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	envEndpoint = "METEORFALL_OTEL_ENDPOINT"
	envEnabled  = "METEORFALL_OTEL_ENABLED"
	envRatio    = "METEORFALL_OTEL_SAMPLE_RATIO"

	instrumentationName = "github.com/louisbranch/meteorfall"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when METEORFALL_OTEL_ENDPOINT is empty or
// METEORFALL_OTEL_ENABLED is "false", Setup returns a no-op shutdown
// function and no global provider is registered. The W3C trace context
// propagator is always installed so trace headers still flow between the
// browse client and the catalog API.
//
// METEORFALL_OTEL_SAMPLE_RATIO samples that fraction of root traces (default
// 1). Spans with a sampled remote parent are always kept.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}

	endpoint := os.Getenv(envEndpoint)
	if endpoint == "" {
		return noop, nil
	}

	sampler, err := samplerFromEnv()
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func samplerFromEnv() (sdktrace.Sampler, error) {
	raw := strings.TrimSpace(os.Getenv(envRatio))
	if raw == "" {
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%s must be a number in [0,1], got %q", envRatio, raw)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}

// Tracer returns the process tracer for one component, e.g. "catalog/http".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + strings.Trim(component, "/"))
}
