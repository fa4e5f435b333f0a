// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tracing builds the OpenTelemetry TracerProvider the runner's
// optional span wrapping (C13) draws its trace.Tracer from.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewProvider builds a TracerProvider attributed to serviceName, sampling
// every span. No exporter is configured here; callers wanting spans to
// actually leave the process register one on the returned provider via
// RegisterSpanProcessor (e.g. sdktrace.NewBatchSpanProcessor). With none
// registered the SDK still runs the full
// sampling and span-lifecycle pipeline, just with nowhere to ship spans —
// useful for exercising C13 without standing up a collector.
func NewProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// Tracer returns a named trace.Tracer from provider.
func Tracer(provider *sdktrace.TracerProvider, name string) trace.Tracer {
	return provider.Tracer(name)
}
