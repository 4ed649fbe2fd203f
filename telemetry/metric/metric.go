//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric records model and tool call counts and durations with
// OpenTelemetry. Recording is a no-op until Start or SetMeterProvider is called.
package metric

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
)

// Export protocols.
const (
	ProtocolGRPC = trace.ProtocolGRPC
	ProtocolHTTP = trace.ProtocolHTTP
)

const (
	instrumentName   = "trpc.group/trpc-go/trpc-agent-scout"
	serviceName      = "scout"
	serviceVersion   = "v0.1.0"
	serviceNamespace = "trpc-agent-scout"
)

// Instrument names.
const (
	NameModelRequests = "scout.model.requests"
	NameModelDuration = "scout.model.duration"
	NameToolCalls     = "scout.tool.calls"
	NameToolDuration  = "scout.tool.duration"
)

// KeyStatus is "ok" or "error" on every recorded measurement.
const KeyStatus = attribute.Key("scout.status")

// Meter is the meter the instruments were created from.
var Meter metric.Meter = noop.Meter{}

type instruments struct {
	modelRequests metric.Int64Counter
	modelDuration metric.Float64Histogram
	toolCalls     metric.Int64Counter
	toolDuration  metric.Float64Histogram
}

var current atomic.Pointer[instruments]

func init() {
	inst, _ := newInstruments(Meter)
	current.Store(inst)
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var inst instruments
	var err error
	if inst.modelRequests, err = m.Int64Counter(NameModelRequests,
		metric.WithDescription("Number of model requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model request counter: %w", err)
	}
	if inst.modelDuration, err = m.Float64Histogram(NameModelDuration,
		metric.WithDescription("Time until the model finished its reply"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model duration histogram: %w", err)
	}
	if inst.toolCalls, err = m.Int64Counter(NameToolCalls,
		metric.WithDescription("Number of tool calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}
	if inst.toolDuration, err = m.Float64Histogram(NameToolDuration,
		metric.WithDescription("Duration of tool calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	return &inst, nil
}

// SetMeterProvider points the instruments at provider.
func SetMeterProvider(provider metric.MeterProvider) error {
	m := provider.Meter(instrumentName)
	inst, err := newInstruments(m)
	if err != nil {
		return err
	}
	Meter = m
	current.Store(inst)
	return nil
}

func status(failed bool) attribute.KeyValue {
	if failed {
		return KeyStatus.String("error")
	}
	return KeyStatus.String("ok")
}

// RecordModelRequest records one model request that took d.
func RecordModelRequest(ctx context.Context, modelName string, d time.Duration, failed bool) {
	inst := current.Load()
	attrs := metric.WithAttributes(trace.KeyModelName.String(modelName), status(failed))
	inst.modelRequests.Add(ctx, 1, attrs)
	inst.modelDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordToolCall records one call of toolName that took d.
func RecordToolCall(ctx context.Context, toolName string, d time.Duration, failed bool) {
	inst := current.Load()
	attrs := metric.WithAttributes(trace.KeyToolName.String(toolName), status(failed))
	inst.toolCalls.Add(ctx, 1, attrs)
	inst.toolDuration.Record(ctx, d.Seconds(), attrs)
}

// Start installs an OTLP metric exporter read periodically and points the
// instruments at it. Without WithEndpoint, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// and then OTEL_EXPORTER_OTLP_ENDPOINT are consulted before the protocol default.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		serviceName:      serviceName,
		serviceVersion:   serviceVersion,
		serviceNamespace: serviceNamespace,
		protocol:         ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.metricsEndpoint == "" {
		options.metricsEndpoint = metricsEndpoint(options.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch options.protocol {
	case ProtocolHTTP:
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(options.metricsEndpoint),
			otlpmetrichttp.WithInsecure(),
			otlpmetrichttp.WithHeaders(options.headers),
		)
	case ProtocolGRPC, "":
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(options.metricsEndpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithHeaders(options.headers),
		)
	default:
		return nil, fmt.Errorf("unsupported metric protocol: %q", options.protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	if err := SetMeterProvider(provider); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	return func() error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MeterProvider: %w", err)
		}
		return nil
	}, nil
}

// Option is a function that configures meter options.
type Option func(*options)

type options struct {
	metricsEndpoint  string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	protocol         string
	headers          map[string]string
}

// WithEndpoint sets the host:port the exporter connects to.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol sets the export protocol: "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithHeaders sets the headers sent with every export.
func WithHeaders(headers map[string]string) Option {
	return func(opts *options) {
		opts.headers = headers
	}
}

// WithServiceName overrides the service name resource attribute.
func WithServiceName(name string) Option {
	return func(opts *options) {
		opts.serviceName = name
	}
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}
