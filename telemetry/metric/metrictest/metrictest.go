//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metrictest collects what the metric package records so tests can
// assert on it.
package metrictest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric"
)

// Reader reads the measurements recorded since Install.
type Reader struct {
	t      *testing.T
	reader *sdkmetric.ManualReader
}

// Install routes recording to a manual reader until the test ends.
func Install(t *testing.T) *Reader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, metric.SetMeterProvider(provider))
	t.Cleanup(func() {
		_ = metric.SetMeterProvider(noop.NewMeterProvider())
		_ = provider.Shutdown(context.Background())
	})
	return &Reader{t: t, reader: reader}
}

func (r *Reader) find(name string) (metricdata.Aggregation, bool) {
	r.t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(r.t, r.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data, true
			}
		}
	}
	return nil, false
}

func matches(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}

// Sum returns the total of counter name over the points carrying attrs.
func (r *Reader) Sum(name string, attrs ...attribute.KeyValue) int64 {
	r.t.Helper()
	data, ok := r.find(name)
	if !ok {
		return 0
	}
	sum, ok := data.(metricdata.Sum[int64])
	require.True(r.t, ok, "%s is %T, not an int64 sum", name, data)
	var total int64
	for _, dp := range sum.DataPoints {
		if matches(dp.Attributes, attrs) {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount returns how many values histogram name recorded with attrs,
// and their sum.
func (r *Reader) HistogramCount(name string, attrs ...attribute.KeyValue) (uint64, float64) {
	r.t.Helper()
	data, ok := r.find(name)
	if !ok {
		return 0, 0
	}
	hist, ok := data.(metricdata.Histogram[float64])
	require.True(r.t, ok, "%s is %T, not a float64 histogram", name, data)
	var count uint64
	var total float64
	for _, dp := range hist.DataPoints {
		if matches(dp.Attributes, attrs) {
			count += dp.Count
			total += dp.Sum
		}
	}
	return count, total
}
