package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tapsdmc/fdsnclient"

// ClientMetrics holds metrics for requests sent to FDSN datacenters.
type ClientMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
}

// NewClientMetrics creates the client metrics on the global meter provider.
func NewClientMetrics() (*ClientMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"fdsn.request.duration",
		metric.WithDescription("Duration of datacenter requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"fdsn.request.total",
		metric.WithDescription("Total number of datacenter requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"fdsn.version_cache.hit",
		metric.WithDescription("Number of web service version lookups served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"fdsn.version_cache.miss",
		metric.WithDescription("Number of web service version lookups sent to the datacenter"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ClientMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
	}, nil
}

// RecordRequest records one request. outcome is "ok" or the error kind.
func (m *ClientMetrics) RecordRequest(service, resource, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("fdsn.service", service),
		attribute.String("fdsn.resource", resource),
		attribute.String("fdsn.outcome", outcome),
	)

	// A cancelled request is still recorded.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// RecordCacheHit records a version lookup served from cache.
func (m *ClientMetrics) RecordCacheHit(service string) {
	if m == nil {
		return
	}
	m.cacheHit.Add(context.Background(), 1, metric.WithAttributes(attribute.String("fdsn.service", service)))
}

// RecordCacheMiss records a version lookup that went to the datacenter.
func (m *ClientMetrics) RecordCacheMiss(service string) {
	if m == nil {
		return
	}
	m.cacheMiss.Add(context.Background(), 1, metric.WithAttributes(attribute.String("fdsn.service", service)))
}
