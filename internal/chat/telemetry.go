package chat

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func attrProvider(provider string) attribute.KeyValue { return attribute.String("provider", provider) }
func attrModel(model string) attribute.KeyValue       { return attribute.String("model", model) }

// Telemetry records per-call token and latency metrics via OpenTelemetry.
// It is deliberately narrow: chat() calls RecordCall once per provider
// round-trip, regardless of which provider served it.
type Telemetry struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	cachedTokens metric.Int64Counter
	writeTokens  metric.Int64Counter
	latency      metric.Float64Histogram
	cacheHits    metric.Int64Counter
	downgrades   metric.Int64Counter
}

// NewTelemetry builds a Telemetry instance from a meter, typically
// obtained from an otel/sdk/metric MeterProvider configured in main.
func NewTelemetry(meter metric.Meter) (*Telemetry, error) {
	t := &Telemetry{}
	var err error

	if t.inputTokens, err = meter.Int64Counter("chat.tokens.input"); err != nil {
		return nil, err
	}
	if t.outputTokens, err = meter.Int64Counter("chat.tokens.output"); err != nil {
		return nil, err
	}
	if t.cachedTokens, err = meter.Int64Counter("chat.tokens.cached"); err != nil {
		return nil, err
	}
	if t.writeTokens, err = meter.Int64Counter("chat.tokens.cache_write"); err != nil {
		return nil, err
	}
	if t.latency, err = meter.Float64Histogram("chat.latency_ms"); err != nil {
		return nil, err
	}
	if t.cacheHits, err = meter.Int64Counter("chat.prompt_cache.hits"); err != nil {
		return nil, err
	}
	if t.downgrades, err = meter.Int64Counter("chat.capability_downgrades"); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordCall records one completed provider round-trip.
func (t *Telemetry) RecordCall(ctx context.Context, provider, model string, usage Usage, latencyMS float64, cacheHit, downgraded bool) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrProvider(provider),
		attrModel(model),
	)
	t.inputTokens.Add(ctx, int64(usage.InputTokens), attrs)
	t.outputTokens.Add(ctx, int64(usage.OutputTokens), attrs)
	t.cachedTokens.Add(ctx, int64(usage.CachedTokens), attrs)
	t.writeTokens.Add(ctx, int64(usage.WriteTokens), attrs)
	t.latency.Record(ctx, latencyMS, attrs)
	if cacheHit {
		t.cacheHits.Add(ctx, 1, attrs)
	}
	if downgraded {
		t.downgrades.Add(ctx, 1, attrs)
	}
}

// NoopTelemetry is used when no MeterProvider is configured; Record* calls
// on a nil *Telemetry already no-op, so this is just a documented
// convenience for call sites that want to be explicit.
var NoopTelemetry *Telemetry
