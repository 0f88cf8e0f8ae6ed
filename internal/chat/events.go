package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType identifies an emitted telemetry event.
type EventType string

const (
	EventLLMRequest         EventType = "LLM_REQUEST"
	EventLLMResponse        EventType = "LLM_RESPONSE"
	EventBudgetDecision     EventType = "BUDGET_DECISION"
	EventInterceptorDecision EventType = "INTERCEPTOR_DECISION"
	EventStateDelta         EventType = "STATE_DELTA"
	EventError              EventType = "ERROR"
)

// Event is a single emitted telemetry record.
type Event struct {
	IdempotencyKey string
	Type           EventType
	Payload        map[string]any
}

// Sink receives emitted events. The default implementation is an
// in-memory channel (process-scoped, per spec §5); RedisStreamSink is an
// optional cross-process alternative.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// ChannelSink is the default in-process event sink.
type ChannelSink struct {
	Events chan Event
}

// NewChannelSink returns a buffered in-memory sink.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{Events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, ev Event) {
	select {
	case s.Events <- ev:
	default:
		// Drop rather than block; telemetry must never back-pressure a
		// chat call.
	}
}

// RedisStreamSink publishes events to a Redis stream, letting a dashboard
// process or another runtime instance observe chat telemetry across
// process boundaries. Disabled by default; opt in via configuration.
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink builds a sink that XADDs to stream on client.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = "spec-context:chat-events"
	}
	return &RedisStreamSink{client: client, stream: stream}
}

func (s *RedisStreamSink) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		slog.WarnContext(ctx, "redis event sink: marshal payload failed", "error", err)
		return
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"idempotency_key": ev.IdempotencyKey,
			"type":            string(ev.Type),
			"payload":         payload,
		},
	}).Err()
	if err != nil {
		slog.WarnContext(ctx, "redis event sink: xadd failed", "error", err, "stream", s.stream)
	}
}

// EventEmitter wraps a Sink with a monotonic counter and the idempotency
// key scheme "{idempotencyKey}:{type}:{counter}". The counter belongs to
// the emitter, not to a request: it is shared by every request emitted
// through this EventEmitter, so one request's counters increase but do
// not start at 1 and need not be contiguous.
type EventEmitter struct {
	sink    Sink
	counter atomic.Int64
}

// NewEventEmitter wraps sink. If sink is nil, a buffered ChannelSink is
// created.
func NewEventEmitter(sink Sink) *EventEmitter {
	if sink == nil {
		sink = NewChannelSink(256)
	}
	return &EventEmitter{sink: sink}
}

func (e *EventEmitter) Emit(ctx context.Context, idempotencyKey string, t EventType, payload map[string]any) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	n := e.counter.Add(1)
	key := fmt.Sprintf("%s:%s:%d", idempotencyKey, t, n)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["idempotency_key"] = key
	e.sink.Emit(ctx, Event{IdempotencyKey: key, Type: t, Payload: payload})
}
