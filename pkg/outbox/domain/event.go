package domain

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// OutboxEvent is one row of the outbox table.
type OutboxEvent struct {
	Id            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// Envelope is the JSON shape stored in Payload. The worker adds event_id when publishing.
type Envelope struct {
	Event   string `json:"event"`
	EventID *int64 `json:"event_id,omitempty"`
	Payload any    `json:"payload"`
}

func NewEvent(aggregateType, aggregateID, eventType, topic string, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(Envelope{Event: eventType, Payload: payload})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		Topic:         topic,
	}, nil
}

// CaptureTrace stores the trace context of ctx in Headers so the publish
// can be linked to the request that wrote the event.
func (e *OutboxEvent) CaptureTrace(ctx context.Context) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return
	}

	if data, err := json.Marshal(carrier); err == nil {
		e.Headers = data
	}
}

// TraceContext returns ctx carrying the trace context captured at write time, if any.
func (e *OutboxEvent) TraceContext(ctx context.Context) context.Context {
	if len(e.Headers) == 0 {
		return ctx
	}

	carrier := propagation.MapCarrier{}
	if err := json.Unmarshal(e.Headers, &carrier); err != nil {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Message is the value published to Kafka: the stored envelope plus the outbox id,
// which consumers use as a deduplication key.
func (e *OutboxEvent) Message() (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &envelope); err != nil {
		return nil, err
	}

	id, err := json.Marshal(e.Id)
	if err != nil {
		return nil, err
	}
	envelope["event_id"] = id

	return json.Marshal(envelope)
}
