package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope is the common envelope for all events. It is generic so each
// event keeps a strongly typed payload.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      *int64    `json:"sequence,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// Validate ensures the envelope carries the expected event identity.
func (e EventEnvelope[T]) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName %q", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.EventID == "" {
		return fmt.Errorf("missing eventId")
	}
	return nil
}

func (e EventEnvelope[T]) seq() int64 {
	if e.Sequence == nil {
		return 0
	}
	return *e.Sequence
}

// isEnveloped reports whether body looks like an envelope rather than a bare
// legacy payload.
func isEnveloped(body []byte) bool {
	var probe struct {
		EventName string          `json:"eventName"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.EventName != "" && len(probe.Payload) > 0
}

type correlationKey struct{}

// WithCorrelationID stores the id that events emitted while handling ctx are
// correlated with.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
