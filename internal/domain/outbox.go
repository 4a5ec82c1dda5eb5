package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxEvent is an event stored in the same transaction as the change it
// describes and relayed to the message broker afterwards.
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// Envelope is the wire format published to the broker.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Envelope wraps e for publishing.
func (e *OutboxEvent) Envelope(producer string) Envelope {
	return Envelope{
		EventID:       e.ID.String(),
		EventType:     e.EventType,
		EventVersion:  1,
		OccurredAt:    e.CreatedAt.UTC(),
		Producer:      producer,
		CorrelationID: e.AggregateID.String(),
		Payload:       e.Payload,
	}
}

// OrderPlacedPayload announces a new buyer or seller order.
type OrderPlacedPayload struct {
	OrderID      string      `json:"order_id"`
	BuyerOrderID string      `json:"buyer_order_id"`
	Audience     string      `json:"audience"` // buyer | seller
	RecipientID  string      `json:"recipient_id"`
	Total        string      `json:"total"`
	Lines        []OrderLine `json:"lines"`
}

// OrderStatusChangedPayload announces a confirm or cancel.
type OrderStatusChangedPayload struct {
	SellerOrderID string      `json:"seller_order_id"`
	BuyerOrderID  string      `json:"buyer_order_id"`
	SellerID      string      `json:"seller_id"`
	BuyerID       string      `json:"buyer_id"`
	Status        OrderStatus `json:"status"`
	BuyerStatus   OrderStatus `json:"buyer_status"`
}

// NewOutboxEvent marshals payload into a fresh event.
func NewOutboxEvent(aggregateID uuid.UUID, eventType, key string, payload any, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Key:         key,
		Payload:     data,
		CreatedAt:   now,
	}, nil
}
