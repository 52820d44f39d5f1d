package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Lifecycle event types
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventReviewSubmitted    = "review_submitted"
)

// EventTypes lists every event type written to the outbox
var EventTypes = []string{EventOrderCreated, EventOrderStatusChanged, EventReviewSubmitted}

// OutboxMessage is an event recorded in the same transaction as the state
// change it describes
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the JSON envelope published for every event
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// StatusChange is the data of an order_status_changed event
type StatusChange struct {
	OrderID   string      `json:"order_id"`
	Requester string      `json:"requester"`
	Tutor     string      `json:"tutor,omitempty"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	ChannelID string      `json:"channel_id"`
}

func newOutboxMessage(eventType, aggregateType, aggregateID string, data interface{}) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)

	if err != nil {
		return nil, err
	}

	now := GetCurrentTime()
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  now,
		Data:        raw,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates a new order created event
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage(EventOrderCreated, "order", order.ID, order)
}

// NewOrderStatusChangedEvent records order moving away from oldStatus
func NewOrderStatusChangedEvent(order *Order, oldStatus OrderStatus) (*OutboxMessage, error) {
	return newOutboxMessage(EventOrderStatusChanged, "order", order.ID, StatusChange{
		OrderID:   order.ID,
		Requester: order.Requester,
		Tutor:     order.Tutor(),
		OldStatus: oldStatus,
		NewStatus: order.Status,
		ChannelID: order.ChannelID,
	})
}

// NewReviewSubmittedEvent creates a review submitted event
func NewReviewSubmittedEvent(review *Review) (*OutboxMessage, error) {
	return newOutboxMessage(EventReviewSubmitted, "order", review.OrderID, review)
}
