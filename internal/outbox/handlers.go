package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// LoggingHandler logs each event. It is the publisher when Kafka is off.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// HandleMessage decodes the envelope and logs it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Lifecycle event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}

// Fanout runs every handler in order and stops at the first error
type Fanout []MessageHandler

// HandleMessage implements MessageHandler
func (f Fanout) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	for _, h := range f {
		if err := h.HandleMessage(ctx, message); err != nil {
			return err
		}
	}
	return nil
}
