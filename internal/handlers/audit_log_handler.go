// Package handlers consumes order lifecycle events.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// AuditLogHandler posts one line per lifecycle event to the audit channel.
// With no channel configured it only logs.
type AuditLogHandler struct {
	platform chat.Platform
	guildID  string
	channel  string
	logger   logger.Logger

	mu        sync.Mutex
	channelID string
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(platform chat.Platform, guildID, channel string, logger logger.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		platform: platform,
		guildID:  guildID,
		channel:  channel,
		logger:   logger,
	}
}

// HandleMessage handles events consumed from Kafka. Undecodable records are
// logged and skipped so they do not block the partition.
func (h *AuditLogHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Warn("Skipping undecodable event",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset)
		return nil
	}

	return h.HandleEvent(ctx, event)
}

// HandleOutboxMessage handles events straight from the outbox when Kafka
// is not configured
func (h *AuditLogHandler) HandleOutboxMessage(ctx context.Context, msg *models.OutboxMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message %d: %w", msg.ID, err)
	}

	return h.HandleEvent(ctx, event)
}

// HandleEvent formats and posts one event
func (h *AuditLogHandler) HandleEvent(ctx context.Context, event models.OutboxMessageEvent) error {
	line, err := describe(event)

	if err != nil {
		return err
	}

	if line == "" {
		h.logger.Warn("Unknown event type", "eventType", event.EventType, "eventID", event.EventID)
		return nil
	}

	h.logger.Info("Order event",
		"eventType", event.EventType,
		"eventID", event.EventID,
		"orderID", event.AggregateID,
		"occurredAt", event.OccurredAt)

	if h.channel == "" {
		return nil
	}

	channelID, err := h.resolve(ctx)

	if err != nil {
		return err
	}

	if _, err := h.platform.Send(ctx, channelID, chat.Message{Content: line}); err != nil {
		return fmt.Errorf("post audit line: %w", err)
	}

	return nil
}

func (h *AuditLogHandler) resolve(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channelID != "" {
		return h.channelID, nil
	}

	id, err := h.platform.ChannelByName(ctx, h.guildID, h.channel)

	if err != nil {
		return "", fmt.Errorf("resolve audit channel %q: %w", h.channel, err)
	}

	h.channelID = id
	return id, nil
}

// describe renders event as a single audit line, or "" for unknown types
func describe(event models.OutboxMessageEvent) (string, error) {
	switch event.EventType {
	case models.EventOrderCreated:
		var order models.Order
		if err := json.Unmarshal(event.Data, &order); err != nil {
			return "", fmt.Errorf("decode %s data: %w", event.EventType, err)
		}
		return fmt.Sprintf("🆕 Order `%s` created by <@%s> in <#%s>.", order.ID, order.Requester, order.ChannelID), nil

	case models.EventOrderStatusChanged:
		var change models.StatusChange
		if err := json.Unmarshal(event.Data, &change); err != nil {
			return "", fmt.Errorf("decode %s data: %w", event.EventType, err)
		}
		line := fmt.Sprintf("🔄 Order `%s`: %s → %s", change.OrderID, change.OldStatus, change.NewStatus)
		if change.Tutor != "" {
			line += fmt.Sprintf(" (tutor <@%s>)", change.Tutor)
		}
		return line + ".", nil

	case models.EventReviewSubmitted:
		var review models.Review
		if err := json.Unmarshal(event.Data, &review); err != nil {
			return "", fmt.Errorf("decode %s data: %w", event.EventType, err)
		}
		return fmt.Sprintf("⭐ Order `%s` reviewed %d/%d by <@%s>.", review.OrderID, review.Rating, models.MaxRating, review.Reviewer), nil
	}

	return "", nil
}
