package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/chat/chattest"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

func statusEvent(t *testing.T, tutor string) *models.OutboxMessage {
	t.Helper()

	order := models.NewOrder(&models.Ticket{ID: "t1", ChannelID: "ticket-1", Requester: "1001"})
	if tutor != "" {
		order.AssignedTutor = &tutor
	}
	order.Status = models.OrderStatusClaimed

	msg, err := models.NewOrderStatusChangedEvent(order, models.OrderStatusOpen)
	require.NoError(t, err)
	return msg
}

func TestAuditPostsStatusChange(t *testing.T) {
	platform := chattest.New()
	audit := platform.AddTextChannel("audit-log")
	h := NewAuditLogHandler(platform, "guild", "audit-log", logger.NewNop())

	msg := statusEvent(t, "2002")
	require.NoError(t, h.HandleOutboxMessage(context.Background(), msg))

	sent := platform.SentTo(audit)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Message.Content, "open → claimed (tutor <@2002>)")
	assert.Contains(t, sent[0].Message.Content, msg.AggregateID)
}

func TestAuditConsumesKafkaRecords(t *testing.T) {
	platform := chattest.New()
	audit := platform.AddTextChannel("audit-log")
	h := NewAuditLogHandler(platform, "guild", "audit-log", logger.NewNop())

	order := models.NewOrder(&models.Ticket{ID: "t1", ChannelID: "ticket-9", Requester: "1001"})
	created, err := models.NewOrderCreatedEvent(order)
	require.NoError(t, err)

	review, err := models.NewReviewSubmittedEvent(&models.Review{OrderID: order.ID, Reviewer: "1001", Rating: 4})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.HandleMessage(ctx, &sarama.ConsumerMessage{Value: created.Payload}))
	require.NoError(t, h.HandleMessage(ctx, &sarama.ConsumerMessage{Value: review.Payload}))

	sent := platform.SentTo(audit)
	require.Len(t, sent, 2)
	assert.Equal(t, "🆕 Order `"+order.ID+"` created by <@1001> in <#ticket-9>.", sent[0].Message.Content)
	assert.Equal(t, "⭐ Order `"+order.ID+"` reviewed 4/5 by <@1001>.", sent[1].Message.Content)
}

func TestAuditSkipsPoisonRecords(t *testing.T) {
	platform := chattest.New()
	platform.AddTextChannel("audit-log")
	h := NewAuditLogHandler(platform, "guild", "audit-log", logger.NewNop())

	assert.NoError(t, h.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")}))
	assert.Empty(t, platform.AllSent())
}

func TestAuditSendFailureIsReturned(t *testing.T) {
	platform := chattest.New()
	audit := platform.AddTextChannel("audit-log")
	platform.SendErr = map[string]error{audit: errors.New("discord down")}
	h := NewAuditLogHandler(platform, "guild", "audit-log", logger.NewNop())

	assert.Error(t, h.HandleOutboxMessage(context.Background(), statusEvent(t, "")))
}

func TestAuditWithoutChannelOnlyLogs(t *testing.T) {
	platform := chattest.New()
	h := NewAuditLogHandler(platform, "guild", "", logger.NewNop())

	require.NoError(t, h.HandleOutboxMessage(context.Background(), statusEvent(t, "")))
	assert.Empty(t, platform.AllSent())
}

func TestAuditMissingChannel(t *testing.T) {
	h := NewAuditLogHandler(chattest.New(), "guild", "audit-log", logger.NewNop())

	assert.Error(t, h.HandleOutboxMessage(context.Background(), statusEvent(t, "")))
}
