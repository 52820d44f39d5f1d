package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// ProgressConfig names the public channels progress is reported to
type ProgressConfig struct {
	GuildID       string
	ReviewChannel string
	AdminChannel  string
	AdminRoleID   string
}

// ProgressService moves a claimed order through delivery to its end state
type ProgressService struct {
	platform chat.Platform
	orders   OrderStore
	tickets  *TicketService
	cfg      ProgressConfig
	logger   logger.Logger
}

// NewProgressService creates a new ProgressService
func NewProgressService(
	platform chat.Platform,
	orders OrderStore,
	tickets *TicketService,
	cfg ProgressConfig,
	logger logger.Logger,
) *ProgressService {
	return &ProgressService{
		platform: platform,
		orders:   orders,
		tickets:  tickets,
		cfg:      cfg,
		logger:   logger,
	}
}

// StartWork marks a claimed order as in progress. Assigned tutor only.
func (s *ProgressService) StartWork(ctx context.Context, orderID, actor, controlMessageID string) (*models.Order, error) {
	if _, err := s.tutorOnly(ctx, orderID, actor); err != nil {
		return nil, err
	}

	order, err := s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusClaimed}, models.OrderStatusInProgress, nil)

	if err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Info("Order in progress", "orderID", orderID, "tutor", actor)

	s.post(ctx, order.ChannelID, chat.Message{
		Content: fmt.Sprintf("🛠 %s is now working on the order for %s.", chat.Mention(actor), chat.Mention(order.Requester)),
	})
	s.refreshControls(ctx, order, controlMessageID)

	return order, nil
}

// Deliver marks the work as submitted and asks the requester to review it
func (s *ProgressService) Deliver(ctx context.Context, orderID, actor, controlMessageID string) (*models.Order, error) {
	if _, err := s.tutorOnly(ctx, orderID, actor); err != nil {
		return nil, err
	}

	order, err := s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusInProgress}, models.OrderStatusDelivered,
		func(o *models.Order) {
			now := models.GetCurrentTime()
			o.DeliveredAt = &now
		})

	if err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Info("Order delivered", "orderID", orderID, "tutor", actor)

	s.refreshControls(ctx, order, controlMessageID)
	s.post(ctx, order.ChannelID, chat.Message{
		Content: fmt.Sprintf("📩 %s, your order has been submitted! Please review it.", chat.Mention(order.Requester)),
		Buttons: deliveredButtons(order.ID),
	})

	return order, nil
}

// RequestReview returns the review form for a delivered order
func (s *ProgressService) RequestReview(ctx context.Context, orderID, actor string) (chat.Modal, error) {
	if _, err := s.requesterOnly(ctx, orderID, actor, models.OrderStatusDelivered); err != nil {
		return chat.Modal{}, err
	}
	return reviewModal(orderID), nil
}

// SubmitReview stores the rating, publishes it and completes the ticket.
// A bad rating leaves the order delivered so the review can be retried.
func (s *ProgressService) SubmitReview(ctx context.Context, orderID, actor, rawRating, text string) (*models.Review, error) {
	order, err := s.requesterOnly(ctx, orderID, actor, models.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}

	rating, err := models.ParseRating(rawRating)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("⚠️ Rating must be a whole number from 1 to 5.").WithCause(err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidInputError("⚠️ Please write a few words about your tutor.")
	}

	review := models.NewReview(order, rating, text)

	order, err = s.orders.SubmitReview(ctx, review)
	if err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Info("Review submitted", "orderID", orderID, "rating", rating, "tutor", review.Tutor)

	s.publishReview(ctx, order, review)
	s.post(ctx, order.ChannelID, chat.Message{Content: "✅ Thank you for your feedback! The ticket will now be closed."})
	s.complete(ctx, order)

	return review, nil
}

// Close ends a delivered order without a review
func (s *ProgressService) Close(ctx context.Context, orderID, actor string) (*models.Order, error) {
	if _, err := s.requesterOnly(ctx, orderID, actor, models.OrderStatusDelivered); err != nil {
		return nil, err
	}

	order, err := s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusDelivered}, models.OrderStatusClosed,
		func(o *models.Order) {
			now := models.GetCurrentTime()
			o.ClosedAt = &now
		})

	if err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Info("Order closed", "orderID", orderID)

	s.post(ctx, order.ChannelID, chat.Message{
		Content: fmt.Sprintf("🎉 %s has closed the ticket. The ticket is now closed.", chat.Mention(actor)),
	})
	s.complete(ctx, order)

	return order, nil
}

// RequestEscalation returns the escalation form for a delivered order
func (s *ProgressService) RequestEscalation(ctx context.Context, orderID, actor string) (chat.Modal, error) {
	if _, err := s.requesterOnly(ctx, orderID, actor, models.OrderStatusDelivered); err != nil {
		return chat.Modal{}, err
	}
	return escalateModal(orderID), nil
}

// Escalate hands a delivered order to the administrators. The ticket
// stays open so an administrator can join it.
func (s *ProgressService) Escalate(ctx context.Context, orderID, actor, reason string) (*models.Order, error) {
	if _, err := s.requesterOnly(ctx, orderID, actor, models.OrderStatusDelivered); err != nil {
		return nil, err
	}

	order, err := s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusDelivered}, models.OrderStatusEscalated, nil)

	if err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Warn("Order escalated", "orderID", orderID, "tutor", order.Tutor(), "reason", reason)

	content := ""
	if s.cfg.AdminRoleID != "" {
		content = chat.RoleMention(s.cfg.AdminRoleID)
	}

	s.postNamed(ctx, s.cfg.AdminChannel, chat.Message{
		Content: content,
		Embed: &chat.Embed{
			Title: "🚨 Order Escalated",
			Description: fmt.Sprintf("**Student:** %s\n**Tutor:** %s\n**Ticket:** %s\n**Reason:** %s",
				chat.Mention(order.Requester), chat.Mention(order.Tutor()), chat.ChannelMention(order.ChannelID), reason),
			Footer: "Order " + order.ID,
			Color:  chat.ColorRed,
		},
	})
	s.post(ctx, order.ChannelID, chat.Message{
		Content: "⚠️ Your concern has been sent to the administrators. An admin will join this ticket shortly.",
	})

	return order, nil
}

func (s *ProgressService) tutorOnly(ctx context.Context, orderID, actor string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}

	if !order.IsTutor(actor) {
		return nil, apperrors.NewForbiddenError("⛔ Only the assigned tutor can do that.")
	}
	return order, nil
}

// requesterOnly also checks the status so a stale form is refused early
func (s *ProgressService) requesterOnly(ctx context.Context, orderID, actor string, want models.OrderStatus) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}

	if !order.IsRequester(actor) {
		return nil, apperrors.NewForbiddenError("⛔ Only the student who opened this order can do that.")
	}

	if order.Status != want {
		return nil, apperrors.NewConflictError("⚠️ This order is already " + humanStatus(order.Status) + ".")
	}
	return order, nil
}

func (s *ProgressService) refreshControls(ctx context.Context, order *models.Order, messageID string) {
	if messageID == "" {
		return
	}

	if err := s.platform.EditButtons(ctx, order.ChannelID, messageID, progressButtons(order.ID, order.Status)); err != nil {
		s.logger.Debug("Failed to update progress buttons", "error", err, "orderID", order.ID, "messageID", messageID)
	}
}

func (s *ProgressService) publishReview(ctx context.Context, order *models.Order, review *models.Review) {
	s.postNamed(ctx, s.cfg.ReviewChannel, chat.Message{Embed: &chat.Embed{
		Title: "📝 New Review",
		Description: fmt.Sprintf("**Tutor:** %s\n**Student:** %s\n**Rating:** %s (%d/5)\n\n%s",
			chat.Mention(review.Tutor), chat.Mention(review.Reviewer), stars(review.Rating), review.Rating, review.Text),
		Footer: "Order " + order.ID,
		Color:  chat.ColorGreen,
	}})
}

func (s *ProgressService) complete(ctx context.Context, order *models.Order) {
	if err := s.tickets.CloseByID(ctx, order.TicketID, models.TicketStateCompleted); err != nil {
		s.logger.Error("Failed to complete ticket", "error", err, "orderID", order.ID, "ticketID", order.TicketID)
	}
}

func (s *ProgressService) postNamed(ctx context.Context, name string, msg chat.Message) {
	channelID, err := s.platform.ChannelByName(ctx, s.cfg.GuildID, name)

	if err != nil {
		s.logger.Warn("Channel not available", "error", err, "channel", name)
		return
	}
	s.post(ctx, channelID, msg)
}

func (s *ProgressService) post(ctx context.Context, channelID string, msg chat.Message) {
	if _, err := s.platform.Send(ctx, channelID, msg); err != nil {
		s.logger.Warn("Failed to post message", "error", err, "channelID", channelID)
	}
}
