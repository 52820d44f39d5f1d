package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// ClaimResult is the outcome of a claim attempt
type ClaimResult int

const (
	ClaimAccepted ClaimResult = iota
	ClaimAlreadyClaimed
)

// MatchingConfig names the tutor audience
type MatchingConfig struct {
	GuildID      string
	TutorRoleID  string
	TutorChannel string
}

// MatchingService broadcasts open orders and arbitrates claims. The order
// store decides every claim; broadcast copies are only views.
type MatchingService struct {
	platform   chat.Platform
	orders     OrderStore
	broadcasts BroadcastStore
	cfg        MatchingConfig
	logger     logger.Logger
}

// NewMatchingService creates a new MatchingService
func NewMatchingService(
	platform chat.Platform,
	orders OrderStore,
	broadcasts BroadcastStore,
	cfg MatchingConfig,
	logger logger.Logger,
) *MatchingService {
	return &MatchingService{
		platform:   platform,
		orders:     orders,
		broadcasts: broadcasts,
		cfg:        cfg,
		logger:     logger,
	}
}

// Broadcast posts the order alert to the tutor channel and DMs every tutor.
// DM failures are logged and skipped. It fails only when no copy at all
// could be delivered, and returns the number of copies delivered.
func (s *MatchingService) Broadcast(ctx context.Context, order *models.Order) (int, error) {
	msg := chat.Message{Embed: orderAlert(order), Buttons: claimButtons(order.ID, false)}
	delivered := 0

	channelID, err := s.platform.ChannelByName(ctx, s.cfg.GuildID, s.cfg.TutorChannel)

	if err != nil {
		s.logger.Warn("Tutor channel not available", "error", err, "channel", s.cfg.TutorChannel)
	} else {
		shared := msg
		if s.cfg.TutorRoleID != "" {
			shared.Content = chat.RoleMention(s.cfg.TutorRoleID)
		}

		messageID, err := s.platform.Send(ctx, channelID, shared)

		if err != nil {
			s.logger.Warn("Failed to post order alert", "error", err, "orderID", order.ID, "channelID", channelID)
		} else {
			s.record(ctx, order.ID, channelID, messageID, false)
			delivered++
		}
	}

	var tutors []string
	if s.cfg.TutorRoleID != "" {
		tutors, err = s.platform.MembersWithRole(ctx, s.cfg.GuildID, s.cfg.TutorRoleID)

		if err != nil {
			s.logger.Warn("Failed to list tutors", "error", err, "roleID", s.cfg.TutorRoleID)
		}
	}

	for _, tutor := range tutors {
		dmChannel, messageID, err := s.platform.SendDirect(ctx, tutor, msg)

		if err != nil {
			s.logger.Debug("Skipping tutor DM", "error", err, "tutor", tutor, "orderID", order.ID)
			continue
		}
		s.record(ctx, order.ID, dmChannel, messageID, true)
		delivered++
	}

	s.logger.Info("Order broadcast", "orderID", order.ID, "copies", delivered, "tutors", len(tutors))

	if delivered == 0 {
		return 0, apperrors.NewNotFoundError("❌ Error: No Trusted Tutors or tutor-chat found.")
	}
	return delivered, nil
}

func (s *MatchingService) record(ctx context.Context, orderID, channelID, messageID string, direct bool) {
	err := s.broadcasts.AddCopy(ctx, &models.BroadcastCopy{
		OrderID:   orderID,
		ChannelID: channelID,
		MessageID: messageID,
		Direct:    direct,
		CreatedAt: models.GetCurrentTime(),
	})

	if err != nil {
		s.logger.Warn("Failed to record broadcast copy", "error", err, "orderID", orderID, "messageID", messageID)
	}
}

// Claim assigns the order to claimant if it is still open. Every later
// attempt, from any copy of the alert, gets ClaimAlreadyClaimed.
func (s *MatchingService) Claim(ctx context.Context, orderID, claimant string) (ClaimResult, *models.Order, error) {
	if s.cfg.TutorRoleID != "" {
		ok, err := s.platform.HasRole(ctx, s.cfg.GuildID, claimant, s.cfg.TutorRoleID)
		if err != nil {
			return 0, nil, platformError(err)
		}
		if !ok {
			return 0, nil, apperrors.NewForbiddenError("⛔ Only tutors can claim orders.")
		}
	}

	order, err := s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusOpen}, models.OrderStatusClaimed,
		func(o *models.Order) {
			now := models.GetCurrentTime()
			o.AssignedTutor = &claimant
			o.ClaimedAt = &now
		})

	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("Claim lost", "orderID", orderID, "claimant", claimant, "status", conflict.Current)
			return ClaimAlreadyClaimed, nil, nil
		}
		return 0, nil, storeError(err, "order")
	}

	s.logger.Info("Order claimed", "orderID", orderID, "tutor", claimant)

	// The claim stands from here on; channel work is reported but not undone
	var grantErr error
	if err := s.platform.GrantAccess(ctx, order.ChannelID, claimant); err != nil {
		s.logger.Error("Failed to grant tutor access", "error", err, "orderID", orderID, "channelID", order.ChannelID)
		grantErr = apperrors.NewTemporaryError("⚠️ The order is yours, but I couldn't add you to the ticket channel. Please contact an administrator.").
			WithCause(err)
	}

	s.post(ctx, order.ChannelID, chat.Message{
		Content: fmt.Sprintf("🎉 %s has claimed your ticket, %s!", chat.Mention(claimant), chat.Mention(order.Requester)),
	})
	s.post(ctx, order.ChannelID, chat.Message{
		Content: "🔄 Update order status:",
		Buttons: progressButtons(order.ID, order.Status),
	})

	s.disableClaims(ctx, order.ID)

	return ClaimAccepted, order, grantErr
}

// Reject is advisory: the order stays open for everyone else
func (s *MatchingService) Reject(ctx context.Context, orderID, tutor string) string {
	s.logger.Info("Order rejected by tutor", "orderID", orderID, "tutor", tutor)
	return "❌ Ticket rejected. It remains open for other tutors."
}

func (s *MatchingService) disableClaims(ctx context.Context, orderID string) {
	copies, err := s.broadcasts.ListCopies(ctx, orderID)

	if err != nil {
		s.logger.Warn("Failed to load broadcast copies", "error", err, "orderID", orderID)
		return
	}

	buttons := claimButtons(orderID, true)
	for _, c := range copies {
		if err := s.platform.EditButtons(ctx, c.ChannelID, c.MessageID, buttons); err != nil {
			s.logger.Debug("Failed to disable claim button", "error", err, "channelID", c.ChannelID, "messageID", c.MessageID)
		}
	}
}

func (s *MatchingService) post(ctx context.Context, channelID string, msg chat.Message) {
	if _, err := s.platform.Send(ctx, channelID, msg); err != nil {
		s.logger.Warn("Failed to post to ticket channel", "error", err, "channelID", channelID)
	}
}
