package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/intake"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// cleanupTimeout bounds the work done after an intake is abandoned
const cleanupTimeout = 15 * time.Second

// StartRequest identifies who pressed a panel button
type StartRequest struct {
	UserID   string
	UserName string
}

// OrderService runs an order from the panel button to the tutor broadcast
type OrderService struct {
	platform chat.Platform
	orders   OrderStore
	tickets  *TicketService
	engine   *intake.Engine
	forms    intake.Forms
	matching *MatchingService
	limiter  Limiter
	minimum  decimal.Decimal
	logger   logger.Logger
}

// NewOrderService creates a new OrderService; limiter may be nil
func NewOrderService(
	platform chat.Platform,
	orders OrderStore,
	tickets *TicketService,
	engine *intake.Engine,
	forms intake.Forms,
	matching *MatchingService,
	limiter Limiter,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		platform: platform,
		orders:   orders,
		tickets:  tickets,
		engine:   engine,
		forms:    forms,
		matching: matching,
		limiter:  limiter,
		minimum:  engine.Minimum(),
		logger:   logger,
	}
}

// Start opens an order ticket and runs the order form in it. A timed out
// or invalid intake cancels the order and deletes the channel.
func (s *OrderService) Start(ctx context.Context, req StartRequest, resp chat.Responder) (*models.Order, error) {
	if s.limiter != nil && !s.limiter.Allow(req.UserID) {
		return nil, apperrors.NewRateLimitedError("⏳ You're doing that too often. Please wait a moment and try again.")
	}

	form, err := s.forms.Get(intake.FormOrder)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Open(ctx, OpenTicketRequest{
		Kind:          models.TicketKindOrder,
		Requester:     req.UserID,
		RequesterName: req.UserName,
	})
	if err != nil {
		return nil, err
	}

	order := models.NewOrder(ticket)

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order", "error", err, "ticketID", ticket.ID)
		s.closeTicket(ctx, ticket, models.TicketStateCancelled)
		return nil, storeError(err, "order")
	}

	s.logger.Info("Order intake started", "orderID", order.ID, "requester", req.UserID, "channelID", ticket.ChannelID)

	if err := resp.Reply(ctx, "✅ Your ticket has been created: "+chat.ChannelMention(ticket.ChannelID)); err != nil {
		s.logger.Warn("Failed to acknowledge order button", "error", err, "userID", req.UserID)
	}

	s.post(ctx, ticket.ChannelID, chat.Message{Content: form.Greeting(chat.Mention(req.UserID))})

	answers, err := s.engine.Run(ctx, ticket.ChannelID, req.UserID, form)

	if err != nil {
		s.cancel(ctx, order, ticket, err)
		return nil, err
	}

	applyAnswers(order, answers)

	if err := s.orders.UpdateIntake(ctx, order); err != nil {
		s.logger.Error("Failed to store intake answers", "error", err, "orderID", order.ID)
		s.cancel(ctx, order, ticket, err)
		return nil, storeError(err, "order")
	}

	s.promptNext(ctx, order)
	return order, nil
}

// FindTutor opens the order and broadcasts it. Orders below the minimum
// budget stay in intake until the budget is revised.
func (s *OrderService) FindTutor(ctx context.Context, orderID, actor string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}

	if !order.IsRequester(actor) {
		return nil, apperrors.NewForbiddenError("⛔ Only the student who opened this order can do that.")
	}

	switch order.Status {
	case models.OrderStatusPendingIntake:
	case models.OrderStatusOpen:
		// Still unclaimed: pressing again re-sends the alert
		if _, err := s.matching.Broadcast(ctx, order); err != nil {
			return nil, err
		}
		s.post(ctx, order.ChannelID, chat.Message{Content: "✅ Tutors have been notified again!"})
		return order, nil
	default:
		return nil, apperrors.NewConflictError("⚠️ This order is already " + humanStatus(order.Status) + ".")
	}

	if order.BudgetAmount.LessThan(s.minimum) {
		s.post(ctx, order.ChannelID, chat.Message{
			Content: fmt.Sprintf("⚠️ The minimum budget is $%s (or equivalent in your currency). Please revise your budget before we find you a tutor.",
				s.minimum.StringFixed(0)),
			Buttons: []chat.Button{{CustomID: chat.CustomID(ActionReviseBudget, order.ID), Label: "Revise Budget", Style: chat.StylePrimary}},
		})
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("⚠️ Your budget is below the $%s minimum.", s.minimum.StringFixed(0)))
	}

	order, err = s.orders.Transition(ctx, orderID,
		[]models.OrderStatus{models.OrderStatusPendingIntake}, models.OrderStatusOpen,
		func(o *models.Order) { o.BudgetFlagged = false })

	if err != nil {
		return nil, storeError(err, "order")
	}

	if _, err := s.matching.Broadcast(ctx, order); err != nil {
		s.post(ctx, order.ChannelID, chat.Message{Content: "⚠️ No tutors could be reached yet. Press Find Tutor again in a moment."})
		return order, err
	}

	s.post(ctx, order.ChannelID, chat.Message{Content: "✅ Tutors have been notified!"})
	return order, nil
}

// ReviseBudget asks the budget question again while the order is in intake
func (s *OrderService) ReviseBudget(ctx context.Context, orderID, actor string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "order")
	}

	if !order.IsRequester(actor) {
		return nil, apperrors.NewForbiddenError("⛔ Only the student who opened this order can do that.")
	}

	if order.Status != models.OrderStatusPendingIntake {
		return nil, apperrors.NewConflictError("⚠️ The budget can no longer be changed; this order is " + humanStatus(order.Status) + ".")
	}

	form, err := s.forms.Get(intake.FormBudgetRevision)
	if err != nil {
		return nil, err
	}

	answers, err := s.engine.Run(ctx, order.ChannelID, actor, form)
	if err != nil {
		// Budget stays as it was; the button remains usable
		return nil, err
	}

	applyBudget(order, answers)

	if err := s.orders.UpdateIntake(ctx, order); err != nil {
		return nil, storeError(err, "order")
	}

	s.logger.Info("Order budget revised", "orderID", order.ID, "budget", order.BudgetAmount, "flagged", order.BudgetFlagged)
	s.promptNext(ctx, order)
	return order, nil
}

// promptNext shows Find Tutor, or Revise Budget while the budget is too low
func (s *OrderService) promptNext(ctx context.Context, order *models.Order) {
	if order.BudgetFlagged {
		s.post(ctx, order.ChannelID, chat.Message{
			Content: "💰 Your budget is below our minimum. Revise it to continue:",
			Buttons: []chat.Button{{CustomID: chat.CustomID(ActionReviseBudget, order.ID), Label: "Revise Budget", Style: chat.StylePrimary}},
		})
		return
	}

	s.post(ctx, order.ChannelID, chat.Message{
		Content: "✅ Your order is ready! Click below to find a tutor:",
		Buttons: []chat.Button{{CustomID: chat.CustomID(ActionFindTutor, order.ID), Label: "Find Tutor", Style: chat.StyleSuccess}},
	})
}

// cancel abandons an intake. Cleanup runs even when ctx is already done.
func (s *OrderService) cancel(ctx context.Context, order *models.Order, ticket *models.Ticket, cause error) {
	cctx, done := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer done()

	s.logger.Info("Cancelling order intake", "orderID", order.ID, "reason", cause.Error(), "kind", apperrors.KindOf(cause))

	_, err := s.orders.Transition(cctx, order.ID,
		[]models.OrderStatus{models.OrderStatusPendingIntake}, models.OrderStatusCancelled,
		func(o *models.Order) {
			now := models.GetCurrentTime()
			o.ClosedAt = &now
		})

	if err != nil {
		s.logger.Error("Failed to cancel order", "error", err, "orderID", order.ID)
	}

	s.closeTicket(cctx, ticket, models.TicketStateCancelled)
}

func (s *OrderService) closeTicket(ctx context.Context, ticket *models.Ticket, outcome models.TicketState) {
	if err := s.tickets.Close(ctx, ticket, outcome); err != nil {
		s.logger.Error("Failed to close ticket", "error", err, "ticketID", ticket.ID)
	}
}

func (s *OrderService) post(ctx context.Context, channelID string, msg chat.Message) {
	if _, err := s.platform.Send(ctx, channelID, msg); err != nil {
		s.logger.Warn("Failed to post to ticket channel", "error", err, "channelID", channelID)
	}
}

func applyAnswers(order *models.Order, answers *intake.Answers) {
	order.Category = answers.Get("category")
	order.Subject = answers.Get("subject")
	order.DueDate = answers.Get("due_date")
	order.ExtraInfo = answers.Get("extra_info")
	applyBudget(order, answers)
}

func applyBudget(order *models.Order, answers *intake.Answers) {
	if answers.Budget == nil {
		return
	}
	order.BudgetAmount = answers.Budget.Normalized
	order.BudgetRaw = answers.Budget.Raw
	order.BudgetUnit = answers.Budget.Unit
	order.BudgetFlagged = answers.BelowMinimum
}
