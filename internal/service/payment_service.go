package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/intake"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// PaymentService records payment proofs and lets administrators verify them
type PaymentService struct {
	platform    chat.Platform
	orders      OrderStore
	submissions SubmissionStore
	engine      *intake.Engine
	form        *intake.Form
	logger      logger.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	platform chat.Platform,
	orders OrderStore,
	submissions SubmissionStore,
	engine *intake.Engine,
	forms intake.Forms,
	logger logger.Logger,
) (*PaymentService, error) {
	form, err := forms.Get(intake.FormPaymentProof)
	if err != nil {
		return nil, err
	}

	return &PaymentService{
		platform:    platform,
		orders:      orders,
		submissions: submissions,
		engine:      engine,
		form:        form,
		logger:      logger,
	}, nil
}

// UploadProof asks the student for a screenshot or transaction id in the
// channel the command was typed in, and tells their tutor about it
func (s *PaymentService) UploadProof(ctx context.Context, cmd chat.Command) (*models.Payment, error) {
	answers, err := s.engine.Run(ctx, cmd.ChannelID, cmd.AuthorID, s.form)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Student:   cmd.AuthorID,
		Proof:     answers.Get("proof"),
		CreatedAt: models.GetCurrentTime(),
	}

	order, err := s.orders.LatestWithTutor(ctx, cmd.AuthorID)

	switch {
	case err == nil:
		payment.OrderID = &order.ID
	case errors.Is(err, repository.ErrNotFound):
		order = nil
	default:
		s.logger.Warn("Failed to look up order for payment", "error", err, "student", cmd.AuthorID)
		order = nil
	}

	if err := s.submissions.UpsertPayment(ctx, payment); err != nil {
		return nil, storeError(err, "payment")
	}

	s.logger.Info("Payment proof uploaded", "student", cmd.AuthorID, "hasOrder", payment.OrderID != nil)
	s.post(ctx, cmd.ChannelID, "✅ Payment proof uploaded. A tutor will be notified shortly.")

	if order != nil {
		msg := chat.Message{Content: "📢 Your student " + chat.Mention(cmd.AuthorID) + " has uploaded payment proof."}
		if _, _, err := s.platform.SendDirect(ctx, order.Tutor(), msg); err != nil {
			s.logger.Warn("Failed to notify tutor of payment", "error", err, "tutor", order.Tutor(), "orderID", order.ID)
		}
	}

	return payment, nil
}

// VerifyPayment marks a student's proof as verified and DMs a receipt.
// Administrators only.
func (s *PaymentService) VerifyPayment(ctx context.Context, cmd chat.Command) (*models.Payment, error) {
	if !cmd.IsAdmin {
		return nil, apperrors.NewForbiddenError("⛔ Only administrators can verify payments.")
	}

	if len(cmd.Args) == 0 {
		return nil, apperrors.NewInvalidInputError("⚠️ Missing arguments. Please provide the required input.")
	}

	student := parseUserRef(cmd.Args[0])
	if student == "" {
		return nil, apperrors.NewInvalidInputError("⚠️ Please mention the student or give their user id.")
	}

	payment, err := s.submissions.VerifyPayment(ctx, student, cmd.AuthorID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("❌ No payment proof found for this student.").WithCause(err)
		}
		return nil, storeError(err, "payment")
	}

	s.logger.Info("Payment verified", "student", student, "admin", cmd.AuthorID)
	s.post(ctx, cmd.ChannelID, "✅ Payment verified for student "+chat.Mention(student)+".")

	receipt := chat.Message{Content: "📜 **Receipt**\n✅ Your payment has been verified. Thank you for using our service!"}
	if _, _, err := s.platform.SendDirect(ctx, student, receipt); err != nil {
		s.logger.Warn("Failed to send receipt", "error", err, "student", student)
	}

	return payment, nil
}

func (s *PaymentService) post(ctx context.Context, channelID, content string) {
	if _, err := s.platform.Send(ctx, channelID, chat.Message{Content: content}); err != nil {
		s.logger.Warn("Failed to post payment notice", "error", err, "channelID", channelID)
	}
}

// parseUserRef accepts <@id>, <@!id> or a bare numeric id
func parseUserRef(ref string) string {
	ref = strings.TrimSpace(ref)

	if strings.HasPrefix(ref, "<@") && strings.HasSuffix(ref, ">") {
		ref = strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(ref, "<@"), ">"), "!")
	}

	if ref == "" {
		return ""
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return ref
}
