package service

import (
	"context"
	"fmt"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/intake"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// ticketIntake opens a ticket of one kind and runs a form inside it. Used by
// the report and tutor application flows.
type ticketIntake struct {
	platform chat.Platform
	tickets  *TicketService
	engine   *intake.Engine
	limiter  Limiter
	logger   logger.Logger
}

func (t *ticketIntake) run(
	ctx context.Context,
	kind models.TicketKind,
	form *intake.Form,
	req StartRequest,
	resp chat.Responder,
) (*models.Ticket, *intake.Answers, error) {
	if t.limiter != nil && !t.limiter.Allow(req.UserID) {
		return nil, nil, apperrors.NewRateLimitedError("⏳ You're doing that too often. Please wait a moment and try again.")
	}

	ticket, err := t.tickets.Open(ctx, OpenTicketRequest{Kind: kind, Requester: req.UserID, RequesterName: req.UserName})
	if err != nil {
		return nil, nil, err
	}

	if err := resp.Reply(ctx, "✅ Your ticket has been created: "+chat.ChannelMention(ticket.ChannelID)); err != nil {
		t.logger.Warn("Failed to acknowledge button", "error", err, "userID", req.UserID)
	}

	if greeting := form.Greeting(chat.Mention(req.UserID)); greeting != "" {
		if _, err := t.platform.Send(ctx, ticket.ChannelID, chat.Message{Content: greeting}); err != nil {
			t.logger.Warn("Failed to greet", "error", err, "channelID", ticket.ChannelID)
		}
	}

	answers, err := t.engine.Run(ctx, ticket.ChannelID, req.UserID, form)

	if err != nil {
		t.abandon(ctx, ticket)
		return nil, nil, err
	}
	return ticket, answers, nil
}

func (t *ticketIntake) abandon(ctx context.Context, ticket *models.Ticket) {
	cctx, done := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer done()

	if err := t.tickets.Close(cctx, ticket, models.TicketStateCancelled); err != nil {
		t.logger.Error("Failed to cancel ticket", "error", err, "ticketID", ticket.ID)
	}
}

func (t *ticketIntake) thank(ctx context.Context, channelID, content string) {
	if _, err := t.platform.Send(ctx, channelID, chat.Message{Content: content}); err != nil {
		t.logger.Warn("Failed to post thank-you", "error", err, "channelID", channelID)
	}
}

// ReportService collects user reports in private report tickets
type ReportService struct {
	intake      ticketIntake
	form        *intake.Form
	submissions SubmissionStore
}

// NewReportService creates a new ReportService
func NewReportService(
	platform chat.Platform,
	tickets *TicketService,
	engine *intake.Engine,
	forms intake.Forms,
	submissions SubmissionStore,
	limiter Limiter,
	logger logger.Logger,
) (*ReportService, error) {
	form, err := forms.Get(intake.FormReport)
	if err != nil {
		return nil, err
	}

	return &ReportService{
		intake:      ticketIntake{platform: platform, tickets: tickets, engine: engine, limiter: limiter, logger: logger},
		form:        form,
		submissions: submissions,
	}, nil
}

// Start opens a report ticket and records the answers as a pending report
func (s *ReportService) Start(ctx context.Context, req StartRequest, resp chat.Responder) (*models.Report, error) {
	ticket, answers, err := s.intake.run(ctx, models.TicketKindReport, s.form, req, resp)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:           models.NewRecordID(),
		TicketID:     ticket.ID,
		Reporter:     req.UserID,
		ReportedUser: answers.Get("reported_user"),
		Description:  answers.Get("issue_description"),
		Evidence:     answers.Get("evidence"),
		Status:       models.SubmissionStatusPending,
		CreatedAt:    models.GetCurrentTime(),
	}

	if err := s.submissions.CreateReport(ctx, report); err != nil {
		s.intake.logger.Error("Failed to store report", "error", err, "ticketID", ticket.ID)
		return nil, storeError(err, "report")
	}

	s.intake.logger.Info("Report submitted", "reportID", report.ID, "reporter", req.UserID)
	s.intake.thank(ctx, ticket.ChannelID, fmt.Sprintf(
		"Thank you for reporting, %s. Our team will review your report and take appropriate action.", chat.Mention(req.UserID)))

	return report, nil
}

// ApplicationService collects tutor applications in private tickets
type ApplicationService struct {
	intake      ticketIntake
	form        *intake.Form
	submissions SubmissionStore
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(
	platform chat.Platform,
	tickets *TicketService,
	engine *intake.Engine,
	forms intake.Forms,
	submissions SubmissionStore,
	limiter Limiter,
	logger logger.Logger,
) (*ApplicationService, error) {
	form, err := forms.Get(intake.FormTutorApplication)
	if err != nil {
		return nil, err
	}

	return &ApplicationService{
		intake:      ticketIntake{platform: platform, tickets: tickets, engine: engine, limiter: limiter, logger: logger},
		form:        form,
		submissions: submissions,
	}, nil
}

// Start opens an application ticket and records the answers
func (s *ApplicationService) Start(ctx context.Context, req StartRequest, resp chat.Responder) (*models.TutorApplication, error) {
	ticket, answers, err := s.intake.run(ctx, models.TicketKindApplication, s.form, req, resp)
	if err != nil {
		return nil, err
	}

	app := &models.TutorApplication{
		ID:         models.NewRecordID(),
		TicketID:   ticket.ID,
		Applicant:  req.UserID,
		Subjects:   answers.Get("subjects"),
		Education:  answers.Get("education"),
		Experience: answers.Get("experience"),
		Motivation: answers.Get("motivation"),
		Documents:  answers.Get("documents"),
		Status:     models.SubmissionStatusPending,
		CreatedAt:  models.GetCurrentTime(),
	}

	if err := s.submissions.CreateApplication(ctx, app); err != nil {
		s.intake.logger.Error("Failed to store tutor application", "error", err, "ticketID", ticket.ID)
		return nil, storeError(err, "application")
	}

	s.intake.logger.Info("Tutor application submitted", "applicationID", app.ID, "applicant", req.UserID)
	s.intake.thank(ctx, ticket.ChannelID, fmt.Sprintf(
		"Thank you for applying, %s! Our team will review your application and contact you soon.", chat.Mention(req.UserID)))

	return app, nil
}
