// Package bot routes Discord interactions and prefix commands to the services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/service"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const (
	genericFailure = "⚠️ An unexpected error occurred. Please try again later."
	unknownCommand = "⚠️ Command not found! Please check the available commands."
	adminOnly      = "⛔ You don't have permission to use this command."
	unknownButton  = "⚠️ This button is no longer active."
	alreadyClaimed = "⚠️ This order has already been claimed by another tutor."
)

// Commands
const (
	CmdSendTicketsTest = "send_tickets_test"
	CmdSendTicketsMain = "send_tickets_main"
	CmdUploadProof     = "upload-proof"
	CmdVerifyPayment   = "verify-payment"
)

// Services bundles everything the router dispatches to
type Services struct {
	Orders       *service.OrderService
	Matching     *service.MatchingService
	Progress     *service.ProgressService
	Reports      *service.ReportService
	Applications *service.ApplicationService
	Payments     *service.PaymentService
	Panel        *service.PanelService
}

// Config names the channels the panel is posted to
type Config struct {
	PanelChannel string
	MainChannel  string
	// PostPanelOnReady posts the panel to PanelChannel when the gateway connects
	PostPanelOnReady bool
}

// Router turns every user action into a service call and every failure
// into a notice only the acting user sees
type Router struct {
	platform chat.Platform
	svc      Services
	cfg      Config
	logger   logger.Logger
}

// NewRouter creates a new Router
func NewRouter(platform chat.Platform, svc Services, cfg Config, logger logger.Logger) *Router {
	return &Router{
		platform: platform,
		svc:      svc,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleReady posts the entry panel
func (r *Router) HandleReady(ctx context.Context) {
	if !r.cfg.PostPanelOnReady || r.cfg.PanelChannel == "" {
		return
	}

	if _, err := r.svc.Panel.Post(ctx, r.cfg.PanelChannel); err != nil {
		r.logger.Error("Failed to post panel on ready", "error", err, "channel", r.cfg.PanelChannel)
	}
}

// HandleInteraction dispatches a button press or modal submission
func (r *Router) HandleInteraction(ctx context.Context, in chat.Interaction, resp chat.Responder) {
	defer r.recoverPanic("interaction", in.CustomID, func(msg string) { _ = resp.Reply(ctx, msg) })

	action, orderID := in.Action()
	log := r.logger.With("action", action, "userID", in.UserID, "orderID", orderID)
	log.Debug("Interaction received")

	reply, err := r.dispatch(ctx, in, action, orderID, resp)

	if err != nil {
		r.fail(ctx, log, err, func(msg string) error { return resp.Reply(ctx, msg) })
		return
	}

	if reply != "" {
		if err := resp.Reply(ctx, reply); err != nil {
			log.Warn("Failed to answer interaction", "error", err)
		}
	}
}

// dispatch returns the confirmation to show, or "" when the service
// already answered (modals, ticket links)
func (r *Router) dispatch(ctx context.Context, in chat.Interaction, action, orderID string, resp chat.Responder) (string, error) {
	req := service.StartRequest{UserID: in.UserID, UserName: in.UserName}

	switch action {
	case service.ActionOrderHere:
		_, err := r.svc.Orders.Start(ctx, req, resp)
		return "", err

	case service.ActionTutorSignup:
		_, err := r.svc.Applications.Start(ctx, req, resp)
		return "", err

	case service.ActionReportIssue:
		_, err := r.svc.Reports.Start(ctx, req, resp)
		return "", err

	case service.ActionFindTutor:
		// Acknowledge first; the broadcast can outlast the interaction window
		if err := resp.Reply(ctx, "🔎 Looking for a tutor..."); err != nil {
			r.logger.Warn("Failed to acknowledge find tutor", "error", err, "orderID", orderID)
		}
		_, err := r.svc.Orders.FindTutor(ctx, orderID, in.UserID)
		return "", err

	case service.ActionReviseBudget:
		if err := resp.Reply(ctx, "💰 Please type your revised budget in the ticket."); err != nil {
			r.logger.Warn("Failed to acknowledge budget revision", "error", err, "orderID", orderID)
		}
		_, err := r.svc.Orders.ReviseBudget(ctx, orderID, in.UserID)
		return "", err

	case service.ActionClaim:
		result, order, err := r.svc.Matching.Claim(ctx, orderID, in.UserID)
		if result == service.ClaimAlreadyClaimed {
			return alreadyClaimed, nil
		}
		if order != nil && err == nil {
			return "✅ You have claimed this order! Head over to " + chat.ChannelMention(order.ChannelID) + ".", nil
		}
		return "", err

	case service.ActionReject:
		return r.svc.Matching.Reject(ctx, orderID, in.UserID), nil

	case service.ActionStartWork:
		_, err := r.svc.Progress.StartWork(ctx, orderID, in.UserID, in.MessageID)
		return "🛠 Status updated: work in progress.", err

	case service.ActionDeliver:
		_, err := r.svc.Progress.Deliver(ctx, orderID, in.UserID, in.MessageID)
		return "📩 Status updated: order submitted.", err

	case service.ActionReview:
		modal, err := r.svc.Progress.RequestReview(ctx, orderID, in.UserID)
		if err != nil {
			return "", err
		}
		return "", resp.ShowModal(ctx, modal)

	case service.ActionReviewSubmit:
		_, err := r.svc.Progress.SubmitReview(ctx, orderID, in.UserID, in.Fields[service.FieldRating], in.Fields[service.FieldReview])
		return "✅ Review submitted. Thank you!", err

	case service.ActionClose:
		_, err := r.svc.Progress.Close(ctx, orderID, in.UserID)
		return "✅ Ticket closed.", err

	case service.ActionEscalate:
		modal, err := r.svc.Progress.RequestEscalation(ctx, orderID, in.UserID)
		if err != nil {
			return "", err
		}
		return "", resp.ShowModal(ctx, modal)

	case service.ActionEscalateSubmit:
		_, err := r.svc.Progress.Escalate(ctx, orderID, in.UserID, in.Fields[service.FieldReason])
		return "🚨 An administrator has been notified.", err

	default:
		r.logger.Warn("Unknown interaction", "customID", in.CustomID, "userID", in.UserID)
		return unknownButton, nil
	}
}

// HandleCommand runs a prefix command and answers in the same channel
func (r *Router) HandleCommand(ctx context.Context, cmd chat.Command) {
	say := func(msg string) error {
		_, err := r.platform.Send(ctx, cmd.ChannelID, chat.Message{Content: msg})
		return err
	}
	defer r.recoverPanic("command", cmd.Name, func(msg string) { _ = say(msg) })

	log := r.logger.With("command", cmd.Name, "userID", cmd.AuthorID, "channelID", cmd.ChannelID)
	log.Debug("Command received")

	var err error

	switch cmd.Name {
	case CmdSendTicketsTest, CmdSendTicketsMain:
		if !cmd.IsAdmin {
			err = apperrors.NewForbiddenError(adminOnly)
			break
		}
		channel := r.cfg.PanelChannel
		if cmd.Name == CmdSendTicketsMain {
			channel = r.cfg.MainChannel
		}
		_, err = r.svc.Panel.Post(ctx, channel)

	case CmdUploadProof:
		_, err = r.svc.Payments.UploadProof(ctx, cmd)

	case CmdVerifyPayment:
		_, err = r.svc.Payments.VerifyPayment(ctx, cmd)

	default:
		err = apperrors.NewNotFoundError(unknownCommand)
	}

	if err != nil {
		r.fail(ctx, log, err, say)
	}
}

// fail reports err to the user. Only integration failures are logged as errors.
func (r *Router) fail(ctx context.Context, log logger.Logger, err error, say func(string) error) {
	// The newer intake in the same channel carries on
	if errors.Is(err, chat.ErrSuperseded) {
		log.Debug("Intake replaced by a newer one", "error", err)
		return
	}

	msg, ok := apperrors.UserMessage(err)
	if !ok {
		msg = genericFailure
	}

	switch kind := apperrors.KindOf(err); kind {
	case apperrors.KindIntegration:
		log.Error("Action failed", "error", err, "kind", kind)
	default:
		log.Info("Action refused", "error", err, "kind", kind)
	}

	if sayErr := say(msg); sayErr != nil {
		log.Warn("Failed to report error to user", "error", sayErr, "original", err)
	}
}

func (r *Router) recoverPanic(what, name string, say func(string)) {
	if p := recover(); p != nil {
		r.logger.Error("Handler panicked",
			"what", what,
			"name", name,
			"panic", fmt.Sprint(p),
			"stack", string(debug.Stack()))
		say(genericFailure)
	}
}
