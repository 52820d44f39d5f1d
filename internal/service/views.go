package service

import (
	"fmt"
	"strings"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/models"
)

// Custom id actions. Buttons tied to an order carry its id, e.g. "claim:123".
const (
	ActionOrderHere      = "order_here"
	ActionTutorSignup    = "tutor_signup"
	ActionReportIssue    = "report_issue"
	ActionFindTutor      = "find_tutor"
	ActionReviseBudget   = "revise_budget"
	ActionClaim          = "claim"
	ActionReject         = "reject"
	ActionStartWork      = "start_work"
	ActionDeliver        = "deliver"
	ActionReview         = "review"
	ActionReviewSubmit   = "review_submit"
	ActionClose          = "close_order"
	ActionEscalate       = "escalate"
	ActionEscalateSubmit = "escalate_submit"
)

// Modal field ids
const (
	FieldRating = "rating"
	FieldReview = "review"
	FieldReason = "reason"
)

func panelButtons() []chat.Button {
	return []chat.Button{
		{CustomID: ActionOrderHere, Label: "Order Here", Style: chat.StyleSuccess},
		{CustomID: ActionTutorSignup, Label: "Sign Up to Be a Tutor", Style: chat.StylePrimary},
		{CustomID: ActionReportIssue, Label: "Report an Issue", Style: chat.StyleDanger},
	}
}

func claimButtons(orderID string, claimed bool) []chat.Button {
	return []chat.Button{
		{CustomID: chat.CustomID(ActionClaim, orderID), Label: "✅ Claim", Style: chat.StyleSuccess, Disabled: claimed},
		{CustomID: chat.CustomID(ActionReject, orderID), Label: "❌ Reject", Style: chat.StyleDanger},
	}
}

// progressButtons are the tutor controls; only the next step is enabled
func progressButtons(orderID string, status models.OrderStatus) []chat.Button {
	return []chat.Button{
		{
			CustomID: chat.CustomID(ActionStartWork, orderID),
			Label:    "🛠 Work in Progress",
			Style:    chat.StylePrimary,
			Disabled: status != models.OrderStatusClaimed,
		},
		{
			CustomID: chat.CustomID(ActionDeliver, orderID),
			Label:    "📩 Order Submitted",
			Style:    chat.StyleSuccess,
			Disabled: status != models.OrderStatusInProgress,
		},
	}
}

func deliveredButtons(orderID string) []chat.Button {
	return []chat.Button{
		{CustomID: chat.CustomID(ActionReview, orderID), Label: "Review Order", Style: chat.StylePrimary},
		{CustomID: chat.CustomID(ActionClose, orderID), Label: "Close Ticket", Style: chat.StyleSecondary},
		{CustomID: chat.CustomID(ActionEscalate, orderID), Label: "Escalate", Style: chat.StyleDanger},
	}
}

func reviewModal(orderID string) chat.Modal {
	return chat.Modal{
		CustomID: chat.CustomID(ActionReviewSubmit, orderID),
		Title:    "Review your tutor",
		Inputs: []chat.TextInput{
			{CustomID: FieldRating, Label: "Rating (1-5)", Placeholder: "5", Required: true, MinLength: 1, MaxLength: 1},
			{CustomID: FieldReview, Label: "Review", Placeholder: "How did it go?", Paragraph: true, Required: true, MaxLength: 1000},
		},
	}
}

func escalateModal(orderID string) chat.Modal {
	return chat.Modal{
		CustomID: chat.CustomID(ActionEscalateSubmit, orderID),
		Title:    "Escalate to an administrator",
		Inputs: []chat.TextInput{
			{CustomID: FieldReason, Label: "What went wrong?", Paragraph: true, Required: true, MaxLength: 1000},
		},
	}
}

func orderAlert(order *models.Order) *chat.Embed {
	budget := "$" + order.BudgetAmount.StringFixed(2)
	if order.BudgetUnit != "" && order.BudgetUnit != "$" {
		budget = fmt.Sprintf("%s (≈ %s)", order.BudgetRaw, budget)
	}

	return &chat.Embed{
		Title: "📌 New Order Alert!",
		Description: fmt.Sprintf(
			"🔹 **Client:** %s\n🔹 **Category:** %s\n🔹 **Field:** %s\n🔹 **Due Date:** %s\n🔹 **Budget:** %s\n📩 Click 'Claim' to take this order.",
			chat.Mention(order.Requester), order.Category, order.Subject, order.DueDate, budget),
		Footer: "Order " + order.ID,
		Color:  chat.ColorGold,
	}
}

func stars(rating int) string {
	return strings.Repeat("⭐", rating)
}
