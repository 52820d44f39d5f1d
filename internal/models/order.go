package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents where an order is in its lifecycle
type OrderStatus string

const (
	OrderStatusPendingIntake OrderStatus = "pending_intake"
	OrderStatusOpen          OrderStatus = "open"
	OrderStatusClaimed       OrderStatus = "claimed"
	OrderStatusInProgress    OrderStatus = "in_progress"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusReviewed      OrderStatus = "reviewed"
	OrderStatusClosed        OrderStatus = "closed"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusEscalated     OrderStatus = "escalated"
)

// orderTransitions lists every legal next status. Nothing ever moves back.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingIntake: {OrderStatusOpen, OrderStatusCancelled},
	OrderStatusOpen:          {OrderStatusClaimed},
	OrderStatusClaimed:       {OrderStatusInProgress},
	OrderStatusInProgress:    {OrderStatusDelivered},
	OrderStatusDelivered:     {OrderStatusReviewed, OrderStatusClosed, OrderStatusEscalated},
}

var orderRank = map[OrderStatus]int{
	OrderStatusPendingIntake: 0,
	OrderStatusOpen:          1,
	OrderStatusClaimed:       2,
	OrderStatusInProgress:    3,
	OrderStatusDelivered:     4,
	OrderStatusReviewed:      5,
	OrderStatusClosed:        5,
	OrderStatusEscalated:     5,
	OrderStatusCancelled:     5,
}

// AllOrderStatuses in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusPendingIntake,
	OrderStatusOpen,
	OrderStatusClaimed,
	OrderStatusInProgress,
	OrderStatusDelivered,
	OrderStatusReviewed,
	OrderStatusClosed,
	OrderStatusCancelled,
	OrderStatusEscalated,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	_, ok := orderRank[s]
	return ok
}

// Rank orders statuses along the lifecycle; terminal statuses share the top rank
func (s OrderStatus) Rank() int {
	return orderRank[s]
}

// CanTransitionTo reports whether next directly follows s
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// RequiresTutor reports whether an order in s must have an assigned tutor
func (s OrderStatus) RequiresTutor() bool {
	switch s {
	case OrderStatusClaimed, OrderStatusInProgress, OrderStatusDelivered, OrderStatusReviewed:
		return true
	}
	return false
}

// forbidsTutor reports whether an order in s cannot have a tutor yet
func (s OrderStatus) forbidsTutor() bool {
	switch s {
	case OrderStatusPendingIntake, OrderStatusOpen, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is one tutoring request, bound to one ticket channel
type Order struct {
	ID            string          `db:"id" json:"id"`
	TicketID      string          `db:"ticket_id" json:"ticket_id"`
	GuildID       string          `db:"guild_id" json:"guild_id"`
	ChannelID     string          `db:"channel_id" json:"channel_id"`
	Requester     string          `db:"requester" json:"requester"`
	Category      string          `db:"category" json:"category"`
	Subject       string          `db:"subject" json:"subject"`
	DueDate       string          `db:"due_date" json:"due_date"`
	ExtraInfo     string          `db:"extra_info" json:"extra_info,omitempty"`
	BudgetAmount  decimal.Decimal `db:"budget_amount" json:"budget_amount"`
	BudgetRaw     string          `db:"budget_raw" json:"budget_raw"`
	BudgetUnit    string          `db:"budget_unit" json:"budget_unit"`
	BudgetFlagged bool            `db:"budget_flagged" json:"budget_flagged"`
	Status        OrderStatus     `db:"status" json:"status"`
	AssignedTutor *string         `db:"assigned_tutor" json:"assigned_tutor,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	ClaimedAt     *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	DeliveredAt   *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	ClosedAt      *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
}

// NewOrder creates an order waiting for its intake answers
func NewOrder(ticket *Ticket) *Order {
	now := GetCurrentTime()

	return &Order{
		ID:        NewRecordID(),
		TicketID:  ticket.ID,
		GuildID:   ticket.GuildID,
		ChannelID: ticket.ChannelID,
		Requester: ticket.Requester,
		Status:    OrderStatusPendingIntake,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Tutor returns the assigned tutor or ""
func (o *Order) Tutor() string {
	if o.AssignedTutor == nil {
		return ""
	}
	return *o.AssignedTutor
}

// IsRequester reports whether userID opened the order
func (o *Order) IsRequester(userID string) bool {
	return o.Requester == userID
}

// IsTutor reports whether userID is the assigned tutor
func (o *Order) IsTutor(userID string) bool {
	return o.AssignedTutor != nil && *o.AssignedTutor == userID
}

// Validate checks the record-level invariants
func (o *Order) Validate(minimumBudget decimal.Decimal) error {
	if !o.Status.Valid() {
		return &InvariantError{OrderID: o.ID, Reason: "unknown status " + string(o.Status)}
	}

	if o.Status.RequiresTutor() && o.Tutor() == "" {
		return &InvariantError{OrderID: o.ID, Reason: "status " + string(o.Status) + " requires an assigned tutor"}
	}

	if o.Status.forbidsTutor() && o.AssignedTutor != nil {
		return &InvariantError{OrderID: o.ID, Reason: "status " + string(o.Status) + " cannot have an assigned tutor"}
	}

	if o.Status != OrderStatusPendingIntake && o.Status != OrderStatusCancelled &&
		o.BudgetAmount.LessThan(minimumBudget) {
		return &InvariantError{OrderID: o.ID, Reason: "budget below minimum outside intake"}
	}

	return nil
}

// InvariantError reports an order that would break a lifecycle rule
type InvariantError struct {
	OrderID string
	Reason  string
}

func (e *InvariantError) Error() string {
	return "order " + e.OrderID + ": " + e.Reason
}
