package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minBudget = decimal.NewFromInt(20)

func TestTransitionsOnlyMoveForward(t *testing.T) {
	for _, from := range AllOrderStatuses {
		for _, to := range AllOrderStatuses {
			if from.CanTransitionTo(to) {
				assert.Greater(t, to.Rank(), from.Rank(), "%s -> %s", from, to)
			}
		}
	}
}

func TestNoPathBackToOpen(t *testing.T) {
	for _, from := range AllOrderStatuses {
		if from == OrderStatusPendingIntake {
			continue
		}
		assert.False(t, from.CanTransitionTo(OrderStatusOpen), from)
	}
	assert.False(t, OrderStatusClaimed.CanTransitionTo(OrderStatusOpen))
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusReviewed, OrderStatusClosed, OrderStatusCancelled, OrderStatusEscalated} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, OrderStatusDelivered.IsTerminal())
	assert.False(t, OrderStatus("bogus").IsTerminal())
}

func TestOrderValidate(t *testing.T) {
	tutor := "tutor-1"
	ticket := &Ticket{ID: "t1", GuildID: "g", ChannelID: "c", Requester: "student"}

	o := NewOrder(ticket)
	require.NoError(t, o.Validate(minBudget))

	o.Status = OrderStatusOpen
	o.BudgetAmount = decimal.NewFromInt(15)
	assert.Error(t, o.Validate(minBudget), "open order under the minimum")

	o.BudgetAmount = decimal.NewFromInt(20)
	assert.NoError(t, o.Validate(minBudget))

	o.AssignedTutor = &tutor
	assert.Error(t, o.Validate(minBudget), "open order with a tutor")

	o.Status = OrderStatusClaimed
	assert.NoError(t, o.Validate(minBudget))

	o.AssignedTutor = nil
	assert.Error(t, o.Validate(minBudget), "claimed order without a tutor")
}

func TestParseRating(t *testing.T) {
	for _, raw := range []string{"1", " 5 ", "3"} {
		_, err := ParseRating(raw)
		assert.NoError(t, err, raw)
	}

	for _, raw := range []string{"0", "6", "five", "", "4.5"} {
		_, err := ParseRating(raw)
		assert.Error(t, err, raw)
	}
}

func TestStatusChangedEventPayload(t *testing.T) {
	tutor := "tutor-1"
	o := &Order{ID: "42", Requester: "student", Status: OrderStatusClaimed, AssignedTutor: &tutor}

	msg, err := NewOrderStatusChangedEvent(o, OrderStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, EventOrderStatusChanged, msg.EventType)
	assert.Equal(t, "42", msg.AggregateID)

	var event OutboxMessageEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))

	var change StatusChange
	require.NoError(t, json.Unmarshal(event.Data, &change))
	assert.Equal(t, OrderStatusOpen, change.OldStatus)
	assert.Equal(t, OrderStatusClaimed, change.NewStatus)
	assert.Equal(t, "tutor-1", change.Tutor)
}

func TestRecordIDsAreOrdered(t *testing.T) {
	a := NewRecordID()
	b := NewRecordID()

	assert.NotEqual(t, a, b)
	ai, _ := decimal.NewFromString(a)
	bi, _ := decimal.NewFromString(b)
	assert.True(t, ai.LessThan(bi))
}

func TestClosedAndEscalatedKeepTheirTutor(t *testing.T) {
	tutor := "tutor-1"
	ticket := &Ticket{ID: "t1", GuildID: "g", ChannelID: "c", Requester: "student"}

	for _, s := range []OrderStatus{OrderStatusClosed, OrderStatusEscalated} {
		o := NewOrder(ticket)
		o.Status = s
		o.BudgetAmount = decimal.NewFromInt(30)
		o.AssignedTutor = &tutor
		assert.NoError(t, o.Validate(minBudget), s)
	}

	// an intake cancelled below the minimum keeps its budget
	o := NewOrder(ticket)
	o.Status = OrderStatusCancelled
	o.BudgetAmount = decimal.NewFromInt(10)
	assert.NoError(t, o.Validate(minBudget))

	o.AssignedTutor = &tutor
	assert.Error(t, o.Validate(minBudget), "cancelled order with a tutor")
}
