package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/chat/chattest"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

func TestStartCollectsOrder(t *testing.T) {
	f := newFixture(t, time.Second)
	resp := &chattest.Responder{}

	f.p.Script(student, "Assignment", "Calculus, first year", "Friday", "20€", "none")
	order, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, resp)
	require.NoError(t, err)

	stored := f.order(t, order.ID)
	assert.Equal(t, models.OrderStatusPendingIntake, stored.Status)
	assert.Equal(t, "Assignment", stored.Category)
	assert.Equal(t, "Calculus, first year", stored.Subject)
	assert.Equal(t, "22", stored.BudgetAmount.String())
	assert.Equal(t, "€", stored.BudgetUnit)
	assert.False(t, stored.BudgetFlagged)

	ch, ok := f.p.Channel(order.ChannelID)
	require.True(t, ok)
	assert.Equal(t, "order-alice-smith-1", ch.Spec.Name)
	assert.True(t, ch.Members[student])
	assert.Equal(t, "✅ Your ticket has been created: <#"+order.ChannelID+">", resp.Last())

	sent := f.p.SentTo(order.ChannelID)
	last := sent[len(sent)-1].Message
	require.Len(t, last.Buttons, 1)
	assert.Equal(t, "find_tutor:"+order.ID, last.Buttons[0].CustomID)
}

func TestStartTimeoutCancelsOrderAndDeletesChannel(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	_, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, &chattest.Responder{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTimeout, apperrors.KindOf(err))

	orders := f.allOrders(t)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)
	assert.NotNil(t, orders[0].ClosedAt)

	ch, ok := f.p.Channel(orders[0].ChannelID)
	require.True(t, ok)
	assert.True(t, ch.Deleted)

	ticket, err := f.store.Tickets.GetByID(context.Background(), orders[0].TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStateCancelled, ticket.State)
}

func TestStartUnreadableBudgetCancels(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.Script(student, "Quiz", "Biology", "tomorrow", "whatever you think")

	_, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, &chattest.Responder{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	orders := f.allOrders(t)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)
}

func TestStartMissingCategory(t *testing.T) {
	f := newFixture(t, time.Second)
	f.tickets.cfg.OrderCategoryID = "cat-missing"

	_, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, &chattest.Responder{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Empty(t, f.allOrders(t))
}

func TestStartRateLimited(t *testing.T) {
	f := newFixture(t, time.Second)
	f.orders.limiter = denyAll{}

	_, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, &chattest.Responder{})
	assert.Equal(t, apperrors.KindRateLimited, apperrors.KindOf(err))
}

func TestFindTutorBlocksBelowMinimumUntilRevised(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.GiveRole(tutorRole, "t1")
	ctx := context.Background()

	order := f.intakeOrder(t, "15")
	assert.True(t, f.order(t, order.ID).BudgetFlagged)

	_, err := f.orders.FindTutor(ctx, order.ID, student)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, models.OrderStatusPendingIntake, f.order(t, order.ID).Status)
	assert.Empty(t, f.p.SentTo(f.tutorChannel))

	f.p.Script(student, "$30")
	revised, err := f.orders.ReviseBudget(ctx, order.ID, student)
	require.NoError(t, err)
	assert.False(t, revised.BudgetFlagged)
	assert.Equal(t, "30", f.order(t, order.ID).BudgetAmount.String())

	opened, err := f.orders.FindTutor(ctx, order.ID, student)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, opened.Status)
}

func TestFindTutorAcceptsExactMinimum(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.GiveRole(tutorRole, "t1")

	order := f.intakeOrder(t, "$20")

	opened, err := f.orders.FindTutor(context.Background(), order.ID, student)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, opened.Status)
}

func TestFindTutorRequesterOnly(t *testing.T) {
	f := newFixture(t, time.Second)
	order := f.intakeOrder(t, "$25")

	_, err := f.orders.FindTutor(context.Background(), order.ID, "someone-else")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))
	assert.Equal(t, models.OrderStatusPendingIntake, f.order(t, order.ID).Status)
}

func TestFindTutorWithoutAudienceStillOpens(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.SendErr[f.tutorChannel] = assert.AnError
	order := f.intakeOrder(t, "$25")

	_, err := f.orders.FindTutor(context.Background(), order.ID, student)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	// a second press retries the broadcast
	assert.Equal(t, models.OrderStatusOpen, f.order(t, order.ID).Status)
	delete(f.p.SendErr, f.tutorChannel)
	_, err = f.orders.FindTutor(context.Background(), order.ID, student)
	require.NoError(t, err)
	assert.Len(t, f.p.SentTo(f.tutorChannel), 1)
}

func TestReviseBudgetOnlyDuringIntake(t *testing.T) {
	f := newFixture(t, time.Second)
	order := f.openOrder(t)

	_, err := f.orders.ReviseBudget(context.Background(), order.ID, student)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}
