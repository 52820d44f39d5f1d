package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

func TestTutorOnlyTransitions(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.openOrder(t)

	_, _, err := f.matching.Claim(ctx, order.ID, "t1")
	require.NoError(t, err)

	for _, actor := range []string{"t2", student} {
		_, err = f.progress.StartWork(ctx, order.ID, actor, "")
		assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err), actor)
	}
	assert.Equal(t, models.OrderStatusClaimed, f.order(t, order.ID).Status)

	// delivering before starting is out of order
	_, err = f.progress.Deliver(ctx, order.ID, "t1", "")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = f.progress.StartWork(ctx, order.ID, "t1", "msg-controls")
	require.NoError(t, err)
	buttons, ok := f.p.Edits("msg-controls")
	require.True(t, ok)
	assert.True(t, buttons[0].Disabled)
	assert.False(t, buttons[1].Disabled)

	_, err = f.progress.Deliver(ctx, order.ID, student, "")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))
	assert.Equal(t, models.OrderStatusInProgress, f.order(t, order.ID).Status)

	delivered, err := f.progress.Deliver(ctx, order.ID, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	sent := f.p.SentTo(order.ChannelID)
	last := sent[len(sent)-1].Message
	assert.Contains(t, last.Content, "your order has been submitted")
	require.Len(t, last.Buttons, 3)
}

func TestRequesterOnlyTransitions(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	_, err := f.progress.Close(ctx, order.ID, "t1")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))

	_, err = f.progress.SubmitReview(ctx, order.ID, "t1", "5", "great")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))

	_, err = f.progress.Escalate(ctx, order.ID, "t2", "bad")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))

	_, err = f.progress.RequestReview(ctx, order.ID, "t1")
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))

	assert.Equal(t, models.OrderStatusDelivered, f.order(t, order.ID).Status)
}

func TestSubmitReviewValidatesRating(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	for _, bad := range []string{"0", "6", "five", "4.5", ""} {
		_, err := f.progress.SubmitReview(ctx, order.ID, student, bad, "fine")
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), bad)
	}
	assert.Equal(t, models.OrderStatusDelivered, f.order(t, order.ID).Status)

	modal, err := f.progress.RequestReview(ctx, order.ID, student)
	require.NoError(t, err)
	assert.Equal(t, "review_submit:"+order.ID, modal.CustomID)

	review, err := f.progress.SubmitReview(ctx, order.ID, student, " 4 ", "Clear explanations")
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "t1", review.Tutor)

	stored := f.order(t, order.ID)
	assert.Equal(t, models.OrderStatusReviewed, stored.Status)
	assert.Equal(t, "t1", stored.Tutor())

	published := f.p.SentTo(f.reviewChannel)
	require.Len(t, published, 1)
	assert.Contains(t, published[0].Message.Embed.Description, "⭐⭐⭐⭐ (4/5)")

	ch, _ := f.p.Channel(order.ChannelID)
	assert.True(t, ch.Deleted)

	saved, err := f.store.Reviews.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clear explanations", saved.Text)

	// a second submission finds the order already reviewed
	_, err = f.progress.SubmitReview(ctx, order.ID, student, "5", "again")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestCloseCompletesTicket(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	closed, err := f.progress.Close(ctx, order.ID, student)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)

	ticket, err := f.store.Tickets.GetByID(ctx, order.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStateCompleted, ticket.State)

	_, err = f.progress.Close(ctx, order.ID, student)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestCloseKeepsChannelWhenConfigured(t *testing.T) {
	f := newFixture(t, time.Second)
	f.tickets.cfg.DeleteOnComplete = false
	order := f.deliveredOrder(t)

	_, err := f.progress.Close(context.Background(), order.ID, student)
	require.NoError(t, err)

	ch, _ := f.p.Channel(order.ChannelID)
	assert.False(t, ch.Deleted)
}

func TestEscalateNotifiesAdmins(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	escalated, err := f.progress.Escalate(ctx, order.ID, student, "Work was incomplete")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusEscalated, escalated.Status)
	assert.Equal(t, "t1", escalated.Tutor())

	alerts := f.p.SentTo(f.adminChannel)
	require.Len(t, alerts, 1)
	assert.Equal(t, "<@&"+adminRole+">", alerts[0].Message.Content)
	assert.Contains(t, alerts[0].Message.Embed.Description, "Work was incomplete")

	ch, _ := f.p.Channel(order.ChannelID)
	assert.False(t, ch.Deleted)

	_, err = f.progress.Close(ctx, order.ID, student)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestStatusNeverMovesBackward(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	_, err := f.progress.StartWork(ctx, order.ID, "t1", "")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	res, _, err := f.matching.Claim(ctx, order.ID, "t2")
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyClaimed, res)

	assert.Equal(t, models.OrderStatusDelivered, f.order(t, order.ID).Status)
}
