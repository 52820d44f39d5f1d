package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
)

func openOrder(t *testing.T, s *Store) *models.Order {
	t.Helper()
	ctx := context.Background()

	order := models.NewOrder(&models.Ticket{ID: "t1", GuildID: "g", ChannelID: "chan-1", Requester: "student"})
	require.NoError(t, s.Orders.Create(ctx, order))

	order.BudgetAmount = decimal.NewFromInt(30)
	require.NoError(t, s.Orders.UpdateIntake(ctx, order))

	_, err := s.Orders.Transition(ctx, order.ID,
		[]models.OrderStatus{models.OrderStatusPendingIntake}, models.OrderStatusOpen, nil)
	require.NoError(t, err)

	return order
}

func claim(tutor string) func(*models.Order) {
	return func(o *models.Order) {
		o.AssignedTutor = &tutor
	}
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	order := openOrder(t, s)

	const tutors = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)

	for i := 0; i < tutors; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			_, err := s.Orders.Transition(context.Background(), order.ID,
				[]models.OrderStatus{models.OrderStatusOpen}, models.OrderStatusClaimed, claim(name))

			mu.Lock()
			defer mu.Unlock()

			var conflict *repository.StatusConflictError
			switch {
			case err == nil:
				winners = append(winners, name)
			case assert.ErrorAs(t, err, &conflict):
				conflicts++
			}
		}(fmt.Sprintf("tutor-%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, tutors-1, conflicts)

	stored, err := s.Orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Tutor())
	assert.Equal(t, models.OrderStatusClaimed, stored.Status)
}

func TestTransitionFailureLeavesOrderUnchanged(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	order := openOrder(t, s)

	// claim without a tutor breaks the record invariant
	_, err := s.Orders.Transition(context.Background(), order.ID,
		[]models.OrderStatus{models.OrderStatusOpen}, models.OrderStatusClaimed, nil)
	var invariant *models.InvariantError
	require.ErrorAs(t, err, &invariant)

	stored, err := s.Orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, stored.Status)
	assert.Nil(t, stored.AssignedTutor)
}

func TestBelowMinimumCannotOpen(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	ctx := context.Background()

	order := models.NewOrder(&models.Ticket{ID: "t1", GuildID: "g", ChannelID: "chan-1", Requester: "student"})
	require.NoError(t, s.Orders.Create(ctx, order))

	order.BudgetAmount = decimal.NewFromInt(15)
	order.BudgetFlagged = true
	require.NoError(t, s.Orders.UpdateIntake(ctx, order))

	_, err := s.Orders.Transition(ctx, order.ID,
		[]models.OrderStatus{models.OrderStatusPendingIntake}, models.OrderStatusOpen, nil)
	assert.Error(t, err)

	// cancelling is always possible from intake
	_, err = s.Orders.Transition(ctx, order.ID,
		[]models.OrderStatus{models.OrderStatusPendingIntake}, models.OrderStatusCancelled, nil)
	assert.NoError(t, err)
}

func TestEventsRecordedPerChange(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	ctx := context.Background()
	order := openOrder(t, s)

	steps := []struct {
		from, to models.OrderStatus
		mutate   func(*models.Order)
	}{
		{models.OrderStatusOpen, models.OrderStatusClaimed, claim("tutor-1")},
		{models.OrderStatusClaimed, models.OrderStatusInProgress, nil},
		{models.OrderStatusInProgress, models.OrderStatusDelivered, nil},
	}
	for _, step := range steps {
		_, err := s.Orders.Transition(ctx, order.ID, []models.OrderStatus{step.from}, step.to, step.mutate)
		require.NoError(t, err)
	}

	current, err := s.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)

	reviewed, err := s.Orders.SubmitReview(ctx, models.NewReview(current, 4, "good"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReviewed, reviewed.Status)

	_, err = s.Orders.SubmitReview(ctx, models.NewReview(current, 5, "again"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	var types []string
	for _, m := range s.Outbox.All() {
		types = append(types, m.EventType)
	}
	assert.Equal(t, []string{
		models.EventOrderCreated,
		models.EventOrderStatusChanged, // open
		models.EventOrderStatusChanged, // claimed
		models.EventOrderStatusChanged, // in_progress
		models.EventOrderStatusChanged, // delivered
		models.EventOrderStatusChanged, // reviewed
		models.EventReviewSubmitted,
	}, types)

	review, err := s.Reviews.GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "tutor-1", review.Tutor)
}

func TestUpdateIntakeAfterOpenIsConflict(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	order := openOrder(t, s)

	order.Subject = "changed"
	var conflict *repository.StatusConflictError
	assert.ErrorAs(t, s.Orders.UpdateIntake(context.Background(), order), &conflict)
}

func TestOrderChannelIsUnique(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	ctx := context.Background()

	first := models.NewOrder(&models.Ticket{ID: "t1", ChannelID: "chan-1", Requester: "a"})
	second := models.NewOrder(&models.Ticket{ID: "t2", ChannelID: "chan-1", Requester: "b"})

	require.NoError(t, s.Orders.Create(ctx, first))
	assert.ErrorIs(t, s.Orders.Create(ctx, second), repository.ErrDuplicate)
}

func TestPaymentReuploadClearsVerification(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	ctx := context.Background()

	require.NoError(t, s.Submissions.UpsertPayment(ctx, &models.Payment{Student: "student", Proof: "tx-1"}))
	verified, err := s.Submissions.VerifyPayment(ctx, "student", "admin")
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	require.NoError(t, s.Submissions.UpsertPayment(ctx, &models.Payment{Student: "student", Proof: "tx-2"}))
	p, err := s.Submissions.GetPayment(ctx, "student")
	require.NoError(t, err)
	assert.False(t, p.Verified)
	assert.Equal(t, "tx-2", p.Proof)

	_, err = s.Submissions.VerifyPayment(ctx, "nobody", "admin")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeadLetterLifecycle(t *testing.T) {
	s := New(decimal.NewFromInt(20))
	ctx := context.Background()

	msg := &models.OutboxMessage{ID: 3, AggregateType: "order", AggregateID: "1", EventType: models.EventOrderCreated}
	dl := models.NewDeadLetterMessage(msg, "broker down", "max retries")
	require.NoError(t, s.DeadLetters.Create(ctx, dl))

	pending, err := s.DeadLetters.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.DeadLetters.MarkAsDiscarded(ctx, dl.ID, "manual"))
	require.NoError(t, s.DeadLetters.ResetToPending(ctx, dl.ID))
	require.NoError(t, s.DeadLetters.MarkAsResolved(ctx, dl.ID))
	assert.ErrorIs(t, s.DeadLetters.ResetToPending(ctx, dl.ID), repository.ErrNotFound)

	got, err := s.DeadLetters.GetMessage(ctx, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusResolved, got.Status)
	assert.Contains(t, got.FailureReason, "Discarded: manual")
}
