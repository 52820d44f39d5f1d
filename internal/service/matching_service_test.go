package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

func TestBroadcastReachesChannelAndTutors(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.CloseDMs("t2")
	order := f.openOrder(t)

	shared := f.p.SentTo(f.tutorChannel)
	require.Len(t, shared, 1)
	assert.Equal(t, "<@&"+tutorRole+">", shared[0].Message.Content)
	assert.Equal(t, "📌 New Order Alert!", shared[0].Message.Embed.Title)
	assert.Contains(t, shared[0].Message.Embed.Description, "$25.00")
	assert.Equal(t, "claim:"+order.ID, shared[0].Message.Buttons[0].CustomID)

	assert.Len(t, f.p.SentTo("dm-t1"), 1)
	assert.Empty(t, f.p.SentTo("dm-t2"))

	copies, err := f.store.Broadcasts.ListCopies(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, copies, 2)
}

func TestClaimExactlyOnceAcrossCopies(t *testing.T) {
	f := newFixture(t, time.Second)
	tutors := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}
	f.p.GiveRole(tutorRole, tutors...)
	order := f.openOrder(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		lost    int
	)

	for _, tutor := range tutors {
		wg.Add(1)
		go func(tutor string) {
			defer wg.Done()

			res, _, err := f.matching.Claim(context.Background(), order.ID, tutor)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			if res == ClaimAccepted {
				winners = append(winners, tutor)
			} else {
				lost++
			}
		}(tutor)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, len(tutors)-1, lost)

	stored := f.order(t, order.ID)
	assert.Equal(t, models.OrderStatusClaimed, stored.Status)
	assert.Equal(t, winners[0], stored.Tutor())

	ch, _ := f.p.Channel(order.ChannelID)
	assert.True(t, ch.Members[winners[0]])
	for _, tutor := range tutors {
		if tutor != winners[0] {
			assert.False(t, ch.Members[tutor], tutor)
		}
	}

	copies, err := f.store.Broadcasts.ListCopies(context.Background(), order.ID)
	require.NoError(t, err)
	for _, c := range copies {
		buttons, ok := f.p.Edits(c.MessageID)
		require.True(t, ok, c.ChannelID)
		assert.True(t, buttons[0].Disabled)
	}
}

func TestClaimRequiresTutorRole(t *testing.T) {
	f := newFixture(t, time.Second)
	order := f.openOrder(t)

	_, _, err := f.matching.Claim(context.Background(), order.ID, student)
	assert.Equal(t, apperrors.KindPermission, apperrors.KindOf(err))
	assert.Equal(t, models.OrderStatusOpen, f.order(t, order.ID).Status)
}

func TestClaimBeforeOpenIsAlreadyClaimed(t *testing.T) {
	f := newFixture(t, time.Second)
	f.p.GiveRole(tutorRole, "t1")
	order := f.intakeOrder(t, "$25")

	res, claimed, err := f.matching.Claim(context.Background(), order.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAlreadyClaimed, res)
	assert.Nil(t, claimed)
}

func TestRejectLeavesOrderOpen(t *testing.T) {
	f := newFixture(t, time.Second)
	order := f.openOrder(t)

	msg := f.matching.Reject(context.Background(), order.ID, "t1")
	assert.Contains(t, msg, "remains open")
	assert.Equal(t, models.OrderStatusOpen, f.order(t, order.ID).Status)

	res, _, err := f.matching.Claim(context.Background(), order.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAccepted, res)
}
