package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

func restError(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.Kind
		temp bool
	}{
		{"forbidden", restError(http.StatusForbidden), apperrors.KindPermission, false},
		{"not found", restError(http.StatusNotFound), apperrors.KindNotFound, false},
		{"rate limited", restError(http.StatusTooManyRequests), apperrors.KindRateLimited, true},
		{"server error", restError(http.StatusBadGateway), apperrors.KindIntegration, true},
		{"bad request", restError(http.StatusBadRequest), apperrors.KindIntegration, false},
		{"breaker open", circuitbreaker.ErrOpen, apperrors.KindIntegration, true},
		{"deadline", context.DeadlineExceeded, apperrors.KindTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("send", tt.err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.Equal(t, tt.temp, apperrors.IsRetryable(err))
			assert.ErrorIs(t, err, tt.err)

			_, ok := apperrors.UserMessage(err)
			assert.True(t, ok)
		})
	}

	assert.NoError(t, classify("send", nil))
}

func TestTripsBreaker(t *testing.T) {
	assert.False(t, tripsBreaker(classify("x", restError(http.StatusForbidden))))
	assert.False(t, tripsBreaker(classify("x", restError(http.StatusNotFound))))
	assert.False(t, tripsBreaker(classify("x", restError(http.StatusBadRequest))))
	assert.True(t, tripsBreaker(classify("x", restError(http.StatusServiceUnavailable))))
	assert.True(t, tripsBreaker(classify("x", restError(http.StatusTooManyRequests))))
}

func TestWaitersDeliverToLatest(t *testing.T) {
	w := newWaiters()

	first, releaseFirst := w.register("c1", "u1")
	second, releaseSecond := w.register("c1", "u1")
	defer releaseSecond()

	// releasing the replaced waiter must not drop the newer one
	releaseFirst()
	assert.Equal(t, 1, w.len())

	assert.False(t, w.deliver(chat.Incoming{ChannelID: "c1", AuthorID: "u2", Content: "other user"}))
	assert.False(t, w.deliver(chat.Incoming{ChannelID: "c2", AuthorID: "u1", Content: "other channel"}))
	require.True(t, w.deliver(chat.Incoming{ChannelID: "c1", AuthorID: "u1", Content: "hello"}))

	select {
	case msg := <-second.ch:
		assert.Equal(t, "hello", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	assert.Empty(t, first.ch)
	assert.Equal(t, 0, w.len())
	assert.False(t, w.deliver(chat.Incoming{ChannelID: "c1", AuthorID: "u1", Content: "late"}))
}

func TestNewerWaitSupersedesOlder(t *testing.T) {
	c := &Client{waiters: newWaiters()}

	errc := make(chan error, 1)
	go func() {
		_, err := c.AwaitMessage(context.Background(), "c1", "u1")
		errc <- err
	}()

	require.Eventually(t, func() bool { return c.waiters.len() == 1 }, time.Second, time.Millisecond)

	newer, release := c.waiters.register("c1", "u1")
	defer release()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, chat.ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("replaced wait kept blocking")
	}

	// the replaced wait must not unregister the newer one
	assert.Equal(t, 1, c.waiters.len())
	require.True(t, c.waiters.deliver(chat.Incoming{ChannelID: "c1", AuthorID: "u1", Content: "$40"}))
	assert.Equal(t, "$40", (<-newer.ch).Content)
}

func TestWaitDrainsRunningHandlers(t *testing.T) {
	c := &Client{waiters: newWaiters()}
	require.True(t, c.handlers.enter())

	finished := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(finished)
		c.handlers.leave()
	}()

	require.NoError(t, c.Wait(context.Background()))

	select {
	case <-finished:
	default:
		t.Fatal("Wait returned before the handler finished")
	}

	assert.False(t, c.handlers.enter(), "no handler starts once shutdown began")
}

func TestWaitGivesUpAtDeadline(t *testing.T) {
	c := &Client{waiters: newWaiters()}
	require.True(t, c.handlers.enter())
	defer c.handlers.leave()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

func TestAwaitMessageHonoursContext(t *testing.T) {
	c := &Client{waiters: newWaiters()}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.AwaitMessage(ctx, "c1", "u1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, c.waiters.len())
}

func TestAwaitMessageReceives(t *testing.T) {
	c := &Client{waiters: newWaiters()}

	go func() {
		for c.waiters.len() == 0 {
			time.Sleep(time.Millisecond)
		}
		c.waiters.deliver(chat.Incoming{ChannelID: "c1", AuthorID: "u1", Attachments: []string{"https://cdn/x.png"}})
	}()

	msg, err := c.AwaitMessage(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", msg.Answer())
}

func TestToComponentsSplitsRows(t *testing.T) {
	buttons := make([]chat.Button, 7)
	for i := range buttons {
		buttons[i] = chat.Button{CustomID: "b", Label: "B", Style: chat.StyleDanger, Disabled: i == 6}
	}

	rows := toComponents(buttons)
	require.Len(t, rows, 2)

	first := rows[0].(discordgo.ActionsRow)
	second := rows[1].(discordgo.ActionsRow)
	assert.Len(t, first.Components, 5)
	require.Len(t, second.Components, 2)

	last := second.Components[1].(discordgo.Button)
	assert.True(t, last.Disabled)
	assert.Equal(t, discordgo.DangerButton, last.Style)

	assert.Nil(t, toComponents(nil))
}

func TestToMessageSend(t *testing.T) {
	send := toMessageSend(chat.Message{
		Content: "hi",
		Embed:   &chat.Embed{Title: "T", Footer: "F", Fields: []chat.EmbedField{{Name: "n", Value: "v"}}},
	})

	assert.Equal(t, "hi", send.Content)
	require.Len(t, send.Embeds, 1)
	assert.Equal(t, "F", send.Embeds[0].Footer.Text)
	assert.Len(t, send.Embeds[0].Fields, 1)
}

func TestModalFields(t *testing.T) {
	fields := modalFields([]discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "rating", Value: "5"},
		}},
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "review", Value: "Great"},
		}},
	})

	assert.Equal(t, map[string]string{"rating": "5", "review": "Great"}, fields)
}

func TestToInteractionButton(t *testing.T) {
	in, ok := toInteraction(&discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
		Message:   &discordgo.Message{ID: "m1"},
		Data:      discordgo.MessageComponentInteractionData{CustomID: "claim:42"},
	})
	require.True(t, ok)

	action, arg := in.Action()
	assert.Equal(t, "claim", action)
	assert.Equal(t, "42", arg)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "m1", in.MessageID)

	_, ok = toInteraction(&discordgo.Interaction{Type: discordgo.InteractionPing, User: &discordgo.User{ID: "u1"}})
	assert.False(t, ok)
}
