package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/chat/chattest"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

func TestBeatPostsToNamedChannel(t *testing.T) {
	platform := chattest.New()
	id := platform.AddTextChannel("bot-status")
	h := NewHeartbeat(platform, "guild", "bot-status", time.Minute, logger.NewNop())

	require.NoError(t, h.Beat(context.Background()))
	require.NoError(t, h.Beat(context.Background()))

	sent := platform.SentTo(id)
	require.Len(t, sent, 2)
	assert.Equal(t, HeartbeatMessage, sent[0].Message.Content)
}

func TestBeatMissingChannel(t *testing.T) {
	h := NewHeartbeat(chattest.New(), "guild", "bot-status", time.Minute, logger.NewNop())

	assert.Error(t, h.Beat(context.Background()))
}

func TestBeatSendFailure(t *testing.T) {
	platform := chattest.New()
	id := platform.AddTextChannel("bot-status")
	platform.SendErr = map[string]error{id: errors.New("missing access")}
	h := NewHeartbeat(platform, "guild", "bot-status", time.Minute, logger.NewNop())

	assert.Error(t, h.Beat(context.Background()))
	assert.Empty(t, h.channelID)
}

func TestStartTicks(t *testing.T) {
	platform := chattest.New()
	id := platform.AddTextChannel("bot-status")
	h := NewHeartbeat(platform, "guild", "bot-status", 10*time.Millisecond, logger.NewNop())

	h.Start()
	assert.Eventually(t, func() bool { return len(platform.SentTo(id)) >= 2 }, time.Second, 5*time.Millisecond)
	h.Stop()
}

func TestStartDisabledWithoutChannel(t *testing.T) {
	platform := chattest.New()
	h := NewHeartbeat(platform, "guild", "", 10*time.Millisecond, logger.NewNop())

	h.Start()
	time.Sleep(30 * time.Millisecond)
	h.Stop()

	assert.Empty(t, platform.AllSent())
}
