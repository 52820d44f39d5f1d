// Package health posts a periodic liveness message to a chat channel.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// HeartbeatMessage is posted on every tick
const HeartbeatMessage = "🟢 Bot is alive and running!"

// Heartbeat posts HeartbeatMessage to a named channel every interval
type Heartbeat struct {
	platform chat.Platform
	guildID  string
	channel  string
	interval time.Duration
	logger   logger.Logger

	channelID string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewHeartbeat creates a heartbeat. Start is a no-op when channel is empty
// or interval is not positive.
func NewHeartbeat(platform chat.Platform, guildID, channel string, interval time.Duration, logger logger.Logger) *Heartbeat {
	ctx, cancel := context.WithCancel(context.Background())

	return &Heartbeat{
		platform: platform,
		guildID:  guildID,
		channel:  channel,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins posting in the background
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running || h.channel == "" || h.interval <= 0 {
		return
	}

	h.running = true
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		h.loop()
	}()

	h.logger.Info("Heartbeat started", "channel", h.channel, "interval", h.interval)
}

// Stop stops posting and waits for an in-flight post
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}

	h.cancel()
	h.wg.Wait()
	h.running = false
}

func (h *Heartbeat) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if err := h.Beat(h.ctx); err != nil {
				h.logger.Warn("Heartbeat failed", "error", err, "channel", h.channel)
			}
		}
	}
}

// Beat posts one heartbeat. The channel id is looked up on first use and
// again after a failed send, in case the channel was recreated.
func (h *Heartbeat) Beat(ctx context.Context) error {
	if h.channelID == "" {
		id, err := h.platform.ChannelByName(ctx, h.guildID, h.channel)

		if err != nil {
			return err
		}
		h.channelID = id
	}

	if _, err := h.platform.Send(ctx, h.channelID, chat.Message{Content: HeartbeatMessage}); err != nil {
		h.channelID = ""
		return err
	}

	return nil
}
