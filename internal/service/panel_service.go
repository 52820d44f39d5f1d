package service

import (
	"context"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const panelDescription = "Looking for expert tutoring or assignment help? We've got you covered!\n\n" +
	"📌 **Order Here:** Click below to request help.\n" +
	"🎓 **Become a Tutor:** Want to join our team? Sign up!\n" +
	"🚨 **Report an Issue:** Have a problem? Let us know."

// PanelService posts the entry panel with the three ticket buttons
type PanelService struct {
	platform chat.Platform
	guildID  string
	logger   logger.Logger
}

// NewPanelService creates a new PanelService
func NewPanelService(platform chat.Platform, guildID string, logger logger.Logger) *PanelService {
	return &PanelService{platform: platform, guildID: guildID, logger: logger}
}

// Post sends the panel to the named channel and returns the message id
func (s *PanelService) Post(ctx context.Context, channelName string) (string, error) {
	channelID, err := s.platform.ChannelByName(ctx, s.guildID, channelName)

	if err != nil {
		s.logger.Warn("Panel channel not found", "error", err, "channel", channelName)
		return "", platformError(err)
	}

	messageID, err := s.platform.Send(ctx, channelID, chat.Message{
		Embed: &chat.Embed{
			Title:       "HIRE A TUTOR",
			Description: panelDescription,
			Color:       chat.ColorBlue,
		},
		Buttons: panelButtons(),
	})

	if err != nil {
		return "", platformError(err)
	}

	s.logger.Info("Panel posted", "channel", channelName, "messageID", messageID)
	return messageID, nil
}
