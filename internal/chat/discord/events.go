package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// Handler receives the gateway events the bot reacts to
type Handler interface {
	HandleReady(ctx context.Context)
	HandleInteraction(ctx context.Context, in chat.Interaction, resp chat.Responder)
	HandleCommand(ctx context.Context, cmd chat.Command)
}

// Listen wires h to the session. Every handler call gets a context derived
// from ctx, so cancelling ctx aborts in-flight intakes; Wait lets their
// cleanup finish.
func (c *Client) Listen(ctx context.Context, prefix string, h Handler) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if !c.handlers.enter() {
			return
		}
		defer c.handlers.leave()

		c.logger.Info("Discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
		h.HandleReady(ctx)
	})

	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if !c.handlers.enter() {
			return
		}
		defer c.handlers.leave()

		in, ok := toInteraction(ic.Interaction)
		if !ok {
			return
		}
		h.HandleInteraction(ctx, in, &responder{session: s, interaction: ic.Interaction, logger: c.logger})
	})

	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}

		if !c.handlers.enter() {
			return
		}
		defer c.handlers.leave()

		if c.waiters.deliver(toIncoming(m.Message)) {
			return
		}

		cmd, ok := chat.ParseCommand(prefix, m.Content)
		if !ok {
			return
		}

		cmd.GuildID = m.GuildID
		cmd.ChannelID = m.ChannelID
		cmd.AuthorID = m.Author.ID
		cmd.AuthorName = m.Author.Username
		cmd.IsAdmin = m.GuildID != "" && c.IsAdmin(m.Author.ID, m.ChannelID)

		h.HandleCommand(ctx, cmd)
	})
}

// responder answers one interaction. The first reply acknowledges the
// interaction; later replies are ephemeral follow-ups.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	logger      logger.Logger

	mu           sync.Mutex
	acknowledged bool
}

func (r *responder) Reply(ctx context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acknowledged {
		err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}, discordgo.WithContext(ctx))

		if err != nil {
			return classify("interaction_respond", err)
		}
		r.acknowledged = true
		return nil
	}

	_, err := r.session.FollowupMessageCreate(r.interaction, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx))

	return classify("interaction_followup", err)
}

func (r *responder) ShowModal(ctx context.Context, modal chat.Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acknowledged {
		r.logger.Warn("Modal requested after the interaction was answered", "customID", modal.CustomID)
		return classify("interaction_modal", errAlreadyAnswered)
	}

	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: toModal(modal),
	}, discordgo.WithContext(ctx))

	if err != nil {
		return classify("interaction_modal", err)
	}
	r.acknowledged = true
	return nil
}
