// Package discord implements chat.Platform on top of discordgo.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/retry"
)

const (
	// ticketPermissions is what the requester and the claiming tutor get
	ticketPermissions = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAttachFiles |
		discordgo.PermissionEmbedLinks

	membersPageSize = 1000
)

// Client is a chat.Platform backed by one Discord bot session
type Client struct {
	session     *discordgo.Session
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
	waiters     *waiters
	handlers    inflight
	logger      logger.Logger
}

var _ chat.Platform = (*Client)(nil)

// NewClient creates a client for token; call Open to connect the gateway
func NewClient(token string, breaker *circuitbreaker.CircuitBreaker, logger logger.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)

	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Client{
		session: session,
		breaker: breaker,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     3,
			BackoffStrategy: retry.NewChatBackoff(),
			Logger:          logger,
			ShouldRetry:     apperrors.IsRetryable,
		},
		waiters: newWaiters(),
		logger:  logger,
	}, nil
}

// Session exposes the underlying session for event registration
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Breaker returns the circuit breaker guarding REST calls
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Wait blocks until every running event handler has returned, so intakes
// cancelled by shutdown can finish their cleanup. Events arriving after
// Wait is called are dropped.
func (c *Client) Wait(ctx context.Context) error {
	return c.handlers.wait(ctx)
}

// Open connects to the gateway
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway
func (c *Client) Close() error {
	return c.session.Close()
}

// call runs one REST operation through the breaker, retrying temporary failures
func (c *Client) call(ctx context.Context, op string, fn func(opts ...discordgo.RequestOption) error) error {
	start := time.Now()

	err := retry.Retry(ctx, func() error {
		return c.breaker.Execute(func() error {
			return classify(op, fn(discordgo.WithContext(ctx)))
		}, tripsBreaker)
	}, c.retryConfig)

	if err != nil {
		c.logger.Debug("Discord call failed", "op", op, "error", err, "elapsed", time.Since(start))
		if _, ok := apperrors.UserMessage(err); !ok {
			// breaker refusals arrive unclassified
			return classify(op, err)
		}
	}
	return err
}

func (c *Client) CreatePrivateChannel(ctx context.Context, spec chat.ChannelSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// @everyone shares the guild id
		{ID: spec.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
	}

	if c.session.State != nil && c.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: c.session.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketPermissions,
		})
	}

	for _, m := range spec.Members {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: m, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketPermissions,
		})
	}

	var channel *discordgo.Channel
	err := c.call(ctx, "create_channel", func(opts ...discordgo.RequestOption) error {
		var err error
		channel, err = c.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
			Name:                 spec.Name,
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             spec.CategoryID,
			PermissionOverwrites: overwrites,
		}, opts...)
		return err
	})

	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.call(ctx, "delete_channel", func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ChannelDelete(channelID, opts...)
		return err
	})
}

func (c *Client) GrantAccess(ctx context.Context, channelID, userID string) error {
	return c.call(ctx, "grant_access", func(opts ...discordgo.RequestOption) error {
		return c.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, ticketPermissions, 0, opts...)
	})
}

func (c *Client) Send(ctx context.Context, channelID string, msg chat.Message) (string, error) {
	var sent *discordgo.Message

	err := c.call(ctx, "send", func(opts ...discordgo.RequestOption) error {
		var err error
		sent, err = c.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), opts...)
		return err
	})

	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (c *Client) SendDirect(ctx context.Context, userID string, msg chat.Message) (string, string, error) {
	var dm *discordgo.Channel

	err := c.call(ctx, "open_dm", func(opts ...discordgo.RequestOption) error {
		var err error
		dm, err = c.session.UserChannelCreate(userID, opts...)
		return err
	})

	if err != nil {
		return "", "", err
	}

	messageID, err := c.Send(ctx, dm.ID, msg)
	if err != nil {
		return "", "", err
	}
	return dm.ID, messageID, nil
}

func (c *Client) EditButtons(ctx context.Context, channelID, messageID string, buttons []chat.Button) error {
	components := toComponents(buttons)

	return c.call(ctx, "edit_buttons", func(opts ...discordgo.RequestOption) error {
		_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         messageID,
			Channel:    channelID,
			Components: &components,
		}, opts...)
		return err
	})
}

// AwaitMessage waits for the next message userID posts in channelID
func (c *Client) AwaitMessage(ctx context.Context, channelID, userID string) (chat.Incoming, error) {
	w, release := c.waiters.register(channelID, userID)
	defer release()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-w.superseded:
		return chat.Incoming{}, chat.ErrSuperseded
	case <-ctx.Done():
		return chat.Incoming{}, ctx.Err()
	}
}

func (c *Client) MembersWithRole(ctx context.Context, guildID, roleID string) ([]string, error) {
	var out []string
	after := ""

	for {
		var page []*discordgo.Member

		err := c.call(ctx, "list_members", func(opts ...discordgo.RequestOption) error {
			var err error
			page, err = c.session.GuildMembers(guildID, after, membersPageSize, opts...)
			return err
		})

		if err != nil {
			return nil, err
		}

		for _, m := range page {
			if m.User == nil || m.User.Bot {
				continue
			}
			if hasRole(m, roleID) {
				out = append(out, m.User.ID)
			}
		}

		if len(page) < membersPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (c *Client) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	var member *discordgo.Member

	err := c.call(ctx, "get_member", func(opts ...discordgo.RequestOption) error {
		var err error
		member, err = c.session.GuildMember(guildID, userID, opts...)
		return err
	})

	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return hasRole(member, roleID), nil
}

// IsAdmin reports whether userID holds the Administrator permission in channelID
func (c *Client) IsAdmin(userID, channelID string) bool {
	perms, err := c.session.UserChannelPermissions(userID, channelID)

	if err != nil {
		c.logger.Debug("Failed to resolve permissions", "error", err, "userID", userID, "channelID", channelID)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (c *Client) ChannelByName(ctx context.Context, guildID, name string) (string, error) {
	channels, err := c.channels(ctx, guildID)
	if err != nil {
		return "", err
	}

	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("❌ Channel #%s was not found.", name))
}

func (c *Client) CategoryExists(ctx context.Context, guildID, categoryID string) (bool, error) {
	channels, err := c.channels(ctx, guildID)
	if err != nil {
		return false, err
	}

	for _, ch := range channels {
		if ch.ID == categoryID && ch.Type == discordgo.ChannelTypeGuildCategory {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) EnsureCategory(ctx context.Context, guildID, name string) (string, error) {
	channels, err := c.channels(ctx, guildID)
	if err != nil {
		return "", err
	}

	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == name {
			return ch.ID, nil
		}
	}

	var created *discordgo.Channel
	err = c.call(ctx, "create_category", func(opts ...discordgo.RequestOption) error {
		var err error
		created, err = c.session.GuildChannelCreate(guildID, name, discordgo.ChannelTypeGuildCategory, opts...)
		return err
	})

	if err != nil {
		return "", err
	}

	c.logger.Info("Category created", "name", name, "categoryID", created.ID)
	return created.ID, nil
}

func (c *Client) channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	var channels []*discordgo.Channel

	err := c.call(ctx, "list_channels", func(opts ...discordgo.RequestOption) error {
		var err error
		channels, err = c.session.GuildChannels(guildID, opts...)
		return err
	})
	return channels, err
}

func hasRole(m *discordgo.Member, roleID string) bool {
	if m == nil {
		return false
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}
