// Package chat describes the chat platform operations the bot depends on.
package chat

import (
	"context"
	"errors"
)

// ErrSuperseded is returned by AwaitMessage when a newer wait for the same
// user and channel took over
var ErrSuperseded = errors.New("superseded by a newer wait")

// ButtonStyle picks a button colour
type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
)

// Embed colours
const (
	ColorBlue  = 0x3498db
	ColorGreen = 0x2ecc71
	ColorGold  = 0xf1c40f
	ColorRed   = 0xe74c3c
)

// Button is a clickable control attached to a message
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// EmbedField is a name/value row in an embed
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Fields      []EmbedField
}

// Message is an outbound message
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Incoming is a message typed by a user
type Incoming struct {
	ID          string
	ChannelID   string
	AuthorID    string
	Content     string
	Attachments []string
}

// Answer returns the first attachment URL when there is one, else the text
func (m Incoming) Answer() string {
	if len(m.Attachments) > 0 {
		return m.Attachments[0]
	}
	return m.Content
}

// ChannelSpec describes a private text channel. Only Members, the bot and
// administrators can see it.
type ChannelSpec struct {
	GuildID    string
	Name       string
	CategoryID string
	Members    []string
}

// Platform is the set of chat operations used by the services
type Platform interface {
	CreatePrivateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	GrantAccess(ctx context.Context, channelID, userID string) error
	Send(ctx context.Context, channelID string, msg Message) (string, error)
	// SendDirect opens (or reuses) a DM channel and returns its id with the message id
	SendDirect(ctx context.Context, userID string, msg Message) (string, string, error)
	EditButtons(ctx context.Context, channelID, messageID string, buttons []Button) error
	// AwaitMessage blocks until userID posts in channelID or ctx ends. It
	// returns ErrSuperseded when another wait for the same pair starts.
	AwaitMessage(ctx context.Context, channelID, userID string) (Incoming, error)
	MembersWithRole(ctx context.Context, guildID, roleID string) ([]string, error)
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	ChannelByName(ctx context.Context, guildID, name string) (string, error)
	CategoryExists(ctx context.Context, guildID, categoryID string) (bool, error)
	EnsureCategory(ctx context.Context, guildID, name string) (string, error)
}

// Mention formats a user mention
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// RoleMention formats a role mention
func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

// ChannelMention formats a channel link
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}
