package chat

import (
	"context"
	"strings"
)

// InteractionKind distinguishes button presses from modal submissions
type InteractionKind int

const (
	InteractionButton InteractionKind = iota
	InteractionModal
)

// Interaction is a button press or a modal submission
type Interaction struct {
	ID        string
	Kind      InteractionKind
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	UserName  string
	CustomID  string
	Fields    map[string]string
}

// Action splits CustomID into its action and argument, e.g. "claim:123"
func (i Interaction) Action() (string, string) {
	return SplitCustomID(i.CustomID)
}

// Responder answers one interaction
type Responder interface {
	// Reply sends a message only the interacting user can see
	Reply(ctx context.Context, content string) error
	ShowModal(ctx context.Context, modal Modal) error
}

// Modal is a pop-up form
type Modal struct {
	CustomID string
	Title    string
	Inputs   []TextInput
}

// TextInput is one field of a modal
type TextInput struct {
	CustomID    string
	Label       string
	Placeholder string
	Paragraph   bool
	Required    bool
	MinLength   int
	MaxLength   int
}

// Command is a prefix command typed in a channel, e.g. "!verify-payment 123"
type Command struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Name       string
	Args       []string
	IsAdmin    bool
}

// CustomID joins an action and its argument
func CustomID(action, arg string) string {
	if arg == "" {
		return action
	}
	return action + ":" + arg
}

// SplitCustomID is the inverse of CustomID
func SplitCustomID(id string) (string, string) {
	action, arg, _ := strings.Cut(id, ":")
	return action, arg
}

// ParseCommand splits content into a Command when it starts with prefix
func ParseCommand(prefix, content string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}
