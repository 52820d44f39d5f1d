package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
)

var errAlreadyAnswered = errors.New("interaction already answered")

// Discord allows at most five buttons per action row
const buttonsPerRow = 5

func toButtonStyle(s chat.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case chat.StyleSecondary:
		return discordgo.SecondaryButton
	case chat.StyleSuccess:
		return discordgo.SuccessButton
	case chat.StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

func toComponents(buttons []chat.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent

	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := start + buttonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}

		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    toButtonStyle(b.Style),
				CustomID: b.CustomID,
				Disabled: b.Disabled,
			})
		}
		rows = append(rows, row)
	}

	return rows
}

func toEmbed(e *chat.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}

	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}

	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	return embed
}

func toMessageSend(msg chat.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Buttons),
	}

	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}

	return send
}

func toModal(m chat.Modal) *discordgo.InteractionResponseData {
	var rows []discordgo.MessageComponent

	for _, in := range m.Inputs {
		style := discordgo.TextInputShort
		if in.Paragraph {
			style = discordgo.TextInputParagraph
		}

		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.CustomID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Required:    in.Required,
				MinLength:   in.MinLength,
				MaxLength:   in.MaxLength,
			},
		}})
	}

	return &discordgo.InteractionResponseData{
		CustomID:   m.CustomID,
		Title:      m.Title,
		Components: rows,
	}
}

// toInteraction converts a button press or modal submission. Other
// interaction types are ignored.
func toInteraction(i *discordgo.Interaction) (chat.Interaction, bool) {
	in := chat.Interaction{
		ID:        i.ID,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		in.UserID = i.Member.User.ID
		in.UserName = i.Member.User.Username
	case i.User != nil:
		in.UserID = i.User.ID
		in.UserName = i.User.Username
	default:
		return chat.Interaction{}, false
	}

	if i.Message != nil {
		in.MessageID = i.Message.ID
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		in.Kind = chat.InteractionButton
		in.CustomID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		in.Kind = chat.InteractionModal
		in.CustomID = data.CustomID
		in.Fields = modalFields(data.Components)
	default:
		return chat.Interaction{}, false
	}

	return in, true
}

func modalFields(components []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)

	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				fields[input.CustomID] = input.Value
			}
		}
	}

	return fields
}

func toIncoming(m *discordgo.Message) chat.Incoming {
	in := chat.Incoming{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}

	if m.Author != nil {
		in.AuthorID = m.Author.ID
	}

	for _, a := range m.Attachments {
		in.Attachments = append(in.Attachments, a.URL)
	}

	return in
}
