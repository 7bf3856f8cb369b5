package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/h1v3-io/modcogs/internal/connector"
)

func toEmbed(e *connector.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

var buttonStyles = map[connector.ButtonStyle]discordgo.ButtonStyle{
	connector.ButtonPrimary:   discordgo.PrimaryButton,
	connector.ButtonSecondary: discordgo.SecondaryButton,
	connector.ButtonSuccess:   discordgo.SuccessButton,
	connector.ButtonDanger:    discordgo.DangerButton,
}

// toComponents lays buttons out five per row, followed by the select.
// The result is never nil so an edit clears old components.
func toComponents(buttons []connector.Button, sel *connector.Select) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row []discordgo.MessageComponent
	for _, b := range buttons {
		btn := discordgo.Button{
			Label:    b.Label,
			Style:    buttonStyles[b.Style],
			CustomID: b.ID,
		}
		if b.Emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
		}
		row = append(row, btn)
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}

	if sel != nil {
		minValues := 1
		menu := discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    sel.ID,
			Placeholder: sel.Placeholder,
			MinValues:   &minValues,
			MaxValues:   1,
		}
		for _, o := range sel.Options {
			menu.Options = append(menu.Options, discordgo.SelectMenuOption{
				Label:       o.Label,
				Value:       o.Value,
				Description: o.Description,
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}
	return rows
}

func toModalComponents(inputs []connector.TextInput) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(inputs))
	for _, in := range inputs {
		style := discordgo.TextInputShort
		if in.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.ID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Value:       in.Value,
				Required:    in.Required,
				MaxLength:   in.MaxLength,
			},
		}})
	}
	return rows
}

func toInbound(m *discordgo.Message) connector.InboundMessage {
	in := connector.InboundMessage{
		Channel:   "discord",
		SenderID:  m.Author.ID,
		SenderBot: m.Author.Bot,
		ChatID:    m.ChannelID,
		GuildID:   m.GuildID,
		MessageID: m.ID,
		Content:   m.Content,
		Direct:    m.GuildID == "",
	}
	in.SenderName = displayName(m.Author, m.Member)
	if m.Member != nil {
		in.SenderRoles = m.Member.Roles
	}
	return in
}

func displayName(u *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// toInteraction converts component and modal interactions; other types are
// reported as not handled.
func toInteraction(i *discordgo.Interaction) (connector.Interaction, bool) {
	in := connector.Interaction{
		ChatID:  i.ChannelID,
		GuildID: i.GuildID,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		in.SenderID = i.Member.User.ID
		in.SenderName = displayName(i.Member.User, i.Member)
	case i.User != nil:
		in.SenderID = i.User.ID
		in.SenderName = displayName(i.User, nil)
	}
	if i.Message != nil {
		in.MessageID = i.Message.ID
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		in.CustomID = data.CustomID
		in.Kind = connector.InteractionButton
		if data.ComponentType == discordgo.SelectMenuComponent {
			in.Kind = connector.InteractionSelect
			in.Values = data.Values
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		in.Kind = connector.InteractionModal
		in.CustomID = data.CustomID
		in.Fields = modalFields(data.Components)
	default:
		return in, false
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
		for _, rc := range row.Components {
			if ti, ok := rc.(*discordgo.TextInput); ok {
				fields[ti.CustomID] = ti.Value
			}
		}
	}
	return fields
}
