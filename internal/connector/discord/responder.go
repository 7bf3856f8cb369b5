package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// responder answers one interaction. Discord accepts a single initial
// response; everything after it is sent as an ephemeral followup.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction

	mu    sync.Mutex
	acked bool
}

var _ connector.Responder = (*responder)(nil)

func (r *responder) Defer(ctx context.Context) error {
	return r.initial(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func (r *responder) DeferReply(ctx context.Context) error {
	return r.initial(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (r *responder) Reply(ctx context.Context, msg connector.Reply) error {
	var embeds []*discordgo.MessageEmbed
	if msg.Embed != nil {
		embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	components := toComponents(msg.Buttons, msg.Select)

	r.mu.Lock()
	acked := r.acked
	r.mu.Unlock()

	if acked {
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content:    msg.Content,
			Embeds:     embeds,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: followup: %w", err)
		}
		return nil
	}

	return r.initial(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Embeds:     embeds,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

func (r *responder) OpenModal(ctx context.Context, m connector.Modal) error {
	return r.initial(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   m.ID,
			Title:      m.Title,
			Components: toModalComponents(m.Inputs),
		},
	})
}

func (r *responder) initial(ctx context.Context, resp *discordgo.InteractionResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acked {
		return fmt.Errorf("discord: interaction already acknowledged")
	}
	if err := r.session.InteractionRespond(r.interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: respond: %w", err)
	}
	r.acked = true
	return nil
}
