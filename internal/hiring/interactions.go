package hiring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/h1v3-io/modcogs/internal/connector"
)

// Component and modal ids. Everything starts with InteractionPrefix.
const (
	InteractionPrefix = "hiring:"
	PanelButtonID     = "hiring:open_form"

	addButtonID    = "hiring:add"
	editButtonID   = "hiring:edit"
	deleteButtonID = "hiring:delete"
	editSelectID   = "hiring:edit_select"
	deleteSelectID = "hiring:delete_select"
	createFormID   = "hiring:form:create"
	editFormPrefix = "hiring:form:edit:"
)

const maxSelectOptions = 25

// HandleInteraction serves the panel button, the menu, the request selects
// and the submission form.
func (c *Cog) HandleInteraction(ctx context.Context, in connector.Interaction) error {
	if in.GuildID == "" {
		return connector.Notice(ctx, in.Responder, "❌ This can only be used in a server.")
	}
	a := Author{GuildID: in.GuildID, GuildName: in.GuildName, UserID: in.SenderID, Username: in.SenderName}

	switch id := in.CustomID; {
	case id == PanelButtonID:
		return c.openMenu(ctx, in, a)
	case id == addButtonID:
		return in.Responder.OpenModal(ctx, submissionModal(createFormID, Submission{}))
	case id == editButtonID:
		return c.chooseRequest(ctx, in, a, "edit")
	case id == deleteButtonID:
		return c.chooseRequest(ctx, in, a, "delete")
	case id == editSelectID:
		return c.editSelected(ctx, in, a)
	case id == deleteSelectID:
		return c.deleteSelected(ctx, in, a)
	case id == createFormID:
		return c.submit(ctx, in, a, 0)
	case strings.HasPrefix(id, editFormPrefix):
		reqID, err := strconv.ParseInt(strings.TrimPrefix(id, editFormPrefix), 10, 64)
		if err != nil {
			return connector.Notice(ctx, in.Responder, "❌ Missing hiring request id for edit.")
		}
		return c.submit(ctx, in, a, reqID)
	}
	c.logger.Debug("unknown interaction", "custom_id", in.CustomID)
	return nil
}

func (c *Cog) openMenu(ctx context.Context, in connector.Interaction, a Author) error {
	if err := in.Responder.DeferReply(ctx); err != nil {
		return err
	}
	count := c.OpenCount(ctx, a.GuildID, a.UserID)
	return in.Responder.Reply(ctx, connector.Reply{
		Embed: &connector.Embed{
			Title:       fmt.Sprintf("Hiring Request Menu (%d/%d)", count, MaxOpenRequests),
			Description: "Use the buttons below to add, edit, or delete your hiring requests.",
			Color:       connector.ColorBlurple,
		},
		Buttons: []connector.Button{
			{ID: addButtonID, Label: "Add New Request", Style: connector.ButtonPrimary},
			{ID: editButtonID, Label: "Edit Current Request", Style: connector.ButtonSecondary},
			{ID: deleteButtonID, Label: "Delete Old Request", Style: connector.ButtonDanger},
		},
	})
}

func (c *Cog) chooseRequest(ctx context.Context, in connector.Interaction, a Author, action string) error {
	if err := in.Responder.DeferReply(ctx); err != nil {
		return err
	}
	rows, err := c.List(ctx, a.GuildID, a.UserID)
	if err != nil {
		return connector.Notice(ctx, in.Responder, fmt.Sprintf("❌ Could not load requests: %v", err))
	}
	if len(rows) == 0 {
		return connector.Notice(ctx, in.Responder, fmt.Sprintf("ℹ️ You have no open hiring requests to %s.", action))
	}

	e := &connector.Embed{
		Title:       "Edit Request",
		Description: "Select one of your active requests to edit.",
		Color:       connector.ColorBlurple,
	}
	selectID := editSelectID
	if action == "delete" {
		e.Title, e.Description, e.Color = "Delete Request", "Select one of your active requests to delete.", connector.ColorRed
		selectID = deleteSelectID
	}
	return in.Responder.Reply(ctx, connector.Reply{
		Embed:  e,
		Select: requestSelect(selectID, fmt.Sprintf("Select a request to %s", action), rows),
	})
}

func requestSelect(id, placeholder string, rows []Request) *connector.Select {
	sel := &connector.Select{ID: id, Placeholder: placeholder}
	for _, r := range rows[:min(len(rows), maxSelectOptions)] {
		company := r.CompanyName
		if company == "" {
			company = "Unknown Company"
		}
		position := r.Position
		if position == "" {
			position = "Unknown Position"
		}
		reqID := strconv.FormatInt(r.ID, 10)
		sel.Options = append(sel.Options, connector.SelectOption{
			Label:       truncate(company+" - "+position, 100),
			Value:       reqID,
			Description: "Request ID: " + reqID,
		})
	}
	return sel
}

func selectedID(in connector.Interaction) (int64, bool) {
	if len(in.Values) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(in.Values[0], 10, 64)
	return id, err == nil
}

func (c *Cog) editSelected(ctx context.Context, in connector.Interaction, a Author) error {
	id, ok := selectedID(in)
	if !ok {
		return connector.Notice(ctx, in.Responder, "❌ Request not found.")
	}
	rows, err := c.List(ctx, a.GuildID, a.UserID)
	if err != nil {
		return connector.Notice(ctx, in.Responder, fmt.Sprintf("❌ Could not load requests: %v", err))
	}
	for _, r := range rows {
		if r.ID == id {
			return in.Responder.OpenModal(ctx, submissionModal(editFormPrefix+strconv.FormatInt(id, 10), r.Submission))
		}
	}
	return connector.Notice(ctx, in.Responder, "❌ Request not found.")
}

func (c *Cog) deleteSelected(ctx context.Context, in connector.Interaction, a Author) error {
	if err := in.Responder.DeferReply(ctx); err != nil {
		return err
	}
	id, ok := selectedID(in)
	if !ok {
		return connector.Notice(ctx, in.Responder, "❌ Request not found.")
	}
	if err := c.Delete(ctx, a, id); err != nil {
		return connector.Notice(ctx, in.Responder, fmt.Sprintf("❌ Could not delete request: %v", err))
	}
	return connector.Notice(ctx, in.Responder, "✅ Hiring request deleted.")
}

// submit handles the form for a new request (id 0) or an edit.
func (c *Cog) submit(ctx context.Context, in connector.Interaction, a Author, id int64) error {
	sub := Submission{
		CompanyName:       strings.TrimSpace(in.Fields["company_name"]),
		Position:          strings.TrimSpace(in.Fields["position"]),
		Description:       strings.TrimSpace(in.Fields["description"]),
		DiscordServerLink: strings.TrimSpace(in.Fields["discord_server_link"]),
	}
	notice := func(text string) error { return connector.Notice(ctx, in.Responder, text) }

	if !c.Ready() {
		return notice("❌ Supabase is not configured. Ask an administrator to set it up.")
	}
	if c.outputChannel() == "" {
		return notice("❌ Hiring output channel is not configured or not found.")
	}
	if !IsDiscordInvite(sub.DiscordServerLink) {
		return notice("❌ " + msgBadInvite)
	}
	if err := in.Responder.DeferReply(ctx); err != nil {
		return err
	}

	if id == 0 {
		newID, err := c.Create(ctx, a, sub)
		if err != nil {
			return notice(saveFailure("save", err))
		}
		if err := c.Post(ctx, a, newID, sub); err != nil {
			return notice(fmt.Sprintf("❌ Saved request, but failed to post embed: %v", err))
		}
		return notice("✅ Hiring request created.")
	}

	if err := c.Update(ctx, a, id, sub); err != nil {
		return notice(saveFailure("update", err))
	}
	if err := c.Post(ctx, a, id, sub); err != nil {
		return notice(fmt.Sprintf("❌ Updated request, but failed to post embed: %v", err))
	}
	return notice("✅ Hiring request updated.")
}

func saveFailure(op string, err error) string {
	var rej rejection
	switch {
	case errors.Is(err, ErrLimitReached):
		return fmt.Sprintf("❌ You can only have %d open hiring requests at a time. Delete one first.", MaxOpenRequests)
	case errors.As(err, &rej):
		return "❌ " + string(rej)
	}
	return fmt.Sprintf("❌ Could not %s hiring request: %v", op, err)
}

func submissionModal(id string, initial Submission) connector.Modal {
	return connector.Modal{
		ID:    id,
		Title: "Hiring Submission",
		Inputs: []connector.TextInput{
			{ID: "company_name", Label: "Company Name", Placeholder: "Example: Ameritian", Value: truncate(initial.CompanyName, 100), Required: true, MaxLength: 100},
			{ID: "position", Label: "Position", Placeholder: "Example: Moderator", Value: truncate(initial.Position, 100), Required: true, MaxLength: 100},
			{ID: "description", Label: "Description", Placeholder: "Describe the role and what you're looking for.", Value: truncate(initial.Description, 1000), Paragraph: true, Required: true, MaxLength: 1000},
			{ID: "discord_server_link", Label: "Discord Server Link", Placeholder: "https://discord.gg/yourinvite", Value: truncate(initial.DiscordServerLink, 200), Required: true, MaxLength: 200},
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
