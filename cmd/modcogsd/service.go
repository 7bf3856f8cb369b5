package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/h1v3-io/modcogs/internal/confirm"
	"github.com/h1v3-io/modcogs/internal/connector"
	"github.com/h1v3-io/modcogs/internal/responsetime"
	"github.com/h1v3-io/modcogs/internal/ticket"
	"github.com/h1v3-io/modcogs/internal/uptime"
	"github.com/h1v3-io/modcogs/pkg/protocol"
)

// botService implements api.Service and the chat status command on top of
// the running cogs.
type botService struct {
	tickets  ticket.Store
	workflow *confirm.Workflow
	response *responsetime.Cog
	uptime   *uptime.Cog
}

func (s *botService) Confirmations() []confirm.Snapshot { return s.workflow.List() }

func (s *botService) ListTickets(ctx context.Context, f ticket.Filter) ([]*protocol.Ticket, error) {
	return s.tickets.List(ctx, f)
}

func (s *botService) GetTicket(ctx context.Context, id string) (*protocol.Ticket, error) {
	return s.tickets.Get(ctx, id)
}

func (s *botService) ResponseTimes() responsetime.Stats { return s.response.Stats() }

func (s *botService) Uptime() uptime.Stats { return s.uptime.Stats() }

// status summarizes the bot for the Slack and Telegram /status command.
func (s *botService) status(ctx context.Context) connector.OutboundMessage {
	open := protocol.TicketOpen
	e := &connector.Embed{Title: "Modmail Status", Color: connector.ColorBlurple, Timestamp: time.Now()}

	if n, err := s.tickets.Count(ctx, ticket.Filter{Status: &open}); err != nil {
		e.AddField("Open Tickets", "unavailable", true)
	} else {
		e.AddField("Open Tickets", fmt.Sprint(n), true)
	}
	e.AddField("Pending Close Requests", fmt.Sprint(s.workflow.Pending()), true)

	rt := s.response.Stats()
	if rt.Tracked > 0 {
		avg := time.Duration(rt.Average * float64(time.Second))
		e.AddField("Avg First Response", responsetime.Format(avg), true)
	}

	up := s.uptime.Stats()
	if up.TotalRequests > 0 {
		e.AddField("Uptime Checks", fmt.Sprintf("%d/%d ok, last status %d", up.SuccessfulRequests, up.TotalRequests, up.LastStatusCode), false)
	}
	return connector.OutboundMessage{Embed: e}
}

// statusHandler answers operator commands from an alert sink.
func statusHandler(svc *botService, send func(context.Context, connector.OutboundMessage) error) connector.InboundHandler {
	return func(ctx context.Context, msg connector.InboundMessage) error {
		cmd, _, _ := strings.Cut(strings.TrimPrefix(msg.Content, "/"), " ")
		var out connector.OutboundMessage
		switch cmd {
		case "status":
			out = svc.status(ctx)
		default:
			out.Content = fmt.Sprintf("Unknown command %q. Try /status.", cmd)
		}
		out.ChatID = msg.ChatID
		return send(ctx, out)
	}
}
