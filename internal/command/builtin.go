package command

import (
	"context"
	"errors"

	"github.com/h1v3-io/modcogs/internal/thread"
)

// ThreadCommands returns the staff commands for replying to and closing
// tickets.
func ThreadCommands(m *thread.Manager) []*Command {
	return []*Command{
		{
			Name:       "reply",
			Aliases:    []string{"r"},
			Usage:      "<message>",
			Help:       "Reply to the ticket recipient.",
			Level:      Supporter,
			ThreadOnly: true,
			Run: func(ctx context.Context, call *Call) error {
				if call.Args == "" {
					return Errorf("Usage: `%sreply <message>`", call.Prefix())
				}
				return threadErr(m.Reply(ctx, call.Ticket, call.Author(), call.Args))
			},
		},
		{
			Name:       "close",
			Usage:      "[message]",
			Help:       "Close the ticket, optionally sending a closing message.",
			Level:      Supporter,
			ThreadOnly: true,
			Run: func(ctx context.Context, call *Call) error {
				return threadErr(m.Close(ctx, call.Ticket, call.Message.SenderID, call.Args))
			},
		},
	}
}

func threadErr(err error) error {
	if errors.Is(err, thread.ErrClosed) {
		return Errorf("This ticket is already closed.")
	}
	return err
}
