package connector

import "strings"

// Emphasis wraps a title for a text-only platform.
type Emphasis func(s string) string

// PlainText flattens a message (content plus embed) into text for platforms
// without rich cards. bold renders the embed title and field names.
func PlainText(msg OutboundMessage, bold Emphasis) string {
	if bold == nil {
		bold = func(s string) string { return s }
	}

	var b strings.Builder
	if msg.Content != "" {
		b.WriteString(msg.Content)
	}
	if e := msg.Embed; e != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if e.Title != "" {
			b.WriteString(bold(e.Title))
			b.WriteByte('\n')
		}
		if e.Description != "" {
			b.WriteString(e.Description)
			b.WriteByte('\n')
		}
		for _, f := range e.Fields {
			b.WriteString(bold(f.Name))
			b.WriteString(": ")
			b.WriteString(f.Value)
			b.WriteByte('\n')
		}
		if e.Footer != "" {
			b.WriteString(e.Footer)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
