package hiring

import (
	"net/url"
	"regexp"
	"strings"
)

var invitePath = regexp.MustCompile(`^invite/[A-Za-z0-9\-_.~]+$`)

// IsDiscordInvite reports whether raw is a discord.gg or discord.com/invite link.
func IsDiscordInvite(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	path := strings.Trim(u.Path, "/")
	switch strings.ToLower(u.Host) {
	case "discord.gg", "www.discord.gg":
		return path != ""
	case "discord.com", "www.discord.com", "ptb.discord.com", "canary.discord.com":
		return invitePath.MatchString(path)
	}
	return false
}

// blockedTerm returns the first configured term found in any field of sub,
// compared case-insensitively.
func blockedTerm(sub Submission, terms []string) (string, bool) {
	text := strings.ToLower(strings.Join([]string{sub.CompanyName, sub.Position, sub.Description, sub.DiscordServerLink}, "\n"))
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t != "" && strings.Contains(text, t) {
			return term, true
		}
	}
	return "", false
}
