package notify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/umputun/pagewatch/pkg/domain"
)

// Format defines webhook payload layout
type Format string

// enum of supported payload formats
const (
	FormatDiscord Format = "discord" // discord webhook with content and embed
	FormatText    Format = "text"    // {"text": "..."}, slack and mattermost incoming webhooks
)

// ParseFormat converts string to Format, empty string means FormatDiscord
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDiscord, nil
	case FormatDiscord, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown webhook format %q", s)
	}
}

// discordContentLimit is the max length of discord message content, in characters
const discordContentLimit = 2000

// sortedKeywords returns a sorted copy of alert keywords
func sortedKeywords(a domain.Alert) []string {
	kws := slices.Clone(a.Keywords)
	slices.Sort(kws)
	return kws
}

// Message makes human-readable alert text with keywords, page title and link
func Message(a domain.Alert) string {
	return fmt.Sprintf("🔔 The following keywords appeared on the website: %s\n📄 **%s**\n🔗 %s",
		strings.Join(sortedKeywords(a), ", "), a.Title, a.URL)
}

// truncate cuts s to max runes, marking the cut with ellipsis
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
