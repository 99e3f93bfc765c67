package domain

import (
	"regexp"
	"strings"
)

// Mention token shapes as they appear in raw Discord message content.
// <@123> and <@!123> are user mentions, <@&123> role mentions, <#123>
// channel references, <a:name:123> and <:name:123> custom emoji.
var (
	mentionPattern   = regexp.MustCompile(`<(@[!&]?|#)\d+>|<a?:\w+:\d+>`)
	broadcastPattern = regexp.MustCompile(`@(everyone|here)`)
)

// SanitizeText prepares raw message content for narration: mention tokens are
// removed, whitespace is collapsed, and the result is truncated to maxChars
// runes. Returns the empty string when nothing speakable remains.
func SanitizeText(text string, maxChars int) string {
	text = mentionPattern.ReplaceAllString(text, " ")
	text = broadcastPattern.ReplaceAllString(text, " ")

	// Collapse runs of whitespace (including newlines) into single spaces.
	text = strings.Join(strings.Fields(text), " ")

	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			text = strings.TrimSpace(string(runes[:maxChars]))
		}
	}

	return text
}
