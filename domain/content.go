package domain

import (
	"regexp"
	"strings"
)

// AiPersonas is the fixed vocabulary of mentionable AI personas.
var AiPersonas = []string{"wayneAI", "consultingAI"}

var mentionPattern = regexp.MustCompile(`@(wayneAI|consultingAI)\b`)

// MessageContent wraps the normalized text of an inbound message and the
// AI mentions extracted from it.
type MessageContent struct {
	Raw     string
	Trimmed string
}

func NewMessageContent(content string) MessageContent {
	return MessageContent{Raw: content, Trimmed: strings.TrimSpace(content)}
}

func (c MessageContent) IsEmpty() bool {
	return c.Trimmed == ""
}

// Mentions returns the AI personas referenced in the content, each at
// most once, in order of first appearance.
func (c MessageContent) Mentions() []string {
	if strings.TrimSpace(c.Raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var mentions []string
	for _, match := range mentionPattern.FindAllStringSubmatch(c.Raw, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// QueryWithoutMention strips a persona mention out of the content,
// leaving the question addressed to that persona.
func (c MessageContent) QueryWithoutMention(persona string) string {
	re := regexp.MustCompile(`@` + regexp.QuoteMeta(persona) + `\b`)
	return strings.TrimSpace(re.ReplaceAllString(c.Trimmed, ""))
}
