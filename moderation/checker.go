package moderation

import (
	"strings"

	"chat-relay/errors"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Checker detects banned words by case-insensitive substring containment.
// The Aho-Corasick automaton is built once at startup from the full
// dictionary, so a check costs O(message length) regardless of
// dictionary size.
type Checker struct {
	matcher *goahocorasick.Machine
}

func NewChecker(bannedWords []string) (*Checker, error) {
	words := lo.FilterMap(bannedWords, func(w string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(w)
		return strings.ToLower(trimmed), trimmed != ""
	})
	words = lo.Uniq(words)
	if len(words) == 0 {
		return nil, errors.ErrEmptyDictionary
	}

	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = []rune(w)
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Checker{matcher: m}, nil
}

// ContainsBannedWord reports whether any dictionary word appears in the
// message as a contiguous substring, regardless of case or surrounding
// characters. Blank input never matches.
func (c *Checker) ContainsBannedWord(message string) bool {
	if strings.TrimSpace(message) == "" {
		return false
	}
	normalized := []rune(strings.ToLower(message))
	return len(c.matcher.MultiPatternSearch(normalized, true)) > 0
}
