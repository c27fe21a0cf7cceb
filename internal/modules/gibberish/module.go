package gibberish

import (
	"strings"
	"unicode"
)

var commonWords = []string{
	"hello", "hi", "thanks", "thank", "please", "welcome",
	"yes", "no", "okay", "ok", "sure", "nice", "good", "great",
	"awesome", "cool", "wow", "lol", "lmao", "rofl", "omg",
	"wtf", "brb", "afk", "gg", "gn",
}

// Classify reports whether the text looks like throwaway gibberish.
// Established members (hasRoles) get the benefit of the doubt, and an
// empty caption is only suspicious when no images came with it.
func Classify(text string, hasRoles, hasImages bool) bool {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		return !hasImages
	}

	if hasRoles && distinctChars(trimmed) <= 2 {
		return false
	}

	if isShortLetterRun(trimmed) {
		if isCommonWord(trimmed) {
			return false
		}
		if hasRoles {
			return false
		}
		return true
	}

	return false
}

func distinctChars(text string) int {
	seen := make(map[rune]struct{})
	for _, r := range strings.ToLower(text) {
		if r == ' ' {
			continue
		}
		seen[r] = struct{}{}
	}
	return len(seen)
}

func isShortLetterRun(text string) bool {
	runes := []rune(text)
	if len(runes) < 5 || len(runes) > 20 {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isCommonWord(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range commonWords {
		if lower == word {
			return true
		}
	}
	return false
}
