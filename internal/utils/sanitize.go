package utils

import "regexp"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9()_\-<>:,{}'" \n\r\\\[\].|]`)

// SanitizeText strips everything outside a conservative character
// allowlist and truncates, for quoting user content in audit details.
func SanitizeText(text string, maxLength int) string {
	if text == "" {
		return ""
	}

	text = unsafeChars.ReplaceAllString(text, "")

	runes := []rune(text)
	if maxLength > 0 && len(runes) > maxLength {
		return string(runes[:maxLength])
	}
	return text
}
