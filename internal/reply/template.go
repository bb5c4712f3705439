package reply

import (
	"regexp"
	"unicode/utf8"
)

const Ellipsis = "..."

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Substitute replaces {{name}} placeholders from vars. Unknown placeholders
// are kept as written.
func Substitute(body string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(placeholder string) string {
		name := placeholderPattern.FindStringSubmatch(placeholder)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return placeholder
	})
}

// Truncate shortens text longer than max characters to max-3 characters
// followed by an ellipsis.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	if max <= len(Ellipsis) {
		return string(runes[:max])
	}
	return string(runes[:max-len(Ellipsis)]) + Ellipsis
}
