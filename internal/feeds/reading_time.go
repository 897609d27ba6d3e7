package feeds

import (
	"strings"
	"unicode"
)

// wordsPerMinute is the reading speed assumed for news and blog prose.
const wordsPerMinute = 238

// CalculateReadingTime estimates reading time in whole minutes for text,
// rounding up. Empty text takes zero minutes.
func CalculateReadingTime(text string) int {
	words := len(strings.FieldsFunc(text, isWordBreak))
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

func isWordBreak(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(".,;:!?\"()[]{}—–", r)
}
