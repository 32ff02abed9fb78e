package course

import "strings"

// MaxSemanticChars caps the semantic text length in characters.
const MaxSemanticChars = 1500

// SemanticText concatenates the descriptive columns into the text that gets embedded:
// title, headline, objectives, curriculum, "Level: <level>", "Category: <category>".
// The result is truncated to maxChars runes (maxChars <= 0 disables truncation).
func SemanticText(a Attributes, maxChars int) string {
	text := strings.Join([]string{
		a.Title,
		a.Headline,
		a.Objectives,
		a.Curriculum,
		"Level: " + a.Level,
		"Category: " + a.Category,
	}, " ")
	return truncateRunes(text, maxChars)
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
