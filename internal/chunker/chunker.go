package chunker

import (
	"strings"
	"unicode/utf8"
)

// Length is the prompt size measure used for ceilings: characters, not bytes.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// SplitSections cuts text at every occurrence of marker. Everything before the first
// marker is the preamble; each section keeps its leading marker.
func SplitSections(text, marker string) (preamble string, sections []string) {
	if marker == "" {
		return text, nil
	}
	parts := strings.Split(text, marker)
	preamble = parts[0]
	for _, p := range parts[1:] {
		sections = append(sections, marker+p)
	}
	return preamble, sections
}

// Bisect splits sections into two halves, the first taking the extra element when the count is odd.
// Both halves are non-empty whenever len(sections) >= 2.
func Bisect(sections []string) (first, second []string) {
	mid := (len(sections) + 1) / 2
	return sections[:mid], sections[mid:]
}

// Join rebuilds a prompt from the preamble and a run of sections.
func Join(preamble string, sections []string) string {
	return preamble + strings.Join(sections, " ")
}

// Truncate returns at most maxChars characters of text.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if Length(text) <= maxChars {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
