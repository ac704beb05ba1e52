package phonetic

import "strings"

// linePunctuation is stripped from a line before its last word is taken.
const linePunctuation = ".,!?;:\"'()[]{}"

// Normalize lowercases word and removes every rune outside a-z.
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LastWord returns the normalized final word of a line, or "" for a blank
// line or one whose final token has no letters.
func LastWord(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	line = strings.Map(func(r rune) rune {
		if strings.ContainsRune(linePunctuation, r) {
			return -1
		}
		return r
	}, line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return Normalize(fields[len(fields)-1])
}

// isVowel reports whether b is in the vowel set aeiouy.
func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
