package phonetic

import "strings"

// syllableException pins the count for a word the vowel-run heuristic gets
// wrong.
type syllableException struct {
	word  string
	count int
}

// syllableExceptions is consulted before the heuristic. First match wins.
var syllableExceptions = []syllableException{
	{"the", 1},
	{"fire", 2},
	{"hire", 2},
	{"tire", 2},
	{"wire", 2},
	{"desire", 3},
	{"every", 3},
	{"quiet", 2},
	{"poem", 2},
	{"poet", 2},
	{"lion", 2},
	{"diet", 2},
	{"idea", 3},
	{"area", 3},
	{"create", 2},
	{"being", 2},
	{"doing", 2},
	{"going", 2},
	{"science", 2},
	{"something", 2},
	{"sometimes", 2},
	{"someone", 2},
	{"lonely", 2},
	{"lovely", 2},
	{"hour", 2},
}

func lookupSyllableException(word string) (int, bool) {
	for _, e := range syllableExceptions {
		if e.word == word {
			return e.count, true
		}
	}
	return 0, false
}

// CountSyllables estimates the number of syllables in word. It returns 0
// when the word has no letters and at least 1 otherwise.
func CountSyllables(word string) int {
	w := Normalize(strings.TrimSpace(word))
	if w == "" {
		return 0
	}
	if n, ok := lookupSyllableException(w); ok {
		return n
	}

	count := 0
	prevVowel := false
	for i := 0; i < len(w); i++ {
		v := isVowel(w[i])
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	// silent e
	if strings.HasSuffix(w, "e") && count > 1 {
		count--
	}
	// consonant + "le" keeps its own syllable: table, bottle
	if len(w) > 2 && strings.HasSuffix(w, "le") && !isVowel(w[len(w)-3]) {
		count++
	}

	if count < 1 {
		count = 1
	}
	return count
}

// CountLineSyllables sums CountSyllables over the whitespace-separated
// tokens of line.
func CountLineSyllables(line string) int {
	total := 0
	for _, tok := range strings.Fields(line) {
		total += CountSyllables(tok)
	}
	return total
}
