package phonetic

// endingLen is the length of the fallback ending signature.
const endingLen = 3

// RimeParts decomposes a normalized word into its final vowel cluster and
// the consonants that follow it.
type RimeParts struct {
	VowelCluster string `json:"vowel_cluster"`
	Coda         string `json:"coda"`
	Rime         string `json:"rime"`
	// Ending is the last three letters of the word, used when no vowel
	// cluster exists.
	Ending string `json:"ending"`
}

// ExtractRime normalizes word and splits off its rime.
func ExtractRime(word string) RimeParts {
	w := Normalize(word)
	if w == "" {
		return RimeParts{}
	}

	var parts RimeParts
	if len(w) > endingLen {
		parts.Ending = w[len(w)-endingLen:]
	} else {
		parts.Ending = w
	}

	end := len(w)
	codaStart := end
	for codaStart > 0 && !isVowel(w[codaStart-1]) {
		codaStart--
	}
	clusterStart := codaStart
	for clusterStart > 0 && isVowel(w[clusterStart-1]) {
		clusterStart--
	}
	if clusterStart == codaStart {
		return parts
	}

	parts.VowelCluster = w[clusterStart:codaStart]
	parts.Coda = w[codaStart:end]
	parts.Rime = parts.VowelCluster + parts.Coda
	return parts
}
