package phonetic

// Relation is the sound relationship between two words.
type Relation int

const (
	// RelationNone means the words do not rhyme.
	RelationNone Relation = iota
	// RelationRhyme means the words share a rime or ending.
	RelationRhyme
	// RelationNearRhyme means the words share a vowel cluster or a coda but
	// not both.
	RelationNearRhyme
)

// String returns the wire name of the relation.
func (r Relation) String() string {
	switch r {
	case RelationRhyme:
		return "rhyme"
	case RelationNearRhyme:
		return "near-rhyme"
	default:
		return "none"
	}
}

// Word is a normalized word with its rime extracted once, for callers that
// compare the same word against many others.
type Word struct {
	Text  string    `json:"text"`
	Parts RimeParts `json:"parts"`
}

// NewWord normalizes word and extracts its rime.
func NewWord(word string) Word {
	n := Normalize(word)
	return Word{Text: n, Parts: ExtractRime(n)}
}

// canPair reports whether w and o may be compared at all. Empty and
// identical words never rhyme.
func (w Word) canPair(o Word) bool {
	return w.Text != "" && o.Text != "" && w.Text != o.Text
}

// Rhymes reports whether w and o rhyme exactly: equal non-empty rimes, or
// failing that equal endings of at least two letters.
func (w Word) Rhymes(o Word) bool {
	return w.canPair(o) && rhymeParts(w.Parts, o.Parts)
}

// NearRhymes reports whether w and o are a slant rhyme. It is never true
// for a pair that Rhymes accepts.
func (w Word) NearRhymes(o Word) bool {
	return w.canPair(o) && !rhymeParts(w.Parts, o.Parts) && nearRhymeParts(w.Parts, o.Parts)
}

// Relation returns the relation between w and o.
func (w Word) Relation(o Word) Relation {
	switch {
	case !w.canPair(o):
		return RelationNone
	case rhymeParts(w.Parts, o.Parts):
		return RelationRhyme
	case nearRhymeParts(w.Parts, o.Parts):
		return RelationNearRhyme
	}
	return RelationNone
}

// IsRhyme reports whether a and b rhyme exactly.
func IsRhyme(a, b string) bool {
	return NewWord(a).Rhymes(NewWord(b))
}

// IsNearRhyme reports whether a and b are a slant rhyme.
func IsNearRhyme(a, b string) bool {
	return NewWord(a).NearRhymes(NewWord(b))
}

// Classify returns the relation between a and b.
func Classify(a, b string) Relation {
	return NewWord(a).Relation(NewWord(b))
}

func rhymeParts(a, b RimeParts) bool {
	if a.Rime != "" && a.Rime == b.Rime {
		return true
	}
	return len(a.Ending) >= 2 && a.Ending == b.Ending
}

func nearRhymeParts(a, b RimeParts) bool {
	sameVowel := a.VowelCluster != "" && a.VowelCluster == b.VowelCluster && a.Coda != b.Coda
	sameCoda := a.Coda != "" && a.Coda == b.Coda && a.VowelCluster != b.VowelCluster
	return sameVowel || sameCoda
}
