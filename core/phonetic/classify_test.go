package phonetic

import "testing"

// sampleWords covers rimes, shared vowels, shared codas, vowel-less words
// and degenerate input.
var sampleWords = []string{
	"", "!!", "cat", "bat", "cap", "bit", "dog", "time", "fine", "day", "way",
	"play", "night", "light", "like", "moon", "soon", "mood", "sought",
	"naught", "brrr", "grrr", "hmm", "a", "the", "go", "no", "heart", "hard",
	"Cat", "love", "move", "rhythm",
}

func TestIsRhyme(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"cat", "bat", true},
		{"cat", "dog", false},
		{"day", "way", true},
		{"night", "light", true},
		{"moon", "soon", true},
		{"go", "no", true},
		{"time", "fine", true},
		{"sought", "naught", true},
		{"brrr", "grrr", true},
		{"a", "the", false},
		{"cat", "cat", false},
		{"Cat", "cat.", false},
		{"", "", false},
		{"cat", "", false},
		{"!!", "??", false},
		{"heart", "hard", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := IsRhyme(tt.a, tt.b); got != tt.want {
				t.Errorf("IsRhyme(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsNearRhyme(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"cat", "cap", true},
		{"cat", "bit", true},
		{"moon", "mood", true},
		{"cat", "dog", false},
		{"cat", "bat", false},
		// Both end in the vowel cluster "e", which is an exact rhyme.
		{"time", "fine", false},
		{"time", "time", false},
		{"", "cat", false},
		{"heart", "hard", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := IsNearRhyme(tt.a, tt.b); got != tt.want {
				t.Errorf("IsNearRhyme(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNoSelfRhyme(t *testing.T) {
	for _, w := range sampleWords {
		if IsRhyme(w, w) {
			t.Errorf("IsRhyme(%q, %q) = true", w, w)
		}
		if IsNearRhyme(w, w) {
			t.Errorf("IsNearRhyme(%q, %q) = true", w, w)
		}
	}
}

func TestClassifierSymmetry(t *testing.T) {
	for _, a := range sampleWords {
		for _, b := range sampleWords {
			if IsRhyme(a, b) != IsRhyme(b, a) {
				t.Errorf("IsRhyme not symmetric for %q, %q", a, b)
			}
			if IsNearRhyme(a, b) != IsNearRhyme(b, a) {
				t.Errorf("IsNearRhyme not symmetric for %q, %q", a, b)
			}
		}
	}
}

func TestRhymeAndNearRhymeExclusive(t *testing.T) {
	for _, a := range sampleWords {
		for _, b := range sampleWords {
			if IsRhyme(a, b) && IsNearRhyme(a, b) {
				t.Errorf("%q and %q are both rhyme and near rhyme", a, b)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	for _, a := range sampleWords {
		for _, b := range sampleWords {
			want := RelationNone
			switch {
			case IsRhyme(a, b):
				want = RelationRhyme
			case IsNearRhyme(a, b):
				want = RelationNearRhyme
			}
			if got := Classify(a, b); got != want {
				t.Errorf("Classify(%q, %q) = %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestRelationString(t *testing.T) {
	tests := []struct {
		r    Relation
		want string
	}{
		{RelationNone, "none"},
		{RelationRhyme, "rhyme"},
		{RelationNearRhyme, "near-rhyme"},
		{Relation(42), "none"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("Relation(%d).String() = %q, want %q", int(tt.r), got, tt.want)
		}
	}
}

func TestWordMatchesStringPredicates(t *testing.T) {
	for _, a := range sampleWords {
		wa := NewWord(a)
		for _, b := range sampleWords {
			wb := NewWord(b)
			if got, want := wa.Rhymes(wb), IsRhyme(a, b); got != want {
				t.Errorf("NewWord(%q).Rhymes(%q) = %v, IsRhyme = %v", a, b, got, want)
			}
			if got, want := wa.NearRhymes(wb), IsNearRhyme(a, b); got != want {
				t.Errorf("NewWord(%q).NearRhymes(%q) = %v, IsNearRhyme = %v", a, b, got, want)
			}
			if got, want := wa.Relation(wb), Classify(a, b); got != want {
				t.Errorf("NewWord(%q).Relation(%q) = %v, Classify = %v", a, b, got, want)
			}
		}
	}
}

func TestNewWord(t *testing.T) {
	w := NewWord("Light!")
	if w.Text != "light" {
		t.Errorf("Text = %q, want %q", w.Text, "light")
	}
	if w.Parts != ExtractRime("light") {
		t.Errorf("Parts = %+v, want %+v", w.Parts, ExtractRime("light"))
	}
	if (NewWord("?!") != Word{}) {
		t.Errorf("NewWord(?!) = %+v, want zero", NewWord("?!"))
	}
}
