package grouping

import (
	"reflect"
	"strings"
	"testing"
)

func build(text string) (*Result, []Line) {
	lines := ParseLines(strings.Split(text, "\n"), DefaultMarker)
	return Build(lines), lines
}

func groupLines(groups []Group) [][]int {
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Lines)
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantRhyme [][]int
		wantNear  [][]int
	}{
		{
			name:      "break separates sections",
			text:      "day\nway\n---\nplay",
			wantRhyme: [][]int{{0, 1}},
			wantNear:  [][]int{},
		},
		{
			name:      "one group per section",
			text:      "day\nway\n---\nnight\nlight",
			wantRhyme: [][]int{{0, 1}, {3, 4}},
			wantNear:  [][]int{},
		},
		{
			name:      "all lines rhyme",
			text:      "day\nplay\nway\nstay",
			wantRhyme: [][]int{{0, 1, 2, 3}},
			wantNear:  [][]int{},
		},
		{
			name:      "blank lines skipped",
			text:      "I saw the day\n\nit went away",
			wantRhyme: [][]int{{0, 2}},
			wantNear:  [][]int{},
		},
		{
			name:      "punctuation only line never groups",
			text:      "day\n?!\nway",
			wantRhyme: [][]int{{0, 2}},
			wantNear:  [][]int{},
		},
		{
			name:      "anchor collects near rhymes that do not match each other",
			text:      "cat\ncap\nbit",
			wantRhyme: [][]int{},
			wantNear:  [][]int{{0, 1, 2}},
		},
		{
			name:      "member match is not followed",
			text:      "cat\ncap\nmop",
			wantRhyme: [][]int{},
			wantNear:  [][]int{{0, 1}},
		},
		{
			name:      "exact rhyme takes precedence",
			text:      "cat\ncap\nbat",
			wantRhyme: [][]int{{0, 2}},
			wantNear:  [][]int{},
		},
		{
			name:      "rhyme and near rhyme groups interleave",
			text:      "moon\nday\nsoon\nmood\nway",
			wantRhyme: [][]int{{0, 2}, {1, 4}},
			wantNear:  [][]int{},
		},
		{
			name:      "near group after failed rhyme scan",
			text:      "moon\nday\nmood\nway",
			wantRhyme: [][]int{{1, 3}},
			wantNear:  [][]int{{0, 2}},
		},
		{
			name:      "identical words do not group",
			text:      "day\nday",
			wantRhyme: [][]int{},
			wantNear:  [][]int{},
		},
		{
			name:      "empty buffer",
			text:      "",
			wantRhyme: [][]int{},
			wantNear:  [][]int{},
		},
		{
			name:      "markers only",
			text:      "---\n---\n---",
			wantRhyme: [][]int{},
			wantNear:  [][]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := build(tt.text)
			if got := groupLines(res.RhymeGroups); !reflect.DeepEqual(got, tt.wantRhyme) {
				t.Errorf("rhyme groups = %v, want %v", got, tt.wantRhyme)
			}
			if got := groupLines(res.NearRhymeGroups); !reflect.DeepEqual(got, tt.wantNear) {
				t.Errorf("near rhyme groups = %v, want %v", got, tt.wantNear)
			}
		})
	}
}

func TestBuildGroupIndices(t *testing.T) {
	res, _ := build("day\nway\nmoon\nmood\nnight\nlight")
	for i, g := range res.RhymeGroups {
		if g.Index != i || g.Kind != KindRhyme {
			t.Errorf("rhyme group %d = %+v", i, g)
		}
	}
	for i, g := range res.NearRhymeGroups {
		if g.Index != i || g.Kind != KindNearRhyme {
			t.Errorf("near group %d = %+v", i, g)
		}
	}

	g, ok := res.GroupOf(5)
	if !ok || g.Kind != KindRhyme || g.Index != 1 {
		t.Errorf("GroupOf(5) = %+v, %v", g, ok)
	}
	g, ok = res.GroupOf(3)
	if !ok || g.Kind != KindNearRhyme || g.Index != 0 {
		t.Errorf("GroupOf(3) = %+v, %v", g, ok)
	}
	if _, ok := res.GroupOf(42); ok {
		t.Error("GroupOf(42) found a group")
	}
}

func TestGroupColor(t *testing.T) {
	tests := []struct {
		index, want int
	}{
		{0, 0},
		{29, 29},
		{30, 0},
		{31, 1},
		{95, 5},
	}
	for _, tt := range tests {
		if got := (Group{Index: tt.index}).Color(); got != tt.want {
			t.Errorf("Group{Index: %d}.Color() = %d, want %d", tt.index, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRhyme.String() != "rhyme" || KindNearRhyme.String() != "near-rhyme" || Kind(0).String() != "none" {
		t.Error("unexpected Kind names")
	}
}

const invariantLyrics = `The night is young, the stars are bright
I hold you close and hold you tight
We dance until the morning light
And every fear has taken flight

---
Oh the fire, oh the fire
Take me higher, take me higher
Cat and cap and bit
Sing it out, sing it

---
Moon and mood and soon
Day by day we play
Hmm, brrr, grrr
, , ,
the end`

func TestBuildInvariants(t *testing.T) {
	res, lines := build(invariantLyrics)
	sections := NewSections(lines)

	seen := make(map[int]Kind)
	check := func(groups []Group, kind Kind) {
		for _, g := range groups {
			if len(g.Lines) < 2 {
				t.Errorf("%v group %d has %d members", kind, g.Index, len(g.Lines))
			}
			for _, l := range g.Lines {
				if prev, dup := seen[l]; dup {
					t.Errorf("line %d in %v group and %v group", l, prev, kind)
				}
				seen[l] = kind
				if !lines[l].Grouped() {
					t.Errorf("line %d (%v) is a group member", l, lines[l].Kind)
				}
				if sections.SectionOf(l) != sections.SectionOf(g.Lines[0]) {
					t.Errorf("group %v crosses sections", g.Lines)
				}
				got, ok := res.GroupOf(l)
				if !ok || got.Kind != kind || got.Index != g.Index {
					t.Errorf("GroupOf(%d) = %+v, want %v group %d", l, got, kind, g.Index)
				}
			}
		}
	}
	check(res.RhymeGroups, KindRhyme)
	check(res.NearRhymeGroups, KindNearRhyme)

	if len(res.RhymeGroups) == 0 {
		t.Error("expected rhyme groups in sample lyrics")
	}
}

func TestBuildIdempotent(t *testing.T) {
	a, _ := build(invariantLyrics)
	b, _ := build(invariantLyrics)
	if !reflect.DeepEqual(a, b) {
		t.Error("Build is not deterministic")
	}
}

func repeatLines(n int, words ...string) []string {
	raw := make([]string, n)
	for i := range raw {
		raw[i] = "sing it " + words[i%len(words)]
	}
	return raw
}

func TestBuildLargeSection(t *testing.T) {
	// identical last words never rhyme, so every anchor scans to the end
	res := Build(ParseLines(repeatLines(3000, "night"), DefaultMarker))
	if len(res.RhymeGroups) != 0 || len(res.NearRhymeGroups) != 0 {
		t.Errorf("identical words grouped: %d rhyme, %d near", len(res.RhymeGroups), len(res.NearRhymeGroups))
	}

	// the first "day" collects every "way" and "play" but no other "day"
	res = Build(ParseLines(repeatLines(3000, "day", "way", "play"), DefaultMarker))
	if len(res.RhymeGroups) != 1 {
		t.Fatalf("got %d rhyme groups, want 1", len(res.RhymeGroups))
	}
	if got := len(res.RhymeGroups[0].Lines); got != 2001 {
		t.Errorf("group size = %d, want 2001", got)
	}
}

func BenchmarkBuild(b *testing.B) {
	lines := ParseLines(repeatLines(2000, "night"), DefaultMarker)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Build(lines)
	}
}
