package grouping

import "github.com/FocuswithJustin/LyricScope/core/phonetic"

// PaletteSize is the number of distinct colour identifiers groups cycle
// through.
const PaletteSize = 30

// Kind is the relationship shared by the members of a group.
type Kind int

const (
	// KindRhyme groups exact rhymes.
	KindRhyme Kind = iota + 1
	// KindNearRhyme groups slant rhymes.
	KindNearRhyme
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRhyme:
		return "rhyme"
	case KindNearRhyme:
		return "near-rhyme"
	default:
		return "none"
	}
}

// Group is an ordered set of at least two line indices.
type Group struct {
	Kind Kind
	// Index is the creation order within the groups of the same kind.
	Index int
	Lines []int
}

// Color returns the colour identifier of the group.
func (g Group) Color() int {
	return g.Index % PaletteSize
}

// pass is one anchor scan. Passes run in order and the first one that
// produces a group for an anchor wins.
type pass struct {
	kind  Kind
	match func(a, b phonetic.Word) bool
}

var passes = []pass{
	{kind: KindRhyme, match: phonetic.Word.Rhymes},
	{kind: KindNearRhyme, match: phonetic.Word.NearRhymes},
}

// Result holds the groups built from one buffer.
type Result struct {
	RhymeGroups     []Group
	NearRhymeGroups []Group

	member map[int]memberRef
}

type memberRef struct {
	kind  Kind
	index int
}

// GroupOf returns the group that line i belongs to.
func (r *Result) GroupOf(i int) (Group, bool) {
	ref, ok := r.member[i]
	if !ok {
		return Group{}, false
	}
	if ref.kind == KindRhyme {
		return r.RhymeGroups[ref.index], true
	}
	return r.NearRhymeGroups[ref.index], true
}

func (r *Result) add(kind Kind, lines []int) {
	var index int
	if kind == KindRhyme {
		index = len(r.RhymeGroups)
		r.RhymeGroups = append(r.RhymeGroups, Group{Kind: kind, Index: index, Lines: lines})
	} else {
		index = len(r.NearRhymeGroups)
		r.NearRhymeGroups = append(r.NearRhymeGroups, Group{Kind: kind, Index: index, Lines: lines})
	}
	for _, l := range lines {
		r.member[l] = memberRef{kind: kind, index: index}
	}
}

// Build groups lines in a single forward pass. Each ungrouped content line
// becomes an anchor and collects every later ungrouped content line of the
// same section that matches it; a candidate of one line is discarded.
func Build(lines []Line) *Result {
	res := &Result{member: make(map[int]memberRef)}
	sections := NewSections(lines)

	for i, anchor := range lines {
		if !anchor.Grouped() {
			continue
		}
		if _, taken := res.member[i]; taken {
			continue
		}
		if anchor.Word.Text == "" {
			continue
		}
		for _, p := range passes {
			candidate := []int{i}
			for j := i + 1; j < len(lines) && sections.SameSection(i, j); j++ {
				other := lines[j]
				if !other.Grouped() {
					continue
				}
				if _, taken := res.member[j]; taken {
					continue
				}
				if p.match(anchor.Word, other.Word) {
					candidate = append(candidate, j)
				}
			}
			if len(candidate) >= 2 {
				res.add(p.kind, candidate)
				break
			}
		}
	}
	return res
}
