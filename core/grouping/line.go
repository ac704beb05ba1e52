// Package grouping turns pairwise rhyme classification into display groups.
//
// Lines are grouped per section. A section is a maximal run of lines between
// break markers; break marker lines and blank lines are never grouped.
//
// Grouping is anchor-based: the first ungrouped line of a prospective group
// is compared with every later line, and the later lines are never compared
// with each other. Two lines that both rhyme with the anchor end up in the
// same group even if they do not rhyme with one another, and a line that
// only rhymes with a non-anchor member is left for a later anchor.
package grouping

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/LyricScope/core/phonetic"
)

// DefaultMarker is the line content that separates sections.
const DefaultMarker = "---"

// LineKind classifies a line of the buffer.
type LineKind int

const (
	// LineContent is a line with text that is not a break marker.
	LineContent LineKind = iota
	// LineBlank is empty or whitespace only.
	LineBlank
	// LineBreak trims exactly to the break marker.
	LineBreak
)

// String returns the wire name of the kind.
func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineBreak:
		return "break"
	default:
		return "content"
	}
}

// Line is one line of the buffer with the facts the engine needs.
type Line struct {
	Index    int
	Text     string
	Kind     LineKind
	LastWord string
	// Word is LastWord with its rime extracted, set for content lines.
	Word phonetic.Word
}

// Grouped reports whether the line may take part in a group.
func (l Line) Grouped() bool {
	return l.Kind == LineContent
}

// ParseLines classifies raw lines. An empty marker falls back to
// DefaultMarker.
func ParseLines(raw []string, marker string) []Line {
	if marker == "" {
		marker = DefaultMarker
	}
	lines := make([]Line, len(raw))
	for i, text := range raw {
		line := Line{Index: i, Text: text}
		trimmed := strings.TrimSpace(text)
		switch {
		case trimmed == marker:
			line.Kind = LineBreak
		case trimmed == "":
			line.Kind = LineBlank
		default:
			line.Kind = LineContent
			line.LastWord = phonetic.LastWord(text)
			line.Word = phonetic.NewWord(line.LastWord)
		}
		lines[i] = line
	}
	return lines
}

// Sections answers section membership questions for a fixed line list.
type Sections struct {
	breaks []int
	total  int
}

// NewSections records the break positions of lines.
func NewSections(lines []Line) *Sections {
	s := &Sections{total: len(lines)}
	for _, l := range lines {
		if l.Kind == LineBreak {
			s.breaks = append(s.breaks, l.Index)
		}
	}
	return s
}

// Breaks returns the break marker positions in ascending order.
func (s *Sections) Breaks() []int {
	out := make([]int, len(s.breaks))
	copy(out, s.breaks)
	return out
}

// SameSection reports whether no break marker lies strictly between i and j.
func (s *Sections) SameSection(i, j int) bool {
	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	// first break strictly after lo
	k := sort.SearchInts(s.breaks, lo+1)
	return k == len(s.breaks) || s.breaks[k] >= hi
}

// SectionOf returns the zero-based section number of line i, or -1 when i
// is a break marker.
func (s *Sections) SectionOf(i int) int {
	k := sort.SearchInts(s.breaks, i)
	if k < len(s.breaks) && s.breaks[k] == i {
		return -1
	}
	return k
}

// Count returns the number of sections, including empty ones between
// adjacent markers.
func (s *Sections) Count() int {
	if s.total == 0 {
		return 0
	}
	return len(s.breaks) + 1
}

// Bounds returns the first and last line index of section n. The range is
// empty (start > end) for a section with no lines.
func (s *Sections) Bounds(n int) (start, end int) {
	start = 0
	if n > 0 {
		start = s.breaks[n-1] + 1
	}
	end = s.total - 1
	if n < len(s.breaks) {
		end = s.breaks[n] - 1
	}
	return start, end
}
