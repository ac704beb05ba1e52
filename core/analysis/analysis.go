// Package analysis runs the phonetic core over a whole text buffer and
// returns per-line annotations.
//
// Analyze is a pure function of its input: the same buffer and options
// always produce the same Result. Nothing is carried between calls except
// through the optional Analyzer cache, which only memoizes.
package analysis

import (
	"strings"

	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/grouping"
	"github.com/FocuswithJustin/LyricScope/core/phonetic"
)

// Group kinds as they appear in annotations.
const (
	GroupNone      = "none"
	GroupRhyme     = "rhyme"
	GroupNearRhyme = "near-rhyme"
)

// Options controls a single analysis.
type Options struct {
	// Marker is the line content that separates sections.
	Marker string `json:"marker"`
	// Palette is the number of colour identifiers groups cycle through.
	Palette int `json:"palette"`
}

// DefaultOptions returns the `---` marker and a 30 colour palette.
func DefaultOptions() Options {
	return Options{Marker: grouping.DefaultMarker, Palette: grouping.PaletteSize}
}

func (o Options) withDefaults() Options {
	if o.Marker == "" {
		o.Marker = grouping.DefaultMarker
	}
	if o.Palette <= 0 {
		o.Palette = grouping.PaletteSize
	}
	return o
}

// Annotation describes one line of the buffer.
type Annotation struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Kind     string `json:"kind"`
	LastWord string `json:"last_word,omitempty"`
	// Section is -1 for break marker lines.
	Section int `json:"section"`
	// Syllables is nil for blank and break marker lines.
	Syllables  *int   `json:"syllables,omitempty"`
	Group      string `json:"group"`
	GroupIndex *int   `json:"group_index,omitempty"`
	Color      *int   `json:"color,omitempty"`
}

// Grouped reports whether the line belongs to a rhyme or near-rhyme group.
func (a Annotation) Grouped() bool {
	return a.Group != GroupNone
}

// Section summarizes a run of lines between break markers.
type Section struct {
	Index int `json:"index"`
	// Start and End are inclusive line indices; Start > End for an empty
	// section between adjacent markers.
	Start     int `json:"start"`
	End       int `json:"end"`
	Lines     int `json:"lines"`
	Syllables int `json:"syllables"`
	// Scheme has one letter per content line: upper case for rhyme groups,
	// lower case for near-rhyme groups, '-' for ungrouped lines. Letters
	// are assigned in order of first appearance within the section.
	Scheme string `json:"scheme"`
}

// Stats totals a Result.
type Stats struct {
	Lines           int `json:"lines"`
	ContentLines    int `json:"content_lines"`
	Syllables       int `json:"syllables"`
	RhymeGroups     int `json:"rhyme_groups"`
	NearRhymeGroups int `json:"near_rhyme_groups"`
	GroupedLines    int `json:"grouped_lines"`
}

// Result is the full analysis of one buffer.
type Result struct {
	Digest          string       `json:"digest"`
	Options         Options      `json:"options"`
	Lines           []Annotation `json:"lines"`
	RhymeGroups     [][]int      `json:"rhyme_groups"`
	NearRhymeGroups [][]int      `json:"near_rhyme_groups"`
	Sections        []Section    `json:"sections"`
	Stats           Stats        `json:"stats"`
}

// SplitLines splits a buffer on newlines, accepting CRLF. An empty buffer
// has no lines.
func SplitLines(buffer string) []string {
	if buffer == "" {
		return nil
	}
	buffer = strings.ReplaceAll(buffer, "\r\n", "\n")
	return strings.Split(buffer, "\n")
}

// Analyze annotates every line of buffer.
func Analyze(buffer string, opts Options) *Result {
	return analyze(buffer, digest.String(buffer), opts)
}

func analyze(buffer, sum string, opts Options) *Result {
	opts = opts.withDefaults()
	lines := grouping.ParseLines(SplitLines(buffer), opts.Marker)
	groups := grouping.Build(lines)
	sections := grouping.NewSections(lines)

	res := &Result{
		Digest:          sum,
		Options:         opts,
		Lines:           make([]Annotation, len(lines)),
		RhymeGroups:     flatten(groups.RhymeGroups),
		NearRhymeGroups: flatten(groups.NearRhymeGroups),
	}

	for i, line := range lines {
		ann := Annotation{
			Index:    i,
			Text:     line.Text,
			Kind:     line.Kind.String(),
			LastWord: line.LastWord,
			Section:  sections.SectionOf(i),
			Group:    GroupNone,
		}
		if line.Kind == grouping.LineContent {
			n := phonetic.CountLineSyllables(line.Text)
			ann.Syllables = &n
			res.Stats.ContentLines++
			res.Stats.Syllables += n
		}
		if g, ok := groups.GroupOf(i); ok {
			index := g.Index
			color := g.Index % opts.Palette
			ann.Group = g.Kind.String()
			ann.GroupIndex = &index
			ann.Color = &color
			res.Stats.GroupedLines++
		}
		res.Lines[i] = ann
	}

	res.Sections = summarizeSections(res.Lines, sections)
	res.Stats.Lines = len(lines)
	res.Stats.RhymeGroups = len(res.RhymeGroups)
	res.Stats.NearRhymeGroups = len(res.NearRhymeGroups)
	return res
}

func flatten(groups []grouping.Group) [][]int {
	out := make([][]int, len(groups))
	for i, g := range groups {
		out[i] = append([]int(nil), g.Lines...)
	}
	return out
}

func summarizeSections(lines []Annotation, sections *grouping.Sections) []Section {
	out := make([]Section, sections.Count())
	for n := range out {
		start, end := sections.Bounds(n)
		sec := Section{Index: n, Start: start, End: end}

		upper := make(map[int]byte)
		lower := make(map[int]byte)
		var scheme strings.Builder
		for i := start; i <= end; i++ {
			ann := lines[i]
			if ann.Syllables == nil {
				continue
			}
			sec.Lines++
			sec.Syllables += *ann.Syllables
			switch ann.Group {
			case GroupRhyme:
				scheme.WriteByte(letterFor(upper, *ann.GroupIndex, 'A'))
			case GroupNearRhyme:
				scheme.WriteByte(letterFor(lower, *ann.GroupIndex, 'a'))
			default:
				scheme.WriteByte('-')
			}
		}
		sec.Scheme = scheme.String()
		out[n] = sec
	}
	return out
}

// letterFor assigns the next letter to an unseen group. Letters wrap after
// z.
func letterFor(seen map[int]byte, group int, base byte) byte {
	if l, ok := seen[group]; ok {
		return l
	}
	l := base + byte(len(seen)%26)
	seen[group] = l
	return l
}
