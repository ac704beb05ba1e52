package importer

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/LyricScope/core/errors"
)

// chordProFile is the participle grammar for a ChordPro song.
type chordProFile struct {
	Lines []*chordProLine `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chordProLine struct {
	Parts []*chordProPart `@@*`
	EOL   string          `@Newline`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chordProPart struct {
	Directive string `  @Directive`
	Chord     string `| @Chord`
	Text      string `| @(Text | Stray)`
}

// chordProLexer splits a line into directives, chords and lyric text.
// Order matters: bracketed tokens are tried before free text, and a
// bracket with no partner falls through to Stray.
var chordProLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Directive", Pattern: `\{[^}\n]*\}`},
	{Name: "Chord", Pattern: `\[[^\]\n]*\]`},
	{Name: "Newline", Pattern: `\n`},
	{Name: "Text", Pattern: `[^\[\{\n]+`},
	{Name: "Stray", Pattern: `[\[\{]`},
})

var chordProParser = participle.MustBuild[chordProFile](
	participle.Lexer(chordProLexer),
)

// directive is a parsed {name: value} tag.
type directive struct {
	name  string
	value string
}

func parseDirective(tok string) directive {
	tok = strings.TrimSuffix(strings.TrimPrefix(tok, "{"), "}")
	name, value, _ := strings.Cut(tok, ":")
	if i := strings.IndexAny(name, " \t"); i >= 0 && value == "" {
		name, value = name[:i], name[i+1:]
	}
	return directive{
		name:  strings.ToLower(strings.TrimSpace(name)),
		value: strings.TrimSpace(value),
	}
}

// sectionKind reports which block a directive opens or closes.
func sectionKind(name string) (kind string, start, end bool) {
	switch name {
	case "soc":
		return "chorus", true, false
	case "eoc":
		return "chorus", false, true
	case "sov":
		return "verse", true, false
	case "eov":
		return "verse", false, true
	case "sob":
		return "bridge", true, false
	case "eob":
		return "bridge", false, true
	case "sot":
		return "tab", true, false
	case "eot":
		return "tab", false, true
	case "sog":
		return "grid", true, false
	case "eog":
		return "grid", false, true
	}
	if k, ok := strings.CutPrefix(name, "start_of_"); ok {
		return k, true, false
	}
	if k, ok := strings.CutPrefix(name, "end_of_"); ok {
		return k, false, true
	}
	return "", false, false
}

// skipsLyrics reports whether a block holds notation rather than words.
func skipsLyrics(kind string) bool {
	switch kind {
	case "tab", "grid", "abc", "ly", "svg", "textblock":
		return true
	}
	return false
}

func importChordPro(name string, data []byte, opts Options) (*Document, error) {
	src, err := normalizeText("ChordPro", name, data)
	if err != nil {
		return nil, err
	}
	src = stripComments(src)
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}

	file, err := chordProParser.ParseString(name, src)
	if err != nil {
		return nil, errors.NewParse("ChordPro", name, err.Error())
	}

	doc := &Document{}
	b := &bodyBuilder{marker: opts.Marker}
	var (
		block    string
		inChorus bool
		chorus   []string
		recorded []string
	)

	for _, ln := range file.Lines {
		var (
			text      strings.Builder
			chords    bool
			onlyMeta  = len(ln.Parts) > 0
			lineNotes []directive
		)
		for _, p := range ln.Parts {
			switch {
			case p.Directive != "":
				lineNotes = append(lineNotes, parseDirective(p.Directive))
			case p.Chord != "":
				chords = true
			default:
				text.WriteString(p.Text)
				if strings.TrimSpace(p.Text) != "" {
					onlyMeta = false
				}
			}
		}
		if len(lineNotes) == 0 {
			onlyMeta = false
		}

		if onlyMeta {
			for _, d := range lineNotes {
				switch d.name {
				case "title", "t":
					if doc.Title == "" {
						doc.Title = d.value
					}
					continue
				case "chorus":
					// Recall the most recent chorus as its own section.
					if len(recorded) > 0 {
						b.sectionBreak()
						for _, l := range recorded {
							b.line(l)
						}
						b.sectionBreak()
					}
					continue
				}
				kind, start, end := sectionKind(d.name)
				switch {
				case start:
					block = kind
					if kind == "chorus" {
						inChorus = true
						chorus = nil
					}
					if !skipsLyrics(kind) {
						b.sectionBreak()
					}
				case end:
					if kind == "chorus" && inChorus {
						inChorus = false
						recorded = chorus
					}
					if !skipsLyrics(block) {
						b.sectionBreak()
					}
					block = ""
				}
			}
			continue
		}

		if skipsLyrics(block) {
			continue
		}
		lyric := collapseSpaces(text.String())
		if lyric == "" && chords {
			continue
		}
		if inChorus {
			chorus = append(chorus, lyric)
		}
		b.line(lyric)
	}

	doc.Body = b.String()
	return doc, nil
}

// stripComments drops lines whose first non-blank character is '#'.
func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l, " \t"), "#") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// collapseSpaces folds the runs of spaces left behind by removed chords.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
