package importer

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/LyricScope/core/errors"
)

// Compiled once; xmlquery evaluates them relative to the node passed in.
var (
	xpPartwise      = xpath.MustCompile(`/score-partwise`)
	xpTimewise      = xpath.MustCompile(`/score-timewise`)
	xpWorkTitle     = xpath.MustCompile(`/score-partwise/work/work-title`)
	xpMovementTitle = xpath.MustCompile(`/score-partwise/movement-title`)
	xpParts         = xpath.MustCompile(`/score-partwise/part`)
	xpMeasures      = xpath.MustCompile(`measure`)
	xpNewSystem     = xpath.MustCompile(`print[@new-system='yes' or @new-page='yes']`)
	xpNotes         = xpath.MustCompile(`note`)
	xpVerseOne      = xpath.MustCompile(`lyric[@number='1' or not(@number)]`)
	xpAnyVerseOne   = xpath.MustCompile(`.//note/lyric[@number='1' or not(@number)]`)
	xpAnyEndLine    = xpath.MustCompile(`//lyric/end-line`)
	xpText          = xpath.MustCompile(`text`)
	xpSyllabic      = xpath.MustCompile(`syllabic`)
	xpEndLine       = xpath.MustCompile(`end-line`)
	xpEndParagraph  = xpath.MustCompile(`end-paragraph`)
)

func importMusicXML(name string, data []byte, opts Options) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	if err != nil {
		return nil, errors.NewParse("MusicXML", name, err.Error())
	}
	if xmlquery.QuerySelector(root, xpPartwise) == nil {
		if xmlquery.QuerySelector(root, xpTimewise) != nil {
			return nil, errors.NewUnsupported("MusicXML layout", "score-timewise")
		}
		return nil, errors.NewParse("MusicXML", name, "missing score-partwise root")
	}

	doc := &Document{Title: firstText(root, xpWorkTitle, xpMovementTitle)}

	// Parts often double the same words across voices; use the first
	// part that carries any verse one lyric.
	var part *xmlquery.Node
	for _, p := range xmlquery.QuerySelectorAll(root, xpParts) {
		if xmlquery.QuerySelector(p, xpAnyVerseOne) != nil {
			part = p
			break
		}
	}
	if part == nil {
		return doc, nil
	}

	// Scores without explicit line ends fall back to system breaks.
	systemBreaks := xmlquery.QuerySelector(root, xpAnyEndLine) == nil

	b := &bodyBuilder{marker: opts.Marker}
	var (
		cur  strings.Builder
		join bool
	)
	flush := func() {
		if cur.Len() > 0 {
			b.line(cur.String())
			cur.Reset()
		}
		join = false
	}

	for _, measure := range xmlquery.QuerySelectorAll(part, xpMeasures) {
		if systemBreaks && xmlquery.QuerySelector(measure, xpNewSystem) != nil {
			flush()
		}
		for _, note := range xmlquery.QuerySelectorAll(measure, xpNotes) {
			lyric := xmlquery.QuerySelector(note, xpVerseOne)
			if lyric == nil {
				continue
			}

			var words []string
			for _, t := range xmlquery.QuerySelectorAll(lyric, xpText) {
				if w := strings.TrimSpace(t.InnerText()); w != "" {
					words = append(words, w)
				}
			}
			if len(words) > 0 {
				if cur.Len() > 0 && !join {
					cur.WriteByte(' ')
				}
				cur.WriteString(strings.Join(words, " "))

				syllabic := "single"
				if s := xmlquery.QuerySelector(lyric, xpSyllabic); s != nil {
					syllabic = strings.TrimSpace(s.InnerText())
				}
				join = syllabic == "begin" || syllabic == "middle"
			}

			switch {
			case xmlquery.QuerySelector(lyric, xpEndParagraph) != nil:
				flush()
				b.sectionBreak()
			case xmlquery.QuerySelector(lyric, xpEndLine) != nil:
				flush()
			}
		}
	}
	flush()

	doc.Body = b.String()
	return doc, nil
}

func firstText(root *xmlquery.Node, exprs ...*xpath.Expr) string {
	for _, e := range exprs {
		if n := xmlquery.QuerySelector(root, e); n != nil {
			if s := strings.TrimSpace(n.InnerText()); s != "" {
				return s
			}
		}
	}
	return ""
}
