// Package importer converts lyric files into a plain text buffer that the
// analyzer understands: one lyric line per line, sections separated by the
// break marker.
package importer

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/core/grouping"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
)

// Format names an input format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatChordPro Format = "chordpro"
	FormatMusicXML Format = "musicxml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatChordPro, FormatMusicXML}

// ParseFormat maps a user supplied name to a Format. "" and "auto" return
// the empty Format, which asks Import to detect.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", nil
	case "text", "txt", "plain":
		return FormatText, nil
	case "chordpro", "cho", "chopro":
		return FormatChordPro, nil
	case "musicxml", "xml":
		return FormatMusicXML, nil
	}
	return "", errors.NewUnsupported("import format", s)
}

// Options controls an import.
type Options struct {
	// Marker is written between sections. Empty uses the default marker.
	Marker string
}

// Document is an imported lyric buffer.
type Document struct {
	Format Format `json:"format"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Lines  int    `json:"lines"`
}

var chordProExt = map[string]bool{
	".cho": true, ".chordpro": true, ".chopro": true, ".crd": true, ".pro": true,
}

var directiveLine = regexp.MustCompile(`(?m)^[ \t]*\{[A-Za-z_]+(:[^}\n]*)?\}[ \t]*$`)

// Detect picks the format of a file, by extension first and then by
// content.
func Detect(name string, data []byte) Format {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case chordProExt[ext]:
		return FormatChordPro
	case ext == ".musicxml" || ext == ".xml":
		return FormatMusicXML
	case ext == ".txt" || ext == ".lyrics":
		return FormatText
	}

	head := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(head) > 4096 {
		head = head[:4096]
	}
	switch {
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.Contains(head, []byte("<score-partwise")):
		return FormatMusicXML
	case directiveLine.Match(head):
		return FormatChordPro
	}
	return FormatText
}

// Import detects the format of data and converts it.
func Import(name string, data []byte, opts Options) (*Document, error) {
	return ImportAs(Detect(name, data), name, data, opts)
}

// ImportAs converts data read from name using the given format. An empty
// format detects.
func ImportAs(format Format, name string, data []byte, opts Options) (*Document, error) {
	if format == "" {
		format = Detect(name, data)
	}
	if opts.Marker == "" {
		opts.Marker = grouping.DefaultMarker
	}

	var (
		doc *Document
		err error
	)
	switch format {
	case FormatText:
		doc, err = importText(name, data)
	case FormatChordPro:
		doc, err = importChordPro(name, data, opts)
	case FormatMusicXML:
		doc, err = importMusicXML(name, data, opts)
	default:
		return nil, errors.NewUnsupported("import format", string(format))
	}
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = titleFromName(name)
	}
	doc.Format = format
	doc.Lines = countLines(doc.Body)

	logging.ImportEvent(string(format), name, doc.Lines)
	return doc, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeText strips a byte order mark and converts line endings to LF.
func normalizeText(format, name string, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.NewParse(format, name, "input is not valid UTF-8")
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}

func importText(name string, data []byte) (*Document, error) {
	body, err := normalizeText("text", name, data)
	if err != nil {
		return nil, err
	}
	return &Document{Body: strings.TrimRight(body, "\n")}, nil
}

func titleFromName(name string) string {
	if name == "" || name == "-" {
		return ""
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func countLines(body string) int {
	if body == "" {
		return 0
	}
	return strings.Count(body, "\n") + 1
}

// bodyBuilder assembles an imported buffer. Blank lines never lead or
// repeat, and break markers only separate content.
type bodyBuilder struct {
	marker  string
	lines   []string
	pending bool
}

func (b *bodyBuilder) line(s string) {
	s = strings.TrimRight(s, " \t")
	if strings.TrimSpace(s) == "" {
		b.blank()
		return
	}
	if b.pending {
		b.trimBlank()
		b.lines = append(b.lines, b.marker)
		b.pending = false
	}
	b.lines = append(b.lines, s)
}

func (b *bodyBuilder) blank() {
	if b.pending || len(b.lines) == 0 {
		return
	}
	if last := b.lines[len(b.lines)-1]; last == "" || last == b.marker {
		return
	}
	b.lines = append(b.lines, "")
}

// sectionBreak requests a marker before the next content line.
func (b *bodyBuilder) sectionBreak() {
	b.trimBlank()
	if len(b.lines) > 0 {
		b.pending = true
	}
}

func (b *bodyBuilder) trimBlank() {
	for len(b.lines) > 0 && b.lines[len(b.lines)-1] == "" {
		b.lines = b.lines[:len(b.lines)-1]
	}
}

func (b *bodyBuilder) String() string {
	b.trimBlank()
	return strings.Join(b.lines, "\n")
}
