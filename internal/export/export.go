// Package export renders analysis results for people and programs.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
	"github.com/FocuswithJustin/LyricScope/core/errors"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatANSI Format = "ansi"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatHTML, FormatANSI}

// ParseFormat maps a user supplied name to a Format. The empty string is
// text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "txt":
		return FormatText, nil
	case "htm":
		return FormatHTML, nil
	case FormatText, FormatJSON, FormatHTML, FormatANSI:
		return f, nil
	}
	return "", errors.NewUnsupported("export format", s)
}

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatHTML:
		return ".html"
	case FormatANSI:
		return ".ans"
	default:
		return ".txt"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Options controls rendering.
type Options struct {
	// Title heads the text, HTML and ANSI output when set.
	Title string
	// ForceColor emits ANSI colour codes even when w is not a terminal.
	ForceColor bool
}

// Write renders res to w.
func Write(w io.Writer, res *analysis.Result, format Format, opts Options) error {
	if res == nil {
		return errors.NewValidation("result", "nothing to export")
	}
	switch format {
	case FormatText:
		return writeText(w, res, opts)
	case FormatJSON:
		return writeJSON(w, res)
	case FormatHTML:
		return writeHTML(w, res, opts)
	case FormatANSI:
		return writeANSI(w, res, opts)
	}
	return errors.NewUnsupported("export format", string(format))
}

// Render renders res into memory.
func Render(res *analysis.Result, format Format, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress wraps w in an xz stream. The caller must Close the returned
// writer to flush the stream; it does not close w.
func Compress(w io.Writer) (io.WriteCloser, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	return zw, nil
}

// Decompress reads an xz stream.
func Decompress(r io.Reader) (io.Reader, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, errors.NewParse("xz", "", err.Error())
	}
	return zr, nil
}

func writeJSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// tag is the short group label shown in the gutter, numbered from 1.
func tag(a analysis.Annotation) string {
	if a.GroupIndex == nil {
		return ""
	}
	switch a.Group {
	case analysis.GroupRhyme:
		return fmt.Sprintf("R%d", *a.GroupIndex+1)
	case analysis.GroupNearRhyme:
		return fmt.Sprintf("N%d", *a.GroupIndex+1)
	}
	return ""
}

func syllables(a analysis.Annotation) string {
	if a.Syllables == nil {
		return ""
	}
	return fmt.Sprintf("%d", *a.Syllables)
}

func writeText(w io.Writer, res *analysis.Result, opts Options) error {
	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(opts.Title + "\n\n")
	}
	for _, a := range res.Lines {
		line := fmt.Sprintf("%3s %-4s| %s", syllables(a), tag(a), a.Text)
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	writeSummary(&b, res)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(b *strings.Builder, res *analysis.Result) {
	if len(res.Lines) == 0 {
		return
	}
	b.WriteString("\n")
	for _, s := range res.Sections {
		scheme := s.Scheme
		if scheme == "" {
			scheme = "(empty)"
		}
		fmt.Fprintf(b, "section %d: %s (%d lines, %d syllables)\n", s.Index+1, scheme, s.Lines, s.Syllables)
	}
	fmt.Fprintf(b, "%d rhyme groups, %d near-rhyme groups\n", res.Stats.RhymeGroups, res.Stats.NearRhymeGroups)
}
