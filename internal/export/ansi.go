package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
)

// ansiStyles holds the styles of one render.
type ansiStyles struct {
	title  lipgloss.Style
	gutter lipgloss.Style
	brk    lipgloss.Style
	rhyme  []lipgloss.Style
	near   []lipgloss.Style
}

func newANSIStyles(r *lipgloss.Renderer) ansiStyles {
	s := ansiStyles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		gutter: r.NewStyle().Foreground(lipgloss.Color("241")),
		brk:    r.NewStyle().Foreground(lipgloss.Color("239")),
		rhyme:  make([]lipgloss.Style, len(paletteHex)),
		near:   make([]lipgloss.Style, len(paletteHex)),
	}
	for i, hex := range paletteHex {
		base := r.NewStyle().Foreground(lipgloss.Color(hex))
		s.rhyme[i] = base.Bold(true)
		s.near[i] = base.Underline(true)
	}
	return s
}

func writeANSI(w io.Writer, res *analysis.Result, opts Options) error {
	r := lipgloss.NewRenderer(w)
	if opts.ForceColor {
		r.SetColorProfile(termenv.TrueColor)
	}
	st := newANSIStyles(r)

	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(st.title.Render(opts.Title) + "\n\n")
	}
	for _, a := range res.Lines {
		gutter := st.gutter.Render(fmt.Sprintf("%3s %-4s│", syllables(a), tag(a)))
		text := a.Text
		switch {
		case a.Kind == "break":
			text = st.brk.Render(text)
		case a.Grouped():
			style := st.rhyme[wrap(*a.Color)]
			if a.Group == analysis.GroupNearRhyme {
				style = st.near[wrap(*a.Color)]
			}
			head, tail := splitLastWord(a.Text, a.LastWord)
			if tail == "" {
				text = style.Render(a.Text)
			} else {
				text = head + style.Render(tail)
			}
		}
		b.WriteString(gutter + " " + text + "\n")
	}
	writeSummary(&b, res)
	_, err := io.WriteString(w, b.String())
	return err
}
