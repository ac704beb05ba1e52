package export

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
)

//go:embed templates/*.html
var templatesFS embed.FS

var sheetTemplate = template.Must(template.New("sheet.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"css": func(s string) template.CSS { return template.CSS(s) },
}).ParseFS(templatesFS, "templates/sheet.html"))

type htmlLine struct {
	Kind      string
	Class     string
	Group     string
	Syllables string
	Tag       string
	Head      string
	Tail      string
}

type htmlPage struct {
	Title   string
	Result  *analysis.Result
	Palette []Swatch
	Lines   []htmlLine
}

func writeHTML(w io.Writer, res *analysis.Result, opts Options) error {
	page := htmlPage{
		Title:   opts.Title,
		Result:  res,
		Palette: Palette(),
		Lines:   make([]htmlLine, len(res.Lines)),
	}
	for i, a := range res.Lines {
		hl := htmlLine{
			Kind:      a.Kind,
			Syllables: syllables(a),
			Tag:       tag(a),
			Head:      a.Text,
		}
		if a.Grouped() {
			hl.Class = a.Group + " " + ColorID(*a.Color)
			hl.Group = tag(a)
			hl.Head, hl.Tail = splitLastWord(a.Text, a.LastWord)
		}
		page.Lines[i] = hl
	}
	return sheetTemplate.Execute(w, page)
}

// splitLastWord separates the final occurrence of word so it can be
// highlighted. The match is case-insensitive because word is normalized.
func splitLastWord(text, word string) (head, tail string) {
	if word == "" {
		return text, ""
	}
	i := strings.LastIndex(strings.ToLower(text), word)
	if i < 0 || len(strings.ToLower(text)) != len(text) {
		return text, ""
	}
	return text[:i], text[i:]
}
