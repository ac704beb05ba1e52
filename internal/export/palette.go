package export

import (
	"fmt"

	"github.com/FocuswithJustin/LyricScope/core/grouping"
)

// Swatch is one entry of the group palette.
type Swatch struct {
	ID  string `json:"id"`
	Hex string `json:"hex"`
}

var paletteHex = [grouping.PaletteSize]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#a9a9a9",
	"#ff6f61", "#6b5b95", "#88b04b", "#f7cac9", "#92a8d1",
	"#955251", "#b565a7", "#009b77", "#dd4124", "#45b8ac",
}

// Palette returns the colour identifiers in index order. Identifiers are
// stable so that clients can style them.
func Palette() []Swatch {
	out := make([]Swatch, len(paletteHex))
	for i, hex := range paletteHex {
		out[i] = Swatch{ID: ColorID(i), Hex: hex}
	}
	return out
}

// ColorID returns the identifier of colour index i, wrapping around the
// palette.
func ColorID(i int) string {
	return fmt.Sprintf("color-%02d", wrap(i))
}

// ColorHex returns the hex value of colour index i, wrapping around the
// palette.
func ColorHex(i int) string {
	return paletteHex[wrap(i)]
}

func wrap(i int) int {
	i %= len(paletteHex)
	if i < 0 {
		i += len(paletteHex)
	}
	return i
}
