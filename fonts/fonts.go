// Package fonts provides font resources and metrics for text marks.
//
// Text marks are drawn with one of the standard PDF fonts. Their on-page
// size is estimated from TrueType metrics so that a mark can be sized before
// any PDF is produced.
package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// StandardType represents standard PDF fonts that are available in all PDF
// readers without embedding.
type StandardType int

const (
	// Helvetica is the standard sans-serif font.
	Helvetica StandardType = iota
	// HelveticaBold is bold Helvetica.
	HelveticaBold
	// HelveticaOblique is italic/oblique Helvetica.
	HelveticaOblique
	// TimesRoman is the standard serif font.
	TimesRoman
	// TimesBold is bold Times Roman.
	TimesBold
	// Courier is the standard monospace font.
	Courier
	// CourierBold is bold Courier.
	CourierBold
)

// Font represents a font resource that can be used for text marks.
type Font struct {
	Name    string   // PostScript name of the font
	Family  string   // Family name as understood by core font writers
	Style   string   // "", "B" or "I"
	Metrics *Metrics // Metrics used for text measurement
}

var standardFonts = map[StandardType]Font{
	Helvetica:        {Name: "Helvetica", Family: "Helvetica"},
	HelveticaBold:    {Name: "Helvetica-Bold", Family: "Helvetica", Style: "B"},
	HelveticaOblique: {Name: "Helvetica-Oblique", Family: "Helvetica", Style: "I"},
	TimesRoman:       {Name: "Times-Roman", Family: "Times"},
	TimesBold:        {Name: "Times-Bold", Family: "Times", Style: "B"},
	Courier:          {Name: "Courier", Family: "Courier"},
	CourierBold:      {Name: "Courier-Bold", Family: "Courier", Style: "B"},
}

// Standard returns a Font for a standard PDF font. Its metrics are
// approximated with the default metrics.
func Standard(ft StandardType) *Font {
	f, ok := standardFonts[ft]
	if !ok {
		f = standardFonts[Helvetica]
	}
	f.Metrics = Default()
	return &f
}

// Metrics contains parsed font metrics for text measurement.
type Metrics struct {
	UnitsPerEm  int
	GlyphWidths map[rune]int // Advance widths in font units
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the metrics of the Go Regular font, a proportional sans
// serif close enough to Helvetica for layout estimates.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := ParseTTFMetrics(goregular.TTF)
		if err != nil {
			panic(fmt.Sprintf("fonts: embedded font is invalid: %v", err))
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// ParseTTFMetrics parses a TrueType font file and extracts glyph metrics for
// the Latin-1 range.
func ParseTTFMetrics(data []byte) (*Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, err
	}

	unitsPerEm := f.UnitsPerEm()
	glyphWidths := make(map[rune]int)
	var buf sfnt.Buffer

	// Use unitsPerEm as the ppem so advances come back in font units.
	ppem := fixed.Int26_6(unitsPerEm) << 6

	for r := rune(32); r <= rune(255); r++ {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			continue
		}

		advance, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			continue
		}
		glyphWidths[r] = int(advance >> 6)
	}

	return &Metrics{
		UnitsPerEm:  int(unitsPerEm),
		GlyphWidths: glyphWidths,
	}, nil
}

// GetStringWidth calculates the width of a string in points at the given font size.
func (m *Metrics) GetStringWidth(text string, fontSize float64) float64 {
	if m == nil || m.UnitsPerEm == 0 {
		return float64(len([]rune(text))) * fontSize * 0.5
	}

	var totalWidth int
	for _, r := range text {
		totalWidth += m.GetGlyphWidth(r)
	}
	return (float64(totalWidth) / float64(m.UnitsPerEm)) * fontSize
}

// GetGlyphWidth returns the width of a single rune in font units.
func (m *Metrics) GetGlyphWidth(r rune) int {
	if m == nil {
		return 0
	}
	if width, ok := m.GlyphWidths[r]; ok {
		return width
	}
	return m.UnitsPerEm / 2
}

// FitSize returns the largest font size not above size, and not below
// minSize, at which text fits into a box of width w and height h.
func (m *Metrics) FitSize(text string, size, minSize, w, h float64) float64 {
	for size > minSize {
		if m.GetStringWidth(text, size) <= w && size <= h {
			break
		}
		size--
	}
	return max(size, minSize)
}
