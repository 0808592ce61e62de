package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/digitorus/pdfmark/fonts"
	"github.com/digitorus/pdfmark/images"
)

// Color represents an RGB color.
type Color struct {
	R, G, B uint8
}

// Colors of the graphical digital signature box.
var (
	DigitalFill   = Color{220, 252, 231}
	DigitalBorder = Color{22, 163, 74}
	DigitalText   = Color{21, 128, 61}
)

// ParseColor parses a #RGB or #RRGGBB color.
func ParseColor(s string) (Color, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// TextAlign defines horizontal text alignment.
type TextAlign int

const (
	// AlignLeft aligns text to the left.
	AlignLeft TextAlign = iota
	// AlignCenter aligns text to the center.
	AlignCenter
	// AlignRight aligns text to the right.
	AlignRight
)

func (a TextAlign) String() string {
	switch a {
	case AlignCenter:
		return "C"
	case AlignRight:
		return "R"
	}
	return "L"
}

// ImageScale defines how images are scaled.
type ImageScale int

const (
	// ScaleStretch stretches the image to fill the rectangle.
	ScaleStretch ImageScale = iota
	// ScaleFit proportionally scales the image to fit within the rectangle.
	ScaleFit
)

// Appearance is the drawing of one mark. Element coordinates are relative
// to the top-left corner of the mark.
type Appearance struct {
	Width, Height float64
	Elements      []Element
	BGColor       *Color
	BorderWidth   float64
	BorderColor   *Color
}

// Element is an interface for visual elements in an appearance.
type Element interface {
	IsElement()
}

// ImageElement defines a raster image in an appearance.
type ImageElement struct {
	Image               *images.Image
	X, Y, Width, Height float64
	Scale               ImageScale
}

func (ImageElement) IsElement() {}

// TextElement is one line of text set in a box. The text is vertically
// centred in the box.
type TextElement struct {
	Content             string
	Font                *fonts.Font
	Size                float64
	X, Y, Width, Height float64
	Color               Color
	Align               TextAlign
	AutoSize            bool // Shrink Size until the text fits the box
}

func (TextElement) IsElement() {}

// ShapeElement defines a rectangle.
type ShapeElement struct {
	X, Y, Width, Height    float64
	StrokeColor, FillColor *Color
	StrokeWidth            float64
}

func (ShapeElement) IsElement() {}

// LineElement defines a line shape in an appearance.
type LineElement struct {
	X1, Y1, X2, Y2 float64
	StrokeColor    Color
	StrokeWidth    float64
}

func (LineElement) IsElement() {}
