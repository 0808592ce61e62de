// Package mark defines the annotations placed on a document: signature and
// initial images, text labels and digital signature markers.
//
// Positions are in logical page coordinates (PDF points, top-left origin).
package mark

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/digitorus/pdfmark/fonts"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/images"
)

// Defaults applied to new marks.
const (
	DefaultFontSize = 16.0
	DefaultColor    = "#000000"
	DefaultOpacity  = 1.0
)

// DefaultPlacement is where a mark is put when no click position is known.
var DefaultPlacement = geometry.Pt{X: 200, Y: 500}

var colorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Mark is an annotation anchored on one page of a document.
type Mark struct {
	ID   string
	Page int // 1-based
	geometry.Rect
	Kind     Kind
	Payload  Payload
	Color    string
	Opacity  float64
	Rotation float64 // Degrees clockwise
	Selected bool
}

// NewID returns a unique mark identifier.
func NewID() string {
	return uuid.NewString()
}

// New returns a mark with a fresh identifier and default presentation.
func New(k Kind, p Payload, page int, r geometry.Rect) *Mark {
	return &Mark{
		ID:      NewID(),
		Page:    page,
		Rect:    r,
		Kind:    k,
		Payload: p,
		Color:   DefaultColor,
		Opacity: DefaultOpacity,
	}
}

// Clone returns a copy of m. Image data is shared.
func (m *Mark) Clone() *Mark {
	c := *m
	return &c
}

// Image returns the image of a signature or initial mark.
func (m *Mark) Image() *images.Image {
	if p, ok := m.Payload.(ImagePayload); ok {
		return p.Image
	}
	return nil
}

// TextPayload returns the text payload and whether m carries one.
func (m *Mark) TextPayload() (TextPayload, bool) {
	p, ok := m.Payload.(TextPayload)
	return p, ok
}

// DigitalPayload returns the signer record and whether m carries one.
func (m *Mark) DigitalPayload() (DigitalPayload, bool) {
	p, ok := m.Payload.(DigitalPayload)
	return p, ok
}

// Sizes holds the initial size of a mark per kind.
type Sizes map[Kind]geometry.Size

// DefaultSizes returns the initial sizes of new marks.
func DefaultSizes() Sizes {
	return Sizes{
		Signature: {Width: 150, Height: 60},
		Initial:   {Width: 80, Height: 40},
		Text:      {Width: 150, Height: 30},
		Digital:   {Width: 200, Height: 80},
	}
}

// For returns the size for k, falling back to 150×40.
func (s Sizes) For(k Kind) geometry.Size {
	if sz, ok := s[k]; ok && sz.Valid() {
		return sz
	}
	return geometry.Size{Width: 150, Height: 40}
}

// TextSize returns the size of a text mark large enough to show p on one
// line, but never smaller than minimum.
func TextSize(p TextPayload, m *fonts.Metrics, minimum geometry.Size) geometry.Size {
	size := p.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}
	return geometry.Size{
		Width:  max(minimum.Width, m.GetStringWidth(p.Text, size)+8),
		Height: max(minimum.Height, size+14),
	}
}

// Edit lists explicit changes to a mark. Nil fields are left unchanged. The
// page of a mark cannot be edited.
type Edit struct {
	X, Y          *float64
	Width, Height *float64
	Color         *string
	Opacity       *float64
	Rotation      *float64
	Text          *string
	FontSize      *float64
	Digital       *DigitalPayload
	Image         *images.Image
}

// Apply returns a copy of m with e applied. The result is not clamped to the
// page.
func Apply(m *Mark, e Edit) (*Mark, error) {
	c := m.Clone()
	if e.X != nil {
		c.X = *e.X
	}
	if e.Y != nil {
		c.Y = *e.Y
	}
	if e.Width != nil {
		if *e.Width <= 0 {
			return nil, errors.New("width must be positive")
		}
		c.Width = *e.Width
	}
	if e.Height != nil {
		if *e.Height <= 0 {
			return nil, errors.New("height must be positive")
		}
		c.Height = *e.Height
	}
	if e.Color != nil {
		if !colorRegex.MatchString(*e.Color) {
			return nil, fmt.Errorf("invalid color %q", *e.Color)
		}
		c.Color = *e.Color
	}
	if e.Opacity != nil {
		if *e.Opacity < 0 || *e.Opacity > 1 {
			return nil, fmt.Errorf("opacity %v out of range [0, 1]", *e.Opacity)
		}
		c.Opacity = *e.Opacity
	}
	if e.Rotation != nil {
		c.Rotation = *e.Rotation
	}

	switch p := c.Payload.(type) {
	case TextPayload:
		if e.Text != nil {
			p.Text = *e.Text
		}
		if e.FontSize != nil {
			p.FontSize = *e.FontSize
		}
		c.Payload = p
	case DigitalPayload:
		if e.Digital != nil {
			c.Payload = *e.Digital
		}
	case ImagePayload:
		if e.Image != nil {
			c.Payload = ImagePayload{Image: e.Image}
		}
	}
	if e.Text != nil && c.Kind != Text {
		return nil, fmt.Errorf("text edit on %s mark", c.Kind)
	}

	if err := Validate(c.Kind, c.Payload); err != nil {
		return nil, err
	}
	c.Payload = Normalize(c.Payload)
	return c, nil
}

// ValidColor reports whether s is a #RGB or #RRGGBB colour.
func ValidColor(s string) bool {
	return colorRegex.MatchString(s)
}
