// Package geometry maps positions between the zoom independent logical space
// of a page and the pixel space of a rendered page.
//
// Logical coordinates are PDF points with the origin in the top-left corner
// of the page. Conversion to the bottom-left origin used inside PDF files is
// only done by Rect.ToPDF.
package geometry

import (
	"errors"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"
)

// Unit sizes expressed in PDF points.
const (
	Point      = 1.0
	Inch       = 72.0
	Millimeter = Inch / 25.4
	Centimeter = Millimeter * 10
)

// ErrInvalidDimension is returned when a render or page box has a zero,
// negative or non-finite width or height.
var ErrInvalidDimension = errors.New("invalid dimension")

// Pt is a position in logical or render space.
type Pt = vec.Vec2

// Size is a width and height.
type Size struct {
	Width, Height float64
}

// Common page sizes in points.
var (
	A4     = Size{Width: 595, Height: 842}
	A5     = Size{Width: 420, Height: 595}
	Letter = Size{Width: 612, Height: 792}
	Legal  = Size{Width: 612, Height: 1008}
)

// Valid reports whether both dimensions are positive and finite.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 1) && !math.IsInf(s.Height, 1)
}

// Scale returns s multiplied by f.
func (s Size) Scale(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

// Half returns the centre offset of a box of this size.
func (s Size) Half() Pt {
	return Pt{X: s.Width / 2, Y: s.Height / 2}
}

// ToLogical converts a point on a page rendered at render size into the
// logical space of a page with the given size. The result is not clamped.
// A non-finite point, or sizes whose ratio overflows, give ErrInvalidDimension.
func ToLogical(p Pt, render, page Size) (Pt, error) {
	if !render.Valid() || !page.Valid() {
		return Pt{}, ErrInvalidDimension
	}
	return apply(toLogicalMatrix(render, page), p)
}

// ToRender converts a logical point into the render space. It is the inverse
// of ToLogical for the same sizes.
func ToRender(p Pt, render, page Size) (Pt, error) {
	if !render.Valid() || !page.Valid() {
		return Pt{}, ErrInvalidDimension
	}
	return apply(toRenderMatrix(render, page), p)
}

func toLogicalMatrix(render, page Size) matrix.Matrix {
	return matrix.Scale(page.Width/render.Width, page.Height/render.Height)
}

func toRenderMatrix(render, page Size) matrix.Matrix {
	return matrix.Scale(render.Width/page.Width, render.Height/page.Height)
}

func apply(m matrix.Matrix, p Pt) (Pt, error) {
	x, y := m.Apply(p.X, p.Y)
	if !finite(x) || !finite(y) {
		return Pt{}, ErrInvalidDimension
	}
	return Pt{X: x, Y: y}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
