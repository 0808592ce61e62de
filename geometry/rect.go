package geometry

import (
	"seehuhn.de/go/geom/rect"
)

// Rect is an axis aligned box in logical space. X and Y locate the top-left
// corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// RectAt returns a box of size s with its top-left corner at p.
func RectAt(p Pt, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

// CenteredAt returns a box of size s centred on p.
func CenteredAt(p Pt, s Size) Rect {
	return RectAt(p.Sub(s.Half()), s)
}

// Origin returns the top-left corner.
func (r Rect) Origin() Pt {
	return Pt{X: r.X, Y: r.Y}
}

// Size returns the width and height.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Moved returns r with its top-left corner at p.
func (r Rect) Moved(p Pt) Rect {
	r.X, r.Y = p.X, p.Y
	return r
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Inside reports whether r lies fully within a page of the given size.
func (r Rect) Inside(page Size) bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps &&
		r.X+r.Width <= page.Width+eps && r.Y+r.Height <= page.Height+eps
}

// Clamp moves r so that it lies fully inside a page of the given size. A box
// larger than the page is first shrunk to the page size.
func Clamp(r Rect, page Size) Rect {
	r.Width = clamp(r.Width, 0, page.Width)
	r.Height = clamp(r.Height, 0, page.Height)
	r.X = clamp(r.X, 0, page.Width-r.Width)
	r.Y = clamp(r.Y, 0, page.Height-r.Height)
	return r
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PageBox returns the PDF media box of a page with the given size.
func PageBox(s Size) rect.Rect {
	return rect.Rect{URx: s.Width, URy: s.Height}
}

// ToPDF converts r into PDF user space for a page with the given media box,
// where the origin is the bottom-left corner of the box.
func (r Rect) ToPDF(mediaBox rect.Rect) rect.Rect {
	top := mediaBox.URy - r.Y
	return rect.Rect{
		LLx: mediaBox.LLx + r.X,
		LLy: top - r.Height,
		URx: mediaBox.LLx + r.X + r.Width,
		URy: top,
	}
}

// FromPDF converts a rectangle in PDF user space back into logical space.
func FromPDF(pdfRect, mediaBox rect.Rect) Rect {
	return Rect{
		X:      pdfRect.LLx - mediaBox.LLx,
		Y:      mediaBox.URy - pdfRect.URy,
		Width:  pdfRect.Dx(),
		Height: pdfRect.Dy(),
	}
}

// SizeOf returns the dimensions of a media box.
func SizeOf(mediaBox rect.Rect) Size {
	return Size{Width: mediaBox.Dx(), Height: mediaBox.Dy()}
}
