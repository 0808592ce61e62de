package geometry

import "math"

// Zoom limits of a viewport.
const (
	MinZoom  = 0.25
	MaxZoom  = 3.0
	ZoomStep = 0.25
)

// Viewport describes how a page is displayed: the logical page size, the
// user selected zoom and the device pixel ratio of the canvas.
type Viewport struct {
	Page       Size
	Zoom       float64
	PixelRatio float64
}

// NewViewport returns a viewport at 100% zoom on a standard density display.
func NewViewport(page Size) *Viewport {
	return &Viewport{Page: page, Zoom: 1, PixelRatio: 1}
}

// SetZoom sets the zoom level, snapped to ZoomStep and limited to
// [MinZoom, MaxZoom], and returns the value applied.
func (v *Viewport) SetZoom(z float64) float64 {
	z = math.Round(z/ZoomStep) * ZoomStep
	v.Zoom = clamp(z, MinZoom, MaxZoom)
	return v.Zoom
}

// ZoomIn increases the zoom by one step.
func (v *Viewport) ZoomIn() float64 {
	return v.SetZoom(v.Zoom + ZoomStep)
}

// ZoomOut decreases the zoom by one step.
func (v *Viewport) ZoomOut() float64 {
	return v.SetZoom(v.Zoom - ZoomStep)
}

// RenderSize returns the canvas size in device pixels.
func (v *Viewport) RenderSize() Size {
	ratio := v.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	return v.Page.Scale(v.Zoom * ratio)
}

// ToLogical converts a device pixel position on the canvas to logical space.
func (v *Viewport) ToLogical(p Pt) (Pt, error) {
	return ToLogical(p, v.RenderSize(), v.Page)
}

// ToRender converts a logical position to a device pixel position.
func (v *Viewport) ToRender(p Pt) (Pt, error) {
	return ToRender(p, v.RenderSize(), v.Page)
}
