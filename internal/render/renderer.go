// Package render lays out marks and draws them onto fpdf pages.
//
// Layout turns a mark into an Appearance, a list of elements positioned
// relative to the mark's top-left corner. A Renderer draws appearances at a
// position on the current page. fpdf measures from the top-left corner of
// the page, the same way logical mark coordinates do, so marks are drawn at
// their logical position without conversion.
package render

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/digitorus/pdfmark/fonts"
	"github.com/digitorus/pdfmark/images"
	"github.com/digitorus/pdfmark/mark"
)

// Renderer draws appearances onto the current page of a document. It is not
// safe for concurrent use.
type Renderer struct {
	pdf    *fpdf.Fpdf
	enc    *encoding.Encoder
	images map[string]string // Image hash to registered name
}

// NewRenderer returns a Renderer drawing on pdf. The document must use
// points as its unit.
func NewRenderer(pdf *fpdf.Fpdf) *Renderer {
	return &Renderer{
		pdf:    pdf,
		enc:    encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()),
		images: make(map[string]string),
	}
}

// DrawMark lays out m and draws it at its position.
func (r *Renderer) DrawMark(m *mark.Mark, ctx TemplateContext) error {
	a, err := Layout(m, ctx)
	if err != nil {
		return err
	}
	return r.Draw(a, m.X, m.Y, m.Opacity, m.Rotation)
}

// Draw draws a with its top-left corner at (x, y). The appearance is
// rotated clockwise by rotation degrees around its centre.
func (r *Renderer) Draw(a *Appearance, x, y, opacity, rotation float64) error {
	pdf := r.pdf
	if rotation != 0 {
		pdf.TransformBegin()
		pdf.TransformRotate(-rotation, x+a.Width/2, y+a.Height/2)
		defer pdf.TransformEnd()
	}
	if opacity < 1 {
		pdf.SetAlpha(max(opacity, 0), "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}

	if a.BGColor != nil || (a.BorderWidth > 0 && a.BorderColor != nil) {
		r.shape(x, y, ShapeElement{
			Width:       a.Width,
			Height:      a.Height,
			FillColor:   a.BGColor,
			StrokeColor: a.BorderColor,
			StrokeWidth: a.BorderWidth,
		})
	}

	for _, el := range a.Elements {
		switch e := el.(type) {
		case ImageElement:
			if err := r.image(x, y, e); err != nil {
				return err
			}
		case TextElement:
			r.text(x, y, e)
		case ShapeElement:
			r.shape(x, y, e)
		case LineElement:
			pdf.SetDrawColor(int(e.StrokeColor.R), int(e.StrokeColor.G), int(e.StrokeColor.B))
			pdf.SetLineWidth(e.StrokeWidth)
			pdf.Line(x+e.X1, y+e.Y1, x+e.X2, y+e.Y2)
		}
	}
	return pdf.Error()
}

func (r *Renderer) image(x, y float64, e ImageElement) error {
	if e.Image == nil || len(e.Image.Data) == 0 {
		return fmt.Errorf("invalid image data")
	}
	key := e.Image.Hash
	if key == "" {
		key = fmt.Sprintf("%p", e.Image)
	}
	name, ok := r.images[key]
	if !ok {
		img, err := images.Normalize(e.Image, images.NormalizeOptions{})
		if err != nil {
			return err
		}
		name = fmt.Sprintf("img%d", len(r.images)+1)
		info := r.pdf.RegisterImageOptionsReader(name, imageOptions(img), bytes.NewReader(img.Data))
		if info == nil || r.pdf.Err() {
			return fmt.Errorf("failed to register image: %w", r.pdf.Error())
		}
		r.images[key] = name
	}

	w, h := e.Width, e.Height
	ix, iy := x+e.X, y+e.Y
	if e.Scale == ScaleFit {
		ratio := e.Image.AspectRatio()
		if w/h > ratio {
			w = h * ratio
			ix += (e.Width - w) / 2
		} else {
			h = w / ratio
			iy += (e.Height - h) / 2
		}
	}
	r.pdf.ImageOptions(name, ix, iy, w, h, false, fpdf.ImageOptions{}, 0, "")
	return nil
}

func imageOptions(img *images.Image) fpdf.ImageOptions {
	if img.Format == images.JPEG {
		return fpdf.ImageOptions{ImageType: "JPG"}
	}
	return fpdf.ImageOptions{ImageType: "PNG"}
}

func (r *Renderer) text(x, y float64, e TextElement) {
	f := e.Font
	if f == nil {
		f = fonts.Standard(fonts.Helvetica)
	}
	size := e.Size
	if e.AutoSize {
		size = f.Metrics.FitSize(e.Content, size, minFontSize, e.Width, e.Height)
	}

	content, err := r.enc.String(e.Content)
	if err != nil {
		content = e.Content
	}

	r.pdf.SetFont(f.Family, f.Style, size)
	r.pdf.SetTextColor(int(e.Color.R), int(e.Color.G), int(e.Color.B))
	r.pdf.SetXY(x+e.X, y+e.Y)
	r.pdf.CellFormat(e.Width, e.Height, content, "", 0, e.Align.String()+"M", false, 0, "")
}

func (r *Renderer) shape(x, y float64, e ShapeElement) {
	style := ""
	if e.FillColor != nil {
		r.pdf.SetFillColor(int(e.FillColor.R), int(e.FillColor.G), int(e.FillColor.B))
		style += "F"
	}
	if e.StrokeColor != nil && e.StrokeWidth > 0 {
		r.pdf.SetDrawColor(int(e.StrokeColor.R), int(e.StrokeColor.G), int(e.StrokeColor.B))
		r.pdf.SetLineWidth(e.StrokeWidth)
		style += "D"
	}
	if style != "" {
		r.pdf.Rect(x+e.X, y+e.Y, e.Width, e.Height, style)
	}
}
