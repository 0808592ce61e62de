package render

import (
	"fmt"

	"github.com/digitorus/pdfmark/fonts"
	"github.com/digitorus/pdfmark/mark"
)

// Lines of the graphical digital signature box. The heading is set in bold,
// the date, reason and location lines only appear when they have a value.
var (
	DigitalHeading = "DIGITALLY SIGNED"
	DigitalLines   = []string{"By: {{Name}}", "ID: {{Number}}"}
	DigitalDate    = "Date: {{DateTime}}"
	DigitalReason  = "Reason: {{Reason}}"
	DigitalPlace   = "Location: {{Location}}"
)

// PlainHeading is the first line of a digital marker drawn without a box.
var PlainHeading = "DIGITAL SIGNATURE"

const (
	minFontSize      = 4.0
	textPadding      = 4.0
	maxLineSize      = 14.0
	boxPadding       = 3.0
	borderWidth      = 1.0
	plainHeadingSize = 14.0
	plainLineSize    = 10.0
)

// Layout returns the appearance of m. For digital markers ctx supplies the
// signing date when the marker has no timestamp of its own.
func Layout(m *mark.Mark, ctx TemplateContext) (*Appearance, error) {
	a := &Appearance{Width: m.Width, Height: m.Height}
	if !m.Size().Valid() {
		return nil, fmt.Errorf("mark %s has invalid size %vx%v", m.ID, m.Width, m.Height)
	}

	switch p := m.Payload.(type) {
	case mark.ImagePayload:
		if p.Image == nil {
			return nil, fmt.Errorf("%w: %s image", mark.ErrMissingPayload, m.Kind)
		}
		a.Elements = append(a.Elements, ImageElement{
			Image:  p.Image,
			Width:  m.Width,
			Height: m.Height,
			Scale:  ScaleFit,
		})

	case mark.TextPayload:
		c, err := ParseColor(m.Color)
		if err != nil {
			return nil, err
		}
		size := p.FontSize
		if size <= 0 {
			size = mark.DefaultFontSize
		}
		a.Elements = append(a.Elements, TextElement{
			Content:  p.Text,
			Font:     fonts.Standard(fonts.Helvetica),
			Size:     size,
			X:        textPadding,
			Width:    m.Width - textPadding,
			Height:   m.Height,
			Color:    c,
			AutoSize: true,
		})

	case mark.DigitalPayload:
		ctx.Name = p.StaffName
		ctx.Number = p.StaffNumber
		ctx.Reason = p.Reason
		ctx.Location = p.Location
		if !p.Timestamp.IsZero() {
			ctx.Date = p.Timestamp
		}
		if p.Style == mark.Plain {
			c, err := ParseColor(m.Color)
			if err != nil {
				return nil, err
			}
			layoutPlain(a, p, ctx, c)
		} else {
			layoutGraphical(a, p, ctx)
		}

	default:
		return nil, fmt.Errorf("%w: %s", mark.ErrMissingPayload, m.Kind)
	}
	return a, nil
}

func layoutGraphical(a *Appearance, p mark.DigitalPayload, ctx TemplateContext) {
	fill, border := DigitalFill, DigitalBorder
	a.BGColor = &fill
	a.BorderColor = &border
	a.BorderWidth = borderWidth

	lines := []string{DigitalHeading}
	for _, l := range DigitalLines {
		lines = append(lines, ctx.Expand(l))
	}
	if p.IncludeTimestamp {
		lines = append(lines, ctx.Expand(DigitalDate))
	}
	if p.Reason != "" {
		lines = append(lines, ctx.Expand(DigitalReason))
	}
	if p.Location != "" {
		lines = append(lines, ctx.Expand(DigitalPlace))
	}

	lh := max(minFontSize, min(maxLineSize, (a.Height-2*boxPadding)/float64(len(lines))))
	top := (a.Height - lh*float64(len(lines))) / 2
	for i, l := range lines {
		f, size := fonts.Standard(fonts.Helvetica), lh*0.7
		if i == 0 {
			f, size = fonts.Standard(fonts.HelveticaBold), lh*0.8
		}
		a.Elements = append(a.Elements, TextElement{
			Content:  l,
			Font:     f,
			Size:     size,
			X:        boxPadding,
			Y:        top + float64(i)*lh,
			Width:    a.Width - 2*boxPadding,
			Height:   lh,
			Color:    DigitalText,
			Align:    AlignCenter,
			AutoSize: true,
		})
	}
}

func layoutPlain(a *Appearance, p mark.DigitalPayload, ctx TemplateContext, c Color) {
	type line struct {
		text string
		font *fonts.Font
		size float64
	}
	lines := []line{
		{PlainHeading, fonts.Standard(fonts.HelveticaBold), plainHeadingSize},
		{ctx.Name, fonts.Standard(fonts.Helvetica), plainLineSize},
	}
	if p.IncludeTimestamp {
		lines = append(lines, line{ctx.Expand("{{DateTime}}"), fonts.Standard(fonts.Helvetica), plainLineSize})
	}

	lh := min(a.Height/float64(len(lines)), plainHeadingSize+4)
	top := (a.Height - lh*float64(len(lines))) / 2
	for i, l := range lines {
		a.Elements = append(a.Elements, TextElement{
			Content:  l.text,
			Font:     l.font,
			Size:     l.size,
			Y:        top + float64(i)*lh,
			Width:    a.Width,
			Height:   lh,
			Color:    c,
			Align:    AlignCenter,
			AutoSize: true,
		})
	}
}
