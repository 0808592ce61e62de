package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/images"
	"github.com/digitorus/pdfmark/mark"
)

func pngImage(t *testing.T, w, h int) *images.Image {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		src.Set(x, h/2, color.NRGBA{0, 0, 0, 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	img, err := images.New("sig", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", Color{}, false},
		{"#16a34a", Color{22, 163, 74}, false},
		{"#fff", Color{255, 255, 255}, false},
		{"000000", Color{}, true},
		{"#12345", Color{}, true},
		{"#gggggg", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTemplateExpand(t *testing.T) {
	ctx := TemplateContext{
		Name:     "Jane Smith",
		Number:   "EMP-001",
		Date:     time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Reason:   "Approval",
		Location: "HQ",
	}
	tests := []struct {
		in, want string
	}{
		{"By: {{Name}}", "By: Jane Smith"},
		{"ID: {{Number}}", "ID: EMP-001"},
		{"{{Date}}", "2024-03-15"},
		{"{{DateTime}}", "2024-03-15 10:30:00"},
		{"{{Reason}} at {{Location}}", "Approval at HQ"},
		{"{{Initials}}", "JS"},
		{"{{Unknown}}", "{{Unknown}}"},
	}
	for _, tt := range tests {
		if got := ctx.Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"John Doe":          "JD",
		"alice bob charlie": "ABC",
		"":                  "",
		"  Émile  zola ":    "ÉZ",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func texts(a *Appearance) []string {
	var out []string
	for _, el := range a.Elements {
		if te, ok := el.(TextElement); ok {
			out = append(out, te.Content)
		}
	}
	return out
}

func TestLayoutDigitalGraphical(t *testing.T) {
	m := mark.New(mark.Digital, mark.DigitalPayload{
		StaffName:        "Jane Smith",
		StaffNumber:      "EMP-001",
		Reason:           "Approval",
		Style:            mark.Graphical,
		IncludeTimestamp: true,
		Timestamp:        time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}, 1, geometry.Rect{X: 10, Y: 10, Width: 200, Height: 80})

	a, err := Layout(m, TemplateContext{})
	if err != nil {
		t.Fatalf("Layout() error: %v", err)
	}
	if a.BGColor == nil || *a.BGColor != DigitalFill || a.BorderColor == nil || *a.BorderColor != DigitalBorder {
		t.Errorf("Layout() colors = %v / %v", a.BGColor, a.BorderColor)
	}
	want := []string{"DIGITALLY SIGNED", "By: Jane Smith", "ID: EMP-001", "Date: 2024-03-15 10:30:00", "Reason: Approval"}
	got := texts(a)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Layout() lines = %q, want %q", got, want)
	}
	for _, el := range a.Elements {
		te := el.(TextElement)
		if te.Y < 0 || te.Y+te.Height > a.Height+1e-9 {
			t.Errorf("line %q at %v+%v outside box of height %v", te.Content, te.Y, te.Height, a.Height)
		}
	}
}

func TestLayoutDigitalPlain(t *testing.T) {
	m := mark.New(mark.Digital, mark.DigitalPayload{
		StaffName:   "Jane Smith",
		StaffNumber: "EMP-001",
		Style:       mark.Plain,
	}, 1, geometry.Rect{Width: 200, Height: 80})
	m.Color = "#123456"

	a, err := Layout(m, TemplateContext{})
	if err != nil {
		t.Fatalf("Layout() error: %v", err)
	}
	if a.BGColor != nil {
		t.Error("plain digital marker has a background")
	}
	if got := texts(a); len(got) != 2 || got[0] != PlainHeading || got[1] != "Jane Smith" {
		t.Errorf("Layout() lines = %q", got)
	}
	if te := a.Elements[0].(TextElement); te.Color != (Color{0x12, 0x34, 0x56}) {
		t.Errorf("text color = %v", te.Color)
	}
}

func TestLayoutErrors(t *testing.T) {
	tests := []struct {
		name string
		m    *mark.Mark
	}{
		{"no image", mark.New(mark.Signature, mark.ImagePayload{}, 1, geometry.Rect{Width: 10, Height: 10})},
		{"no payload", mark.New(mark.Text, nil, 1, geometry.Rect{Width: 10, Height: 10})},
		{"zero size", mark.New(mark.Text, mark.TextPayload{Text: "a"}, 1, geometry.Rect{})},
		{"bad color", func() *mark.Mark {
			m := mark.New(mark.Text, mark.TextPayload{Text: "a"}, 1, geometry.Rect{Width: 10, Height: 10})
			m.Color = "red"
			return m
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Layout(tt.m, TemplateContext{}); err == nil {
				t.Error("Layout() expected error")
			}
		})
	}
}

func TestDrawMarks(t *testing.T) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	r := NewRenderer(pdf)

	img := pngImage(t, 60, 20)
	marks := []*mark.Mark{
		mark.New(mark.Signature, mark.ImagePayload{Image: img}, 1, geometry.Rect{X: 50, Y: 50, Width: 150, Height: 60}),
		mark.New(mark.Initial, mark.ImagePayload{Image: img}, 1, geometry.Rect{X: 50, Y: 150, Width: 80, Height: 40}),
		mark.New(mark.Text, mark.TextPayload{Text: "Approved – Café", FontSize: 16}, 1, geometry.Rect{X: 50, Y: 250, Width: 150, Height: 30}),
		mark.New(mark.Digital, mark.DigitalPayload{StaffName: "Jane", StaffNumber: "1"}, 1, geometry.Rect{X: 300, Y: 50, Width: 200, Height: 80}),
	}
	marks[1].Opacity = 0.5
	marks[2].Rotation = 30

	for _, m := range marks {
		if err := r.DrawMark(m, TemplateContext{}); err != nil {
			t.Fatalf("DrawMark(%s) error: %v", m.Kind, err)
		}
	}
	if len(r.images) != 1 {
		t.Errorf("registered %d images, want 1 shared image", len(r.images))
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestDrawInvalidImage(t *testing.T) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	r := NewRenderer(pdf)

	a := &Appearance{Width: 10, Height: 10, Elements: []Element{ImageElement{Image: &images.Image{}, Width: 10, Height: 10}}}
	if err := r.Draw(a, 0, 0, 1, 0); err == nil {
		t.Error("Draw() expected error for empty image")
	}
}
