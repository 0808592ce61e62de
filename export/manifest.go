// Package export converts the marks of a session into a JSON manifest that
// finalizers consume, and back.
//
// A manifest lists the page sizes of the document and every mark with its
// payload. Images travel as data URLs. Coordinates are logical page
// coordinates: PDF points measured from the top-left corner of the page.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/images"
	"github.com/digitorus/pdfmark/mark"
	"github.com/digitorus/pdfmark/session"
)

// ErrInvalidManifest is returned when a manifest does not describe marks
// that can be applied to its document.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the exported state of a session.
type Manifest struct {
	Pages []PageInfo `json:"pages,omitempty"`
	Marks []Mark     `json:"marks"`
}

// PageInfo is the logical size of one page.
type PageInfo struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mark is the wire form of a mark.
type Mark struct {
	ID          string       `json:"id"`
	Type        mark.Kind    `json:"type"`
	Page        int          `json:"page"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	Image       string       `json:"image,omitempty"`
	Text        string       `json:"text,omitempty"`
	FontSize    float64      `json:"fontSize,omitempty"`
	Color       string       `json:"color"`
	Opacity     float64      `json:"opacity"`
	Rotation    float64      `json:"rotation"`
	DigitalData *DigitalData `json:"digitalData,omitempty"`
}

// DigitalData is the signer record of a digital marker.
type DigitalData struct {
	StaffName        string     `json:"staffName"`
	StaffNumber      string     `json:"staffNumber"`
	Reason           string     `json:"reason,omitempty"`
	Location         string     `json:"location,omitempty"`
	Type             string     `json:"type,omitempty"`
	IncludeTimestamp bool       `json:"includeTimestamp"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// UnmarshalJSON decodes a mark, applying the presentation defaults for
// fields the sender left out. The type is required.
func (m *Mark) UnmarshalJSON(b []byte) error {
	type plain Mark
	v := struct {
		*plain
		Type *mark.Kind `json:"type"`
	}{plain: &plain{Color: mark.DefaultColor, Opacity: mark.DefaultOpacity}}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Type == nil {
		return fmt.Errorf("%w: mark without type", ErrInvalidManifest)
	}
	v.plain.Type = *v.Type
	*m = Mark(*v.plain)
	return nil
}

// Rect returns the logical rectangle of m.
func (m Mark) Rect() geometry.Rect {
	return geometry.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

// FromMarks builds a manifest for marks on the given pages.
func FromMarks(pages session.PageSource, marks []*mark.Mark) (*Manifest, error) {
	out := &Manifest{Marks: make([]Mark, 0, len(marks))}
	for i := 1; i <= pages.NumPage(); i++ {
		s, err := pages.PageSize(i)
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, PageInfo{Page: i, Width: s.Width, Height: s.Height})
	}
	for _, m := range marks {
		out.Marks = append(out.Marks, wire(m))
	}
	return out, nil
}

// FromSession builds a manifest holding the marks of s.
func FromSession(s *session.Session) (*Manifest, error) {
	return FromMarks(s, s.Marks())
}

func wire(m *mark.Mark) Mark {
	w := Mark{
		ID:       m.ID,
		Type:     m.Kind,
		Page:     m.Page,
		X:        m.X,
		Y:        m.Y,
		Width:    m.Width,
		Height:   m.Height,
		Color:    m.Color,
		Opacity:  m.Opacity,
		Rotation: m.Rotation,
	}
	switch p := m.Payload.(type) {
	case mark.ImagePayload:
		if p.Image != nil {
			w.Image = p.Image.DataURL()
		}
	case mark.TextPayload:
		w.Text = p.Text
		w.FontSize = p.FontSize
	case mark.DigitalPayload:
		d := &DigitalData{
			StaffName:        p.StaffName,
			StaffNumber:      p.StaffNumber,
			Reason:           p.Reason,
			Location:         p.Location,
			Type:             string(p.Style),
			IncludeTimestamp: p.IncludeTimestamp,
		}
		if !p.Timestamp.IsZero() {
			ts := p.Timestamp
			d.Timestamp = &ts
		}
		w.DigitalData = d
	}
	return w
}

// PageSource returns the pages listed in the manifest.
func (m *Manifest) PageSource() session.Pages {
	pages := make(session.Pages, len(m.Pages))
	for i, p := range m.Pages {
		pages[i] = geometry.Size{Width: p.Width, Height: p.Height}
	}
	return pages
}

// ToMarks decodes the marks of the manifest. Payloads are validated and
// normalized but positions are not checked; use Validate for that.
func (m *Manifest) ToMarks() ([]*mark.Mark, error) {
	out := make([]*mark.Mark, 0, len(m.Marks))
	for i, w := range m.Marks {
		mk, err := w.decode()
		if err != nil {
			return nil, fmt.Errorf("%w: mark %d: %w", ErrInvalidManifest, i, err)
		}
		out = append(out, mk)
	}
	return out, nil
}

func (w Mark) decode() (*mark.Mark, error) {
	var p mark.Payload
	switch w.Type {
	case mark.Signature, mark.Initial:
		if w.Image == "" {
			return nil, fmt.Errorf("%w: %s image", mark.ErrMissingPayload, w.Type)
		}
		img, err := images.FromDataURL(w.Type.String(), w.Image)
		if err != nil {
			return nil, err
		}
		p = mark.ImagePayload{Image: img}
	case mark.Text:
		p = mark.TextPayload{Text: w.Text, FontSize: w.FontSize}
	case mark.Digital:
		if w.DigitalData == nil {
			return nil, fmt.Errorf("%w: digital data", mark.ErrMissingPayload)
		}
		d := mark.DigitalPayload{
			StaffName:        w.DigitalData.StaffName,
			StaffNumber:      w.DigitalData.StaffNumber,
			Reason:           w.DigitalData.Reason,
			Location:         w.DigitalData.Location,
			Style:            mark.DigitalStyle(w.DigitalData.Type),
			IncludeTimestamp: w.DigitalData.IncludeTimestamp,
		}
		if w.DigitalData.Timestamp != nil {
			d.Timestamp = *w.DigitalData.Timestamp
		}
		p = d
	}
	if err := mark.Validate(w.Type, p); err != nil {
		return nil, err
	}
	if !mark.ValidColor(w.Color) {
		return nil, fmt.Errorf("invalid color %q", w.Color)
	}
	if w.Opacity < 0 || w.Opacity > 1 {
		return nil, fmt.Errorf("opacity %v out of range [0, 1]", w.Opacity)
	}

	id := w.ID
	if id == "" {
		id = mark.NewID()
	}
	return &mark.Mark{
		ID:       id,
		Page:     w.Page,
		Rect:     w.Rect(),
		Kind:     w.Type,
		Payload:  mark.Normalize(p),
		Color:    w.Color,
		Opacity:  w.Opacity,
		Rotation: w.Rotation,
	}, nil
}

// Validate checks every mark against pages: the page must exist, the mark
// must have a positive size and lie inside the page, and its payload must be
// complete. When pages is nil the manifest's own page list is used. All
// problems are reported together.
func (m *Manifest) Validate(pages session.PageSource) error {
	if pages == nil {
		pages = m.PageSource()
	}
	if len(m.Marks) == 0 {
		return fmt.Errorf("%w: no marks", ErrInvalidManifest)
	}

	var errs []error
	for i, w := range m.Marks {
		if err := w.validate(pages); err != nil {
			errs = append(errs, fmt.Errorf("mark %d (%s on page %d): %w", i, w.Type, w.Page, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, errors.Join(errs...))
	}
	return nil
}

func (w Mark) validate(pages session.PageSource) error {
	size, err := pages.PageSize(w.Page)
	if err != nil {
		return err
	}
	r := w.Rect()
	if !r.Size().Valid() {
		return fmt.Errorf("%w: %vx%v", geometry.ErrInvalidDimension, w.Width, w.Height)
	}
	if !r.Inside(size) {
		return fmt.Errorf("outside the %vx%v page", size.Width, size.Height)
	}
	_, err = w.decode()
	return err
}

// ByPage groups the marks by page number.
func (m *Manifest) ByPage() map[int][]Mark {
	out := make(map[int][]Mark)
	for _, w := range m.Marks {
		out[w.Page] = append(out[w.Page], w)
	}
	return out
}

// Summary counts the marks of a manifest.
type Summary struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType"`
	Pages  []int          `json:"pages"`
}

// Summary returns the number of marks in total, per type, and the pages
// that carry marks in ascending order.
func (m *Manifest) Summary() Summary {
	s := Summary{Total: len(m.Marks), ByType: make(map[string]int)}
	for page, marks := range m.ByPage() {
		s.Pages = append(s.Pages, page)
		for _, w := range marks {
			s.ByType[w.Type.String()]++
		}
	}
	sort.Ints(s.Pages)
	return s
}

// FirstOf returns the first mark of kind k.
func (m *Manifest) FirstOf(k mark.Kind) (Mark, bool) {
	for _, w := range m.Marks {
		if w.Type == k {
			return w, true
		}
	}
	return Mark{}, false
}

// Decode reads a manifest. A bare JSON array is accepted as the list of
// marks.
func Decode(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	data = bytes.TrimSpace(data)

	var m Manifest
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &m.Marks)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// Encode writes m as indented JSON.
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
