// Package session implements the editing state of a document: the marks
// placed on its pages, the active tool, the selection and drag operations.
//
// A Session has a single writer and is not safe for concurrent use. Every
// method either succeeds or returns an error and leaves the session exactly
// as it was.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/digitorus/pdfmark/fonts"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/mark"
)

// Errors reported by a session.
var (
	ErrInvalidDimension = geometry.ErrInvalidDimension
	ErrMissingPayload   = mark.ErrMissingPayload
	ErrInvalidPage      = errors.New("invalid page")
	ErrUnknownMark      = errors.New("unknown mark")
	ErrNotMoveTool      = errors.New("move tool is not active")
	ErrToolNotCreation  = errors.New("active tool does not create marks")
)

// Session owns the marks of one document editing session.
type Session struct {
	pages    PageSource
	marks    []*mark.Mark
	selected string
	tool     Tool
	page     int
	sizes    mark.Sizes
	metrics  *fonts.Metrics
	drag     *Drag
}

// Option configures a Session.
type Option func(*Session)

// WithSizes overrides the initial size of new marks.
func WithSizes(sizes mark.Sizes) Option {
	return func(s *Session) {
		s.sizes = sizes
	}
}

// WithTextMetrics widens new text marks to fit their content, measured
// with m.
func WithTextMetrics(m *fonts.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// New returns an empty session for a document with the given pages. The
// signature tool is active and the first page is current.
func New(pages PageSource, opts ...Option) *Session {
	s := &Session{
		pages: pages,
		tool:  Signature,
		page:  1,
		sizes: mark.DefaultSizes(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset discards all marks and starts over on a new document.
func (s *Session) Reset(pages PageSource) {
	s.ClearAll()
	s.pages = pages
	s.page = 1
}

// Tool returns the active tool.
func (s *Session) Tool() Tool {
	return s.tool
}

// SetTool activates t. This is the only way to leave the move tool. Leaving
// it ends any active drag.
func (s *Session) SetTool(t Tool) error {
	if !t.valid() {
		return fmt.Errorf("invalid tool %d", int(t))
	}
	if t != Move && s.drag != nil {
		s.EndDrag(s.drag)
	}
	s.tool = t
	return nil
}

// Page returns the current page.
func (s *Session) Page() int {
	return s.page
}

// SetPage changes the current page.
func (s *Session) SetPage(page int) error {
	if _, err := s.pageSize(page); err != nil {
		return err
	}
	s.page = page
	return nil
}

// NumPage returns the number of pages of the document.
func (s *Session) NumPage() int {
	return s.pages.NumPage()
}

// PageSize returns the logical size of a page.
func (s *Session) PageSize(page int) (geometry.Size, error) {
	return s.pageSize(page)
}

func (s *Session) pageSize(page int) (geometry.Size, error) {
	if page < 1 || page > s.pages.NumPage() {
		return geometry.Size{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	size, err := s.pages.PageSize(page)
	if err != nil {
		return geometry.Size{}, err
	}
	if !size.Valid() {
		return geometry.Size{}, fmt.Errorf("page %d: %w", page, ErrInvalidDimension)
	}
	return size, nil
}

// PlaceMark creates a mark with the active tool. The click position on a
// page rendered at render size is converted to logical space, the new mark
// is centred on it and clamped into the page. The mark becomes selected and
// the move tool is activated.
func (s *Session) PlaceMark(p mark.Payload, click geometry.Pt, render geometry.Size, page int) (*mark.Mark, error) {
	kind, err := s.creationKind(p)
	if err != nil {
		return nil, err
	}
	size, err := s.pageSize(page)
	if err != nil {
		return nil, err
	}
	at, err := geometry.ToLogical(click, render, size)
	if err != nil {
		return nil, err
	}
	return s.place(kind, p, at, page, size), nil
}

// PlaceMarkAt is PlaceMark with a position already in logical space.
func (s *Session) PlaceMarkAt(p mark.Payload, at geometry.Pt, page int) (*mark.Mark, error) {
	kind, err := s.creationKind(p)
	if err != nil {
		return nil, err
	}
	size, err := s.pageSize(page)
	if err != nil {
		return nil, err
	}
	return s.place(kind, p, at, page, size), nil
}

// PlaceDefault places a mark on the current page at mark.DefaultPlacement.
func (s *Session) PlaceDefault(p mark.Payload) (*mark.Mark, error) {
	return s.PlaceMarkAt(p, mark.DefaultPlacement, s.page)
}

func (s *Session) creationKind(p mark.Payload) (mark.Kind, error) {
	kind, ok := s.tool.Kind()
	if !ok {
		return 0, ErrToolNotCreation
	}
	if err := mark.Validate(kind, p); err != nil {
		return 0, err
	}
	return kind, nil
}

func (s *Session) place(kind mark.Kind, p mark.Payload, at geometry.Pt, page int, pageSize geometry.Size) *mark.Mark {
	p = mark.Normalize(p)
	size := s.sizes.For(kind)
	if tp, ok := p.(mark.TextPayload); ok && s.metrics != nil {
		size = mark.TextSize(tp, s.metrics, size)
	}

	r := geometry.Clamp(geometry.CenteredAt(at, size), pageSize)
	m := mark.New(kind, p, page, r)
	s.marks = append(s.marks, m)
	s.selectID(m.ID)
	s.tool = Move
	return m.Clone()
}

// RemoveMark deletes a mark. Unknown ids are ignored.
func (s *Session) RemoveMark(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	if s.drag != nil && s.drag.id == id {
		s.EndDrag(s.drag)
	}
	if s.selected == id {
		s.selected = ""
	}
	s.marks = slices.Delete(s.marks, i, i+1)
	return true
}

// ClearAll deletes every mark and clears the selection.
func (s *Session) ClearAll() {
	if s.drag != nil {
		s.EndDrag(s.drag)
	}
	s.marks = nil
	s.selected = ""
}

// SelectMark selects a mark and deselects any other. For an unknown id the
// selection becomes empty and false is returned.
func (s *Session) SelectMark(id string) bool {
	if s.index(id) < 0 {
		s.selectID("")
		return false
	}
	s.selectID(id)
	return true
}

// Deselect clears the selection.
func (s *Session) Deselect() {
	s.selectID("")
}

func (s *Session) selectID(id string) {
	s.selected = id
	for _, m := range s.marks {
		m.Selected = m.ID == id
	}
}

// Selected returns the selected mark.
func (s *Session) Selected() (*mark.Mark, bool) {
	if i := s.index(s.selected); i >= 0 {
		return s.marks[i].Clone(), true
	}
	return nil, false
}

// UpdateMark applies an explicit edit to a mark. The result is clamped into
// its page.
func (s *Session) UpdateMark(id string, e mark.Edit) (*mark.Mark, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMark, id)
	}
	size, err := s.pageSize(s.marks[i].Page)
	if err != nil {
		return nil, err
	}
	m, err := mark.Apply(s.marks[i], e)
	if err != nil {
		return nil, err
	}
	m.Rect = geometry.Clamp(m.Rect, size)
	s.marks[i] = m
	return m.Clone(), nil
}

// Mark returns a copy of the mark with the given id.
func (s *Session) Mark(id string) (*mark.Mark, bool) {
	if i := s.index(id); i >= 0 {
		return s.marks[i].Clone(), true
	}
	return nil, false
}

// Marks returns a copy of all marks in creation order.
func (s *Session) Marks() []*mark.Mark {
	out := make([]*mark.Mark, len(s.marks))
	for i, m := range s.marks {
		out[i] = m.Clone()
	}
	return out
}

// MarksOnPage returns a copy of the marks on one page.
func (s *Session) MarksOnPage(page int) []*mark.Mark {
	var out []*mark.Mark
	for _, m := range s.marks {
		if m.Page == page {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Len returns the number of marks.
func (s *Session) Len() int {
	return len(s.marks)
}

// HitTest returns the topmost mark on page containing the logical point p.
func (s *Session) HitTest(page int, p geometry.Pt) (*mark.Mark, bool) {
	for i := len(s.marks) - 1; i >= 0; i-- {
		m := s.marks[i]
		if m.Page == page && m.Contains(p) {
			return m.Clone(), true
		}
	}
	return nil, false
}

func (s *Session) index(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.marks, func(m *mark.Mark) bool {
		return m.ID == id
	})
}
