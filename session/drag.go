package session

import (
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/mark"
)

// Drag is an in-progress move of one mark.
type Drag struct {
	id     string
	offset geometry.Pt // pointer minus mark origin, logical
	active bool
}

// MarkID returns the id of the dragged mark.
func (d *Drag) MarkID() string {
	return d.id
}

// Offset returns the logical distance from the mark origin to the pointer.
func (d *Drag) Offset() geometry.Pt {
	return d.offset
}

// Active reports whether the drag has not been ended.
func (d *Drag) Active() bool {
	return d != nil && d.active
}

// BeginDrag starts moving a mark from the pointer position on a page
// rendered at render size. The move tool must be active. The mark is
// selected and any previous drag is ended.
func (s *Session) BeginDrag(id string, pointer geometry.Pt, render geometry.Size) (*Drag, error) {
	if s.tool != Move {
		return nil, ErrNotMoveTool
	}
	i := s.index(id)
	if i < 0 {
		return nil, ErrUnknownMark
	}
	m := s.marks[i]
	size, err := s.pageSize(m.Page)
	if err != nil {
		return nil, err
	}
	at, err := geometry.ToLogical(pointer, render, size)
	if err != nil {
		return nil, err
	}

	if s.drag != nil {
		s.EndDrag(s.drag)
	}
	d := &Drag{id: id, offset: at.Sub(m.Origin()), active: true}
	s.drag = d
	s.selectID(id)
	return d, nil
}

// UpdateDrag moves the dragged mark so that the pointer keeps its offset to
// the mark origin, clamped into the page. Updates for ended drags, removed
// marks or invalid render sizes are ignored and return nil.
func (s *Session) UpdateDrag(d *Drag, pointer geometry.Pt, render geometry.Size) *mark.Mark {
	if !d.Active() {
		return nil
	}
	i := s.index(d.id)
	if i < 0 {
		return nil
	}
	m := s.marks[i]
	size, err := s.pageSize(m.Page)
	if err != nil {
		return nil
	}
	at, err := geometry.ToLogical(pointer, render, size)
	if err != nil {
		return nil
	}

	m.Rect = geometry.Clamp(m.Moved(at.Sub(d.offset)), size)
	return m.Clone()
}

// EndDrag ends a drag. Ending a nil or already ended drag does nothing.
func (s *Session) EndDrag(d *Drag) {
	if !d.Active() {
		return
	}
	d.active = false
	if s.drag == d {
		s.drag = nil
	}
}

// Dragging returns the active drag, if any.
func (s *Session) Dragging() (*Drag, bool) {
	return s.drag, s.drag != nil
}
