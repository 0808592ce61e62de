package session

import (
	"fmt"

	"github.com/digitorus/pdfmark/geometry"
)

// PageSource reports the pages of the document being edited.
type PageSource interface {
	NumPage() int
	// PageSize returns the logical size of a 1-based page.
	PageSize(page int) (geometry.Size, error)
}

// Pages is a PageSource backed by a list of page sizes.
type Pages []geometry.Size

// UniformPages returns n pages of size s.
func UniformPages(n int, s geometry.Size) Pages {
	p := make(Pages, n)
	for i := range p {
		p[i] = s
	}
	return p
}

// NumPage returns the number of pages.
func (p Pages) NumPage() int {
	return len(p)
}

// PageSize returns the size of a 1-based page.
func (p Pages) PageSize(page int) (geometry.Size, error) {
	if page < 1 || page > len(p) {
		return geometry.Size{}, fmt.Errorf("%w: %d of %d", ErrInvalidPage, page, len(p))
	}
	return p[page-1], nil
}
