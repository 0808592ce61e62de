// Package pdfmark places signature marks on the pages of PDF documents.
//
// A Document reports the pages of a PDF and their sizes. A session, created
// with NewSession, keeps the marks the user places on those pages in logical
// page coordinates (PDF points, top-left origin) independent of the zoom at
// which the pages are displayed.
//
// Basic usage:
//
//	doc, err := pdfmark.OpenFile("document.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := doc.NewSession()
//	s.SetTool(session.Signature)
//	m, err := s.PlaceMark(mark.ImagePayload{Image: img}, click, canvasSize, 1)
//
// The marks are then exported with the export package and turned into an
// output document by the flatten or jarsign packages.
package pdfmark

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"

	pdflib "github.com/digitorus/pdf"
	"seehuhn.de/go/geom/rect"

	"github.com/digitorus/pdfmark/extract"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/session"
)

// DefaultPageSize is used for pages without a usable MediaBox.
var DefaultPageSize = geometry.A4

// Document represents a PDF document whose pages receive marks.
type Document struct {
	reader io.ReaderAt
	size   int64
	rdr    *pdflib.Reader
	boxes  []rect.Rect
}

// Open initializes a Document from an io.ReaderAt (e.g., an open file or memory buffer).
// The size parameter must be the total size of the PDF in bytes.
func Open(reader io.ReaderAt, size int64) (*Document, error) {
	rdr, err := pdflib.NewReader(reader, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	doc := &Document{
		reader: reader,
		size:   size,
		rdr:    rdr,
	}

	n := rdr.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("failed to open PDF: document has no pages")
	}
	doc.boxes = make([]rect.Rect, n)
	for i := 1; i <= n; i++ {
		doc.boxes[i-1] = mediaBox(rdr.Page(i).V)
	}
	return doc, nil
}

// OpenBytes initializes a Document from PDF data held in memory.
func OpenBytes(data []byte) (*Document, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// OpenFile is a convenience method to initialize a Document from a file on
// disk. The file is read into memory.
func OpenFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return OpenBytes(data)
}

// NumPage returns the number of pages.
func (d *Document) NumPage() int {
	return len(d.boxes)
}

// MediaBox returns the media box of a 1-based page in PDF user space.
func (d *Document) MediaBox(page int) (rect.Rect, error) {
	if page < 1 || page > len(d.boxes) {
		return rect.Rect{}, fmt.Errorf("%w: %d of %d", session.ErrInvalidPage, page, len(d.boxes))
	}
	return d.boxes[page-1], nil
}

// PageSize returns the logical size of a 1-based page.
func (d *Document) PageSize(page int) (geometry.Size, error) {
	box, err := d.MediaBox(page)
	if err != nil {
		return geometry.Size{}, err
	}
	return geometry.SizeOf(box), nil
}

// Pages returns the sizes of all pages.
func (d *Document) Pages() session.Pages {
	pages := make(session.Pages, len(d.boxes))
	for i, box := range d.boxes {
		pages[i] = geometry.SizeOf(box)
	}
	return pages
}

// NewSession starts an editing session on the pages of d.
func (d *Document) NewSession(opts ...session.Option) *session.Session {
	return session.New(d, opts...)
}

// Reader returns the low-level PDF reader, allowing direct access to the PDF Cross-Reference (XRef) table and objects.
func (d *Document) Reader() *pdflib.Reader {
	return d.rdr
}

// Signatures returns an iterator over the signature dictionaries of d.
func (d *Document) Signatures() iter.Seq2[*extract.Signature, error] {
	return extract.Iter(d.rdr, d.reader)
}

// mediaBox returns the MediaBox of a page, following inheritance through
// the page tree. Missing or degenerate boxes fall back to DefaultPageSize.
func mediaBox(page pdflib.Value) rect.Rect {
	for node, depth := page, 0; !node.IsNull() && depth < 64; node, depth = node.Key("Parent"), depth+1 {
		box := node.Key("MediaBox")
		if box.Kind() != pdflib.Array || box.Len() < 4 {
			continue
		}
		r := rect.Rect{
			LLx: box.Index(0).Float64(),
			LLy: box.Index(1).Float64(),
			URx: box.Index(2).Float64(),
			URy: box.Index(3).Float64(),
		}
		// Corners may be given in any order.
		if r.LLx > r.URx {
			r.LLx, r.URx = r.URx, r.LLx
		}
		if r.LLy > r.URy {
			r.LLy, r.URy = r.URy, r.LLy
		}
		if r.Dx() > 0 && r.Dy() > 0 {
			return r
		}
		break
	}
	return geometry.PageBox(DefaultPageSize)
}
