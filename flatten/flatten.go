// Package flatten produces a personally signed document: every page of the
// source PDF is imported and the marks of a manifest are drawn onto it as
// ordinary page content. An audit page summarising the marks is appended.
package flatten

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/mattetti/filebuffer"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/internal/render"
	"github.com/digitorus/pdfmark/mark"
)

// ErrInvalidPDF is returned for input that is not a PDF document.
var ErrInvalidPDF = errors.New("invalid PDF data")

// MinPDFSize is the smallest input accepted as a PDF.
const MinPDFSize = 100

const timeLayout = "2006-01-02 15:04:05"

// Client identifies who requested the document.
type Client struct {
	IP        string
	UserAgent string
}

// Options controls Flatten.
type Options struct {
	// AuditPage appends the "Document Audit Trail" page.
	AuditPage bool
	Client    Client
	// Now returns the signing time. Defaults to time.Now.
	Now func() time.Time
}

// AuditTrail records a flatten operation.
type AuditTrail struct {
	Timestamp  string `json:"timestamp"`
	IP         string `json:"ip"`
	UserAgent  string `json:"userAgent"`
	MarksCount int    `json:"marksCount"`
	PageCount  int    `json:"pageCount"`
}

// Result is a flattened document.
type Result struct {
	PDF            []byte
	AuditTrail     AuditTrail
	ProcessingTime time.Duration
}

// CheckPDF reports whether data looks like a PDF document.
func CheckPDF(data []byte) error {
	if len(data) < MinPDFSize || !bytes.HasPrefix(data, []byte("%PDF")) {
		return ErrInvalidPDF
	}
	return nil
}

// Flatten draws the marks of m onto the pages of the PDF in data. The
// manifest is validated against the document's pages first; marks on pages
// the document does not have are rejected.
func Flatten(ctx context.Context, data []byte, m *export.Manifest, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	start := time.Now()
	signedAt := now()

	if err := CheckPDF(data); err != nil {
		return nil, err
	}
	doc, err := pdfmark.OpenBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}
	if err := m.Validate(doc.Pages()); err != nil {
		return nil, err
	}
	marks, err := m.ToMarks()
	if err != nil {
		return nil, err
	}
	byPage := make(map[int][]*mark.Mark)
	for _, mk := range marks {
		byPage[mk.Page] = append(byPage[mk.Page], mk)
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	renderer := render.NewRenderer(pdf)
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(filebuffer.New(data))
	tplCtx := render.TemplateContext{Date: signedAt}

	for page := 1; page <= doc.NumPage(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size, err := doc.PageSize(page)
		if err != nil {
			return nil, err
		}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
		tpl := importer.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, size.Width, size.Height)

		for _, mk := range byPage[page] {
			if err := renderer.DrawMark(mk, tplCtx); err != nil {
				return nil, fmt.Errorf("failed to draw %s mark on page %d: %w", mk.Kind, page, err)
			}
		}
	}

	if opts.AuditPage {
		addAuditPage(pdf, m, signedAt)
	}

	out := filebuffer.New([]byte{})
	if err := pdf.Output(out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	return &Result{
		PDF: out.Buff.Bytes(),
		AuditTrail: AuditTrail{
			Timestamp:  signedAt.Format(timeLayout),
			IP:         orUnknown(opts.Client.IP),
			UserAgent:  orUnknown(opts.Client.UserAgent),
			MarksCount: len(marks),
			PageCount:  doc.NumPage(),
		},
		ProcessingTime: time.Since(start),
	}, nil
}

func addAuditPage(pdf *fpdf.Fpdf, m *export.Manifest, signedAt time.Time) {
	const margin = 56.0
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: geometry.A4.Width, Ht: geometry.A4.Height})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetXY(margin, margin)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 28, "Document Audit Trail", "", 1, "C", false, 0, "")
	pdf.Ln(28)

	summary := m.Summary()
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 22, "Signing Date: "+signedAt.Format(timeLayout), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 22, fmt.Sprintf("Total Elements: %d", summary.Total), "", 1, "", false, 0, "")

	pdf.Ln(14)
	pdf.CellFormat(0, 22, "Elements by Type:", "", 1, "", false, 0, "")
	for _, k := range mark.Kinds() {
		if n := summary.ByType[k.String()]; n > 0 {
			pdf.CellFormat(0, 22, fmt.Sprintf("  - %s: %d", k, n), "", 1, "", false, 0, "")
		}
	}
	pdf.SetMargins(0, 0, 0)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
