// Package extract finds the signature dictionaries of a PDF and decodes
// their CMS envelopes.
package extract

import (
	"errors"
	"io"
	"iter"

	pdflib "github.com/digitorus/pdf"
)

// ErrByteRange is returned for a signature without a usable ByteRange.
var ErrByteRange = errors.New("invalid or missing ByteRange")

// Signature is the value of a signature field.
type Signature struct {
	Obj   pdflib.Value
	Field string // Fully qualified field name
	File  io.ReaderAt
}

// Name is the signer name recorded by the signing application.
func (s *Signature) Name() string {
	return s.Obj.Key("Name").Text()
}

// Filter names the signature handler, e.g. Adobe.PPKLite.
func (s *Signature) Filter() string {
	return s.Obj.Key("Filter").Name()
}

// SubFilter names the encoding of Contents.
func (s *Signature) SubFilter() string {
	return s.Obj.Key("SubFilter").Name()
}

// Contents returns the CMS envelope.
func (s *Signature) Contents() []byte {
	return []byte(s.Obj.Key("Contents").RawString())
}

// ByteRange returns the offset and length pairs covered by the signature.
func (s *Signature) ByteRange() []int64 {
	br := s.Obj.Key("ByteRange")
	n := br.Len()
	if n == 0 {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = br.Index(i).Int64()
	}
	return out
}

// SignedData returns the bytes of the file covered by the signature.
func (s *Signature) SignedData() (io.Reader, error) {
	ranges := s.ByteRange()
	if len(ranges) == 0 || len(ranges)%2 != 0 || s.File == nil {
		return nil, ErrByteRange
	}
	return NewByteRangeReader(s.File, ranges), nil
}

// NewByteRangeReader reads the offset and length pairs of ranges from file
// as one stream.
func NewByteRangeReader(file io.ReaderAt, ranges []int64) io.Reader {
	parts := make([]io.Reader, 0, len(ranges)/2)
	for i := 0; i+1 < len(ranges); i += 2 {
		parts = append(parts, io.NewSectionReader(file, ranges[i], ranges[i+1]))
	}
	return io.MultiReader(parts...)
}

// Iter yields the signature of every signed signature field of the
// document's AcroForm. Documents without SigFlags have none.
func Iter(rdr *pdflib.Reader, file io.ReaderAt) iter.Seq2[*Signature, error] {
	return func(yield func(*Signature, error) bool) {
		form := rdr.Trailer().Key("Root").Key("AcroForm")
		if form.Key("SigFlags").IsNull() {
			return
		}
		w := walker{file: file, yield: yield}
		w.fields(form.Key("Fields"), "", 0)
	}
}

// maxFieldDepth bounds the field tree walk on malformed documents.
const maxFieldDepth = 32

type walker struct {
	file  io.ReaderAt
	yield func(*Signature, error) bool
}

// fields visits the fields of arr and their kids. It returns false once
// the consumer stops.
func (w walker) fields(arr pdflib.Value, parent string, depth int) bool {
	if arr.Kind() != pdflib.Array || depth > maxFieldDepth {
		return true
	}
	for i := range arr.Len() {
		field := arr.Index(i)
		name := field.Key("T").Text()
		if parent != "" {
			name = parent + "." + name
		}
		if v := field.Key("V"); field.Key("FT").Name() == "Sig" && isSignature(v) {
			if !w.yield(&Signature{Obj: v, Field: name, File: w.file}, nil) {
				return false
			}
		}
		if !w.fields(field.Key("Kids"), name, depth+1) {
			return false
		}
	}
	return true
}

// isSignature reports whether v is a signature or document timestamp
// dictionary. Some writers omit /Type.
func isSignature(v pdflib.Value) bool {
	switch v.Key("Type").Name() {
	case "Sig", "DocTimeStamp":
		return true
	}
	return !v.Key("Filter").IsNull() && !v.Key("Contents").IsNull()
}
