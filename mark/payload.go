package mark

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/digitorus/pdfmark/images"
)

// ErrMissingPayload is returned when a mark is created without the input its
// kind requires.
var ErrMissingPayload = errors.New("missing payload")

// Payload is the content carried by a mark. It is one of ImagePayload,
// TextPayload or DigitalPayload.
type Payload interface {
	isPayload()
}

// ImagePayload carries the image of a signature or initial mark.
type ImagePayload struct {
	Image *images.Image
}

// TextPayload carries the content of a text mark.
type TextPayload struct {
	Text     string
	FontSize float64
}

// DigitalStyle selects how a digital marker is drawn.
type DigitalStyle string

const (
	// Graphical draws a framed, tinted box.
	Graphical DigitalStyle = "graphical"
	// Plain draws the signer lines without decoration.
	Plain DigitalStyle = "text"
)

// DigitalPayload carries the signer record of a digital marker.
type DigitalPayload struct {
	StaffName        string
	StaffNumber      string
	Reason           string
	Location         string
	Style            DigitalStyle
	IncludeTimestamp bool
	Timestamp        time.Time
}

func (ImagePayload) isPayload()   {}
func (TextPayload) isPayload()    {}
func (DigitalPayload) isPayload() {}

// Validate checks that p provides what a mark of kind k needs. Missing input
// is reported as ErrMissingPayload.
func Validate(k Kind, p Payload) error {
	switch k {
	case Signature, Initial:
		ip, ok := p.(ImagePayload)
		if !ok || ip.Image == nil || len(ip.Image.Data) == 0 {
			return fmt.Errorf("%w: %s image", ErrMissingPayload, k)
		}
	case Text:
		tp, ok := p.(TextPayload)
		if !ok || strings.TrimSpace(tp.Text) == "" {
			return fmt.Errorf("%w: text", ErrMissingPayload)
		}
		if tp.FontSize < 0 {
			return fmt.Errorf("invalid font size %v", tp.FontSize)
		}
	case Digital:
		dp, ok := p.(DigitalPayload)
		if !ok || strings.TrimSpace(dp.StaffName) == "" || strings.TrimSpace(dp.StaffNumber) == "" {
			return fmt.Errorf("%w: staff name and staff number", ErrMissingPayload)
		}
	default:
		return fmt.Errorf("invalid mark type %d", int(k))
	}
	return nil
}

// Normalize returns p with text fields in Unicode NFC form and surrounding
// whitespace removed. Text payloads without a font size get DefaultFontSize
// and digital payloads without a style are Graphical.
func Normalize(p Payload) Payload {
	switch v := p.(type) {
	case TextPayload:
		v.Text = norm.NFC.String(strings.TrimSpace(v.Text))
		if v.FontSize == 0 {
			v.FontSize = DefaultFontSize
		}
		return v
	case DigitalPayload:
		v.StaffName = norm.NFC.String(strings.TrimSpace(v.StaffName))
		v.StaffNumber = norm.NFC.String(strings.TrimSpace(v.StaffNumber))
		v.Reason = norm.NFC.String(strings.TrimSpace(v.Reason))
		v.Location = norm.NFC.String(strings.TrimSpace(v.Location))
		if v.Style == "" {
			v.Style = Graphical
		}
		return v
	}
	return p
}
