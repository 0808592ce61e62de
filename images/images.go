// Package images provides the raster payloads of signature and initial marks.
//
// Captures arrive either as uploaded files or as data URLs produced by a
// drawing canvas. They are kept as encoded bytes together with their format
// and pixel dimensions so that finalizers can embed them without decoding.
package images

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// Format is the encoding of an image.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
)

// MIME returns the media type of the format.
func (f Format) MIME() string {
	return "image/" + string(f)
}

// ErrUnsupportedFormat is returned for payloads that are not PNG, JPEG or WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image represents an image resource that can be placed on a page.
type Image struct {
	Name   string // Identifier for the image
	Data   []byte // Encoded image data
	Hash   string // SHA256 hash of image data for deduplication
	Format Format
	Width  int // Pixel width
	Height int // Pixel height
}

// New validates data as a supported image and returns it as an Image.
func New(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var f Format
	switch format {
	case "png":
		f = PNG
	case "jpeg":
		f = JPEG
	case "webp":
		f = WebP
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	h := sha256.Sum256(data)
	return &Image{
		Name:   name,
		Data:   data,
		Hash:   hex.EncodeToString(h[:]),
		Format: f,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// FromDataURL decodes a base64 data URL such as the ones produced by
// HTMLCanvasElement.toDataURL.
func FromDataURL(name, url string) (*Image, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}

	img, err := New(name, data)
	if err != nil {
		return nil, err
	}
	if declared := strings.TrimSuffix(meta, ";base64"); declared != "" {
		if declared == "image/jpg" {
			declared = JPEG.MIME()
		}
		if declared != img.Format.MIME() {
			return nil, fmt.Errorf("data URL declares %s but contains %s", declared, img.Format.MIME())
		}
	}
	return img, nil
}

// DataURL returns the image encoded as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.Format.MIME() + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// AspectRatio returns width divided by height, or 1 when unknown.
func (i *Image) AspectRatio() float64 {
	if i == nil || i.Width <= 0 || i.Height <= 0 {
		return 1
	}
	return float64(i.Width) / float64(i.Height)
}
