package images

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	MaxWidth  int  // Maximum pixel width, 0 for no limit
	MaxHeight int  // Maximum pixel height, 0 for no limit
	Trim      bool // Crop fully transparent borders
}

// Normalize prepares a capture for embedding in a PDF. WebP images are
// re-encoded as PNG, transparent borders are optionally trimmed and images
// larger than the limits are scaled down keeping their aspect ratio.
// Images that need no change are returned as is.
func Normalize(img *Image, opts NormalizeOptions) (*Image, error) {
	needsScale := (opts.MaxWidth > 0 && img.Width > opts.MaxWidth) ||
		(opts.MaxHeight > 0 && img.Height > opts.MaxHeight)
	if img.Format != WebP && !needsScale && !opts.Trim {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	if opts.Trim {
		bounds = opaqueBounds(src)
	}

	w, h := fit(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)
	if img.Format != WebP && w == img.Width && h == img.Height && bounds == src.Bounds() {
		return img, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return New(img.Name, buf.Bytes())
}

// fit returns the largest size with the aspect ratio of w×h that fits
// within maxW×maxH. Zero limits are ignored.
func fit(w, h, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		scale = min(scale, float64(maxH)/float64(h))
	}
	if scale == 1 {
		return w, h
	}
	return max(1, int(float64(w)*scale+0.5)), max(1, int(float64(h)*scale+0.5))
}

// opaqueBounds returns the smallest rectangle containing every pixel with a
// non-zero alpha. A fully transparent image keeps its bounds.
func opaqueBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x+1), max(maxY, y+1)
		}
	}
	if minX >= maxX || minY >= maxY {
		return b
	}
	return image.Rect(minX, minY, maxX, maxY)
}
