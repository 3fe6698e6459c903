// Package imaging normalizes uploaded item pictures.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat is returned for uploads that are not JPEG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format (only JPEG and PNG accepted)")

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 85
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Image is a processed picture ready to be stored.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Processor downscales pictures to fit MaxDimension and re-encodes them as
// JPEG.
type Processor struct {
	MaxDimension int
	Quality      int
}

// NewProcessor returns a Processor with default settings.
func NewProcessor() *Processor {
	return &Processor{MaxDimension: DefaultMaxDimension, Quality: DefaultQuality}
}

// Process reads r, checks its format by sniffing the bytes rather than
// trusting the client, and returns the re-encoded picture.
func (p *Processor) Process(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	dst := p.fit(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := dst.Bounds()
	return &Image{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales src down so neither side exceeds MaxDimension, keeping the aspect
// ratio, and flattens transparency onto white. Smaller images keep their size.
func (p *Processor) fit(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := scaledSize(bounds.Dx(), bounds.Dy(), p.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func scaledSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = h * maxDim / w
	} else {
		newW = w * maxDim / h
	}
	return max(newW, 1), max(newH, 1)
}
