package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h, color.RGBA{200, 30, 30, 255}), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, c)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessOutputsJPEG(t *testing.T) {
	p := NewProcessor()

	for name, data := range map[string][]byte{
		"jpeg": encodeJPEG(t, 40, 30),
		"png":  encodePNG(t, 40, 30, color.RGBA{0, 0, 255, 255}),
	} {
		img, err := p.Process(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: Process: %v", name, err)
		}
		if img.MIME != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg, got %s", name, img.MIME)
		}
		if img.Width != 40 || img.Height != 30 {
			t.Errorf("%s: expected 40x30, got %dx%d", name, img.Width, img.Height)
		}
		if _, err := jpeg.Decode(bytes.NewReader(img.Data)); err != nil {
			t.Errorf("%s: output is not a JPEG: %v", name, err)
		}
	}
}

func TestProcessDownscalesKeepingAspect(t *testing.T) {
	p := &Processor{MaxDimension: 100, Quality: 80}

	img, err := p.Process(bytes.NewReader(encodeJPEG(t, 400, 200)))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if img.Width != 100 || img.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", img.Width, img.Height)
	}
}

func TestProcessFlattensTransparency(t *testing.T) {
	p := NewProcessor()

	img, err := p.Process(bytes.NewReader(encodePNG(t, 8, 8, color.RGBA{})))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decoded.At(4, 4).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessRejectsOtherFormats(t *testing.T) {
	p := NewProcessor()

	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a......")} {
		_, err := p.Process(bytes.NewReader(data))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat for %q, got %v", data, err)
		}
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{50, 50, 100, 50, 50},
		{200, 100, 100, 100, 50},
		{100, 400, 100, 25, 100},
		{1000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := scaledSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("scaledSize(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}
