package imaging

import (
	"image"
	"image/color"
	"testing"
)

// grayFrame builds a uniform test image with the given luminance.
func grayFrame(w, h int, level uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}
	return img
}

// lumaRange returns the min and max luminance in an image.
func lumaRange(img image.Image) (uint8, uint8) {
	bounds := img.Bounds()
	minY, maxY := uint8(255), uint8(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma, _, _ := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			if luma < minY {
				minY = luma
			}
			if luma > maxY {
				maxY = luma
			}
		}
	}
	return minY, maxY
}

func TestNormalizeLightingStretchesContrast(t *testing.T) {
	// Low-contrast image: two bands at luminance 100 and 120.
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		level := uint8(100)
		if y >= 10 {
			level = 120
		}
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}

	out := NormalizeLighting(img)
	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed: %v != %v", out.Bounds(), img.Bounds())
	}

	beforeMin, beforeMax := lumaRange(img)
	afterMin, afterMax := lumaRange(out)
	if int(afterMax)-int(afterMin) <= int(beforeMax)-int(beforeMin) {
		t.Errorf("expected contrast to increase: before [%d,%d], after [%d,%d]",
			beforeMin, beforeMax, afterMin, afterMax)
	}
}

func TestNormalizeLightingUniformImage(t *testing.T) {
	// Single-level image must not produce artifacts, just one output level.
	out := NormalizeLighting(grayFrame(10, 10, 128))
	minY, maxY := lumaRange(out)
	if minY != maxY {
		t.Errorf("uniform input produced non-uniform output: [%d,%d]", minY, maxY)
	}
}

func TestCrop(t *testing.T) {
	img := grayFrame(100, 80, 50)

	crop := Crop(img, image.Rect(10, 10, 40, 30))
	if crop == nil {
		t.Fatal("expected crop, got nil")
	}
	if crop.Bounds().Dx() != 30 || crop.Bounds().Dy() != 20 {
		t.Errorf("unexpected crop size %v", crop.Bounds())
	}

	// Region partially outside the frame is clamped.
	crop = Crop(img, image.Rect(90, 70, 200, 200))
	if crop == nil {
		t.Fatal("expected clamped crop, got nil")
	}
	if crop.Bounds().Dx() != 10 || crop.Bounds().Dy() != 10 {
		t.Errorf("unexpected clamped crop size %v", crop.Bounds())
	}
}

func TestCropDegenerate(t *testing.T) {
	img := grayFrame(100, 80, 50)

	if got := Crop(img, image.Rect(10, 10, 10, 30)); got != nil {
		t.Errorf("expected nil for zero-width crop, got %v", got.Bounds())
	}
	if got := Crop(img, image.Rect(200, 200, 300, 300)); got != nil {
		t.Errorf("expected nil for out-of-bounds crop, got %v", got.Bounds())
	}
}

func TestResize(t *testing.T) {
	img := grayFrame(100, 80, 50)

	out := Resize(img, 25, 20)
	if out.Bounds().Dx() != 25 || out.Bounds().Dy() != 20 {
		t.Errorf("unexpected resized bounds %v", out.Bounds())
	}

	// Uniform input stays uniform through the bilinear filter.
	minY, maxY := lumaRange(out)
	if minY != maxY {
		t.Errorf("uniform input produced non-uniform output: [%d,%d]", minY, maxY)
	}
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	frame := grayFrame(100, 100, 0)
	out := Annotate(frame, []Annotation{
		{Rect: image.Rect(10, 10, 50, 50), Label: "S123"},
	})

	r, g, b, _ := out.At(10, 10).RGBA()
	if g>>8 != 255 || r>>8 != 0 || b>>8 != 0 {
		t.Errorf("expected green box edge at (10,10), got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	// Source frame must be untouched.
	_, g, _, _ = frame.At(10, 10).RGBA()
	if g>>8 != 0 {
		t.Error("Annotate modified the input frame")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame := grayFrame(32, 24, 200)

	data, err := EncodeJPEG(frame)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 24 {
		t.Errorf("unexpected decoded size %v", decoded.Bounds())
	}
}

func TestErrorFrame(t *testing.T) {
	frame := ErrorFrame(640, 480, "Camera 2 not available")
	if frame.Bounds().Dx() != 640 || frame.Bounds().Dy() != 480 {
		t.Errorf("unexpected error frame size %v", frame.Bounds())
	}
}
