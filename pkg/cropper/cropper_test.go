package cropper

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/types"
)

// createTestImage creates an image where every pixel encodes its position
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), uint8((x/256)*16 + y/256), 255})
		}
	}
	return img
}

func newSource(img image.Image, mimeType string, displayW, displayH float64) *types.SourceImage {
	return &types.SourceImage{
		Image:    img,
		MimeType: mimeType,
		Display:  types.Size{Width: displayW, Height: displayH},
	}
}

func sameColor(a, b color.Color, tolerance uint32) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	diff := func(x, y uint32) uint32 {
		if x > y {
			return x - y
		}
		return y - x
	}
	tolerance *= 0x101
	return diff(ar, br) <= tolerance && diff(ag, bg) <= tolerance &&
		diff(ab, bb) <= tolerance && diff(aa, ba) <= tolerance
}

func TestNew(t *testing.T) {
	engine := New()
	if engine == nil {
		t.Fatal("New() returned nil")
	}
	if engine.config.MaxCanvasArea != DefaultMaxCanvasArea {
		t.Errorf("Expected max canvas area %d, got %d", DefaultMaxCanvasArea, engine.config.MaxCanvasArea)
	}
	if engine.config.Kernel == nil {
		t.Error("Expected a default kernel")
	}
}

func TestNewWithConfig(t *testing.T) {
	engine := NewWithConfig(CropConfig{MaxCanvasArea: 100})
	if engine.config.MaxCanvasArea != 100 {
		t.Errorf("Expected max canvas area 100, got %d", engine.config.MaxCanvasArea)
	}
	if engine.config.Kernel == nil {
		t.Error("Expected kernel to fall back to default")
	}
}

func TestDrawOutputDimensions(t *testing.T) {
	engine := New()
	src := newSource(createTestImage(800, 600), types.MimePNG, 400, 300)

	tests := []struct {
		name      string
		crop      types.CropRegion
		transform types.Transform
	}{
		{"whole display", types.CropRegion{Width: 400, Height: 300}, types.DefaultTransform()},
		{"fractional", types.CropRegion{X: 10.3, Y: 7.9, Width: 33.7, Height: 21.2}, types.DefaultTransform()},
		{"zoomed", types.CropRegion{X: 50, Y: 50, Width: 120, Height: 80}, types.Transform{Scale: 2.5, RotateDegrees: 0}},
		{"rotated", types.CropRegion{X: 0, Y: 0, Width: 99.9, Height: 150.2}, types.Transform{Scale: 1, RotateDegrees: -37}},
		{"percent", types.CropRegion{X: 10, Y: 10, Width: 25, Height: 50, Unit: types.UnitPercent}, types.Transform{Scale: 1.3, RotateDegrees: 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Draw(src, tt.crop, tt.transform)
			if err != nil {
				t.Fatalf("Draw failed: %v", err)
			}
			px := tt.crop.ToPixels(src.DisplaySize())
			wantW := int(math.Floor(px.Width * 2))
			wantH := int(math.Floor(px.Height * 2))
			if out.Bounds().Dx() != wantW || out.Bounds().Dy() != wantH {
				t.Errorf("Expected %dx%d, got %dx%d", wantW, wantH, out.Bounds().Dx(), out.Bounds().Dy())
			}
		})
	}
}

func TestDrawIdentity(t *testing.T) {
	engine := New()
	img := createTestImage(120, 90)
	src := newSource(img, types.MimePNG, 60, 45)

	out, err := engine.Draw(src, types.CropRegion{Width: 60, Height: 45}, types.DefaultTransform())
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Fatalf("Expected bounds %v, got %v", img.Bounds(), out.Bounds())
	}
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			if !sameColor(out.At(x, y), img.At(x, y), 0) {
				t.Fatalf("Pixel (%d,%d) differs: %v vs %v", x, y, out.At(x, y), img.At(x, y))
			}
		}
	}
}

func TestDrawEndToEndScaledDisplay(t *testing.T) {
	engine := New()
	img := createTestImage(800, 600)
	src := newSource(img, types.MimePNG, 400, 300)

	out, err := engine.Draw(src, types.CropRegion{X: 100, Y: 100, Width: 200, Height: 200}, types.Transform{Scale: 1})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if out.Bounds().Dx() != 400 || out.Bounds().Dy() != 400 {
		t.Fatalf("Expected 400x400, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	for _, pt := range []image.Point{{0, 0}, {399, 0}, {0, 399}, {399, 399}, {123, 321}} {
		if !sameColor(out.At(pt.X, pt.Y), img.At(pt.X+200, pt.Y+200), 0) {
			t.Errorf("Pixel %v: expected source pixel %v", pt, pt.Add(image.Pt(200, 200)))
		}
	}
}

func TestDrawRotate180(t *testing.T) {
	engine := New()
	img := createTestImage(64, 48)
	src := newSource(img, types.MimePNG, 64, 48)

	out, err := engine.Draw(src, types.CropRegion{Width: 64, Height: 48}, types.Transform{Scale: 1, RotateDegrees: 180})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	for y := 4; y < 44; y += 7 {
		for x := 4; x < 60; x += 7 {
			if !sameColor(out.At(x, y), img.At(63-x, 47-y), 2) {
				t.Errorf("Pixel (%d,%d): got %v, expected %v", x, y, out.At(x, y), img.At(63-x, 47-y))
			}
		}
	}
}

func TestDrawClampsScale(t *testing.T) {
	engine := New()
	img := createTestImage(50, 50)
	src := newSource(img, types.MimePNG, 50, 50)

	out, err := engine.Draw(src, types.CropRegion{Width: 50, Height: 50}, types.Transform{Scale: 0.25})
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if !sameColor(out.At(0, 0), img.At(0, 0), 0) || !sameColor(out.At(49, 49), img.At(49, 49), 0) {
		t.Error("Expected zoom-out to be clamped to scale 1")
	}
}

func TestDrawOutsideSourceIsTransparent(t *testing.T) {
	engine := New()
	src := newSource(createTestImage(40, 40), types.MimePNG, 40, 40)

	out, err := engine.Draw(src, types.CropRegion{X: 30, Y: 30, Width: 20, Height: 20}, types.DefaultTransform())
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if _, _, _, a := out.At(15, 15).RGBA(); a != 0 {
		t.Errorf("Expected transparent pixel outside the source, got alpha %d", a)
	}
	if _, _, _, a := out.At(5, 5).RGBA(); a == 0 {
		t.Error("Expected opaque pixel inside the source")
	}
}

func TestDrawEmptyCrop(t *testing.T) {
	engine := New()
	src := newSource(createTestImage(40, 40), types.MimePNG, 40, 40)

	for _, crop := range []types.CropRegion{{}, {Width: 10}, {Height: 10}, {Width: -5, Height: 10}} {
		if _, err := engine.Draw(src, crop, types.DefaultTransform()); !errors.Is(err, ErrEmptyCrop) {
			t.Errorf("Expected ErrEmptyCrop for %+v, got %v", crop, err)
		}
	}
}

func TestDrawNoCanvas(t *testing.T) {
	src := newSource(createTestImage(40, 40), types.MimePNG, 400, 400)

	// 0.5 display px maps to 0.05 natural px
	if _, err := New().Draw(src, types.CropRegion{Width: 0.5, Height: 0.5}, types.DefaultTransform()); !errors.Is(err, ErrNoCanvas) {
		t.Errorf("Expected ErrNoCanvas for sub-pixel output, got %v", err)
	}

	small := NewWithConfig(CropConfig{MaxCanvasArea: 10})
	big := newSource(createTestImage(40, 40), types.MimePNG, 40, 40)
	if _, err := small.Draw(big, types.CropRegion{Width: 40, Height: 40}, types.DefaultTransform()); !errors.Is(err, ErrNoCanvas) {
		t.Errorf("Expected ErrNoCanvas above the area limit, got %v", err)
	}
}

func TestDrawNotDecoded(t *testing.T) {
	if _, err := New().Draw(&types.SourceImage{}, types.CropRegion{Width: 1, Height: 1}, types.DefaultTransform()); !errors.Is(err, ErrNotDecoded) {
		t.Errorf("Expected ErrNotDecoded, got %v", err)
	}
}

func TestDrawDoesNotMutateSource(t *testing.T) {
	img := createTestImage(30, 30)
	before := make([]byte, len(img.Pix))
	copy(before, img.Pix)

	src := newSource(img, types.MimePNG, 30, 30)
	if _, err := New().Draw(src, types.CropRegion{X: 3, Y: 4, Width: 20, Height: 20}, types.Transform{Scale: 2, RotateDegrees: 45}); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	for i := range before {
		if before[i] != img.Pix[i] {
			t.Fatal("Source image was modified")
		}
	}
}

func TestCanvasTransformOrder(t *testing.T) {
	natural := types.Size{Width: 100, Height: 100}
	m := CanvasTransform(10, 10, natural, types.Transform{Scale: 2, RotateDegrees: 90})

	apply := func(x, y float64) (float64, float64) {
		return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
	}

	// center stays fixed before the crop offset
	if x, y := apply(50, 50); math.Abs(x-40) > 1e-9 || math.Abs(y-40) > 1e-9 {
		t.Errorf("Center mapped to (%f,%f), expected (40,40)", x, y)
	}
	// (60,50) -> scaled to (20,0) from center -> rotated to (0,20) -> (50,70) -> crop (40,60)
	if x, y := apply(60, 50); math.Abs(x-40) > 1e-9 || math.Abs(y-60) > 1e-9 {
		t.Errorf("Point mapped to (%f,%f), expected (40,60)", x, y)
	}
}

func TestRenderOutputFormats(t *testing.T) {
	engine := New()
	tests := []struct {
		source string
		want   string
	}{
		{types.MimePNG, types.MimePNG},
		{types.MimeWEBP, types.MimeWEBP},
		{types.MimeJPEG, types.MimeJPEG},
		{"image/gif", types.MimeJPEG},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			src := newSource(createTestImage(60, 40), tt.source, 60, 40)
			edited, err := engine.Render(src, types.CropRegion{X: 10, Y: 5, Width: 30, Height: 20}, types.DefaultTransform())
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if edited.MimeType != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, edited.MimeType)
			}
			data, err := processing.DecodeEdited(edited)
			if err != nil {
				t.Fatalf("DecodeEdited failed: %v", err)
			}
			img, err := processing.Decode(data, edited.MimeType)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
				t.Errorf("Expected 30x20, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestRenderLosslessRoundTrip(t *testing.T) {
	img := createTestImage(32, 32)
	for _, mimeType := range []string{types.MimePNG, types.MimeWEBP} {
		src := newSource(img, mimeType, 32, 32)
		edited, err := New().Render(src, types.CropRegion{Width: 32, Height: 32}, types.DefaultTransform())
		if err != nil {
			t.Fatalf("Render %s failed: %v", mimeType, err)
		}
		data, _ := processing.DecodeEdited(edited)
		decoded, err := processing.Decode(data, edited.MimeType)
		if err != nil {
			t.Fatalf("Decode %s failed: %v", mimeType, err)
		}
		for _, pt := range []image.Point{{0, 0}, {17, 9}, {31, 31}} {
			if !sameColor(decoded.At(pt.X, pt.Y), img.At(pt.X, pt.Y), 0) {
				t.Errorf("%s pixel %v changed after re-encoding", mimeType, pt)
			}
		}
	}
}

func TestSuggestCrop(t *testing.T) {
	src := newSource(createTestImage(400, 300), types.MimePNG, 200, 150)

	full, err := SuggestCrop(src, 0, 0)
	if err != nil {
		t.Fatalf("SuggestCrop failed: %v", err)
	}
	if full.Width != 200 || full.Height != 150 {
		t.Errorf("Expected whole display 200x150, got %.1fx%.1f", full.Width, full.Height)
	}

	square, err := SuggestCrop(src, 1, 1)
	if err != nil {
		t.Fatalf("SuggestCrop failed: %v", err)
	}
	if !square.HasArea() {
		t.Fatal("Expected suggested crop to have area")
	}
	if ratio := square.Width / square.Height; ratio < 0.95 || ratio > 1.05 {
		t.Errorf("Expected square crop, got ratio %f", ratio)
	}
	if square.X < 0 || square.Y < 0 || square.X+square.Width > 200.5 || square.Y+square.Height > 150.5 {
		t.Errorf("Suggested crop %+v exceeds the display", square)
	}
}

func BenchmarkDrawIdentity(b *testing.B) {
	engine := New()
	src := newSource(createTestImage(1920, 1080), types.MimePNG, 960, 540)
	crop := types.CropRegion{Width: 960, Height: 540}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Draw(src, crop, types.DefaultTransform())
	}
}

func BenchmarkDrawRotated(b *testing.B) {
	engine := New()
	src := newSource(createTestImage(1920, 1080), types.MimePNG, 960, 540)
	crop := types.CropRegion{X: 100, Y: 100, Width: 400, Height: 300}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Draw(src, crop, types.Transform{Scale: 1.5, RotateDegrees: 30})
	}
}
