package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/types"
)

// DefaultMaxCanvasArea mirrors the largest canvas common browsers allocate
const DefaultMaxCanvasArea = 16384 * 16384

var (
	// ErrEmptyCrop is returned when the crop region has no area
	ErrEmptyCrop = errors.New("crop region has zero area")
	// ErrNotDecoded is returned when the source has no decoded image
	ErrNotDecoded = errors.New("source image is not decoded")
	// ErrNoCanvas is returned when no drawing surface can be allocated
	ErrNoCanvas = errors.New("could not allocate drawing canvas")
)

// Engine renders crop selections into edited images
type Engine struct {
	config CropConfig
}

// CropConfig holds configuration for the crop engine
type CropConfig struct {
	MaxCanvasArea int
	Kernel        *xdraw.Kernel
}

// New creates a new Engine with default configuration
func New() *Engine {
	return &Engine{
		config: CropConfig{
			MaxCanvasArea: DefaultMaxCanvasArea,
			Kernel:        xdraw.CatmullRom,
		},
	}
}

// NewWithConfig creates a new Engine with custom configuration
func NewWithConfig(config CropConfig) *Engine {
	if config.MaxCanvasArea <= 0 {
		config.MaxCanvasArea = DefaultMaxCanvasArea
	}
	if config.Kernel == nil {
		config.Kernel = xdraw.CatmullRom
	}
	return &Engine{config: config}
}

// Render rotates and scales the source about its center, extracts the crop
// window and encodes the result. The source is not modified.
func (e *Engine) Render(src *types.SourceImage, crop types.CropRegion, t types.Transform) (types.EditedImage, error) {
	canvas, err := e.Draw(src, crop, t)
	if err != nil {
		return types.EditedImage{}, err
	}
	return processing.EncodeEdited(canvas, src.MimeType)
}

// Draw produces the raw output raster for a crop selection
func (e *Engine) Draw(src *types.SourceImage, crop types.CropRegion, t types.Transform) (*image.RGBA, error) {
	if src == nil || src.Image == nil {
		return nil, ErrNotDecoded
	}
	if !crop.HasArea() {
		return nil, ErrEmptyCrop
	}

	natural := src.NaturalSize()
	nc := crop.Natural(src.DisplaySize(), natural)

	canvas, err := e.newCanvas(int(math.Floor(nc.Width)), int(math.Floor(nc.Height)))
	if err != nil {
		return nil, err
	}

	bounds := src.Image.Bounds()
	s2d := compose(
		CanvasTransform(nc.X, nc.Y, natural, t.Clamp()),
		translate(-float64(bounds.Min.X), -float64(bounds.Min.Y)),
	)

	if tx, ty, ok := integerTranslation(s2d); ok {
		xdraw.Draw(canvas, canvas.Bounds(), src.Image, image.Pt(-tx, -ty), xdraw.Src)
		return canvas, nil
	}

	e.config.Kernel.Transform(canvas, s2d, src.Image, bounds, xdraw.Over, nil)
	return canvas, nil
}

func (e *Engine) newCanvas(width, height int) (*image.RGBA, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNoCanvas, width, height)
	}
	if width > e.config.MaxCanvasArea/height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrNoCanvas, width, height, e.config.MaxCanvasArea)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// CanvasTransform returns the source-to-output matrix
//
//	T(-crop) ∘ T(center) ∘ R(θ) ∘ S(scale) ∘ T(-center)
//
// where crop is the natural-space top-left of the selection.
func CanvasTransform(cropX, cropY float64, natural types.Size, t types.Transform) f64.Aff3 {
	cx, cy := natural.Width/2, natural.Height/2
	return compose(
		translate(-cropX, -cropY),
		translate(cx, cy),
		rotate(t.RotateDegrees*math.Pi/180),
		scale(t.Scale),
		translate(-cx, -cy),
	)
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

func rotate(rad float64) f64.Aff3 {
	sin, cos := math.Sincos(rad)
	return f64.Aff3{cos, -sin, 0, sin, cos, 0}
}

func scale(s float64) f64.Aff3 {
	return f64.Aff3{s, 0, 0, 0, s, 0}
}

// mul returns a∘b, applying b first
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// compose multiplies left to right, so the last matrix is applied first
func compose(ms ...f64.Aff3) f64.Aff3 {
	out := translate(0, 0)
	for _, m := range ms {
		out = mul(out, m)
	}
	return out
}

const epsilon = 1e-9

func integerTranslation(m f64.Aff3) (int, int, bool) {
	if math.Abs(m[0]-1) > epsilon || math.Abs(m[1]) > epsilon ||
		math.Abs(m[3]) > epsilon || math.Abs(m[4]-1) > epsilon {
		return 0, 0, false
	}
	tx, ty := math.Round(m[2]), math.Round(m[5])
	if math.Abs(m[2]-tx) > epsilon || math.Abs(m[5]-ty) > epsilon {
		return 0, 0, false
	}
	return int(tx), int(ty), true
}
