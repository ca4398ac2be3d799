package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/menta2k/arch-designer/pkg/types"
)

// resizer implements the smartcrop.Resizer interface on top of imaging
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// SuggestCrop proposes an initial crop region in display space with the
// given aspect ratio. A non-positive ratio selects the whole image.
func SuggestCrop(src *types.SourceImage, ratioW, ratioH int) (types.CropRegion, error) {
	if src == nil || src.Image == nil {
		return types.CropRegion{}, ErrNotDecoded
	}
	display := src.DisplaySize()
	if ratioW <= 0 || ratioH <= 0 {
		return types.CropRegion{Width: display.Width, Height: display.Height, Unit: types.UnitPixel}, nil
	}

	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Lanczos})
	best, err := analyzer.FindBestCrop(src.Image, ratioW, ratioH)
	if err != nil {
		return types.CropRegion{}, fmt.Errorf("finding best crop: %w", err)
	}
	best = best.Sub(src.Image.Bounds().Min)

	natural := src.NaturalSize()
	sx := display.Width / natural.Width
	sy := display.Height / natural.Height
	return types.CropRegion{
		X:      float64(best.Min.X) * sx,
		Y:      float64(best.Min.Y) * sy,
		Width:  float64(best.Dx()) * sx,
		Height: float64(best.Dy()) * sy,
		Unit:   types.UnitPixel,
	}, nil
}
