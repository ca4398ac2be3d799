package client

import (
	"context"

	"github.com/menta2k/arch-designer/pkg/types"
)

// ImageGenerator sends edited images and an instruction to a generative
// model. A nil image with a nil error means the model answered without
// image data.
type ImageGenerator interface {
	Generate(ctx context.Context, images []types.EditedImage, text string) (*types.GeneratedImage, error)
}
