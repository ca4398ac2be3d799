package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/arch-designer/internal/utils"
	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/session"
	"github.com/menta2k/arch-designer/pkg/types"
)

// editOptions describes how a loaded file is cropped before confirming
type editOptions struct {
	crop      string
	unit      string
	display   string
	autoRatio string
	scale     float64
	rotate    float64
}

func (o *editOptions) register(cmd *cobra.Command, prefix string) {
	cmd.Flags().StringVar(&o.crop, prefix+"crop", "", "crop region x,y,width,height in display space (default: whole image)")
	cmd.Flags().StringVar(&o.unit, prefix+"unit", "px", "crop unit: px or %")
	cmd.Flags().StringVar(&o.display, prefix+"display", "", "display size WxH the crop is expressed in (default: natural size)")
	cmd.Flags().StringVar(&o.autoRatio, prefix+"auto-crop", "", "suggest a crop with this aspect ratio W:H instead of --crop")
	cmd.Flags().Float64Var(&o.scale, prefix+"scale", 1, "zoom factor (1-3)")
	cmd.Flags().Float64Var(&o.rotate, prefix+"rotate", 0, "rotation in degrees (-180-180)")
}

// edit runs one slot through select, crop, transform and confirm
func edit(slot *session.Slot, name string, data []byte, mimeType string, o editOptions) (types.EditedImage, error) {
	if err := slot.SelectFile(name, data, mimeType); err != nil {
		return types.EditedImage{}, err
	}

	if o.display != "" {
		size, err := parseSize(o.display)
		if err != nil {
			abandon(slot)
			return types.EditedImage{}, err
		}
		if err := slot.SetDisplaySize(size); err != nil {
			abandon(slot)
			return types.EditedImage{}, err
		}
	}

	region, err := cropRegion(slot, o)
	if err != nil {
		abandon(slot)
		return types.EditedImage{}, err
	}
	if err := slot.UpdateCrop(region); err != nil {
		return types.EditedImage{}, err
	}
	if err := slot.UpdateTransform(types.Transform{Scale: o.scale, RotateDegrees: o.rotate}); err != nil {
		return types.EditedImage{}, err
	}

	edited, err := slot.Confirm()
	if err != nil {
		if slot.State() == session.StateEditing {
			abandon(slot)
		}
		return types.EditedImage{}, err
	}
	return edited, nil
}

// abandon closes an edit that could not be confirmed
func abandon(slot *session.Slot) {
	if err := slot.Cancel(); err != nil {
		logger.Warn("Failed to cancel edit", "role", slot.Role(), "error", err)
	}
}

func cropRegion(slot *session.Slot, o editOptions) (types.CropRegion, error) {
	src, _ := slot.Source()
	switch {
	case o.crop != "":
		unit, err := parseUnit(o.unit)
		if err != nil {
			return types.CropRegion{}, err
		}
		return parseCrop(o.crop, unit)
	case o.autoRatio != "":
		rw, rh, err := parseRatio(o.autoRatio)
		if err != nil {
			return types.CropRegion{}, err
		}
		return cropper.SuggestCrop(src, rw, rh)
	}
	display := src.DisplaySize()
	return types.CropRegion{Width: display.Width, Height: display.Height, Unit: types.UnitPixel}, nil
}

var (
	cropOpts   editOptions
	cropOutput string
)

var cropCmd = &cobra.Command{
	Use:   "crop INPUT",
	Short: "Crop, rotate and scale a drawing the way the editor does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrop(args[0], cropOpts, cropOutput)
	},
}

func init() {
	cropOpts.register(cropCmd, "")
	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "output file (default: <input>_cropped.<ext>)")
	rootCmd.AddCommand(cropCmd)
}

func runCrop(input string, o editOptions, output string) error {
	if utils.FileExists(input) && !utils.IsImageFile(input) {
		logger.Warn("Unrecognized image extension, detecting type from content", "file", input)
	}

	proc := processing.NewProcessor()
	data, mimeType, err := proc.LoadSmart(input)
	if err != nil {
		return err
	}
	if !processing.IsAccepted(mimeType) {
		return fmt.Errorf("%s: %w", input, processing.ErrUnsupportedFormat)
	}

	engine := cropper.NewWithConfig(cropper.CropConfig{MaxCanvasArea: cfg.Editor.MaxCanvasArea})
	slot := session.NewSlot(types.RoleReference, engine, session.WithLogger(logger))

	name := filepath.Base(input)
	edited, err := edit(slot, name, data, mimeType, o)
	if err != nil {
		return err
	}

	if output == "" {
		output = utils.CroppedFilename(name, "", edited.MimeType)
		if utils.FileExists(input) {
			output = utils.CroppedFilename(input, "", edited.MimeType)
		}
	}
	if err := proc.SaveEdited(edited, output); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return err
	}
	logger.Info("Saved cropped image", "path", output, "mime", edited.MimeType, "size", utils.FormatFileSize(info.Size()))
	fmt.Println(output)
	return nil
}
