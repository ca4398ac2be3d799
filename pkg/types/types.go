package types

import (
	"encoding/base64"
	"fmt"
	"image"
	"math"
)

// Supported media types
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
)

// Transform limits enforced by the editor controls
const (
	MinScale  = 1.0
	MaxScale  = 3.0
	MinRotate = -180.0
	MaxRotate = 180.0
)

// Role identifies one of the upload slots
type Role string

const (
	RoleFloorPlan Role = "floor-plan"
	RoleElevation Role = "elevation"
	RoleReference Role = "reference"
)

// Roles returns the slot roles in request order
func Roles() []Role {
	return []Role{RoleFloorPlan, RoleElevation, RoleReference}
}

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown slot role: %q", s)
}

// Description returns the label used when describing the slot's drawing
func (r Role) Description() string {
	switch r {
	case RoleFloorPlan:
		return "floor plan"
	case RoleElevation:
		return "elevation view"
	case RoleReference:
		return "style reference"
	}
	return string(r)
}

// Size is a width/height pair in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Unit is the coordinate convention of a CropRegion
type Unit string

const (
	UnitPixel   Unit = "px"
	UnitPercent Unit = "%"
)

// CropRegion is a rectangle in display space
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   Unit    `json:"unit,omitempty"`
}

// HasArea reports whether the region can be confirmed
func (c CropRegion) HasArea() bool {
	return c.Width > 0 && c.Height > 0
}

// ToPixels converts the region to display pixels
func (c CropRegion) ToPixels(display Size) CropRegion {
	if c.Unit != UnitPercent {
		c.Unit = UnitPixel
		return c
	}
	return CropRegion{
		X:      c.X * display.Width / 100,
		Y:      c.Y * display.Height / 100,
		Width:  c.Width * display.Width / 100,
		Height: c.Height * display.Height / 100,
		Unit:   UnitPixel,
	}
}

// Natural maps the region from display space to natural pixel space
func (c CropRegion) Natural(display, natural Size) CropRegion {
	px := c.ToPixels(display)
	scaleX := natural.Width / display.Width
	scaleY := natural.Height / display.Height
	return CropRegion{
		X:      px.X * scaleX,
		Y:      px.Y * scaleY,
		Width:  px.Width * scaleX,
		Height: px.Height * scaleY,
		Unit:   UnitPixel,
	}
}

// Transform is the zoom and rotation applied around the image center
type Transform struct {
	Scale         float64 `json:"scale"`
	RotateDegrees float64 `json:"rotate"`
}

// DefaultTransform returns the identity transform
func DefaultTransform() Transform {
	return Transform{Scale: 1, RotateDegrees: 0}
}

// Clamp limits the transform to the range the editor allows
func (t Transform) Clamp() Transform {
	if math.IsNaN(t.Scale) {
		t.Scale = MinScale
	}
	if math.IsNaN(t.RotateDegrees) {
		t.RotateDegrees = 0
	}
	t.Scale = math.Max(MinScale, math.Min(MaxScale, t.Scale))
	t.RotateDegrees = math.Max(MinRotate, math.Min(MaxRotate, t.RotateDegrees))
	return t
}

// SourceImage is a decoded file waiting to be cropped
type SourceImage struct {
	Name     string
	Data     []byte
	DataURI  string
	MimeType string
	Image    image.Image
	Display  Size
}

// NaturalSize returns the decoded pixel dimensions
func (s *SourceImage) NaturalSize() Size {
	b := s.Image.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// DisplaySize returns the display dimensions, defaulting to the natural size
func (s *SourceImage) DisplaySize() Size {
	if s.Display.Valid() {
		return s.Display
	}
	return s.NaturalSize()
}

// EditedImage is the encoded result of a confirmed crop
type EditedImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// IsZero reports whether the image is empty
func (e EditedImage) IsZero() bool {
	return e.Data == "" && e.MimeType == ""
}

// GeneratedImage is the image returned by the generation backend
type GeneratedImage struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}

// DataURI encodes the image as a base64 data URI
func (g *GeneratedImage) DataURI() string {
	return "data:" + g.MimeType + ";base64," + base64.StdEncoding.EncodeToString(g.Data)
}
