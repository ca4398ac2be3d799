package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/arch-designer/pkg/types"
)

// parseCrop parses "x,y,width,height"
func parseCrop(s string, unit types.Unit) (types.CropRegion, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.CropRegion{}, fmt.Errorf("crop must be x,y,width,height: %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.CropRegion{}, fmt.Errorf("invalid crop value %q: %w", p, err)
		}
		v[i] = f
	}
	return types.CropRegion{X: v[0], Y: v[1], Width: v[2], Height: v[3], Unit: unit}, nil
}

// parseUnit accepts px or %
func parseUnit(s string) (types.Unit, error) {
	switch s {
	case "", "px":
		return types.UnitPixel, nil
	case "%", "percent":
		return types.UnitPercent, nil
	}
	return "", fmt.Errorf("unit must be px or %%: %q", s)
}

// parseRatio parses "W:H", e.g. 16:9
func parseRatio(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("ratio must be W:H: %q", s)
	}
	rw, err1 := strconv.Atoi(strings.TrimSpace(w))
	rh, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || rw <= 0 || rh <= 0 {
		return 0, 0, fmt.Errorf("ratio must be two positive integers: %q", s)
	}
	return rw, rh, nil
}

// parseSize parses "WxH"
func parseSize(s string) (types.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return types.Size{}, fmt.Errorf("size must be WxH: %q", s)
	}
	fw, err1 := strconv.ParseFloat(strings.TrimSpace(w), 64)
	fh, err2 := strconv.ParseFloat(strings.TrimSpace(h), 64)
	size := types.Size{Width: fw, Height: fh}
	if err1 != nil || err2 != nil || !size.Valid() {
		return types.Size{}, fmt.Errorf("size must be two positive numbers: %q", s)
	}
	return size, nil
}
