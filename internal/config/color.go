package config

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"
)

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA". Alpha defaults to opaque.
func ParseHexColor(s string) (color.NRGBA, error) {
	digits, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok || (len(digits) != 6 && len(digits) != 8) {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %v", s, err)
	}
	c := color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xFF}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}

func ParsePalette(entries []string) ([]color.Color, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("palette is empty")
	}
	palette := make([]color.Color, len(entries))
	for i, entry := range entries {
		c, err := ParseHexColor(entry)
		if err != nil {
			return nil, fmt.Errorf("palette entry %d: %w", i, err)
		}
		palette[i] = c
	}
	return palette, nil
}
