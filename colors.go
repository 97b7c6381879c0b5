package main

import (
	"math"
	"sort"
	"strings"
)

// RGB is a linear color with each channel in 0.0-1.0.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Scale returns the color with every channel multiplied by brightness.
func (c RGB) Scale(brightness float64) RGB {
	return RGB{c.R * brightness, c.G * brightness, c.B * brightness}
}

// namedColors maps color names to linear RGB values. Names are lowercase.
var namedColors = map[string]RGB{
	// Basic colors
	"red":   {1.0, 0.0, 0.0},
	"green": {0.0, 1.0, 0.0},
	"blue":  {0.0, 0.0, 1.0},
	"white": {1.0, 1.0, 1.0},
	"black": {0.0, 0.0, 0.0},
	"off":   {0.0, 0.0, 0.0},

	// Warm colors
	"orange":     {1.0, 0.5, 0.0},
	"yellow":     {1.0, 1.0, 0.0},
	"gold":       {1.0, 0.75, 0.0},
	"amber":      {1.0, 0.6, 0.0},
	"coral":      {1.0, 0.5, 0.3},
	"salmon":     {1.0, 0.6, 0.5},
	"warm_white": {1.0, 0.8, 0.6},
	"hot_orange": {1.0, 0.35, 0.0},

	// Cool colors
	"cyan":       {0.0, 1.0, 1.0},
	"teal":       {0.0, 0.8, 0.7},
	"aqua":       {0.0, 1.0, 0.8},
	"sky":        {0.4, 0.7, 1.0},
	"ice":        {0.7, 0.9, 1.0},
	"cool_white": {0.9, 0.95, 1.0},
	"cold_blue":  {0.3, 0.5, 1.0},

	// Purple/pink family
	"purple":   {0.5, 0.0, 1.0},
	"magenta":  {1.0, 0.0, 1.0},
	"pink":     {1.0, 0.4, 0.7},
	"hot_pink": {1.0, 0.2, 0.6},
	"violet":   {0.6, 0.0, 0.8},
	"lavender": {0.7, 0.5, 1.0},
	"plum":     {0.6, 0.2, 0.6},

	// Green family
	"lime":    {0.5, 1.0, 0.0},
	"mint":    {0.4, 1.0, 0.6},
	"emerald": {0.0, 0.8, 0.4},
	"forest":  {0.0, 0.5, 0.2},

	// Special
	"fire":       {1.0, 0.3, 0.0},
	"lava":       {1.0, 0.2, 0.0},
	"sunset":     {1.0, 0.4, 0.2},
	"sunrise":    {1.0, 0.6, 0.4},
	"ocean":      {0.0, 0.4, 0.8},
	"steel":      {0.5, 0.5, 0.6},
	"copper":     {0.8, 0.5, 0.2},
	"bronze":     {0.7, 0.5, 0.2},
	"rose":       {1.0, 0.3, 0.4},
	"peach":      {1.0, 0.7, 0.5},
	"cream":      {1.0, 0.95, 0.8},
	"electric":   {0.2, 0.8, 1.0},
	"neon_green": {0.4, 1.0, 0.2},
	"blood":      {0.6, 0.0, 0.0},
	"royal":      {0.3, 0.0, 0.8},
	"cobalt":     {0.0, 0.3, 0.9},
	"dimwhite":   {0.3, 0.3, 0.3},

	// Neon/vibrant
	"neon_pink":   {1.0, 0.1, 0.5},
	"neon_blue":   {0.1, 0.5, 1.0},
	"neon_orange": {1.0, 0.4, 0.0},
	"neon_yellow": {1.0, 1.0, 0.2},
	"neon_purple": {0.7, 0.0, 1.0},

	// Pastels
	"baby_blue": {0.6, 0.8, 1.0},
	"baby_pink": {1.0, 0.7, 0.8},
	"seafoam":   {0.5, 1.0, 0.8},
	"lilac":     {0.8, 0.6, 1.0},
	"buttercup": {1.0, 0.9, 0.5},

	// Earth tones
	"sand":  {0.9, 0.8, 0.6},
	"clay":  {0.8, 0.5, 0.4},
	"moss":  {0.4, 0.6, 0.3},
	"bark":  {0.4, 0.3, 0.2},
	"stone": {0.6, 0.6, 0.6},

	// Gaming/RGB
	"vaporwave":     {1.0, 0.3, 0.8},
	"cyberpunk":     {1.0, 0.0, 0.6},
	"matrix":        {0.0, 1.0, 0.3},
	"portal_blue":   {0.0, 0.6, 1.0},
	"portal_orange": {1.0, 0.5, 0.0},
}

// GetColor looks up a named color (case-insensitive). Unknown names
// resolve to black so a config typo never crashes an animation.
func GetColor(name string) RGB {
	if c, ok := namedColors[strings.ToLower(name)]; ok {
		return c
	}
	return RGB{}
}

// IsKnownColor reports whether name resolves to a defined color.
func IsKnownColor(name string) bool {
	_, ok := namedColors[strings.ToLower(name)]
	return ok
}

// ListColors returns all color names in sorted order.
func ListColors() []string {
	names := make([]string, 0, len(namedColors))
	for name := range namedColors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hsvToRGB converts an HSV color to RGB. All inputs are 0.0-1.0; hue maps
// onto the six 60-degree sectors of the color wheel. Every hue-based effect
// goes through this one conversion so sector boundaries stay consistent.
func hsvToRGB(h, s, v float64) RGB {
	sector := h * 6.0
	c := v * s
	x := c * (1.0 - math.Abs(math.Mod(sector, 2.0)-1.0))
	m := v - c

	var r, g, b float64
	switch {
	case sector < 1.0:
		r, g, b = c, x, 0.0
	case sector < 2.0:
		r, g, b = x, c, 0.0
	case sector < 3.0:
		r, g, b = 0.0, c, x
	case sector < 4.0:
		r, g, b = 0.0, x, c
	case sector < 5.0:
		r, g, b = x, 0.0, c
	default:
		r, g, b = c, 0.0, x
	}

	return RGB{r + m, g + m, b + m}
}

// lerpColor linearly interpolates between two colors. t=0 returns a,
// t=1 returns b.
func lerpColor(a, b RGB, t float64) RGB {
	return RGB{
		a.R + (b.R-a.R)*t,
		a.G + (b.G-a.G)*t,
		a.B + (b.B-a.B)*t,
	}
}
