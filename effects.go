package main

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// EffectState is the per-group mutable record of the active effect and
// its tunable parameters. One instance exists per configured LED group;
// after initial application the animation scheduler is its only mutator.
type EffectState struct {
	Effect    string
	BaseColor RGB
	StartTime time.Time
	// LastUpdate is the last time a self-throttling animator produced a
	// frame; those animators maintain it themselves.
	LastUpdate time.Time

	Speed         float64
	MinBrightness float64
	MaxBrightness float64

	// Disco
	MinSparkle int
	MaxSparkle int

	// Rainbow
	RainbowSpread float64

	// Fire
	FireCooling float64

	// Comet
	CometTailLength int
	CometFadeRate   float64

	// Chase
	ChaseColor1          RGB
	ChaseColor2          RGB
	ChaseSize            int
	ChaseOffsetBase      float64
	ChaseOffsetVariation float64
	ChaseGroup           int

	// KITT
	KittEyeSize      int
	KittTailLength   int
	KittTrackingAxis string

	// Thermal/progress fill
	StartColor    RGB
	EndColor      RGB
	GradientCurve float64
	TempSource    string

	// Direction of fill/motion effects: "standard" or "reverse"
	Direction string

	// PWM groups carry a brightness value instead of an effect name.
	PWMValue float64
}

// NewEffectState returns a state with the same defaults a bare config
// section gets.
func NewEffectState() *EffectState {
	return &EffectState{
		Effect:               "off",
		Speed:                1.0,
		MinBrightness:        0.2,
		MaxBrightness:        1.0,
		MinSparkle:           1,
		MaxSparkle:           6,
		RainbowSpread:        1.0,
		FireCooling:          0.3,
		CometTailLength:      10,
		CometFadeRate:        0.5,
		ChaseColor1:          RGB{1.0, 0.0, 0.0},
		ChaseColor2:          RGB{0.0, 0.0, 1.0},
		ChaseSize:            5,
		ChaseOffsetBase:      0.5,
		ChaseOffsetVariation: 0.1,
		KittEyeSize:          3,
		KittTailLength:       8,
		KittTrackingAxis:     "none",
		StartColor:           RGB{0.5, 0.5, 0.6},
		EndColor:             RGB{0.0, 1.0, 0.3},
		GradientCurve:        1.0,
		TempSource:           "extruder",
		Direction:            "standard",
	}
}

// EffectTelemetry is the shared printer context handed to telemetry-aware
// animators (thermal, progress, kitt tracking). Nil for pure animators.
type EffectTelemetry struct {
	Printer   *PrinterState
	TempFloor float64
	BedXMin   float64
	BedXMax   float64
	BedYMin   float64
	BedYMax   float64
}

// Effect computes per-LED colors for one animation. A nil entry in the
// returned slice means "LED off". When the second return is false the
// animator is throttling itself and the caller must not push output.
//
// Instances may keep memory across ticks (fire heat, chase physics); the
// scheduler keeps one instance per (group, effect) pair and discards it
// when the group's effect changes.
type Effect interface {
	Name() string
	Calculate(state *EffectState, now time.Time, ledCount int, tel *EffectTelemetry) ([]*RGB, bool)
}

// effectRegistry maps effect names to constructors. Constructors rather
// than shared instances: stateful animators must not leak memory between
// groups.
var effectRegistry = map[string]func() Effect{
	"solid":     func() Effect { return &solidEffect{} },
	"off":       func() Effect { return &offEffect{} },
	"pulse":     func() Effect { return &pulseEffect{} },
	"heartbeat": func() Effect { return &heartbeatEffect{} },
	"rainbow":   func() Effect { return &rainbowEffect{} },
	"disco":     func() Effect { return newDiscoEffect() },
	"fire":      func() Effect { return newFireEffect() },
	"comet":     func() Effect { return &cometEffect{} },
	"kitt":      func() Effect { return &kittEffect{} },
	"thermal":   func() Effect { return &thermalEffect{} },
	"progress":  func() Effect { return &progressEffect{} },
	"chase":     func() Effect { return newChaseEffect() },
}

// animatedEffects need the scheduler's tick loop; the rest are pushed
// once on application and then stay static.
var animatedEffects = map[string]bool{
	"pulse":     true,
	"heartbeat": true,
	"rainbow":   true,
	"disco":     true,
	"fire":      true,
	"comet":     true,
	"kitt":      true,
	"thermal":   true,
	"progress":  true,
	"chase":     true,
}

// addressableOnlyEffects cannot be rendered by a single-channel PWM
// driver; config validation warns about these pairings.
var addressableOnlyEffects = map[string]bool{
	"disco":    true,
	"thermal":  true,
	"progress": true,
	"fire":     true,
	"comet":    true,
	"kitt":     true,
	"chase":    true,
	"rainbow":  true,
}

// NewEffect instantiates a registered animator by name.
func NewEffect(name string) (Effect, error) {
	ctor, ok := effectRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown effect %q (available: %v)", name, ListEffects())
	}
	return ctor(), nil
}

// IsKnownEffect reports whether name is a registered effect.
func IsKnownEffect(name string) bool {
	_, ok := effectRegistry[name]
	return ok
}

// IsAnimatedEffect reports whether name needs the animation loop.
func IsAnimatedEffect(name string) bool {
	return animatedEffects[name]
}

// ListEffects returns all registered effect names in sorted order.
func ListEffects() []string {
	names := make([]string, 0, len(effectRegistry))
	for name := range effectRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// effectFill renders a progressive gradient fill, the core shared by the
// thermal and progress effects. LEDs up to fraction*ledCount light fully,
// the leading-edge LED lights proportionally, and color interpolates
// start→end along the strip with position^curve shaping. Direction
// "reverse" mirrors the output.
func effectFill(state *EffectState, fraction float64, ledCount int) []*RGB {
	fraction = clamp(fraction, 0.0, 1.0)
	litCount := fraction * float64(ledCount)

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		pos := float64(i + 1)

		var partial float64
		switch {
		case pos <= litCount:
			partial = 1.0
		case pos-1 < litCount:
			// Leading edge: light proportionally to coverage.
			partial = litCount - (pos - 1)
		default:
			continue
		}

		gradientT := 1.0
		if ledCount > 1 {
			gradientT = float64(i) / float64(ledCount-1)
		}
		curvedT := math.Pow(gradientT, state.GradientCurve)
		c := lerpColor(state.StartColor, state.EndColor, curvedT).Scale(partial)
		colors[i] = &c
	}

	if state.Direction == "reverse" {
		for i, j := 0, len(colors)-1; i < j; i, j = i+1, j-1 {
			colors[i], colors[j] = colors[j], colors[i]
		}
	}
	return colors
}

// uniform returns a ledCount-length slice with every entry set to c.
func uniform(c RGB, ledCount int) []*RGB {
	colors := make([]*RGB, ledCount)
	for i := range colors {
		cc := c
		colors[i] = &cc
	}
	return colors
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
