package main

import (
	"math"
	"time"
)

// cometEffect moves a bright head along the strip at Speed LEDs/second
// with a trailing tail whose brightness falls off by
// (1 - distance/tail)^(1 + 2*fade).
type cometEffect struct{}

func (*cometEffect) Name() string { return "comet" }

func (*cometEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	if ledCount <= 1 {
		return uniform(state.BaseColor, ledCount), true
	}

	elapsed := now.Sub(state.StartTime).Seconds()
	position := math.Mod(elapsed*state.Speed, float64(ledCount))
	if state.Direction == "reverse" {
		position = float64(ledCount) - position
	}

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		distance := cometTailDistance(i, position, ledCount)

		var brightness float64
		switch {
		case distance == 0:
			brightness = state.MaxBrightness
		case distance <= float64(state.CometTailLength):
			fade := 1.0 - distance/float64(state.CometTailLength)
			fade = math.Pow(fade, 1.0+state.CometFadeRate*2.0)
			brightness = state.MaxBrightness * fade
		default:
			continue
		}

		c := state.BaseColor.Scale(brightness)
		colors[i] = &c
	}
	return colors, true
}

// cometTailDistance is how many LEDs behind the head this LED sits,
// wrapping around the strip. LEDs ahead of the head (more than half the
// strip behind, circularly) report a distance beyond any tail.
func cometTailDistance(ledIndex int, position float64, ledCount int) float64 {
	distance := position - float64(ledIndex)
	if distance < 0 {
		distance += float64(ledCount)
	}
	if distance > float64(ledCount)/2 {
		return float64(ledCount)
	}
	return distance
}

// kittEffect renders a Knight Rider scanner: a bright fixed-size eye with
// trailing falloff on both sides, bouncing in a triangle wave. When a
// tracking axis is configured and the toolhead has moved more than
// KittMotionThreshold since the previous tick, the eye instead follows
// the toolhead's normalized coordinate along that axis, reverting to the
// bounce when motion stops.
type kittEffect struct {
	lastAxisPos float64
	haveAxisPos bool
}

func (*kittEffect) Name() string { return "kitt" }

func (k *kittEffect) Calculate(state *EffectState, now time.Time, ledCount int, tel *EffectTelemetry) ([]*RGB, bool) {
	if ledCount <= 1 {
		return uniform(state.BaseColor, ledCount), true
	}

	var position float64
	if state.KittTrackingAxis != "none" && tel != nil && tel.Printer != nil {
		position = k.trackingPosition(state, now, ledCount, tel)
	} else {
		position = kittBouncePosition(state, now, ledCount)
	}

	return renderScanner(position, ledCount, state), true
}

// kittBouncePosition sweeps end to end and back once per 1/Speed seconds.
func kittBouncePosition(state *EffectState, now time.Time, ledCount int) float64 {
	elapsed := now.Sub(state.StartTime).Seconds()
	cycle := 1.0 / state.Speed
	half := cycle / 2.0
	phase := math.Mod(elapsed, cycle) / half

	if phase < 1.0 {
		return phase * float64(ledCount-1)
	}
	return (2.0 - phase) * float64(ledCount-1)
}

func (k *kittEffect) trackingPosition(state *EffectState, now time.Time, ledCount int, tel *EffectTelemetry) float64 {
	var current, minPos, maxPos float64
	switch state.KittTrackingAxis {
	case "x":
		current, minPos, maxPos = tel.Printer.PositionX, tel.BedXMin, tel.BedXMax
	case "y":
		current, minPos, maxPos = tel.Printer.PositionY, tel.BedYMin, tel.BedYMax
	default:
		return kittBouncePosition(state, now, ledCount)
	}

	moving := k.haveAxisPos && math.Abs(current-k.lastAxisPos) > KittMotionThreshold
	k.lastAxisPos = current
	k.haveAxisPos = true

	if !moving {
		return kittBouncePosition(state, now, ledCount)
	}

	span := maxPos - minPos
	if span < 1.0 {
		span = 1.0
	}
	normalized := clamp((current-minPos)/span, 0.0, 1.0)
	return normalized * float64(ledCount-1)
}

// renderScanner draws the bright eye plus ^2.5 trailing falloff on both
// sides of position.
func renderScanner(position float64, ledCount int, state *EffectState) []*RGB {
	eyeHalf := float64(state.KittEyeSize / 2)
	tail := float64(state.KittTailLength)

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		distance := math.Abs(float64(i) - position)

		var brightness float64
		switch {
		case distance <= eyeHalf:
			brightness = state.MaxBrightness
		case distance <= eyeHalf+tail:
			fade := 1.0 - (distance-eyeHalf)/tail
			brightness = state.MaxBrightness * math.Pow(fade, 2.5)
		default:
			continue
		}

		c := state.BaseColor.Scale(brightness)
		colors[i] = &c
	}
	return colors
}
