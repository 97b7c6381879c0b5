package main

import (
	"math"
	"time"
)

// solidEffect shows a static color. It pushes once when applied and then
// reports no further updates.
type solidEffect struct{}

func (*solidEffect) Name() string { return "solid" }

func (*solidEffect) Calculate(state *EffectState, _ time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	return uniform(state.BaseColor, ledCount), false
}

// offEffect turns every LED off. It returns per-LED black rather than a
// single shared color so it correctly clears strips previously driven by
// a multi-LED effect.
type offEffect struct{}

func (*offEffect) Name() string { return "off" }

func (*offEffect) Calculate(_ *EffectState, _ time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	return uniform(RGB{}, ledCount), true
}

// pulseEffect breathes the base color with a sine wave between min and
// max brightness at speed cycles per second.
type pulseEffect struct{}

func (*pulseEffect) Name() string { return "pulse" }

func (*pulseEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	elapsed := now.Sub(state.StartTime).Seconds()
	phase := (math.Sin(elapsed*state.Speed*2*math.Pi) + 1) / 2
	brightness := state.MinBrightness + phase*(state.MaxBrightness-state.MinBrightness)
	return uniform(state.BaseColor.Scale(brightness), ledCount), true
}

// Heartbeat duty cycle as fractions of one beat.
const (
	heartbeatFirstPulse      = 0.15 // first pulse rise
	heartbeatDip             = 0.05 // dip between pulses
	heartbeatSecondPulse     = 0.05 // second pulse rise
	heartbeatFade            = 0.10 // fade after second pulse
	heartbeatSecondIntensity = 0.5  // second pulse peaks at half range
)

// heartbeatEffect renders a double-pulse pattern: rise, dip, second rise,
// fade, then rest for the remaining 65% of the cycle. Speed is beats per
// second (1.2 ≈ 72 BPM).
type heartbeatEffect struct{}

func (*heartbeatEffect) Name() string { return "heartbeat" }

func (*heartbeatEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	elapsed := now.Sub(state.StartTime).Seconds()
	cycle := 1.0 / state.Speed
	phase := math.Mod(elapsed, cycle) / cycle

	span := state.MaxBrightness - state.MinBrightness
	var brightness float64
	switch {
	case phase < heartbeatFirstPulse:
		t := phase / heartbeatFirstPulse
		brightness = state.MinBrightness + t*span
	case phase < heartbeatFirstPulse+heartbeatDip:
		t := (phase - heartbeatFirstPulse) / heartbeatDip
		brightness = state.MaxBrightness - t*span*heartbeatSecondIntensity
	case phase < heartbeatFirstPulse+heartbeatDip+heartbeatSecondPulse:
		t := (phase - heartbeatFirstPulse - heartbeatDip) / heartbeatSecondPulse
		brightness = state.MinBrightness + heartbeatSecondIntensity + t*span*heartbeatSecondIntensity
	case phase < heartbeatFirstPulse+heartbeatDip+heartbeatSecondPulse+heartbeatFade:
		t := (phase - heartbeatFirstPulse - heartbeatDip - heartbeatSecondPulse) / heartbeatFade
		brightness = state.MaxBrightness - t*span
	default:
		brightness = state.MinBrightness
	}

	return uniform(state.BaseColor.Scale(brightness), ledCount), true
}

// rainbowEffect cycles the full hue wheel over time, optionally spreading
// the spectrum across the strip.
type rainbowEffect struct{}

func (*rainbowEffect) Name() string { return "rainbow" }

func (*rainbowEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	elapsed := now.Sub(state.StartTime).Seconds()
	baseHue := math.Mod(elapsed*state.Speed, 1.0)

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		offset := 0.0
		if ledCount > 1 {
			offset = float64(i) / float64(ledCount) * state.RainbowSpread
		}
		hue := math.Mod(baseHue+offset, 1.0)
		c := hsvToRGB(hue, 1.0, state.MaxBrightness)
		colors[i] = &c
	}
	return colors, true
}
