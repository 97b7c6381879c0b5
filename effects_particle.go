package main

import (
	"math/rand"
	"time"
)

// discoEffect lights a random subset of LEDs with random hues each
// throttled tick. The number of lit LEDs varies between MinSparkle and
// MaxSparkle; everything else is off.
type discoEffect struct {
	rng *rand.Rand
}

func newDiscoEffect() *discoEffect {
	// Stream RNG advanced once per throttled tick keeps consecutive
	// sparkle patterns decorrelated even at sub-1 Hz speeds.
	return &discoEffect{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (*discoEffect) Name() string { return "disco" }

func (d *discoEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	interval := time.Duration(float64(time.Second) / state.Speed)
	if now.Sub(state.LastUpdate) < interval {
		return nil, false
	}
	state.LastUpdate = now

	minLit := state.MinSparkle
	maxLit := state.MaxSparkle
	if minLit > ledCount {
		minLit = ledCount
	}
	if maxLit > ledCount {
		maxLit = ledCount
	}
	if minLit > maxLit {
		minLit, maxLit = maxLit, minLit
	}
	if minLit < 0 {
		minLit = 0
	}
	numLit := minLit
	if maxLit > minLit {
		numLit = minLit + d.rng.Intn(maxLit-minLit+1)
	}

	// Distinct positions without replacement.
	indices := d.rng.Perm(ledCount)
	lit := make(map[int]bool, numLit)
	for _, idx := range indices[:numLit] {
		lit[idx] = true
	}

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		if !lit[i] {
			continue
		}
		c := hsvToRGB(d.rng.Float64(), 1.0, state.MaxBrightness)
		colors[i] = &c
	}
	return colors, true
}

// fireEffect simulates flame flicker with a persistent per-LED heat
// value: each throttled tick heat decays by the cooling rate, sparks up
// with 10% probability, and jitters slightly. Heat maps to the warm end
// of the hue wheel and to brightness between the configured bounds.
type fireEffect struct {
	rng  *rand.Rand
	heat []float64
}

func newFireEffect() *fireEffect {
	return &fireEffect{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (*fireEffect) Name() string { return "fire" }

func (f *fireEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	interval := time.Duration(float64(time.Second) / state.Speed)
	if now.Sub(state.LastUpdate) < interval {
		return nil, false
	}
	state.LastUpdate = now

	if len(f.heat) != ledCount {
		f.heat = make([]float64, ledCount)
		for i := range f.heat {
			f.heat[i] = 0.5
		}
	}

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		f.heat[i] *= 1.0 - state.FireCooling

		if f.rng.Float64() < 0.1 {
			f.heat[i] += 0.2 + f.rng.Float64()*0.3
		}
		f.heat[i] += f.rng.Float64()*0.1 - 0.05
		f.heat[i] = clamp(f.heat[i], 0.0, 1.0)

		heat := f.heat[i]
		brightness := state.MinBrightness + heat*(state.MaxBrightness-state.MinBrightness)
		// Heat maps onto the red-orange-yellow range; hotter flames wash
		// out toward white via reduced saturation.
		hue := heat * 0.15
		saturation := 1.0 - heat*0.3

		c := hsvToRGB(hue, saturation, brightness)
		colors[i] = &c
	}
	return colors, true
}
