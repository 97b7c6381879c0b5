package main

import "time"

// thermalEffect fills the strip in proportion to a heater's progress
// toward its target, rendered as a start→end color gradient. With no
// target set (or a target at/below the ambient floor) the strip shows
// the start color uniformly so the group never goes dark mid-heat.
type thermalEffect struct{}

func (*thermalEffect) Name() string { return "thermal" }

func (*thermalEffect) Calculate(state *EffectState, _ time.Time, ledCount int, tel *EffectTelemetry) ([]*RGB, bool) {
	if tel == nil || tel.Printer == nil {
		return uniform(state.StartColor, ledCount), true
	}

	h := tel.Printer.HeaterByName(state.TempSource)
	floor := tel.TempFloor

	if h.Target <= 0 || h.Target <= floor {
		return uniform(state.StartColor, ledCount), true
	}

	fraction := (h.Temp - floor) / (h.Target - floor)
	return effectFill(state, fraction, ledCount), true
}

// progressEffect fills the strip in proportion to print completion.
type progressEffect struct{}

func (*progressEffect) Name() string { return "progress" }

func (*progressEffect) Calculate(state *EffectState, _ time.Time, ledCount int, tel *EffectTelemetry) ([]*RGB, bool) {
	if tel == nil || tel.Printer == nil {
		return effectFill(state, 0, ledCount), true
	}
	return effectFill(state, tel.Printer.Progress, ledCount), true
}
