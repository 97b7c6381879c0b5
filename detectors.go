package main

import (
	"strings"
	"time"
)

// errorDetector claims the mode whenever Klipper reports a shutdown or
// error condition. Highest priority; no hysteresis.
type errorDetector struct{}

func (*errorDetector) Name() Event   { return EventError }
func (*errorDetector) Priority() int { return 0 }

func (*errorDetector) Detect(state *PrinterState, _ *DetectorContext) bool {
	if strings.EqualFold(state.IdleState, "error") {
		return true
	}
	ps := strings.ToLower(state.PrintState)
	return strings.Contains(ps, "error") || strings.Contains(ps, "shutdown")
}

// overrideDetector claims a macro-triggered mode (homing, meshing,
// leveling, probing, paused, cancelled) while the macro watcher reports
// the matching override.
type overrideDetector struct {
	event    Event
	priority int
}

func (d *overrideDetector) Name() Event   { return d.event }
func (d *overrideDetector) Priority() int { return d.priority }

func (d *overrideDetector) Detect(_ *PrinterState, ctx *DetectorContext) bool {
	return ctx.ActiveOverride == string(d.event)
}

// filamentDetector claims the mode during filament change macros, and
// also whenever the filament sensor reads runout regardless of any
// override.
type filamentDetector struct{}

func (*filamentDetector) Name() Event   { return EventFilament }
func (*filamentDetector) Priority() int { return 11 }

func (*filamentDetector) Detect(state *PrinterState, ctx *DetectorContext) bool {
	if ctx.ActiveOverride == string(EventFilament) {
		return true
	}
	return state.FilamentDetected != nil && !*state.FilamentDetected
}

// printingDetector claims the mode once a print has nominally started:
// the job is active and either progress has begun or every heater with a
// target has reached it. Below-temperature warm-up defers to heating.
type printingDetector struct{}

func (*printingDetector) Name() Event   { return EventPrinting }
func (*printingDetector) Priority() int { return 20 }

func (*printingDetector) Detect(state *PrinterState, _ *DetectorContext) bool {
	if strings.ToLower(state.PrintState) != "printing" {
		return false
	}
	return state.Progress > 0 || state.AtTemp(HeatingTolerance)
}

// heatingDetector claims the mode while any heater is below target,
// still actively holding temperature, or during the print-start warm-up
// window. Once conditions clear it keeps claiming until it has seen
// stable readings for a continuous grace period, so transient power
// dips don't flicker the lights.
type heatingDetector struct {
	stableSince time.Time
}

func (*heatingDetector) Name() Event   { return EventHeating }
func (*heatingDetector) Priority() int { return 30 }

func (d *heatingDetector) Detect(state *PrinterState, ctx *DetectorContext) bool {
	if d.heatingActive(state) {
		d.stableSince = time.Time{}
		return true
	}

	// Stability grace: only holds the mode if heating already owns it.
	if ctx.CurrentEvent != EventHeating {
		d.stableSince = time.Time{}
		return false
	}
	if d.stableSince.IsZero() {
		d.stableSince = ctx.Now
	}
	return ctx.Now.Sub(d.stableSince) < HeatingStableGrace
}

func (*heatingDetector) heatingActive(state *PrinterState) bool {
	for _, h := range state.Heaters() {
		if h.Target <= 0 {
			continue
		}
		if h.Temp+HeatingTolerance < h.Target {
			return true
		}
		if h.Power > HeatingHoldPower {
			return true
		}
	}
	// Print-start warm-up window: the job reports printing but no
	// progress yet, so pre-print macros keep heating visuals.
	if strings.ToLower(state.PrintState) == "printing" && state.Progress == 0 && state.AnyTargetSet() {
		return true
	}
	return false
}

// cooldownDetector claims the mode after a print while heaters are off
// but still meaningfully above ambient.
type cooldownDetector struct{}

func (*cooldownDetector) Name() Event   { return EventCooldown }
func (*cooldownDetector) Priority() int { return 40 }

func (*cooldownDetector) Detect(state *PrinterState, ctx *DetectorContext) bool {
	switch strings.ToLower(state.PrintState) {
	case "complete", "cancelled", "standby":
	default:
		return false
	}
	if state.AnyTargetSet() {
		return false
	}

	threshold := ctx.TempFloor + CooldownThreshold
	for _, h := range state.Heaters() {
		if h.Temp > threshold {
			return true
		}
	}
	return false
}

// sleepDetector claims the mode after continuous residence in bored, and
// keeps it until a higher-priority detector takes over.
type sleepDetector struct{}

func (*sleepDetector) Name() Event   { return EventSleep }
func (*sleepDetector) Priority() int { return 80 }

func (*sleepDetector) Detect(_ *PrinterState, ctx *DetectorContext) bool {
	if ctx.CurrentEvent == EventSleep {
		return true
	}
	return ctx.CurrentEvent == EventBored && ctx.Residence() >= ctx.SleepTimeout
}

// boredDetector claims the mode after continuous residence in idle, and
// keeps it until sleep (or an active mode) takes over.
type boredDetector struct{}

func (*boredDetector) Name() Event   { return EventBored }
func (*boredDetector) Priority() int { return 90 }

func (*boredDetector) Detect(_ *PrinterState, ctx *DetectorContext) bool {
	if ctx.CurrentEvent == EventBored {
		return true
	}
	return ctx.CurrentEvent == EventIdle && ctx.Residence() >= ctx.BoredTimeout
}

// idleDetector is the unconditional fallback: the chain always resolves
// to some event.
type idleDetector struct{}

func (*idleDetector) Name() Event   { return EventIdle }
func (*idleDetector) Priority() int { return 100 }

func (*idleDetector) Detect(*PrinterState, *DetectorContext) bool { return true }
