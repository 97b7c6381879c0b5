package main

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Event is the single currently-active operating mode of the printer as
// perceived by glowbridge.
type Event string

const (
	EventIdle      Event = "idle"
	EventHeating   Event = "heating"
	EventPrinting  Event = "printing"
	EventCooldown  Event = "cooldown"
	EventError     Event = "error"
	EventBored     Event = "bored"
	EventSleep     Event = "sleep"
	EventHoming    Event = "homing"
	EventMeshing   Event = "meshing"
	EventLeveling  Event = "leveling"
	EventProbing   Event = "probing"
	EventPaused    Event = "paused"
	EventCancelled Event = "cancelled"
	EventFilament  Event = "filament"
)

// AllEvents lists every event glowbridge can resolve to.
var AllEvents = []Event{
	EventIdle, EventHeating, EventPrinting, EventCooldown, EventError,
	EventBored, EventSleep, EventHoming, EventMeshing, EventLeveling,
	EventProbing, EventPaused, EventCancelled, EventFilament,
}

// ParseEvent converts a string to an Event, rejecting unknown names.
func ParseEvent(name string) (Event, error) {
	for _, ev := range AllEvents {
		if string(ev) == name {
			return ev, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", name)
}

// DetectorContext is the timing and override context handed to every
// detector alongside the telemetry snapshot. It is rebuilt for each
// evaluation.
type DetectorContext struct {
	TempFloor      float64
	BoredTimeout   time.Duration
	SleepTimeout   time.Duration
	CurrentEvent   Event
	EventEnteredAt time.Time
	Now            time.Time
	// ActiveOverride is set by the macro watcher when a recognized macro
	// is running; empty otherwise.
	ActiveOverride string
}

// Residence is how long the current event has been active.
func (ctx *DetectorContext) Residence() time.Duration {
	return ctx.Now.Sub(ctx.EventEnteredAt)
}

// Detector answers "is my state active?" for one operating mode. A
// detector must never panic: if it cannot evaluate it returns false and a
// lower-priority detector (ultimately idle) claims the mode.
type Detector interface {
	Name() Event
	// Priority orders the chain; lower values are evaluated first.
	Priority() int
	Detect(state *PrinterState, ctx *DetectorContext) bool
}

// EventListener is notified exactly once per event transition.
type EventListener func(previous, current Event)

// StateDetector resolves the current printer event by evaluating a fixed
// priority-ordered chain of detectors. The first detector to return true
// wins; idle is the unconditional fallback.
type StateDetector struct {
	mu sync.Mutex

	tempFloor    float64
	boredTimeout time.Duration
	sleepTimeout time.Duration

	chain []Detector

	current   Event
	previous  Event
	enteredAt time.Time

	override      string
	overrideSetAt time.Time

	listeners []EventListener
}

// NewStateDetector builds the detector chain with the configured timing
// parameters.
func NewStateDetector(tempFloor float64, boredTimeout, sleepTimeout time.Duration) *StateDetector {
	chain := []Detector{
		&errorDetector{},
		&overrideDetector{event: EventHoming, priority: 5},
		&overrideDetector{event: EventMeshing, priority: 6},
		&overrideDetector{event: EventLeveling, priority: 7},
		&overrideDetector{event: EventProbing, priority: 8},
		&overrideDetector{event: EventPaused, priority: 9},
		&overrideDetector{event: EventCancelled, priority: 10},
		&filamentDetector{},
		&printingDetector{},
		&heatingDetector{},
		&cooldownDetector{},
		&sleepDetector{},
		&boredDetector{},
		&idleDetector{},
	}
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority() < chain[j].Priority()
	})

	return &StateDetector{
		tempFloor:    tempFloor,
		boredTimeout: boredTimeout,
		sleepTimeout: sleepTimeout,
		chain:        chain,
		current:      EventIdle,
		previous:     EventIdle,
		enteredAt:    time.Now(),
	}
}

// AddListener registers a callback for event transitions. Listeners run
// synchronously on the updating goroutine; they should hand work off
// rather than block.
func (d *StateDetector) AddListener(fn EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Update re-evaluates the chain against the snapshot and returns the new
// event if it changed, or nil when the resolved event is unchanged.
func (d *StateDetector) Update(state PrinterState) *Event {
	return d.UpdateAt(state, time.Now())
}

// UpdateAt is Update with an explicit clock, for tests.
func (d *StateDetector) UpdateAt(state PrinterState, now time.Time) *Event {
	d.mu.Lock()

	resolved := d.resolve(&state, now)
	if resolved == d.current {
		d.mu.Unlock()
		return nil
	}

	listeners, prev := d.transition(resolved, now)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, resolved)
	}
	return &resolved
}

// resolve walks the chain in priority order. Callers hold d.mu.
func (d *StateDetector) resolve(state *PrinterState, now time.Time) Event {
	ctx := &DetectorContext{
		TempFloor:      d.tempFloor,
		BoredTimeout:   d.boredTimeout,
		SleepTimeout:   d.sleepTimeout,
		CurrentEvent:   d.current,
		EventEnteredAt: d.enteredAt,
		Now:            now,
		ActiveOverride: d.activeOverride(now),
	}

	for _, det := range d.chain {
		if det.Detect(state, ctx) {
			return det.Name()
		}
	}
	return EventIdle
}

// transition swaps the current event and returns the listener set plus
// the previous event so notifications can run outside the lock.
func (d *StateDetector) transition(next Event, now time.Time) ([]EventListener, Event) {
	prev := d.current
	d.previous = prev
	d.current = next
	d.enteredAt = now

	listeners := make([]EventListener, len(d.listeners))
	copy(listeners, d.listeners)
	return listeners, prev
}

// activeOverride returns the macro override, force-clearing it when it
// has been active past the safety expiry. Callers hold d.mu.
func (d *StateDetector) activeOverride(now time.Time) string {
	if d.override == "" {
		return ""
	}
	if now.Sub(d.overrideSetAt) > MacroOverrideExpiry {
		log.Printf("Macro override %q expired after %s, clearing", d.override, MacroOverrideExpiry)
		d.override = ""
		return ""
	}
	return d.override
}

// SetTiming updates the timing parameters after a config reload.
func (d *StateDetector) SetTiming(tempFloor float64, boredTimeout, sleepTimeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tempFloor = tempFloor
	d.boredTimeout = boredTimeout
	d.sleepTimeout = sleepTimeout
}

// SetOverride records an externally detected macro state. The override is
// force-cleared after MacroOverrideExpiry if no completion marker arrives.
func (d *StateDetector) SetOverride(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override = name
	d.overrideSetAt = time.Now()
}

// ClearOverride removes the macro override.
func (d *StateDetector) ClearOverride() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override = ""
}

// Override returns the currently active override string, if any.
func (d *StateDetector) Override() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeOverride(time.Now())
}

// Current returns the active event.
func (d *StateDetector) Current() Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// ForceEvent bypasses detection and transitions directly, for manual
// testing through the API.
func (d *StateDetector) ForceEvent(ev Event) {
	d.mu.Lock()
	listeners, prev := d.transition(ev, time.Now())
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, ev)
	}
}

// DetectorStatus is the diagnostic view served by the status endpoint.
type DetectorStatus struct {
	CurrentEvent   string   `json:"current_event"`
	PreviousEvent  string   `json:"previous_event"`
	EventSeconds   float64  `json:"event_seconds"`
	ActiveOverride string   `json:"active_override,omitempty"`
	BoredTimeout   float64  `json:"bored_timeout"`
	SleepTimeout   float64  `json:"sleep_timeout"`
	Detectors      []string `json:"detectors"`
}

// Status reports the detector chain's current view.
func (d *StateDetector) Status() DetectorStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, len(d.chain))
	for i, det := range d.chain {
		names[i] = string(det.Name())
	}

	return DetectorStatus{
		CurrentEvent:   string(d.current),
		PreviousEvent:  string(d.previous),
		EventSeconds:   time.Since(d.enteredAt).Seconds(),
		ActiveOverride: d.override,
		BoredTimeout:   d.boredTimeout.Seconds(),
		SleepTimeout:   d.sleepTimeout.Seconds(),
		Detectors:      names,
	}
}
