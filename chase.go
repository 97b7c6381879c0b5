package main

import (
	"math"
	"math/rand"
	"time"
)

// chaseEffect renders two colored segments of fixed size chasing each
// other around one strip. The first segment moves at Speed LEDs/second;
// the second trails it by a base fraction of the strip length modulated
// sinusoidally and clamped to [0.2, 0.8] so the segments never merge or
// fully separate.
type chaseEffect struct{}

func newChaseEffect() *chaseEffect { return &chaseEffect{} }

func (*chaseEffect) Name() string { return "chase" }

func (*chaseEffect) Calculate(state *EffectState, now time.Time, ledCount int, _ *EffectTelemetry) ([]*RGB, bool) {
	elapsed := now.Sub(state.StartTime).Seconds()

	if ledCount <= 1 {
		// Single LED: alternate the two colors.
		c := state.ChaseColor1
		if int(elapsed*state.Speed)%2 == 1 {
			c = state.ChaseColor2
		}
		cc := c.Scale(state.MaxBrightness)
		return []*RGB{&cc}, true
	}

	position1 := math.Mod(elapsed*state.Speed, float64(ledCount))

	offsetPhase := math.Mod(elapsed*0.5, 2*math.Pi)
	offset := state.ChaseOffsetBase + math.Sin(offsetPhase)*state.ChaseOffsetVariation
	offset = clamp(offset, 0.2, 0.8)
	position2 := math.Mod(position1+float64(ledCount)*offset, float64(ledCount))

	colors := make([]*RGB, ledCount)
	for i := 0; i < ledCount; i++ {
		switch {
		case inChaseSegment(i, position1, state.ChaseSize, ledCount):
			c := state.ChaseColor1.Scale(state.MaxBrightness)
			colors[i] = &c
		case inChaseSegment(i, position2, state.ChaseSize, ledCount):
			c := state.ChaseColor2.Scale(state.MaxBrightness)
			colors[i] = &c
		}
	}
	return colors, true
}

// inChaseSegment reports whether ledIndex falls inside a segment of
// segmentSize LEDs centered on position, wrapping around the strip end.
func inChaseSegment(ledIndex int, position float64, segmentSize, ledCount int) bool {
	start := position - float64(segmentSize)/2.0
	end := position + float64(segmentSize)/2.0
	idx := float64(ledIndex)
	total := float64(ledCount)

	if start < 0 {
		return idx >= start+total || idx < end
	}
	if end > total {
		return idx >= start || idx < end-total
	}
	return start <= idx && idx < end
}

// Predator/prey tuning for the multi-group chase.
const (
	// Separation below proximityFactor*segment size accelerates both.
	chaseProximityFactor = 3.0
	chaseSpeedBoost      = 1.5
	// Predator runs slightly hot so it eventually catches the prey.
	chasePredatorBias = 1.2
	// Rendering freezes this long after a collision.
	chaseCollisionPause = 400 * time.Millisecond
	// Mean time between random role swaps; actual intervals are uniform
	// within ±50% of the mean.
	chaseRoleSwapMean = 20 * time.Second
	// Cap dt so a stalled tick loop doesn't teleport the pair.
	chaseMaxStep = 500 * time.Millisecond
)

// chaseParticipant describes one LED group's slice of a shared chase.
type chaseParticipant struct {
	Group    string
	LedCount int
	Reversed bool
	Order    int
}

// multiChaseState is the shared predator/prey physics for all groups
// tagged with the same chase grouping. Their strips concatenate into one
// circular array; two positions with independent velocities run on it.
// Proximity accelerates both, collision bounces them apart and swaps
// which color hunts, and roles also swap at random intervals. Owned by
// the tick loop; Advance must be called exactly once per tick no matter
// how many participating groups render from it.
type multiChaseState struct {
	rng       *rand.Rand
	totalLEDs int

	predatorPos float64
	preyPos     float64
	predatorVel float64
	preyVel     float64

	// predatorIsColor1 selects which configured color hunts right now.
	predatorIsColor1 bool

	pausedUntil  time.Time
	nextRoleSwap time.Time
	lastAdvance  time.Time
}

func newMultiChaseState(totalLEDs int, state *EffectState, now time.Time) *multiChaseState {
	m := &multiChaseState{
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		predatorIsColor1: true,
	}
	m.reset(totalLEDs, state, now)
	return m
}

func (m *multiChaseState) reset(totalLEDs int, state *EffectState, now time.Time) {
	m.totalLEDs = totalLEDs
	m.predatorPos = 0
	m.preyPos = float64(totalLEDs) / 2.0
	m.predatorVel = state.Speed * chasePredatorBias
	m.preyVel = state.Speed
	m.pausedUntil = time.Time{}
	m.nextRoleSwap = now.Add(m.roleSwapInterval())
	m.lastAdvance = now
}

func (m *multiChaseState) roleSwapInterval() time.Duration {
	jitter := (m.rng.Float64() - 0.5) * float64(chaseRoleSwapMean)
	return chaseRoleSwapMean + time.Duration(jitter)
}

// separation is the circular distance between predator and prey.
func (m *multiChaseState) separation() float64 {
	d := math.Abs(m.predatorPos - m.preyPos)
	return math.Min(d, float64(m.totalLEDs)-d)
}

// Advance steps the physics by the elapsed wall time since the previous
// call.
func (m *multiChaseState) Advance(now time.Time, state *EffectState, totalLEDs int) {
	if totalLEDs != m.totalLEDs || totalLEDs <= 0 {
		if totalLEDs <= 0 {
			return
		}
		m.reset(totalLEDs, state, now)
		return
	}
	if !now.After(m.lastAdvance) {
		return
	}

	dt := now.Sub(m.lastAdvance)
	if dt > chaseMaxStep {
		dt = chaseMaxStep
	}
	m.lastAdvance = now

	if now.Before(m.pausedUntil) {
		return
	}

	if now.After(m.nextRoleSwap) {
		m.swapRoles()
		m.nextRoleSwap = now.Add(m.roleSwapInterval())
	}

	segment := float64(state.ChaseSize)
	boost := 1.0
	if m.separation() < segment*chaseProximityFactor {
		boost = chaseSpeedBoost
	}

	step := dt.Seconds() * boost
	total := float64(m.totalLEDs)
	m.predatorPos = wrapPosition(m.predatorPos+m.predatorVel*step, total)
	m.preyPos = wrapPosition(m.preyPos+m.preyVel*step, total)

	if m.separation() < segment {
		m.collide(now, segment, total)
	}
}

// collide bounces the pair: both velocities reverse, the hunting color
// swaps, rendering pauses briefly, and the two are pushed a full segment
// apart so they don't re-collide on the next tick.
func (m *multiChaseState) collide(now time.Time, segment, total float64) {
	m.predatorVel = -m.predatorVel
	m.preyVel = -m.preyVel
	m.swapRoles()
	m.pausedUntil = now.Add(chaseCollisionPause)

	// Re-seat the pair exactly one segment apart so the next step cannot
	// immediately re-collide.
	m.preyPos = wrapPosition(m.predatorPos+segment, total)
}

func (m *multiChaseState) swapRoles() {
	m.predatorIsColor1 = !m.predatorIsColor1
}

// Render draws the full concatenated frame. ok is false while rendering
// is paused after a collision; callers keep the previous frame on screen.
func (m *multiChaseState) Render(state *EffectState, now time.Time) ([]*RGB, bool) {
	if now.Before(m.pausedUntil) {
		return nil, false
	}

	predatorColor := state.ChaseColor1
	preyColor := state.ChaseColor2
	if !m.predatorIsColor1 {
		predatorColor, preyColor = preyColor, predatorColor
	}

	colors := make([]*RGB, m.totalLEDs)
	for i := 0; i < m.totalLEDs; i++ {
		switch {
		case inChaseSegment(i, m.predatorPos, state.ChaseSize, m.totalLEDs):
			c := predatorColor.Scale(state.MaxBrightness)
			colors[i] = &c
		case inChaseSegment(i, m.preyPos, state.ChaseSize, m.totalLEDs):
			c := preyColor.Scale(state.MaxBrightness)
			colors[i] = &c
		}
	}
	return colors, true
}

// splitChaseFrame distributes a concatenated multi-group frame back to
// the participating groups in chase order, reversing slices for groups
// wired in the opposite physical direction.
func splitChaseFrame(frame []*RGB, participants []chaseParticipant) map[string][]*RGB {
	out := make(map[string][]*RGB, len(participants))
	offset := 0
	for _, p := range participants {
		if offset+p.LedCount > len(frame) {
			break
		}
		slice := make([]*RGB, p.LedCount)
		copy(slice, frame[offset:offset+p.LedCount])
		if p.Reversed {
			for i, j := 0, len(slice)-1; i < j; i, j = i+1, j-1 {
				slice[i], slice[j] = slice[j], slice[i]
			}
		}
		out[p.Group] = slice
		offset += p.LedCount
	}
	return out
}

func wrapPosition(pos, total float64) float64 {
	pos = math.Mod(pos, total)
	if pos < 0 {
		pos += total
	}
	return pos
}
