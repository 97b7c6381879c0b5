package main

import (
	"math"
	"testing"
	"time"
)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSolidEffect(t *testing.T) {
	st := NewEffectState()
	st.Effect = "solid"
	st.BaseColor = RGB{0.5, 0.2, 0.1}

	eff, err := NewEffect("solid")
	if err != nil {
		t.Fatal(err)
	}
	colors, shouldUpdate := eff.Calculate(st, time.Now(), 8, nil)
	if shouldUpdate {
		t.Error("solid must not request ongoing updates")
	}
	if len(colors) != 8 {
		t.Fatalf("got %d LEDs, want 8", len(colors))
	}
	for i, c := range colors {
		if c == nil || *c != st.BaseColor {
			t.Errorf("LED %d = %v, want %v", i, c, st.BaseColor)
		}
	}
}

func TestOffEffectClearsEveryLED(t *testing.T) {
	eff, _ := NewEffect("off")
	colors, shouldUpdate := eff.Calculate(NewEffectState(), time.Now(), 5, nil)
	if !shouldUpdate {
		t.Error("off must push its frame")
	}
	for i, c := range colors {
		if c == nil || (*c != RGB{}) {
			t.Errorf("LED %d = %v, want black", i, c)
		}
	}
}

func TestPulseEffectBrightness(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"Sine zero crossing", 0, 0.6},                     // phase 0.5 between 0.2 and 1.0
		{"Sine peak", 250 * time.Millisecond, 1.0},         // sin(pi/2)=1
		{"Sine trough", 750 * time.Millisecond, 0.2},       // sin(3pi/2)=-1
		{"Full cycle", 1000 * time.Millisecond, 0.6},       // back to phase 0.5
	}

	eff, _ := NewEffect("pulse")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewEffectState()
			st.Effect = "pulse"
			st.BaseColor = RGB{1, 1, 1}
			now := time.Now()
			st.StartTime = now.Add(-tt.elapsed)

			colors, shouldUpdate := eff.Calculate(st, now, 3, nil)
			if !shouldUpdate {
				t.Fatal("pulse must keep animating")
			}
			if !approxEq(colors[0].R, tt.want) {
				t.Errorf("brightness = %f, want %f", colors[0].R, tt.want)
			}
		})
	}
}

func TestHeartbeatEffectPhases(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"Start of first pulse", 0, 0.2},
		{"Mid first pulse", 75 * time.Millisecond, 0.6},
		{"Resting phase", 500 * time.Millisecond, 0.2},
		{"Late rest", 900 * time.Millisecond, 0.2},
	}

	eff, _ := NewEffect("heartbeat")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewEffectState()
			st.Effect = "heartbeat"
			st.BaseColor = RGB{1, 1, 1}
			now := time.Now()
			st.StartTime = now.Add(-tt.elapsed)

			colors, _ := eff.Calculate(st, now, 1, nil)
			if !approxEq(colors[0].R, tt.want) {
				t.Errorf("brightness = %f, want %f", colors[0].R, tt.want)
			}
		})
	}
}

func TestRainbowSpreadAcrossStrip(t *testing.T) {
	st := NewEffectState()
	st.Effect = "rainbow"
	now := time.Now()
	st.StartTime = now

	eff, _ := NewEffect("rainbow")
	colors, _ := eff.Calculate(st, now, 6, nil)

	// At t=0 the first LED is pure red; spread 1.0 walks the hue wheel.
	if !approxEq(colors[0].R, 1.0) || !approxEq(colors[0].G, 0.0) {
		t.Errorf("LED 0 = %v, want red", *colors[0])
	}
	if *colors[0] == *colors[3] {
		t.Error("spread did not vary hue across the strip")
	}
}

func TestDiscoSparkleCount(t *testing.T) {
	st := NewEffectState()
	st.Effect = "disco"
	st.MinSparkle = 1
	st.MaxSparkle = 1

	eff, _ := NewEffect("disco")
	colors, shouldUpdate := eff.Calculate(st, time.Now(), 5, nil)
	if !shouldUpdate {
		t.Fatal("first disco frame should render")
	}

	lit := 0
	for _, c := range colors {
		if c != nil {
			lit++
		}
	}
	if lit != 1 {
		t.Errorf("lit %d LEDs, want exactly 1", lit)
	}
}

func TestDiscoThrottles(t *testing.T) {
	st := NewEffectState()
	st.Effect = "disco"
	now := time.Now()

	eff, _ := NewEffect("disco")
	if _, ok := eff.Calculate(st, now, 5, nil); !ok {
		t.Fatal("first frame should render")
	}
	if _, ok := eff.Calculate(st, now.Add(10*time.Millisecond), 5, nil); ok {
		t.Error("second frame within the speed interval should be suppressed")
	}
	if _, ok := eff.Calculate(st, now.Add(1100*time.Millisecond), 5, nil); !ok {
		t.Error("frame after the interval should render")
	}
}

func TestFireStaysInBounds(t *testing.T) {
	st := NewEffectState()
	st.Effect = "fire"

	eff, _ := NewEffect("fire")
	now := time.Now()
	for i := 0; i < 20; i++ {
		now = now.Add(1100 * time.Millisecond)
		colors, ok := eff.Calculate(st, now, 10, nil)
		if !ok {
			t.Fatalf("tick %d suppressed unexpectedly", i)
		}
		for j, c := range colors {
			if c == nil {
				t.Fatalf("tick %d LED %d is nil; fire lights every LED", i, j)
			}
			for _, ch := range []float64{c.R, c.G, c.B} {
				if ch < 0 || ch > 1 {
					t.Fatalf("tick %d LED %d channel %f out of range", i, j, ch)
				}
			}
		}
	}
}

func TestCometHeadAndTail(t *testing.T) {
	st := NewEffectState()
	st.Effect = "comet"
	st.BaseColor = RGB{1, 0, 0}
	now := time.Now()
	st.StartTime = now // head at position 0

	eff, _ := NewEffect("comet")
	colors, _ := eff.Calculate(st, now, 30, nil)

	if colors[0] == nil || !approxEq(colors[0].R, 1.0) {
		t.Fatalf("head LED = %v, want full brightness", colors[0])
	}
	// One LED behind (wrapping): dimmer than the head but lit.
	if colors[29] == nil {
		t.Fatal("tail LED 29 should be lit")
	}
	if colors[29].R >= colors[0].R {
		t.Error("tail should be dimmer than the head")
	}
	// Ahead of the head: dark.
	if colors[1] != nil {
		t.Errorf("LED ahead of head = %v, want off", *colors[1])
	}
	// Beyond the tail length: dark.
	if colors[15] != nil {
		t.Errorf("LED beyond tail = %v, want off", *colors[15])
	}
}

func TestCometSingleLEDFallsBackToSolid(t *testing.T) {
	st := NewEffectState()
	st.BaseColor = RGB{0, 1, 0}
	eff, _ := NewEffect("comet")
	colors, _ := eff.Calculate(st, time.Now(), 1, nil)
	if len(colors) != 1 || colors[0] == nil || *colors[0] != st.BaseColor {
		t.Errorf("single-LED comet = %v, want solid base color", colors)
	}
}

func TestKittBounce(t *testing.T) {
	st := NewEffectState()
	st.Effect = "kitt"
	st.BaseColor = RGB{1, 0, 0}
	now := time.Now()
	st.StartTime = now.Add(-250 * time.Millisecond) // quarter cycle: center

	eff, _ := NewEffect("kitt")
	colors, _ := eff.Calculate(st, now, 10, nil)

	// Eye centered at 4.5 covers LEDs 4 and 5 at full brightness.
	for _, i := range []int{4, 5} {
		if colors[i] == nil || !approxEq(colors[i].R, 1.0) {
			t.Errorf("eye LED %d = %v, want full brightness", i, colors[i])
		}
	}
	// Edges sit in the falloff, dimmer than the eye.
	if colors[0] != nil && colors[0].R >= 1.0 {
		t.Error("strip edge should be dimmer than the eye")
	}
}

func TestKittTracksToolhead(t *testing.T) {
	st := NewEffectState()
	st.Effect = "kitt"
	st.BaseColor = RGB{1, 0, 0}
	st.KittTrackingAxis = "x"
	now := time.Now()
	st.StartTime = now

	printer := NewPrinterState()
	tel := &EffectTelemetry{Printer: &printer, BedXMin: 0, BedXMax: 300}

	eff, _ := NewEffect("kitt")

	// First sample establishes the baseline position.
	printer.PositionX = 0
	eff.Calculate(st, now, 10, tel)

	// A real move pins the eye to the normalized X coordinate.
	printer.PositionX = 150
	colors, _ := eff.Calculate(st, now.Add(100*time.Millisecond), 10, tel)
	for _, i := range []int{4, 5} {
		if colors[i] == nil || !approxEq(colors[i].R, 1.0) {
			t.Errorf("tracking eye LED %d = %v, want full brightness at mid-bed", i, colors[i])
		}
	}
}

func TestThermalFill(t *testing.T) {
	st := NewEffectState()
	st.Effect = "thermal"
	st.TempSource = "bed"

	printer := NewPrinterState()
	printer.BedTarget = 60
	printer.BedTemp = 42.5 // halfway from floor 25 to target 60
	tel := &EffectTelemetry{Printer: &printer, TempFloor: 25}

	eff, _ := NewEffect("thermal")
	colors, _ := eff.Calculate(st, time.Now(), 10, tel)

	lit := 0
	for _, c := range colors {
		if c != nil {
			lit++
		}
	}
	if lit != 5 {
		t.Errorf("lit %d LEDs at 50%% heat, want 5", lit)
	}
	if colors[7] != nil {
		t.Error("LED beyond the fill front should be dark")
	}
}

func TestThermalNoTargetShowsStartColor(t *testing.T) {
	st := NewEffectState()
	st.Effect = "thermal"
	printer := NewPrinterState()
	tel := &EffectTelemetry{Printer: &printer, TempFloor: 25}

	eff, _ := NewEffect("thermal")
	colors, _ := eff.Calculate(st, time.Now(), 4, tel)
	for i, c := range colors {
		if c == nil || *c != st.StartColor {
			t.Errorf("LED %d = %v, want uniform start color with no target", i, c)
		}
	}
}

func TestProgressFill(t *testing.T) {
	st := NewEffectState()
	st.Effect = "progress"

	printer := NewPrinterState()
	printer.Progress = 1.0
	tel := &EffectTelemetry{Printer: &printer}

	eff, _ := NewEffect("progress")
	colors, _ := eff.Calculate(st, time.Now(), 10, tel)
	for i, c := range colors {
		if c == nil {
			t.Fatalf("LED %d dark at 100%% progress", i)
		}
	}
	// Gradient endpoint: the last LED shows the end color.
	if !approxEq(colors[9].R, st.EndColor.R) || !approxEq(colors[9].G, st.EndColor.G) {
		t.Errorf("final LED = %v, want end color %v", *colors[9], st.EndColor)
	}

	// Without telemetry nothing is lit.
	colors, _ = eff.Calculate(st, time.Now(), 10, nil)
	for i, c := range colors {
		if c != nil {
			t.Errorf("LED %d lit with no telemetry", i)
		}
	}
}

func TestEffectFillReverse(t *testing.T) {
	st := NewEffectState()
	st.Direction = "reverse"

	colors := effectFill(st, 0.5, 10)
	if colors[0] != nil {
		t.Error("reverse fill should leave the first LED dark at 50%")
	}
	if colors[9] == nil {
		t.Error("reverse fill should light the last LED at 50%")
	}
}

func TestEffectRegistry(t *testing.T) {
	for _, name := range ListEffects() {
		eff, err := NewEffect(name)
		if err != nil {
			t.Errorf("NewEffect(%s): %v", name, err)
			continue
		}
		if eff.Name() != name {
			t.Errorf("effect %s reports name %s", name, eff.Name())
		}
	}
	if _, err := NewEffect("laser_show"); err == nil {
		t.Error("NewEffect accepted an unregistered name")
	}
	if IsAnimatedEffect("solid") {
		t.Error("solid is not animated")
	}
	if !IsAnimatedEffect("chase") {
		t.Error("chase is animated")
	}
}
