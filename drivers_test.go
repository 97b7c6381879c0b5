package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func proxyHostPort(t *testing.T, serverURL string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(serverURL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

// scriptRecorder captures G-code scripts in order, optionally failing
// every call.
type scriptRecorder struct {
	mu      sync.Mutex
	scripts []string
	fail    error
}

func (r *scriptRecorder) RunGcode(_ context.Context, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.scripts = append(r.scripts, script)
	return nil
}

func (r *scriptRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scripts...)
}

func TestKlipperDriverSetLedsBatches(t *testing.T) {
	rec := &scriptRecorder{}
	d := NewKlipperDriver("chamber", "chamber_leds", 1, 3, rec)

	red := RGB{1, 0, 0}
	blue := RGB{0, 0, 1}
	if err := d.SetLeds([]*RGB{&red, nil, &blue}); err != nil {
		t.Fatal(err)
	}

	scripts := rec.all()
	if len(scripts) != 3 {
		t.Fatalf("sent %d scripts, want 3: %v", len(scripts), scripts)
	}

	want := []string{
		"SET_LED LED=chamber_leds RED=1.000 GREEN=0.000 BLUE=0.000 INDEX=1 TRANSMIT=0",
		"SET_LED LED=chamber_leds RED=0.000 GREEN=0.000 BLUE=0.000 INDEX=2 TRANSMIT=0",
		"SET_LED LED=chamber_leds RED=0.000 GREEN=0.000 BLUE=1.000 INDEX=3 TRANSMIT=1",
	}
	for i, w := range want {
		if scripts[i] != w {
			t.Errorf("script %d = %q, want %q", i, scripts[i], w)
		}
	}
}

func TestKlipperDriverSetLedsRejectsLengthMismatch(t *testing.T) {
	rec := &scriptRecorder{}
	d := NewKlipperDriver("chamber", "chamber_leds", 1, 3, rec)

	red := RGB{1, 0, 0}
	if err := d.SetLeds([]*RGB{&red, &red}); err == nil {
		t.Error("short frame accepted")
	}
	if err := d.SetLeds(make([]*RGB, 4)); err == nil {
		t.Error("long frame accepted")
	}
	if scripts := rec.all(); len(scripts) != 0 {
		t.Errorf("bad frames reached the device: %v", scripts)
	}

	// A mismatch is a caller bug, not a device fault.
	if h := d.Health(); !h.Healthy || h.ConsecutiveFailures != 0 {
		t.Errorf("health = %+v, want untouched", h)
	}
}

func TestKlipperDriverSetColorFlushesOnLastIndex(t *testing.T) {
	rec := &scriptRecorder{}
	d := NewKlipperDriver("bar", "bar", 5, 7, rec)

	if err := d.SetColor(RGB{0.5, 0.5, 0.5}); err != nil {
		t.Fatal(err)
	}

	scripts := rec.all()
	if len(scripts) != 3 {
		t.Fatalf("sent %d scripts, want 3", len(scripts))
	}
	for i, s := range scripts[:2] {
		if !strings.Contains(s, "TRANSMIT=0") {
			t.Errorf("script %d should defer transmit: %q", i, s)
		}
	}
	if !strings.Contains(scripts[2], "INDEX=7 TRANSMIT=1") {
		t.Errorf("final script should flush: %q", scripts[2])
	}
}

func TestKlipperDriverLedCount(t *testing.T) {
	d := NewKlipperDriver("g", "g", 10, 19, &scriptRecorder{})
	if d.LedCount() != 10 {
		t.Errorf("LedCount = %d, want 10", d.LedCount())
	}
}

func TestPWMDriverBrightness(t *testing.T) {
	rec := &scriptRecorder{}
	d := NewPWMDriver("logo", "logo_pin", 0.5, rec)

	// Color collapses to the max channel, then the scale applies.
	if err := d.SetColor(RGB{0.2, 0.8, 0.4}); err != nil {
		t.Fatal(err)
	}
	scripts := rec.all()
	if len(scripts) != 1 || scripts[0] != "SET_PIN PIN=logo_pin VALUE=0.40" {
		t.Errorf("scripts = %v", scripts)
	}

	if err := d.SetOff(); err != nil {
		t.Fatal(err)
	}
	scripts = rec.all()
	if scripts[1] != "SET_PIN PIN=logo_pin VALUE=0.00" {
		t.Errorf("off script = %q", scripts[1])
	}
}

func TestPWMDriverClampsValue(t *testing.T) {
	rec := &scriptRecorder{}
	d := NewPWMDriver("logo", "logo", 1.0, rec)
	if err := d.SetBrightness(2.5); err != nil {
		t.Fatal(err)
	}
	if got := rec.all()[0]; got != "SET_PIN PIN=logo VALUE=1.00" {
		t.Errorf("script = %q, want clamped to 1.00", got)
	}
}

func TestHealthTracker(t *testing.T) {
	h := healthTracker{name: "test"}

	if !h.health().Healthy {
		t.Error("fresh tracker should be healthy")
	}

	boom := errors.New("device unplugged")
	for i := 0; i < UnhealthyThreshold; i++ {
		h.recordFailure(boom)
	}
	if h.health().Healthy {
		t.Errorf("tracker healthy after %d consecutive failures", UnhealthyThreshold)
	}
	if h.shouldSkip() {
		t.Error("should not fast-fail before the skip threshold")
	}

	for i := UnhealthyThreshold; i < FastFailThreshold; i++ {
		h.recordFailure(boom)
	}
	if !h.shouldSkip() {
		t.Errorf("should fast-fail after %d consecutive failures", FastFailThreshold)
	}

	// One success resets the streak.
	h.recordSuccess()
	if h.shouldSkip() || !h.health().Healthy {
		t.Error("success did not reset the failure streak")
	}
	if h.health().TotalFailures != int64(FastFailThreshold) {
		t.Errorf("total failures = %d, want %d", h.health().TotalFailures, FastFailThreshold)
	}
}

func TestKlipperDriverSkipsWhenDead(t *testing.T) {
	rec := &scriptRecorder{fail: errors.New("klippy shutdown")}
	d := NewKlipperDriver("g", "g", 1, 1, rec)

	for i := 0; i < FastFailThreshold; i++ {
		if err := d.SetColor(RGB{1, 0, 0}); err == nil {
			t.Fatal("expected error from failing runner")
		}
	}
	// Past the threshold the driver goes quiet instead of erroring.
	if err := d.SetColor(RGB{1, 0, 0}); err != nil {
		t.Errorf("fast-fail path returned error: %v", err)
	}
}

func TestProxyDriverSetLeds(t *testing.T) {
	var gotPath string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := proxyHostPort(t, srv.URL)
	d := NewProxyDriver("under", 18, 1, 3, host, port, "GRB")

	red := RGB{1, 0, 0}
	if err := d.SetLeds([]*RGB{&red, nil, &red}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/set_leds" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotBody, `"gpio_pin":18`) {
		t.Errorf("payload missing gpio pin: %s", gotBody)
	}
	// nil LED serializes as JSON null.
	if !strings.Contains(gotBody, "null") {
		t.Errorf("payload missing null for off LED: %s", gotBody)
	}
}

func TestProxyDriverRetriesThenFails(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, port := proxyHostPort(t, srv.URL)
	d := NewProxyDriver("under", 18, 1, 3, host, port, "GRB")
	err := d.SetColor(RGB{1, 0, 0})
	if err == nil {
		t.Fatal("expected error from failing proxy")
	}
	if requests != DriverRetryBudget+1 {
		t.Errorf("made %d requests, want %d (initial + retries)", requests, DriverRetryBudget+1)
	}
	if d.Health().ConsecutiveFailures != 1 {
		t.Errorf("consecutive failures = %d, want 1", d.Health().ConsecutiveFailures)
	}
}

func TestNewDriverFactory(t *testing.T) {
	rec := &scriptRecorder{}

	tests := []struct {
		name string
		cfg  GroupConfig
		kind string
	}{
		{"Klipper", GroupConfig{Driver: DriverKlipper, IndexStart: 1, IndexEnd: 10}, DriverKlipper},
		{"Empty defaults to klipper", GroupConfig{IndexStart: 1, IndexEnd: 1}, DriverKlipper},
		{"PWM", GroupConfig{Driver: DriverPWM, PinName: "p"}, DriverPWM},
		{"Proxy", GroupConfig{Driver: DriverProxy, IndexStart: 1, IndexEnd: 8}, DriverProxy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDriver("g", &tt.cfg, rec)
			if err != nil {
				t.Fatal(err)
			}
			if d.Kind() != tt.kind {
				t.Errorf("kind = %s, want %s", d.Kind(), tt.kind)
			}
		})
	}

	if _, err := NewDriver("g", &GroupConfig{Driver: "spi"}, rec); err == nil {
		t.Error("unknown driver type should error")
	}
}

func TestUpdateIntervalsFor(t *testing.T) {
	settings := defaultSettings()

	printing, idle := UpdateIntervalsFor(DriverKlipper, &settings)
	if printing != time.Duration(settings.UpdateRatePrinting*float64(time.Second)) {
		t.Errorf("klipper printing interval = %s", printing)
	}
	if idle != time.Duration(settings.UpdateRate*float64(time.Second)) {
		t.Errorf("klipper idle interval = %s", idle)
	}
	if printing <= idle {
		t.Error("printing interval should be slower than idle for gcode-routed drivers")
	}

	printing, idle = UpdateIntervalsFor(DriverProxy, &settings)
	want := time.Duration(float64(time.Second) / settings.ProxyFPS)
	if printing != want || idle != want {
		t.Errorf("proxy intervals = %s/%s, want %s both ways", printing, idle, want)
	}
}
