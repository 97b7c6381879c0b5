package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// GcodeRunner issues a single G-code script to Klipper. Implemented by
// the Moonraker client; calls must respect the context deadline.
type GcodeRunner interface {
	RunGcode(ctx context.Context, script string) error
}

// LEDDriver is the device contract consumed by the animation scheduler.
// SetLeds takes per-LED colors where a nil entry means off.
type LEDDriver interface {
	Name() string
	Kind() string
	LedCount() int
	SetColor(c RGB) error
	SetLeds(colors []*RGB) error
	SetOff() error
	Health() DriverHealth
}

// BrightnessSetter is the extra operation PWM-class drivers support for
// raw brightness values.
type BrightnessSetter interface {
	SetBrightness(value float64) error
}

// DriverHealth summarizes a device's recent I/O outcomes for the status
// API and the failure journal.
type DriverHealth struct {
	Healthy             bool    `json:"healthy"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	TotalRequests       int64   `json:"total_requests"`
	TotalFailures       int64   `json:"total_failures"`
	LastError           string  `json:"last_error,omitempty"`
	SuccessRate         float64 `json:"success_rate"`
}

// healthTracker is the shared bookkeeping behind DriverHealth. Drivers
// call recordSuccess/recordFailure around every device operation; after
// FastFailThreshold consecutive failures shouldSkip starts returning
// true so a dead device stops eating the retry budget every tick.
type healthTracker struct {
	name                string
	consecutiveFailures int
	totalRequests       int64
	totalFailures       int64
	lastError           string
}

func (h *healthTracker) shouldSkip() bool {
	return h.consecutiveFailures >= FastFailThreshold
}

func (h *healthTracker) recordSuccess() {
	h.totalRequests++
	if h.consecutiveFailures > 0 {
		log.Printf("✅ Device %s recovered after %d failures", h.name, h.consecutiveFailures)
	}
	h.consecutiveFailures = 0
}

func (h *healthTracker) recordFailure(err error) {
	h.totalRequests++
	h.totalFailures++
	h.consecutiveFailures++
	h.lastError = err.Error()

	// Log the first failure and every tenth after that to keep a flaky
	// device from flooding the log.
	if h.consecutiveFailures == 1 || h.consecutiveFailures%10 == 0 {
		log.Printf("⚠️ Device %s failed: %v (consecutive: %d)", h.name, err, h.consecutiveFailures)
	}
}

func (h *healthTracker) health() DriverHealth {
	rate := 1.0
	if h.totalRequests > 0 {
		rate = 1.0 - float64(h.totalFailures)/float64(h.totalRequests)
	}
	return DriverHealth{
		Healthy:             h.consecutiveFailures < UnhealthyThreshold,
		ConsecutiveFailures: h.consecutiveFailures,
		TotalRequests:       h.totalRequests,
		TotalFailures:       h.totalFailures,
		LastError:           h.lastError,
		SuccessRate:         rate,
	}
}

// KlipperDriver addresses an MCU-attached neopixel chain through SET_LED
// G-code. Multi-LED updates batch with TRANSMIT=0 and flush on the last
// index.
type KlipperDriver struct {
	name       string
	neopixel   string
	indexStart int
	indexEnd   int
	gcode      GcodeRunner
	tracker    healthTracker
}

func NewKlipperDriver(name, neopixel string, indexStart, indexEnd int, gcode GcodeRunner) *KlipperDriver {
	if neopixel == "" {
		neopixel = name
	}
	if indexEnd < indexStart {
		indexEnd = indexStart
	}
	return &KlipperDriver{
		name:       name,
		neopixel:   neopixel,
		indexStart: indexStart,
		indexEnd:   indexEnd,
		gcode:      gcode,
		tracker:    healthTracker{name: name},
	}
}

func (d *KlipperDriver) Name() string         { return d.name }
func (d *KlipperDriver) Kind() string         { return DriverKlipper }
func (d *KlipperDriver) LedCount() int        { return d.indexEnd - d.indexStart + 1 }
func (d *KlipperDriver) Health() DriverHealth { return d.tracker.health() }

func (d *KlipperDriver) run(script string) error {
	ctx, cancel := context.WithTimeout(context.Background(), GcodeTimeout)
	defer cancel()
	return d.gcode.RunGcode(ctx, script)
}

func (d *KlipperDriver) setIndex(c RGB, index, transmit int) error {
	script := fmt.Sprintf("SET_LED LED=%s RED=%.3f GREEN=%.3f BLUE=%.3f INDEX=%d TRANSMIT=%d",
		d.neopixel, c.R, c.G, c.B, index, transmit)
	return d.run(script)
}

func (d *KlipperDriver) SetColor(c RGB) error {
	if d.tracker.shouldSkip() {
		return nil
	}
	for i := d.indexStart; i < d.indexEnd; i++ {
		if err := d.setIndex(c, i, 0); err != nil {
			d.tracker.recordFailure(err)
			return fmt.Errorf("%s SET_LED: %w", d.name, err)
		}
	}
	if err := d.setIndex(c, d.indexEnd, 1); err != nil {
		d.tracker.recordFailure(err)
		return fmt.Errorf("%s SET_LED: %w", d.name, err)
	}
	d.tracker.recordSuccess()
	return nil
}

func (d *KlipperDriver) SetLeds(colors []*RGB) error {
	// A frame of the wrong length is a caller bug, not a device fault;
	// reject it rather than truncate or under-fill the strip.
	if len(colors) != d.LedCount() {
		return fmt.Errorf("%s: frame has %d colors for %d LEDs", d.name, len(colors), d.LedCount())
	}
	if d.tracker.shouldSkip() {
		return nil
	}
	for i, color := range colors {
		index := d.indexStart + i

		c := RGB{}
		if color != nil {
			c = *color
		}
		transmit := 0
		if index == d.indexEnd {
			transmit = 1
		}
		if err := d.setIndex(c, index, transmit); err != nil {
			d.tracker.recordFailure(err)
			return fmt.Errorf("%s SET_LED: %w", d.name, err)
		}
	}
	d.tracker.recordSuccess()
	return nil
}

func (d *KlipperDriver) SetOff() error {
	return d.SetColor(RGB{})
}

// PWMDriver addresses a single-channel dimmable strip through SET_PIN.
// Color collapses to max-channel brightness; scale compensates for
// strips with non-linear response or a hardware cap.
type PWMDriver struct {
	name    string
	pinName string
	scale   float64
	gcode   GcodeRunner
	tracker healthTracker
}

func NewPWMDriver(name, pinName string, scale float64, gcode GcodeRunner) *PWMDriver {
	if pinName == "" {
		pinName = name
	}
	if scale <= 0 {
		scale = 1.0
	}
	return &PWMDriver{
		name:    name,
		pinName: pinName,
		scale:   scale,
		gcode:   gcode,
		tracker: healthTracker{name: name},
	}
}

func (d *PWMDriver) Name() string         { return d.name }
func (d *PWMDriver) Kind() string         { return DriverPWM }
func (d *PWMDriver) LedCount() int        { return 1 }
func (d *PWMDriver) Health() DriverHealth { return d.tracker.health() }

func (d *PWMDriver) SetBrightness(value float64) error {
	if d.tracker.shouldSkip() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), GcodeTimeout)
	defer cancel()

	script := fmt.Sprintf("SET_PIN PIN=%s VALUE=%.2f", d.pinName, clamp(value, 0, 1)*d.scale)
	if err := d.gcode.RunGcode(ctx, script); err != nil {
		d.tracker.recordFailure(err)
		return fmt.Errorf("%s SET_PIN: %w", d.name, err)
	}
	d.tracker.recordSuccess()
	return nil
}

func (d *PWMDriver) SetColor(c RGB) error {
	brightness := c.R
	if c.G > brightness {
		brightness = c.G
	}
	if c.B > brightness {
		brightness = c.B
	}
	return d.SetBrightness(brightness)
}

func (d *PWMDriver) SetLeds(colors []*RGB) error {
	if len(colors) == 0 || colors[0] == nil {
		return d.SetBrightness(0)
	}
	return d.SetColor(*colors[0])
}

func (d *PWMDriver) SetOff() error {
	return d.SetBrightness(0)
}

// ProxyDriver addresses GPIO-attached ws281x strips through a small
// root-privileged helper daemon speaking JSON over HTTP, so this process
// never needs raw IO privileges.
type ProxyDriver struct {
	name       string
	gpioPin    int
	indexStart int
	indexEnd   int
	colorOrder string
	baseURL    string
	httpClient *http.Client
	tracker    healthTracker
}

func NewProxyDriver(name string, gpioPin, indexStart, indexEnd int, host string, port int, colorOrder string) *ProxyDriver {
	if indexEnd < indexStart {
		indexEnd = indexStart
	}
	if colorOrder == "" {
		colorOrder = "GRB"
	}
	return &ProxyDriver{
		name:       name,
		gpioPin:    gpioPin,
		indexStart: indexStart,
		indexEnd:   indexEnd,
		colorOrder: colorOrder,
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{
			Timeout: ProxyRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		tracker: healthTracker{name: name},
	}
}

func (d *ProxyDriver) Name() string         { return d.name }
func (d *ProxyDriver) Kind() string         { return DriverProxy }
func (d *ProxyDriver) LedCount() int        { return d.indexEnd - d.indexStart + 1 }
func (d *ProxyDriver) Health() DriverHealth { return d.tracker.health() }

func (d *ProxyDriver) post(path string, payload any) error {
	if d.tracker.shouldSkip() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling proxy payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= DriverRetryBudget; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * DriverRetryBackoff)
		}
		if lastErr = d.send(path, body); lastErr == nil {
			d.tracker.recordSuccess()
			return nil
		}
	}

	d.tracker.recordFailure(lastErr)
	return fmt.Errorf("%s proxy request: %w", d.name, lastErr)
}

func (d *ProxyDriver) send(path string, body []byte) error {
	req, err := http.NewRequest("POST", d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (d *ProxyDriver) SetColor(c RGB) error {
	return d.post("/set_color", map[string]any{
		"gpio_pin":    d.gpioPin,
		"index_start": d.indexStart,
		"index_end":   d.indexEnd,
		"r":           c.R,
		"g":           c.G,
		"b":           c.B,
		"color_order": d.colorOrder,
	})
}

func (d *ProxyDriver) SetLeds(colors []*RGB) error {
	// nil entries serialize to JSON null, which the proxy treats as off.
	encoded := make([]*[3]float64, len(colors))
	for i, c := range colors {
		if c == nil {
			continue
		}
		encoded[i] = &[3]float64{c.R, c.G, c.B}
	}
	return d.post("/set_leds", map[string]any{
		"gpio_pin":    d.gpioPin,
		"index_start": d.indexStart,
		"colors":      encoded,
		"color_order": d.colorOrder,
	})
}

func (d *ProxyDriver) SetOff() error {
	return d.SetColor(RGB{})
}

// NewDriver builds the driver a group's config calls for.
func NewDriver(name string, cfg *GroupConfig, gcode GcodeRunner) (LEDDriver, error) {
	switch cfg.Driver {
	case DriverKlipper, "":
		return NewKlipperDriver(name, cfg.Neopixel, cfg.IndexStart, cfg.IndexEnd, gcode), nil
	case DriverPWM:
		return NewPWMDriver(name, cfg.PinName, cfg.Scale, gcode), nil
	case DriverProxy:
		host := cfg.ProxyHost
		if host == "" {
			host = "127.0.0.1"
		}
		port := cfg.ProxyPort
		if port == 0 {
			port = 3769
		}
		return NewProxyDriver(name, cfg.GpioPin, cfg.IndexStart, cfg.IndexEnd, host, port, cfg.ColorOrder), nil
	default:
		return nil, fmt.Errorf("unknown driver type %q for group %s", cfg.Driver, name)
	}
}

// UpdateIntervalsFor returns the cached (printing, idle) minimum update
// intervals for a driver class. Klipper-routed devices go through the
// G-code queue and must stay slow while printing; proxy devices talk
// straight to hardware and can run at animation frame rates.
func UpdateIntervalsFor(kind string, cfg *Settings) (printing, idle time.Duration) {
	switch kind {
	case DriverProxy:
		interval := time.Duration(float64(time.Second) / cfg.ProxyFPS)
		return interval, interval
	default:
		printing = time.Duration(cfg.UpdateRatePrinting * float64(time.Second))
		idle = time.Duration(cfg.UpdateRate * float64(time.Second))
		return printing, idle
	}
}
