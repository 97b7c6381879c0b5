package main

import "time"

// Driver kinds
const (
	DriverKlipper = "klipper"
	DriverPWM     = "pwm"
	DriverProxy   = "proxy"
)

// Default configuration values
const (
	DefaultConfigFile      = "glowbridge.toml"
	DefaultWebPort         = "7869"
	DefaultDBFileName      = "glowbridge.db"
	DefaultMoonrakerURL    = "ws://127.0.0.1:7125/websocket"
	DefaultTempFloor       = 25.0  // degrees C, ambient baseline
	DefaultBoredTimeout    = 300.0 // seconds idle before "bored"
	DefaultSleepTimeout    = 600.0 // seconds bored before "sleep"
	DefaultMaxBrightness   = 0.4
	DefaultUpdateRate      = 0.1 // seconds between Klipper-driver updates when idle
	DefaultUpdateRatePrint = 1.0 // seconds between Klipper-driver updates while printing
	DefaultProxyFPS        = 60  // updates/second for proxy-class drivers
)

// Detector tuning
const (
	HeatingTolerance    = 3.0  // degrees C below target that still counts as heating
	HeatingHoldPower    = 0.05 // heater power above this means actively holding temperature
	HeatingStableGrace  = 10 * time.Second
	CooldownThreshold   = 10.0 // degrees above temp_floor to consider "cooling"
	MacroOverrideExpiry = 120 * time.Second
)

// HistoryRetention bounds the sqlite journal; older rows are pruned.
const HistoryRetention = 30 * 24 * time.Hour

// Scheduler tuning
const (
	TickSleepFloor   = 10 * time.Millisecond
	TickSleepCeiling = 500 * time.Millisecond
)

// Driver I/O limits
const (
	GcodeTimeout         = 2 * time.Second
	ProxyRequestTimeout  = 1 * time.Second
	DriverRetryBudget    = 1 // one retry after the initial attempt
	UnhealthyThreshold   = 5 // consecutive failures before a device is unhealthy
	FastFailThreshold    = 10
	DriverRetryBackoff   = 100 * time.Millisecond
	MoonrakerDialTimeout = 5 * time.Second
	MoonrakerPingPeriod  = 30 * time.Second
)

// KITT toolhead tracking considers the toolhead moving when it has
// travelled more than this many millimeters since the previous tick.
const KittMotionThreshold = 1.0
