package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// Settings holds the global tunables from the [settings] table.
type Settings struct {
	MoonrakerURL       string  `toml:"moonraker_url"`
	WebPort            string  `toml:"web_port"`
	TempFloor          float64 `toml:"temp_floor"`
	BoredTimeout       float64 `toml:"bored_timeout"`
	SleepTimeout       float64 `toml:"sleep_timeout"`
	MaxBrightness      float64 `toml:"max_brightness"`
	UpdateRate         float64 `toml:"update_rate"`
	UpdateRatePrinting float64 `toml:"update_rate_printing"`
	ProxyFPS           float64 `toml:"proxy_fps"`
	BedXMin            float64 `toml:"bed_x_min"`
	BedXMax            float64 `toml:"bed_x_max"`
	BedYMin            float64 `toml:"bed_y_min"`
	BedYMax            float64 `toml:"bed_y_max"`
	Debug              bool    `toml:"debug"`
}

// GroupConfig describes one LED group from a [groups.<name>] table,
// including its hardware binding and per-event effect mappings.
type GroupConfig struct {
	Driver     string  `toml:"driver"`
	Neopixel   string  `toml:"neopixel"`
	GpioPin    int     `toml:"gpio_pin"`
	ProxyHost  string  `toml:"proxy_host"`
	ProxyPort  int     `toml:"proxy_port"`
	ColorOrder string  `toml:"color_order"`
	IndexStart int     `toml:"index_start"`
	IndexEnd   int     `toml:"index_end"`
	PinName    string  `toml:"pin_name"`
	Scale      float64 `toml:"scale"`
	Direction  string  `toml:"direction"`
	ChaseGroup int     `toml:"chase_group"`

	OnIdle      string `toml:"on_idle"`
	OnHeating   string `toml:"on_heating"`
	OnPrinting  string `toml:"on_printing"`
	OnCooldown  string `toml:"on_cooldown"`
	OnError     string `toml:"on_error"`
	OnBored     string `toml:"on_bored"`
	OnSleep     string `toml:"on_sleep"`
	OnHoming    string `toml:"on_homing"`
	OnMeshing   string `toml:"on_meshing"`
	OnLeveling  string `toml:"on_leveling"`
	OnProbing   string `toml:"on_probing"`
	OnPaused    string `toml:"on_paused"`
	OnCancelled string `toml:"on_cancelled"`
	OnFilament  string `toml:"on_filament"`
}

// Mapping returns the raw effect string configured for an event, or ""
// when the group doesn't react to it.
func (g *GroupConfig) Mapping(ev Event) string {
	switch ev {
	case EventIdle:
		return g.OnIdle
	case EventHeating:
		return g.OnHeating
	case EventPrinting:
		return g.OnPrinting
	case EventCooldown:
		return g.OnCooldown
	case EventError:
		return g.OnError
	case EventBored:
		return g.OnBored
	case EventSleep:
		return g.OnSleep
	case EventHoming:
		return g.OnHoming
	case EventMeshing:
		return g.OnMeshing
	case EventLeveling:
		return g.OnLeveling
	case EventProbing:
		return g.OnProbing
	case EventPaused:
		return g.OnPaused
	case EventCancelled:
		return g.OnCancelled
	case EventFilament:
		return g.OnFilament
	}
	return ""
}

// Reversed reports whether the group is wired against the chase/fill
// direction.
func (g *GroupConfig) Reversed() bool {
	return strings.EqualFold(strings.TrimSpace(g.Direction), "reverse")
}

// EffectConfig holds per-effect parameter defaults from an
// [effects.<name>] table. Zero-valued fields fall back to the built-in
// defaults at apply time.
type EffectConfig struct {
	Speed                float64 `toml:"speed"`
	MinBrightness        float64 `toml:"min_brightness"`
	MaxBrightness        float64 `toml:"max_brightness"`
	MinSparkle           int     `toml:"min_sparkle"`
	MaxSparkle           int     `toml:"max_sparkle"`
	RainbowSpread        float64 `toml:"rainbow_spread"`
	FireCooling          float64 `toml:"fire_cooling"`
	CometTailLength      int     `toml:"comet_tail_length"`
	CometFadeRate        float64 `toml:"comet_fade_rate"`
	ChaseColor1          string  `toml:"chase_color_1"`
	ChaseColor2          string  `toml:"chase_color_2"`
	ChaseSize            int     `toml:"chase_size"`
	ChaseOffsetBase      float64 `toml:"chase_offset_base"`
	ChaseOffsetVariation float64 `toml:"chase_offset_variation"`
	KittEyeSize          int     `toml:"kitt_eye_size"`
	KittTailLength       int     `toml:"kitt_tail_length"`
	KittTrackingAxis     string  `toml:"kitt_tracking_axis"`
	StartColor           string  `toml:"start_color"`
	EndColor             string  `toml:"end_color"`
	GradientCurve        float64 `toml:"gradient_curve"`
	TempSource           string  `toml:"temp_source"`
}

// Config is the full parsed configuration file. Macros maps an event
// name to the G-code macro names that force it; the reserved key
// "clear" lists completion markers that release any active override.
type Config struct {
	Settings Settings                 `toml:"settings"`
	Groups   map[string]*GroupConfig  `toml:"groups"`
	Effects  map[string]*EffectConfig `toml:"effects"`
	Macros   map[string][]string      `toml:"macros"`

	Warnings []string `toml:"-"`
	Path     string   `toml:"-"`
}

func defaultSettings() Settings {
	return Settings{
		MoonrakerURL:       DefaultMoonrakerURL,
		WebPort:            DefaultWebPort,
		TempFloor:          DefaultTempFloor,
		BoredTimeout:       DefaultBoredTimeout,
		SleepTimeout:       DefaultSleepTimeout,
		MaxBrightness:      DefaultMaxBrightness,
		UpdateRate:         DefaultUpdateRate,
		UpdateRatePrinting: DefaultUpdateRatePrint,
		ProxyFPS:           DefaultProxyFPS,
		BedXMin:            0.0,
		BedXMax:            300.0,
		BedYMin:            0.0,
		BedYMax:            300.0,
	}
}

// LoadConfig reads and validates the TOML configuration file. A missing
// file is not an error: everything has a default and groups can be added
// later via reload.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Settings: defaultSettings(),
		Groups:   make(map[string]*GroupConfig),
		Effects:  make(map[string]*EffectConfig),
		Macros:   make(map[string][]string),
		Path:     path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for name, g := range cfg.Groups {
		applyGroupDefaults(name, g)
	}
	cfg.Warnings = cfg.validate()
	for _, w := range cfg.Warnings {
		log.Printf("⚠️ Config: %s", w)
	}
	return cfg, nil
}

func applyGroupDefaults(name string, g *GroupConfig) {
	if g.Driver == "" {
		g.Driver = DriverKlipper
	}
	if g.IndexStart == 0 {
		g.IndexStart = 1
	}
	if g.IndexEnd == 0 {
		g.IndexEnd = g.IndexStart
	}
	if g.GpioPin == 0 {
		g.GpioPin = 18
	}
	if g.ProxyHost == "" {
		g.ProxyHost = "127.0.0.1"
	}
	if g.ProxyPort == 0 {
		g.ProxyPort = 3769
	}
	if g.ColorOrder == "" {
		g.ColorOrder = "GRB"
	}
	if g.Scale == 0 {
		g.Scale = 1.0
	}
	if g.Direction == "" {
		g.Direction = "standard"
	}
	if g.Neopixel == "" && g.Driver == DriverKlipper {
		g.Neopixel = name
	}
	if g.PinName == "" && g.Driver == DriverPWM {
		g.PinName = name
	}
}

// validate collects human-readable warnings about suspect configuration.
// Warnings never stop startup; the affected mapping is just skipped when
// it is applied.
func (c *Config) validate() []string {
	var warnings []string

	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := c.Groups[name]

		switch g.Driver {
		case DriverKlipper:
			if g.Neopixel == "" {
				warnings = append(warnings, fmt.Sprintf("group %q: klipper driver needs a neopixel name", name))
			}
		case DriverPWM:
			if g.PinName == "" {
				warnings = append(warnings, fmt.Sprintf("group %q: pwm driver needs a pin_name", name))
			}
		case DriverProxy:
		default:
			warnings = append(warnings, fmt.Sprintf("group %q: unknown driver %q", name, g.Driver))
		}

		if g.IndexEnd < g.IndexStart {
			warnings = append(warnings, fmt.Sprintf("group %q: index_end %d is below index_start %d", name, g.IndexEnd, g.IndexStart))
		}

		for _, ev := range AllEvents {
			raw := g.Mapping(ev)
			if raw == "" {
				continue
			}
			warnings = append(warnings, c.validateMapping(name, g, ev, raw)...)
		}
	}
	return warnings
}

func (c *Config) validateMapping(group string, g *GroupConfig, ev Event, raw string) []string {
	var warnings []string
	where := fmt.Sprintf("group %q on_%s", group, ev)

	if g.Driver == DriverPWM {
		mapping := ParseEffectMapping(raw)
		if _, ok := ParsePWMValue(mapping.Effect); ok {
			return nil
		}
		if !IsKnownEffect(mapping.Effect) {
			return []string{fmt.Sprintf("%s: invalid PWM value %q (valid: on, off, dim, or 0.0-1.0)", where, mapping.Effect)}
		}
		if addressableOnlyEffects[mapping.Effect] {
			return []string{fmt.Sprintf("%s: effect %q needs addressable LEDs; use solid, pulse, or heartbeat", where, mapping.Effect)}
		}
		return nil
	}

	mapping := ParseEffectMapping(raw)
	if !IsKnownEffect(mapping.Effect) {
		warnings = append(warnings, fmt.Sprintf("%s: unknown effect %q (valid: %s)", where, mapping.Effect, strings.Join(ListEffects(), ", ")))
		return warnings
	}
	for _, colorName := range []string{mapping.Color, mapping.StartColor, mapping.EndColor} {
		if colorName != "" && !IsKnownColor(colorName) {
			warnings = append(warnings, fmt.Sprintf("%s: unknown color %q", where, colorName))
		}
	}
	return warnings
}

// EffectMapping is one parsed on_<event> value. Supported forms:
//
//	effect
//	effect color        (also effect:color)
//	thermal [source] [start] [end] [curve]
//	progress [start] [end] [curve]
type EffectMapping struct {
	Effect        string
	Color         string
	StartColor    string
	EndColor      string
	GradientCurve float64
	TempSource    string
}

// ParseEffectMapping splits a raw mapping string into its parts. The
// zero GradientCurve means "not specified inline".
func ParseEffectMapping(raw string) EffectMapping {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return EffectMapping{Effect: "off"}
	}
	m := EffectMapping{Effect: parts[0]}

	switch parts[0] {
	case "thermal":
		idx := 1
		if len(parts) > idx {
			switch parts[idx] {
			case "extruder", "bed", "chamber":
				m.TempSource = parts[idx]
				idx++
			}
		}
		if len(parts) > idx {
			m.StartColor = parts[idx]
			idx++
		}
		if len(parts) > idx {
			m.EndColor = parts[idx]
			idx++
		}
		if len(parts) > idx {
			if curve, err := strconv.ParseFloat(parts[idx], 64); err == nil {
				m.GradientCurve = curve
			}
		}

	case "progress":
		if len(parts) > 1 {
			m.StartColor = parts[1]
		}
		if len(parts) > 2 {
			m.EndColor = parts[2]
		}
		if len(parts) > 3 {
			if curve, err := strconv.ParseFloat(parts[3], 64); err == nil {
				m.GradientCurve = curve
			}
		}

	default:
		if effect, color, found := strings.Cut(raw, ":"); found {
			m.Effect = strings.TrimSpace(effect)
			m.Color = strings.TrimSpace(color)
		} else if len(parts) >= 2 {
			m.Color = parts[1]
		}
	}
	return m
}

// ParsePWMValue interprets a PWM mapping word: on, off, dim, or a
// numeric brightness in [0,1].
func ParsePWMValue(value string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on":
		return 1.0, true
	case "off":
		return 0.0, true
	case "dim":
		return 0.3, true
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}

// MacroEvent returns the override event a console G-code line maps to,
// matching configured macro names by prefix.
func (c *Config) MacroEvent(line string) (Event, bool) {
	upper := strings.ToUpper(strings.TrimSpace(line))
	for eventName, macros := range c.Macros {
		if eventName == "clear" {
			continue
		}
		ev, err := ParseEvent(eventName)
		if err != nil {
			continue
		}
		for _, macro := range macros {
			if strings.HasPrefix(upper, strings.ToUpper(macro)) {
				return ev, true
			}
		}
	}
	return "", false
}

// IsClearMarker reports whether a console line marks macro completion.
func (c *Config) IsClearMarker(line string) bool {
	upper := strings.ToUpper(strings.TrimSpace(line))
	for _, marker := range c.Macros["clear"] {
		if strings.HasPrefix(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

// ConfigFilePath returns the config path, honoring the env override the
// same way the database path does.
func ConfigFilePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dir := os.Getenv("GLOWBRIDGE_CONFIG_PATH"); dir != "" {
		return filepath.Join(dir, DefaultConfigFile)
	}
	return DefaultConfigFile
}

// WatchConfig watches the config file for changes and invokes onChange
// after a short debounce. Editors replace files via rename, so the
// parent directory is watched rather than the file itself. Returns a
// stop function.
func WatchConfig(path string, onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	done := make(chan struct{})

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("🔄 Config file changed, reloading")
					onChange()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Config watcher error: %v", err)
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
