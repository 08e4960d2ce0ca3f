package config

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		MQTT: MQTTConfig{
			Broker:              "tcp://localhost:1883",
			ClientID:            "wifi-sensor",
			TopicPrefix:         "wifi/sensor",
			BufferSize:          256,
			UtilizationInterval: Duration(30 * time.Second),
		},
		GPIO: GPIOConfig{
			Enabled:       true,
			Chip:          "gpiochip0",
			ScreenPin:     26,
			LockPin:       16,
			LockActiveLow: true,
			Poll:          Duration(100 * time.Millisecond),
			Debounce:      Duration(250 * time.Millisecond),
		},
		Notifier: NotifierConfig{
			Enabled:     true,
			RepeatDelay: Duration(900 * time.Second),
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			Path:          "/var/lib/wifi-sensor/wifi-sensor.db",
			FlushInterval: Duration(30 * time.Second),
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Heartbeat: Duration(15 * time.Minute),
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	// reject a second document
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("decode yaml: trailing document")
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Load reads, parses and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.MQTT.Broker) == "" {
		add("mqtt.broker is required")
	}
	if c.MQTT.BufferSize < 1 {
		add("mqtt.buffer_size must be >= 1")
	}
	if c.MQTT.UtilizationInterval < 0 {
		add("mqtt.utilization_interval must be >= 0")
	}
	if c.GPIO.Enabled {
		if c.GPIO.Poll.D() <= 0 {
			add("gpio.poll must be > 0")
		}
		if c.GPIO.Debounce.D() < 0 {
			add("gpio.debounce must be >= 0")
		}
		if c.GPIO.ScreenPin == c.GPIO.LockPin {
			add("gpio.screen_pin and gpio.lock_pin must differ")
		}
	}
	if c.Notifier.RepeatDelay < 0 {
		add("notifier.repeat_delay must be >= 0")
	}
	if c.Notifier.MinRSSI > 0 {
		add("notifier.min_rssi must be <= 0 dBm")
	}
	switch c.Store.Driver {
	case "sqlite", "file":
		if strings.TrimSpace(c.Store.Path) == "" {
			add("store.path is required for driver %q", c.Store.Driver)
		}
	case "none":
	default:
		add("store.driver %q unknown (want sqlite, file or none)", c.Store.Driver)
	}
	if c.Store.FlushInterval.D() <= 0 && c.Store.Driver != "none" {
		add("store.flush_interval must be > 0")
	}
	if c.Heartbeat < 0 {
		add("heartbeat must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Hash fingerprints the effective configuration.
func (c *Config) Hash() uint64 {
	b, err := yaml.Marshal(c)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Changes lists the top-level sections that differ between prev and next.
func Changes(prev, next *Config) []string {
	if prev == nil {
		prev = &Config{}
	}
	if next == nil {
		next = &Config{}
	}
	var changed []string
	if prev.Log != next.Log {
		changed = append(changed, "log")
	}
	if prev.MQTT != next.MQTT {
		changed = append(changed, "mqtt")
	}
	if prev.GPIO != next.GPIO {
		changed = append(changed, "gpio")
	}
	if prev.Notifier != next.Notifier {
		changed = append(changed, "notifier")
	}
	if prev.Store != next.Store {
		changed = append(changed, "store")
	}
	if prev.HTTP != next.HTTP {
		changed = append(changed, "http")
	}
	if prev.Heartbeat != next.Heartbeat {
		changed = append(changed, "heartbeat")
	}
	return changed
}

// Reloadable reports whether section can be applied without a restart.
func Reloadable(section string) bool {
	switch section {
	case "notifier", "log":
		return true
	}
	return false
}
