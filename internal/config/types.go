// Package config loads the daemon configuration from YAML and watches the
// file for changes.
package config

import (
	"fmt"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Duration is a time.Duration written as a Go duration string ("15m").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML accepts a duration string. A bare integer is seconds.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	s := strings.TrimSpace(n.Value)
	if s == "" {
		*d = 0
		return nil
	}
	if n.ShortTag() == "!!int" {
		s += "s"
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", n.Line, n.Value, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the full daemon configuration.
type Config struct {
	Log       LogConfig      `yaml:"log"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	GPIO      GPIOConfig     `yaml:"gpio"`
	Notifier  NotifierConfig `yaml:"notifier"`
	Store     StoreConfig    `yaml:"store"`
	HTTP      HTTPConfig     `yaml:"http"`
	Heartbeat Duration       `yaml:"heartbeat"`
}

// LogConfig selects level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	// BufferSize bounds the messages queued while disconnected.
	BufferSize int `yaml:"buffer_size"`
	// UtilizationInterval is the minimum gap between utilization reports.
	UtilizationInterval Duration `yaml:"utilization_interval"`
}

// GPIOConfig configures the sense lines.
type GPIOConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Chip            string   `yaml:"chip"`
	ScreenPin       int      `yaml:"screen_pin"`
	LockPin         int      `yaml:"lock_pin"`
	ScreenActiveLow bool     `yaml:"screen_active_low"`
	LockActiveLow   bool     `yaml:"lock_active_low"`
	Poll            Duration `yaml:"poll"`
	Debounce        Duration `yaml:"debounce"`
}

// NotifierConfig holds the hot-reloadable notifier settings.
type NotifierConfig struct {
	Enabled     bool     `yaml:"enabled"`
	RepeatDelay Duration `yaml:"repeat_delay"`
	// MinRSSI is the weakest signal worth recommending; 0 disables the floor.
	MinRSSI int `yaml:"min_rssi"`
}

// StoreConfig selects the blacklist persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, file, none
	Path   string `yaml:"path"`
	// FlushInterval is how often coalesced writes are flushed.
	FlushInterval Duration `yaml:"flush_interval"`
}

// HTTPConfig configures the status server. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}
