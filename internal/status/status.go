// Package status provides a thread-safe status tracker for the wifi-sensor daemon.
// It is written by the run loop and read by HTTP handlers.
package status

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sweeney/wifi-sensor/internal/input"
	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/utilization"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceMs    int64
	HeartbeatMs   int64
	RepeatDelayMs int64
	Broker        string
	TopicPrefix   string
	HTTPAddr      string
	StoreDriver   string
	GPIOEnabled   bool
}

// InputState is the debounced state of the sense lines.
type InputState struct {
	Screen    input.Level
	Lock      input.Level
	Baselined bool
	Counts    input.Counts
}

// UtilizationState is the estimator's latest view.
type UtilizationState struct {
	Mobility      utilization.MobilityState
	Ratios        map[int]int
	CounterResets int
	Reports       int
}

// MQTTState reports the broker connection and outbound buffer.
type MQTTState struct {
	Connected bool
	Queued    int
	Dropped   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Input       InputState
	Notifier    notifier.Snapshot
	Utilization UtilizationState
	MQTT        MQTTState
	StartTime   time.Time
	Now         time.Time
	Network     *NetworkInfo
	Config      Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Frequencies returns the measured frequencies in ascending order.
func (s Snapshot) Frequencies() []int {
	return slices.Sorted(maps.Keys(s.Utilization.Ratios))
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Utilization: UtilizationState{
				Mobility: utilization.MobilityUnknown,
			},
		},
		now: time.Now,
	}
}

// UpdateInput sets the sense line state. Called from runLoop on every tick.
func (t *Tracker) UpdateInput(s InputState) {
	t.mu.Lock()
	t.snap.Input = s
	t.mu.Unlock()
}

// UpdateNotifier stores a copy of the notifier snapshot.
func (t *Tracker) UpdateNotifier(s notifier.Snapshot) {
	s.Blacklist = slices.Clone(s.Blacklist)
	if s.Recommendation != nil {
		r := *s.Recommendation
		s.Recommendation = &r
	}
	t.mu.Lock()
	t.snap.Notifier = s
	t.mu.Unlock()
}

// UpdateUtilization stores a copy of the estimator state.
func (t *Tracker) UpdateUtilization(u UtilizationState) {
	u.Ratios = maps.Clone(u.Ratios)
	t.mu.Lock()
	t.snap.Utilization = u
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status.
func (t *Tracker) SetMQTT(m MQTTState) {
	t.mu.Lock()
	t.snap.MQTT = m
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetConfig replaces the displayed config after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Utilization.Ratios = maps.Clone(s.Utilization.Ratios)
	s.Notifier.Blacklist = slices.Clone(s.Notifier.Blacklist)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
