package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Screen        string          `json:"screen"`
	Lock          string          `json:"lock"`
	Ready         bool            `json:"ready"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTJSON        `json:"mqtt"`
	Counts        CountsJSON      `json:"event_counts"`
	Notifier      NotifierJSON    `json:"notifier"`
	Utilization   UtilizationJSON `json:"utilization"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTJSON reports MQTT connection state.
type MQTTJSON struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Queued    int    `json:"queued"`
	Dropped   int    `json:"dropped"`
}

// CountsJSON is the JSON representation of input event counts.
type CountsJSON struct {
	ScreenOn  int `json:"screen_on"`
	ScreenOff int `json:"screen_off"`
	LockOn    int `json:"lock_on"`
	LockOff   int `json:"lock_off"`
}

// NotifierJSON is the JSON representation of the notifier snapshot.
type NotifierJSON struct {
	State           string   `json:"state"`
	Enabled         bool     `json:"enabled"`
	Recommendation  string   `json:"recommendation,omitempty"`
	Blacklist       []string `json:"blacklist"`
	RepeatAt        string   `json:"repeat_at,omitempty"`
	Recommendations int      `json:"recommendations"`
	Connects        int      `json:"connects"`
	Connected       int      `json:"connected"`
	Failures        int      `json:"failures"`
	Dismissals      int      `json:"dismissals"`
}

// UtilizationJSON is the JSON representation of the estimator state.
type UtilizationJSON struct {
	Mobility      string        `json:"mobility"`
	CounterResets int           `json:"counter_resets"`
	Reports       int           `json:"reports"`
	Channels      []ChannelJSON `json:"channels"`
}

// ChannelJSON is one channel's ratio.
type ChannelJSON struct {
	Frequency int `json:"frequency"`
	Ratio     int `json:"ratio"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	RepeatDelayMs int64  `json:"repeat_delay_ms"`
	Broker        string `json:"broker"`
	TopicPrefix   string `json:"topic_prefix"`
	HTTPAddr      string `json:"http_addr"`
	StoreDriver   string `json:"store_driver"`
	GPIOEnabled   bool   `json:"gpio_enabled"`
}

func levelOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	n := snap.Notifier
	notif := NotifierJSON{
		State:           levelOrUnknown(string(n.State)),
		Enabled:         n.Enabled,
		Blacklist:       n.Blacklist,
		Recommendations: n.Counts.Recommendations,
		Connects:        n.Counts.Connects,
		Connected:       n.Counts.Connected,
		Failures:        n.Counts.Failures,
		Dismissals:      n.Counts.Dismissals,
	}
	if notif.Blacklist == nil {
		notif.Blacklist = []string{}
	}
	if n.Recommendation != nil {
		notif.Recommendation = n.Recommendation.SSID
	}
	if n.RepeatAtMillis > 0 {
		notif.RepeatAt = time.UnixMilli(n.RepeatAtMillis).UTC().Format(time.RFC3339)
	}

	util := UtilizationJSON{
		Mobility:      string(snap.Utilization.Mobility),
		CounterResets: snap.Utilization.CounterResets,
		Reports:       snap.Utilization.Reports,
		Channels:      []ChannelJSON{},
	}
	for _, f := range snap.Frequencies() {
		util.Channels = append(util.Channels, ChannelJSON{Frequency: f, Ratio: snap.Utilization.Ratios[f]})
	}

	return StatusInner{
		Screen:        levelOrUnknown(string(snap.Input.Screen)),
		Lock:          levelOrUnknown(string(snap.Input.Lock)),
		Ready:         snap.Input.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTJSON{
			Connected: snap.MQTT.Connected,
			Broker:    snap.Config.Broker,
			Queued:    snap.MQTT.Queued,
			Dropped:   snap.MQTT.Dropped,
		},
		Counts: CountsJSON{
			ScreenOn:  snap.Input.Counts.ScreenOn,
			ScreenOff: snap.Input.Counts.ScreenOff,
			LockOn:    snap.Input.Counts.LockOn,
			LockOff:   snap.Input.Counts.LockOff,
		},
		Notifier:    notif,
		Utilization: util,
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			RepeatDelayMs: snap.Config.RepeatDelayMs,
			Broker:        snap.Config.Broker,
			TopicPrefix:   snap.Config.TopicPrefix,
			HTTPAddr:      snap.Config.HTTPAddr,
			StoreDriver:   snap.Config.StoreDriver,
			GPIOEnabled:   snap.Config.GPIOEnabled,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
