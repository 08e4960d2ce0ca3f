package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/utilization"
)

// ErrUnknownTopic is returned by Decode for topics outside the subscription set.
var ErrUnknownTopic = errors.New("unknown topic")

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// UtilizationPayload is the utilization report envelope.
type UtilizationPayload struct {
	Utilization UtilizationInner `json:"utilization"`
}

// UtilizationInner contains the report details.
type UtilizationInner struct {
	Timestamp     string        `json:"timestamp"`
	Mobility      string        `json:"mobility"`
	CounterResets int           `json:"counter_resets"`
	Channels      []ChannelJSON `json:"channels"`
}

// ChannelJSON is one channel's ratio.
type ChannelJSON struct {
	Frequency int `json:"frequency"`
	Ratio     int `json:"ratio"`
}

// FormatUtilizationPayload creates the JSON payload for a utilization
// report. Channels are ordered by frequency.
func FormatUtilizationPayload(r UtilizationReport) ([]byte, error) {
	channels := make([]ChannelJSON, 0, len(r.Ratios))
	for f, ratio := range r.Ratios {
		channels = append(channels, ChannelJSON{Frequency: f, Ratio: ratio})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Frequency < channels[j].Frequency })

	return json.Marshal(UtilizationPayload{
		Utilization: UtilizationInner{
			Timestamp:     r.Timestamp.UTC().Format(time.RFC3339),
			Mobility:      string(r.Mobility),
			CounterResets: r.CounterResets,
			Channels:      channels,
		},
	})
}

// NotificationPayload is the retained notification document.
type NotificationPayload struct {
	Notification NotificationInner `json:"notification"`
}

// NotificationInner describes one rendered notification.
type NotificationInner struct {
	ID            int          `json:"id"`
	Kind          string       `json:"kind"`
	Title         string       `json:"title"`
	Message       string       `json:"message,omitempty"`
	SSID          string       `json:"ssid,omitempty"`
	TapAction     string       `json:"tap_action,omitempty"`
	DismissAction string       `json:"dismiss_action,omitempty"`
	Ongoing       bool         `json:"ongoing"`
	Buttons       []ButtonJSON `json:"buttons,omitempty"`
}

// ButtonJSON is a notification action button.
type ButtonJSON struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// FormatNotificationPayload creates the JSON payload for a posted notification.
func FormatNotificationPayload(id int, n notifier.Notification) ([]byte, error) {
	inner := NotificationInner{
		ID:            id,
		Kind:          string(n.Kind),
		Title:         n.Title,
		Message:       n.Message,
		SSID:          n.SSID,
		TapAction:     string(n.TapAction),
		DismissAction: string(n.DismissAction),
		Ongoing:       n.Ongoing,
	}
	for _, b := range n.Buttons {
		inner.Buttons = append(inner.Buttons, ButtonJSON{Label: b.Label, Action: string(b.Action)})
	}
	return json.Marshal(NotificationPayload{Notification: inner})
}

// ConnectPayload asks the radio agent to join a network.
type ConnectPayload struct {
	Connect ConnectInner `json:"connect"`
}

// ConnectInner contains the connect request details.
type ConnectInner struct {
	RequestID uint64 `json:"request_id"`
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid,omitempty"`
	Frequency int    `json:"frequency,omitempty"`
}

// FormatConnectPayload creates the JSON payload for a connect request.
func FormatConnectPayload(req notifier.ConnectRequest) ([]byte, error) {
	return json.Marshal(ConnectPayload{
		Connect: ConnectInner{
			RequestID: req.ID,
			SSID:      req.Network.SSID,
			BSSID:     req.Network.BSSID,
			Frequency: req.Network.Frequency,
		},
	})
}

// PickerPayload asks the UI to open the network picker.
type PickerPayload struct {
	Picker PickerInner `json:"picker"`
}

// PickerInner contains the picker request details.
type PickerInner struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
}

// FormatPickerPayload creates the JSON payload for a picker request.
func FormatPickerPayload(now time.Time) ([]byte, error) {
	return json.Marshal(PickerPayload{
		Picker: PickerInner{Timestamp: now.UTC().Format(time.RFC3339), Action: "WIFI_SETTINGS"},
	})
}

// Wire forms of inbound messages.

type linkStatsJSON struct {
	Channels []struct {
		Frequency     int   `json:"frequency"`
		RadioOnTimeMs int64 `json:"radio_on_time_ms"`
		CcaBusyTimeMs int64 `json:"cca_busy_time_ms"`
	} `json:"channels"`
}

type scanJSON struct {
	Results []struct {
		SSID         string `json:"ssid"`
		BSSID        string `json:"bssid"`
		Capabilities string `json:"capabilities"`
		Level        int    `json:"level"`
		Frequency    int    `json:"frequency"`
	} `json:"results"`
}

type wifiStateJSON struct {
	State string `json:"state"`
	SSID  string `json:"ssid"`
}

type mobilityJSON struct {
	State string `json:"state"`
}

type actionJSON struct {
	Action string `json:"action"`
}

type connectReplyJSON struct {
	RequestID uint64 `json:"request_id"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason"`
}

// Decode parses a message received on one of t's inbound topics.
func (t Topics) Decode(topic string, payload []byte) (Inbound, error) {
	switch topic {
	case t.LinkStats():
		return decodeLinkStats(payload)
	case t.Scan():
		return decodeScan(payload)
	case t.WifiState():
		return decodeWifiState(payload)
	case t.Mobility():
		var m mobilityJSON
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode mobility: %w", err)
		}
		return MobilityMsg{State: utilization.ParseMobilityState(m.State)}, nil
	case t.Action():
		var a actionJSON
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode action: %w", err)
		}
		action, ok := notifier.ParseAction(a.Action)
		if !ok {
			return nil, fmt.Errorf("decode action: unknown action %q", a.Action)
		}
		return ActionMsg{Action: action}, nil
	case t.ConnectReply():
		var r connectReplyJSON
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode connect reply: %w", err)
		}
		return ConnectReplyMsg{Reply: notifier.ConnectReplyEvent{
			RequestID: r.RequestID,
			Success:   r.Success,
			Reason:    r.Reason,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

func decodeLinkStats(payload []byte) (Inbound, error) {
	var l linkStatsJSON
	if err := json.Unmarshal(payload, &l); err != nil {
		return nil, fmt.Errorf("decode link stats: %w", err)
	}
	stats := utilization.LinkLayerStats{Channels: make(map[int]utilization.ChannelStats, len(l.Channels))}
	for _, c := range l.Channels {
		if c.Frequency <= 0 {
			return nil, fmt.Errorf("decode link stats: invalid frequency %d", c.Frequency)
		}
		if c.RadioOnTimeMs < 0 || c.CcaBusyTimeMs < 0 {
			return nil, fmt.Errorf("decode link stats: negative counter on %d MHz", c.Frequency)
		}
		stats.Channels[c.Frequency] = utilization.ChannelStats{
			Frequency:     c.Frequency,
			RadioOnTimeMs: c.RadioOnTimeMs,
			CcaBusyTimeMs: c.CcaBusyTimeMs,
		}
	}
	return LinkStatsMsg{Stats: stats}, nil
}

func decodeScan(payload []byte) (Inbound, error) {
	var s scanJSON
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode scan: %w", err)
	}
	results := make([]notifier.ScanResult, 0, len(s.Results))
	for _, r := range s.Results {
		results = append(results, notifier.ScanResult{
			SSID:         r.SSID,
			BSSID:        r.BSSID,
			Capabilities: r.Capabilities,
			Level:        r.Level,
			Frequency:    r.Frequency,
		})
	}
	return ScanMsg{Results: results}, nil
}

func decodeWifiState(payload []byte) (Inbound, error) {
	var w wifiStateJSON
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode wifi state: %w", err)
	}
	switch st := WifiState(w.State); st {
	case WifiConnected, WifiDisconnected, WifiConnectionFailed:
		return WifiStateMsg{State: st, SSID: w.SSID}, nil
	default:
		return nil, fmt.Errorf("decode wifi state: unknown state %q", w.State)
	}
}
