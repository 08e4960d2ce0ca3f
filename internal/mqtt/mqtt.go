// Package mqtt connects the daemon to the radio agent and UI over MQTT.
//
// Outbound: system lifecycle events, utilization reports, notifications,
// connect and picker requests. Inbound: link-layer statistics, scan
// results, user actions, connect replies, mobility and Wi-Fi state.
package mqtt

import (
	"strings"
	"time"

	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/utilization"
)

// DefaultTopicPrefix roots every topic when none is configured.
const DefaultTopicPrefix = "wifi/sensor"

// Topics derives every topic from a common prefix.
type Topics struct {
	prefix string
}

// NewTopics returns the topic set under prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

func (t Topics) join(parts ...string) string {
	return t.prefix + "/" + strings.Join(parts, "/")
}

// Outbound topics.
func (t Topics) System() string       { return t.join("system") }
func (t Topics) Utilization() string  { return t.join("utilization") }
func (t Topics) Notification() string { return t.join("notification") }
func (t Topics) Connect() string      { return t.join("control", "connect") }
func (t Topics) Picker() string       { return t.join("control", "picker") }

// Inbound topics.
func (t Topics) LinkStats() string    { return t.join("radio", "linkstats") }
func (t Topics) Scan() string         { return t.join("radio", "scan") }
func (t Topics) WifiState() string    { return t.join("radio", "state") }
func (t Topics) Mobility() string     { return t.join("radio", "mobility") }
func (t Topics) Action() string       { return t.join("ui", "action") }
func (t Topics) ConnectReply() string { return t.join("control", "connect", "reply") }

// Subscriptions returns every inbound topic.
func (t Topics) Subscriptions() []string {
	return []string{t.LinkStats(), t.Scan(), t.WifiState(), t.Mobility(), t.Action(), t.ConnectReply()}
}

// Publisher is everything the daemon sends over MQTT. It also serves as the
// notifier's sink, control plane and picker.
type Publisher interface {
	notifier.Sink
	notifier.ControlPlane
	notifier.Picker

	// PublishSystem sends a system lifecycle event.
	// Returns error if publishing fails (should not crash the process).
	PublishSystem(event SystemEvent) error

	// PublishUtilization sends a utilization report.
	PublishUtilization(report UtilizationReport) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// UtilizationReport is a snapshot of the estimator.
type UtilizationReport struct {
	Timestamp     time.Time
	Mobility      utilization.MobilityState
	Ratios        map[int]int
	CounterResets int
}

// WifiState is the radio's connection state.
type WifiState string

const (
	WifiConnected        WifiState = "CONNECTED"
	WifiDisconnected     WifiState = "DISCONNECTED"
	WifiConnectionFailed WifiState = "CONNECTION_FAILED"
)

// Inbound is a decoded message from a subscribed topic.
type Inbound interface {
	inbound()
}

// LinkStatsMsg carries a batch of per-channel radio counters.
type LinkStatsMsg struct {
	Stats utilization.LinkLayerStats
}

// ScanMsg carries completed scan results.
type ScanMsg struct {
	Results []notifier.ScanResult
}

// WifiStateMsg reports a connection state change.
type WifiStateMsg struct {
	State WifiState
	SSID  string
}

// MobilityMsg reports the device mobility classification.
type MobilityMsg struct {
	State utilization.MobilityState
}

// ActionMsg is a tap on a notification action.
type ActionMsg struct {
	Action notifier.Action
}

// ConnectReplyMsg is the control plane's answer to a connect request.
type ConnectReplyMsg struct {
	Reply notifier.ConnectReplyEvent
}

func (LinkStatsMsg) inbound()    {}
func (ScanMsg) inbound()         {}
func (WifiStateMsg) inbound()    {}
func (MobilityMsg) inbound()     {}
func (ActionMsg) inbound()       {}
func (ConnectReplyMsg) inbound() {}

// Prefix returns the normalized topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}
