// Package notifier decides when to surface an "open network available"
// notification and drives the connect flow started from it.
//
// A Notifier is not safe for concurrent use. All events, including timer
// expiries and control-plane replies, must be delivered from one goroutine.
package notifier

import (
	"strings"
	"time"
)

// State is the connect-flow state of the notifier.
type State string

const (
	StateIdle                  State = "IDLE"
	StateShowingRecommendation State = "SHOWING_RECOMMENDATION"
	StateConnecting            State = "CONNECTING"
	StateConnected             State = "CONNECTED_NOTIFICATION"
	StateFailed                State = "FAILED_NOTIFICATION"
)

const (
	// DefaultRepeatDelay is the minimum wall-clock time before a
	// recommendation cleared without delay reset can be shown again.
	DefaultRepeatDelay = 900 * time.Second

	// ConnectingTimeout bounds a connect attempt. Expiry counts as a failure.
	ConnectingTimeout = 10 * time.Second

	// ConnectedDisplayTime is how long the connected notification stays up.
	ConnectedDisplayTime = 5 * time.Second

	// FailedDisplayTime is how long the failed notification stays up.
	FailedDisplayTime = 5 * time.Second

	// NetworkAvailableID is the notification slot used by every notification
	// this package posts.
	NetworkAvailableID = 17303299
)

// ScanResult is one access point seen in a scan.
type ScanResult struct {
	SSID         string
	BSSID        string
	Capabilities string // e.g. "[WPA2-PSK-CCMP][ESS]"
	Level        int    // RSSI in dBm
	Frequency    int    // MHz
}

// securityMarkers are capability tokens that make a network non-open.
var securityMarkers = []string{"WEP", "PSK", "EAP", "SAE", "OWE"}

// IsOpen reports whether the network advertises no security.
func (r ScanResult) IsOpen() bool {
	for _, m := range securityMarkers {
		if strings.Contains(r.Capabilities, m) {
			return false
		}
	}
	return true
}

// Action is a user action delivered from a notification.
type Action string

const (
	ActionConnect                 Action = "CONNECT_TO_NETWORK"
	ActionDismiss                 Action = "USER_DISMISSED_NOTIFICATION"
	ActionPickNetwork             Action = "PICK_WIFI_NETWORK"
	ActionPickAfterConnectFailure Action = "PICK_NETWORK_AFTER_CONNECT_FAILURE"
)

// ParseAction maps a wire value to an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionConnect, ActionDismiss, ActionPickNetwork, ActionPickAfterConnectFailure:
		return a, true
	default:
		return "", false
	}
}

// NotificationKind identifies which notification is being shown.
type NotificationKind string

const (
	KindRecommendation NotificationKind = "RECOMMENDATION"
	KindConnecting     NotificationKind = "CONNECTING"
	KindConnected      NotificationKind = "CONNECTED"
	KindFailed         NotificationKind = "FAILED"
)

// Notification is an opaque renderable notification.
type Notification struct {
	Kind    NotificationKind
	Title   string
	Message string
	SSID    string
	// TapAction is sent when the notification body is tapped.
	TapAction Action
	// DismissAction is sent when the user swipes the notification away.
	DismissAction Action
	Buttons       []Button
	// Ongoing notifications show progress and cannot be swiped away.
	Ongoing bool
}

// Button is a labelled notification action.
type Button struct {
	Label  string
	Action Action
}

// ConnectRequest asks the Wi-Fi control plane to join an open network.
type ConnectRequest struct {
	ID      uint64
	Network ScanResult
}

// Settings are the user-adjustable notifier settings.
type Settings struct {
	Enabled     bool
	RepeatDelay time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{Enabled: true, RepeatDelay: DefaultRepeatDelay}
}

// Clock supplies wall-clock time in milliseconds.
type Clock interface {
	WallClockMillis() int64
}

// Recommender picks the network to offer from a scan, or nil.
type Recommender interface {
	Recommend(results []ScanResult, blacklist map[string]struct{}) *ScanResult
}

// NotificationBuilder renders the notifications of the connect flow.
type NotificationBuilder interface {
	Recommendation(network ScanResult) Notification
	Connecting(network ScanResult) Notification
	Connected(network ScanResult) Notification
	Failed() Notification
}

// Sink displays and removes notifications.
type Sink interface {
	Post(id int, n Notification) error
	Cancel(id int) error
}

// BlacklistStore persists the dismissed SSIDs. Writes are fire-and-forget.
type BlacklistStore interface {
	Persist(ssids []string, forceFlush bool) error
}

// ControlPlane accepts connect requests. The outcome is delivered later as a
// ConnectReplyEvent on the notifier's event queue.
type ControlPlane interface {
	Connect(req ConnectRequest) error
}

// Picker opens the system network picker.
type Picker interface {
	OpenNetworkPicker() error
}

// Restrictions reports device policy restrictions.
type Restrictions interface {
	ConfigWifiDisallowed() bool
}

// Scheduler delivers ev back to the notifier's event queue after d.
type Scheduler interface {
	After(d time.Duration, ev Event)
}

// Snapshot is a point-in-time view of notifier state.
type Snapshot struct {
	State          State
	Recommendation *ScanResult
	Blacklist      []string
	ScreenOn       bool
	Enabled        bool
	RepeatAtMillis int64
	PendingConnect uint64
	Counts         Counts
}

// Counts tracks notifier activity since startup.
type Counts struct {
	Recommendations int
	Connects        int
	Connected       int
	Failures        int
	Dismissals      int
}
