package notifier

// Event is an input to the notifier's state machine.
type Event interface {
	isEvent()
}

// ScanResultsEvent carries the open networks from a completed scan.
type ScanResultsEvent struct {
	Results []ScanResult
}

// ScreenStateEvent reports a display power change.
type ScreenStateEvent struct {
	On bool
}

// UserActionEvent is a tap on one of the notification's actions.
type UserActionEvent struct {
	Action Action
}

// WifiConnectedEvent reports that Wi-Fi is connected to a network.
type WifiConnectedEvent struct{}

// ConnectionFailureEvent reports a failed connection attempt.
type ConnectionFailureEvent struct{}

// ConnectReplyEvent is the control plane's answer to a ConnectRequest.
type ConnectReplyEvent struct {
	RequestID uint64
	Success   bool
	Reason    string
}

// ClearPendingEvent clears any shown notification.
type ClearPendingEvent struct {
	ResetDelay bool
}

// SettingsEvent applies new settings.
type SettingsEvent struct {
	Settings Settings
}

type timerKind int

const (
	timerConnecting timerKind = iota
	timerConnected
	timerFailed
)

// timerEvent fires a delayed transition. It is ignored unless the notifier
// is still in the generation that armed it.
type timerEvent struct {
	kind timerKind
	gen  uint64
}

func (ScanResultsEvent) isEvent()       {}
func (ScreenStateEvent) isEvent()       {}
func (UserActionEvent) isEvent()        {}
func (WifiConnectedEvent) isEvent()     {}
func (ConnectionFailureEvent) isEvent() {}
func (ConnectReplyEvent) isEvent()      {}
func (ClearPendingEvent) isEvent()      {}
func (SettingsEvent) isEvent()          {}
func (timerEvent) isEvent()             {}

// Handle dispatches ev to the matching operation.
func (n *Notifier) Handle(ev Event) {
	switch e := ev.(type) {
	case ScanResultsEvent:
		n.HandleScanResults(e.Results)
	case ScreenStateEvent:
		n.HandleScreenStateChanged(e.On)
	case UserActionEvent:
		n.HandleUserAction(e.Action)
	case WifiConnectedEvent:
		n.HandleWifiConnected()
	case ConnectionFailureEvent:
		n.HandleConnectionFailure()
	case ConnectReplyEvent:
		n.HandleConnectReply(e)
	case ClearPendingEvent:
		n.ClearPendingNotification(e.ResetDelay)
	case SettingsEvent:
		n.HandleSettingsChanged(e.Settings)
	case timerEvent:
		n.handleTimer(e)
	default:
		n.log.Warn().Msgf("unknown event %T", ev)
	}
}
