package notifier

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Deps are the collaborators a Notifier drives.
type Deps struct {
	Clock        Clock
	Recommender  Recommender
	Builder      NotificationBuilder
	Sink         Sink
	Store        BlacklistStore
	Control      ControlPlane
	Picker       Picker
	Restrictions Restrictions
	Scheduler    Scheduler
	Log          zerolog.Logger
}

// Notifier is the open-network notification controller.
type Notifier struct {
	clock        Clock
	recommender  Recommender
	builder      NotificationBuilder
	sink         Sink
	store        BlacklistStore
	control      ControlPlane
	picker       Picker
	restrictions Restrictions
	scheduler    Scheduler
	log          zerolog.Logger

	settings Settings
	state    State
	// gen changes on every state change so stale timers can be ignored.
	gen uint64

	recommendation *ScanResult
	blacklist      map[string]struct{}
	screenOn       bool
	// Wall-clock time before which a new recommendation is suppressed.
	repeatAtMillis int64

	nextRequestID  uint64
	pendingConnect uint64

	counts Counts
}

// New creates a Notifier in the idle state. blacklist seeds the persisted
// set of dismissed SSIDs.
func New(deps Deps, settings Settings, blacklist []string) *Notifier {
	n := &Notifier{
		clock:        deps.Clock,
		recommender:  deps.Recommender,
		builder:      deps.Builder,
		sink:         deps.Sink,
		store:        deps.Store,
		control:      deps.Control,
		picker:       deps.Picker,
		restrictions: deps.Restrictions,
		scheduler:    deps.Scheduler,
		log:          deps.Log,
		settings:     settings,
		state:        StateIdle,
		blacklist:    make(map[string]struct{}, len(blacklist)),
	}
	if n.builder == nil {
		n.builder = DefaultBuilder{}
	}
	if n.recommender == nil {
		n.recommender = StrongestRecommender{}
	}
	for _, ssid := range blacklist {
		n.blacklist[ssid] = struct{}{}
	}
	return n
}

// HandleScanResults evaluates a scan for a recommendation.
func (n *Notifier) HandleScanResults(results []ScanResult) {
	if !n.enabled() {
		n.ClearPendingNotification(true)
		return
	}
	if len(results) == 0 {
		if n.state == StateShowingRecommendation {
			n.ClearPendingNotification(false)
		}
		return
	}

	// Not enough time has passed to show a recommendation again.
	if n.state == StateIdle && n.clock.WallClockMillis() < n.repeatAtMillis {
		return
	}

	// Do nothing when the screen is off and no notification is showing.
	if n.state == StateIdle && !n.screenOn {
		return
	}

	if n.state != StateIdle && n.state != StateShowingRecommendation {
		return
	}

	rec := n.recommender.Recommend(results, n.blacklistCopy())
	if rec == nil {
		n.ClearPendingNotification(false)
		return
	}
	n.postRecommendation(*rec)
}

// HandleScreenStateChanged records the display state. It only gates future
// scan handling.
func (n *Notifier) HandleScreenStateChanged(on bool) {
	n.screenOn = on
}

// ClearPendingNotification cancels any shown notification and returns to
// idle. With resetDelay the next scan may recommend immediately.
func (n *Notifier) ClearPendingNotification(resetDelay bool) {
	if resetDelay {
		n.repeatAtMillis = 0
	}
	if n.state == StateIdle {
		return
	}

	n.cancel()
	if n.recommendation != nil {
		n.log.Debug().Str("ssid", n.recommendation.SSID).Str("state", string(n.state)).Msg("notification cleared")
	}
	n.setState(StateIdle)
	n.recommendation = nil
	n.pendingConnect = 0
}

// HandleUserAction applies an action tapped on a notification.
func (n *Notifier) HandleUserAction(a Action) {
	switch a {
	case ActionConnect:
		n.handleConnectAction()
	case ActionDismiss:
		n.handleDismissAction()
	case ActionPickNetwork, ActionPickAfterConnectFailure:
		n.handlePickNetworkAction()
	default:
		n.log.Warn().Str("action", string(a)).Msg("unknown user action")
	}
}

func (n *Notifier) handleConnectAction() {
	if n.state != StateShowingRecommendation || n.recommendation == nil {
		return
	}
	network := *n.recommendation

	n.post(n.builder.Connecting(network))
	n.setState(StateConnecting)
	n.counts.Connects++

	n.nextRequestID++
	n.pendingConnect = n.nextRequestID
	n.log.Info().Str("ssid", network.SSID).Uint64("request", n.pendingConnect).Msg("connecting to recommended network")

	if err := n.control.Connect(ConnectRequest{ID: n.pendingConnect, Network: network}); err != nil {
		n.log.Warn().Err(err).Str("ssid", network.SSID).Msg("connect request failed")
		n.HandleConnectionFailure()
		return
	}
	n.schedule(ConnectingTimeout, timerConnecting)
}

func (n *Notifier) handleDismissAction() {
	if n.state == StateShowingRecommendation && n.recommendation != nil {
		ssid := n.recommendation.SSID
		n.blacklist[ssid] = struct{}{}
		n.counts.Dismissals++
		n.log.Info().Str("ssid", ssid).Int("blacklist_size", len(n.blacklist)).Msg("network blacklisted")
		if err := n.store.Persist(n.Blacklist(), false); err != nil {
			n.log.Warn().Err(err).Msg("persist blacklist failed")
		}
	}
	// The user already swiped the notification away; nothing to cancel.
	n.setState(StateIdle)
	n.recommendation = nil
	n.pendingConnect = 0
	n.repeatAtMillis = n.clock.WallClockMillis() + n.settings.RepeatDelay.Milliseconds()
}

func (n *Notifier) handlePickNetworkAction() {
	if err := n.picker.OpenNetworkPicker(); err != nil {
		n.log.Warn().Err(err).Msg("open network picker failed")
	}
	n.ClearPendingNotification(false)
}

// HandleWifiConnected completes a connect attempt, or clears whatever
// notification is showing when no attempt is in progress.
func (n *Notifier) HandleWifiConnected() {
	if n.state != StateConnecting {
		n.ClearPendingNotification(true)
		return
	}

	n.post(n.builder.Connected(*n.recommendation))
	n.setState(StateConnected)
	n.pendingConnect = 0
	n.counts.Connected++
	n.log.Info().Str("ssid", n.recommendation.SSID).Msg("connected to recommended network")
	n.schedule(ConnectedDisplayTime, timerConnected)
}

// HandleConnectionFailure ends a connect attempt with the failed
// notification. It is a no-op outside the connecting state.
func (n *Notifier) HandleConnectionFailure() {
	if n.state != StateConnecting {
		return
	}

	n.post(n.builder.Failed())
	n.setState(StateFailed)
	n.pendingConnect = 0
	n.counts.Failures++
	n.log.Info().Str("ssid", n.recommendation.SSID).Msg("failed to connect to recommended network")
	n.schedule(FailedDisplayTime, timerFailed)
}

// HandleConnectReply processes the control plane's reply to a connect
// request. Replies for other requests are ignored.
func (n *Notifier) HandleConnectReply(r ConnectReplyEvent) {
	if r.RequestID != n.pendingConnect || n.state != StateConnecting {
		n.log.Debug().Uint64("request", r.RequestID).Msg("ignoring stale connect reply")
		return
	}
	if r.Success {
		return
	}
	n.log.Debug().Str("reason", r.Reason).Msg("connect request rejected")
	n.HandleConnectionFailure()
}

// HandleSettingsChanged applies new settings. Disabling the feature clears
// any shown notification.
func (n *Notifier) HandleSettingsChanged(s Settings) {
	n.settings = s
	if !s.Enabled {
		n.ClearPendingNotification(true)
	}
}

func (n *Notifier) handleTimer(e timerEvent) {
	if e.gen != n.gen {
		return
	}
	switch e.kind {
	case timerConnecting:
		if n.state == StateConnecting {
			n.log.Info().Msg("connect attempt timed out")
			n.HandleConnectionFailure()
		}
	case timerConnected:
		if n.state == StateConnected {
			n.ClearPendingNotification(true)
		}
	case timerFailed:
		if n.state == StateFailed {
			n.ClearPendingNotification(false)
		}
	}
}

func (n *Notifier) postRecommendation(network ScanResult) {
	n.post(n.builder.Recommendation(network))
	if n.state == StateIdle {
		n.counts.Recommendations++
		n.log.Info().Str("ssid", network.SSID).Int("rssi", network.Level).Msg("recommendation shown")
	}
	n.setState(StateShowingRecommendation)
	n.recommendation = &network
	n.repeatAtMillis = n.clock.WallClockMillis() + n.settings.RepeatDelay.Milliseconds()
}

func (n *Notifier) enabled() bool {
	if !n.settings.Enabled {
		return false
	}
	return n.restrictions == nil || !n.restrictions.ConfigWifiDisallowed()
}

func (n *Notifier) setState(s State) {
	if n.state != s {
		n.gen++
	}
	n.state = s
}

func (n *Notifier) schedule(d time.Duration, kind timerKind) {
	if n.scheduler == nil {
		return
	}
	n.scheduler.After(d, timerEvent{kind: kind, gen: n.gen})
}

func (n *Notifier) post(note Notification) {
	if err := n.sink.Post(NetworkAvailableID, note); err != nil {
		n.log.Warn().Err(err).Str("kind", string(note.Kind)).Msg("post notification failed")
	}
}

func (n *Notifier) cancel() {
	if err := n.sink.Cancel(NetworkAvailableID); err != nil {
		n.log.Warn().Err(err).Msg("cancel notification failed")
	}
}

func (n *Notifier) blacklistCopy() map[string]struct{} {
	out := make(map[string]struct{}, len(n.blacklist))
	for s := range n.blacklist {
		out[s] = struct{}{}
	}
	return out
}

// State returns the current connect-flow state.
func (n *Notifier) State() State {
	return n.state
}

// Blacklist returns the dismissed SSIDs, sorted.
func (n *Notifier) Blacklist() []string {
	out := make([]string, 0, len(n.blacklist))
	for s := range n.blacklist {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the notifier state for status reporting.
func (n *Notifier) Snapshot() Snapshot {
	snap := Snapshot{
		State:          n.state,
		Blacklist:      n.Blacklist(),
		ScreenOn:       n.screenOn,
		Enabled:        n.enabled(),
		RepeatAtMillis: n.repeatAtMillis,
		PendingConnect: n.pendingConnect,
		Counts:         n.counts,
	}
	if n.recommendation != nil {
		rec := *n.recommendation
		snap.Recommendation = &rec
	}
	return snap
}
