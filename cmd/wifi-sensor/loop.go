package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/wifi-sensor/internal/config"
	"github.com/sweeney/wifi-sensor/internal/gpio"
	"github.com/sweeney/wifi-sensor/internal/input"
	"github.com/sweeney/wifi-sensor/internal/logx"
	"github.com/sweeney/wifi-sensor/internal/mqtt"
	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/status"
	"github.com/sweeney/wifi-sensor/internal/utilization"
)

const flushTimeout = 5 * time.Second

// flusher writes coalesced blacklist changes.
type flusher interface {
	Flush(ctx context.Context) error
}

// loop owns every engine. All of them are driven from run's goroutine only.
type loop struct {
	reader     gpio.Reader // nil when GPIO is disabled
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	stats      func() mqtt.Stats // optional
	inbound    <-chan mqtt.Inbound
	store      flusher
	tracker    *status.Tracker
	log        zerolog.Logger

	detector  *input.Detector
	notifier  *notifier.Notifier
	estimator *utilization.Estimator
	reporter  *mqtt.Reporter
	events    <-chan notifier.Event

	cfg       *config.Config
	overrides func(*config.Config) // optional, re-applied to reloaded configs
	now       func() time.Time
	sdNotify  func(state string) // optional

	lastStats *utilization.LinkLayerStats
}

// channels are the loop's external event sources. Nil channels are never selected.
type channels struct {
	tick      <-chan time.Time
	heartbeat <-chan time.Time
	flush     <-chan time.Time
	watchdog  <-chan time.Time
	reloads   <-chan *config.Config
	sig       <-chan os.Signal
}

func (l *loop) run(c channels) error {
	if l.reader == nil {
		// Without a display sense line the screen is assumed on.
		l.notifier.HandleScreenStateChanged(true)
	}
	for {
		select {
		case s := <-c.sig:
			l.shutdown(s)
			return nil

		case <-c.tick:
			l.poll()

		case <-c.heartbeat:
			l.heartbeat()

		case in := <-l.inbound:
			l.dispatch(in)

		case ev := <-l.events:
			l.notifier.Handle(ev)
			l.tracker.UpdateNotifier(l.notifier.Snapshot())

		case cfg := <-c.reloads:
			l.reload(cfg)

		case <-c.flush:
			l.flushStore()

		case <-c.watchdog:
			l.notify(daemon.SdNotifyWatchdog)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func (l *loop) shutdown(s os.Signal) {
	name := signalName(s)
	l.log.Info().Str("signal", name).Msg("shutting down")
	l.notify(daemon.SdNotifyStopping)
	l.publishStatus("SHUTDOWN", name)
	l.flushStore()
}

// poll reads the sense lines once and feeds the detector.
func (l *loop) poll() {
	t := l.now()
	screenOn, locked, err := l.reader.Read()
	if err != nil {
		l.log.Error().Err(err).Msg("gpio read error")
		return
	}

	wasBaselined := l.detector.IsBaselined()
	events := l.detector.Process(input.Sample{ScreenOn: screenOn, Locked: locked, Time: t})
	if !wasBaselined && l.detector.IsBaselined() {
		screen, lock := l.detector.CurrentState()
		l.log.Info().Str("screen", string(screen)).Str("lock", string(lock)).Msg("baseline established")
		l.notifier.HandleScreenStateChanged(l.detector.ScreenOn())
		l.tracker.UpdateNotifier(l.notifier.Snapshot())
	}
	for _, e := range events {
		l.log.Info().
			Str("event", string(e.Type)).
			Str("screen", string(e.Screen)).
			Str("lock", string(e.Lock)).
			Msg("input event")
		switch e.Type {
		case input.EventScreenOn:
			l.notifier.HandleScreenStateChanged(true)
		case input.EventScreenOff:
			l.notifier.HandleScreenStateChanged(false)
		case input.EventLockOn:
			// Restricted: take down whatever is shown; scans are ignored until unlocked.
			l.notifier.ClearPendingNotification(true)
		}
	}
	if len(events) > 0 {
		l.tracker.UpdateNotifier(l.notifier.Snapshot())
	}

	l.updateInput()
}

// heartbeat logs the liveness summary and publishes a HEARTBEAT status. It
// runs on its own ticker so it fires with or without GPIO.
func (l *loop) heartbeat() {
	hb := l.detector.Summary(l.now())
	l.log.Info().
		Dur("uptime", hb.Uptime).
		Int("screen_on", hb.Counts.ScreenOn).
		Int("screen_off", hb.Counts.ScreenOff).
		Int("lock_on", hb.Counts.LockOn).
		Int("lock_off", hb.Counts.LockOff).
		Msg("heartbeat")
	// Refresh network info for heartbeat
	if net := readNetworkInfo(); net != nil {
		l.tracker.SetNetwork(net)
	}
	l.publishStatus("HEARTBEAT", "")
}

func (l *loop) dispatch(in mqtt.Inbound) {
	switch m := in.(type) {
	case mqtt.LinkStatsMsg:
		stats := m.Stats
		l.lastStats = &stats
		l.estimator.Refresh(&stats)
		l.report()

	case mqtt.ScanMsg:
		l.log.Debug().Int("results", len(m.Results)).Msg("scan results")
		l.notifier.HandleScanResults(m.Results)

	case mqtt.WifiStateMsg:
		l.log.Info().Str("state", string(m.State)).Str("ssid", m.SSID).Msg("wifi state")
		switch m.State {
		case mqtt.WifiConnected:
			l.notifier.HandleWifiConnected()
			// A new association starts a fresh measurement window.
			l.estimator.Init(l.lastStats)
			l.updateUtilization()
		case mqtt.WifiConnectionFailed:
			l.notifier.HandleConnectionFailure()
		}

	case mqtt.MobilityMsg:
		l.estimator.SetDeviceMobilityState(m.State)
		l.updateUtilization()

	case mqtt.ActionMsg:
		l.log.Info().Str("action", string(m.Action)).Msg("user action")
		l.notifier.HandleUserAction(m.Action)

	case mqtt.ConnectReplyMsg:
		l.notifier.HandleConnectReply(m.Reply)
	}
	l.tracker.UpdateNotifier(l.notifier.Snapshot())
}

// report publishes the estimator state, subject to the reporter's throttle.
func (l *loop) report() {
	sent, err := l.reporter.Report(mqtt.UtilizationReport{
		Timestamp:     l.now(),
		Mobility:      l.estimator.DeviceMobilityState(),
		Ratios:        l.estimator.Ratios(),
		CounterResets: l.estimator.CounterResets(),
	})
	if err != nil {
		// Don't crash on publish failure
		l.log.Error().Err(err).Msg("utilization publish error")
	} else if sent {
		l.log.Debug().Msg("published utilization report")
	}
	l.updateUtilization()
}

func (l *loop) reload(next *config.Config) {
	if next == nil {
		return
	}
	if l.overrides != nil {
		l.overrides(next)
	}
	for _, section := range config.Changes(l.cfg, next) {
		if !config.Reloadable(section) {
			l.log.Warn().Str("section", section).Msg("config change requires restart, ignored")
			continue
		}
		switch section {
		case "log":
			if next.Log.Format != l.cfg.Log.Format {
				// The writer is chosen once at startup.
				l.log.Warn().Str("format", next.Log.Format).Msg("log.format change requires restart")
			}
			if err := logx.SetLevel(next.Log.Level); err != nil {
				l.log.Error().Err(err).Msg("apply log level")
				continue
			}
			l.cfg.Log.Level = next.Log.Level
		case "notifier":
			if next.Notifier.MinRSSI != l.cfg.Notifier.MinRSSI {
				l.log.Warn().Msg("notifier.min_rssi change requires restart")
			}
			l.cfg.Notifier = next.Notifier
			l.notifier.Handle(notifier.SettingsEvent{Settings: notifierSettings(l.cfg)})
			l.tracker.UpdateNotifier(l.notifier.Snapshot())
		}
		l.log.Info().Str("section", section).Msg("config reloaded")
	}
	l.tracker.SetConfig(statusConfig(l.cfg))
}

func (l *loop) flushStore() {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := l.store.Flush(ctx); err != nil {
		l.log.Error().Err(err).Msg("flush blacklist")
	}
}

// publishStatus sends a retained system event carrying the full status snapshot.
func (l *loop) publishStatus(event, reason string) {
	l.updateInput()
	l.tracker.UpdateNotifier(l.notifier.Snapshot())
	l.updateUtilization()
	snap := l.tracker.Snapshot()

	ev := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(ev); err != nil {
		l.log.Error().Err(err).Str("event", event).Msg("failed to publish system event")
	} else {
		l.log.Info().Str("event", event).Msg("published system event")
	}
}

// updateInput refreshes the tracker for HTTP consumers.
func (l *loop) updateInput() {
	screen, lock := l.detector.CurrentState()
	l.tracker.UpdateInput(status.InputState{
		Screen:    screen,
		Lock:      lock,
		Baselined: l.detector.IsBaselined(),
		Counts:    l.detector.Counts(),
	})
	l.updateMQTT()
}

func (l *loop) updateMQTT() {
	m := status.MQTTState{}
	if l.mqttStatus != nil {
		m.Connected = l.mqttStatus.IsConnected()
	}
	if l.stats != nil {
		s := l.stats()
		m.Connected = s.Connected
		m.Queued = s.Queued
		m.Dropped = s.Dropped
	}
	l.tracker.SetMQTT(m)
}

func (l *loop) updateUtilization() {
	l.tracker.UpdateUtilization(status.UtilizationState{
		Mobility:      l.estimator.DeviceMobilityState(),
		Ratios:        l.estimator.Ratios(),
		CounterResets: l.estimator.CounterResets(),
		Reports:       l.reporter.Sent(),
	})
}

func (l *loop) notify(state string) {
	if l.sdNotify != nil {
		l.sdNotify(state)
	}
}
