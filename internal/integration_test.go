package internal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/wifi-sensor/internal/clock"
	"github.com/sweeney/wifi-sensor/internal/gpio"
	"github.com/sweeney/wifi-sensor/internal/input"
	"github.com/sweeney/wifi-sensor/internal/mqtt"
	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/store"
	"github.com/sweeney/wifi-sensor/internal/utilization"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const pollInterval = 100 * time.Millisecond

// device wires the engines the way the daemon does, over fakes.
type device struct {
	topics    mqtt.Topics
	reader    *gpio.FakeReader
	publisher *mqtt.FakePublisher
	detector  *input.Detector
	notifier  *notifier.Notifier
	clock     *clock.Fake
	polls     int
}

func newDevice(t *testing.T, samples []gpio.Sample, bl notifier.BlacklistStore, blacklist []string) *device {
	t.Helper()
	d := &device{
		topics:    mqtt.NewTopics(""),
		reader:    gpio.NewFakeReader(samples),
		publisher: mqtt.NewFakePublisher(),
		detector:  input.NewDetector(250*time.Millisecond, startTime),
		clock:     clock.NewFake(),
	}
	d.notifier = notifier.New(notifier.Deps{
		Clock:        d.clock,
		Sink:         d.publisher,
		Store:        bl,
		Control:      d.publisher,
		Picker:       d.publisher,
		Restrictions: d.detector,
		Log:          zerolog.Nop(),
	}, notifier.DefaultSettings(), blacklist)
	return d
}

// poll simulates n iterations of the main loop's GPIO branch.
func (d *device) poll(t *testing.T, n int) []input.Event {
	t.Helper()
	var all []input.Event
	for range n {
		screen, locked, err := d.reader.Read()
		if err != nil {
			t.Fatalf("poll %d: gpio read error: %v", d.polls, err)
		}
		now := startTime.Add(time.Duration(d.polls) * pollInterval)
		d.polls++

		wasBaselined := d.detector.IsBaselined()
		events := d.detector.Process(input.Sample{ScreenOn: screen, Locked: locked, Time: now})
		if !wasBaselined && d.detector.IsBaselined() {
			d.notifier.HandleScreenStateChanged(d.detector.ScreenOn())
		}
		for _, e := range events {
			switch e.Type {
			case input.EventScreenOn, input.EventScreenOff:
				d.notifier.HandleScreenStateChanged(e.Type == input.EventScreenOn)
			case input.EventLockOn:
				d.notifier.ClearPendingNotification(true)
			}
		}
		all = append(all, events...)
	}
	return all
}

// deliver decodes a raw MQTT message and routes it like the run loop.
func (d *device) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	in, err := d.topics.Decode(topic, []byte(payload))
	if err != nil {
		t.Fatalf("decode %s: %v", topic, err)
	}
	switch m := in.(type) {
	case mqtt.ScanMsg:
		d.notifier.HandleScanResults(m.Results)
	case mqtt.ActionMsg:
		d.notifier.HandleUserAction(m.Action)
	case mqtt.WifiStateMsg:
		if m.State == mqtt.WifiConnected {
			d.notifier.HandleWifiConnected()
		}
	case mqtt.ConnectReplyMsg:
		d.notifier.HandleConnectReply(m.Reply)
	default:
		t.Fatalf("unexpected message %T", in)
	}
}

func samples(s gpio.Sample, n int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

const openScan = `{"results":[
	{"ssid":"home","bssid":"00:11","capabilities":"[WPA2-PSK-CCMP][ESS]","level":-30,"frequency":5180},
	{"ssid":"cafe","bssid":"aa:bb","capabilities":"[ESS]","level":-55,"frequency":2437}
]}`

// TestIntegrationRecommendAndConnect drives a full connect flow from raw
// MQTT payloads to published notifications.
func TestIntegrationRecommendAndConnect(t *testing.T) {
	d := newDevice(t, samples(gpio.Sample{ScreenOn: true}, 4), &notifier.FakeStore{}, nil)
	if ev := d.poll(t, 4); len(ev) != 0 {
		t.Fatalf("expected no events at baseline, got %v", ev)
	}

	d.deliver(t, d.topics.Scan(), openScan)
	d.deliver(t, d.topics.Action(), `{"action":"CONNECT_TO_NETWORK"}`)
	d.deliver(t, d.topics.WifiState(), `{"state":"CONNECTED","ssid":"cafe"}`)

	pub := d.publisher
	if len(pub.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(pub.Posts))
	}
	if len(pub.Connects) != 1 || pub.Connects[0].Network.SSID != "cafe" {
		t.Fatalf("connect requests: got %+v", pub.Connects)
	}

	payload, err := mqtt.FormatNotificationPayload(pub.Posts[0].ID, pub.Posts[0].Notification)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	var parsed mqtt.NotificationPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Notification.Kind != "RECOMMENDATION" || parsed.Notification.SSID != "cafe" {
		t.Errorf("recommendation payload: got %+v", parsed.Notification)
	}
	if parsed.Notification.DismissAction != string(notifier.ActionDismiss) {
		t.Errorf("dismiss action: got %q", parsed.Notification.DismissAction)
	}

	req, err := mqtt.FormatConnectPayload(pub.Connects[0])
	if err != nil {
		t.Fatalf("format connect: %v", err)
	}
	want := `{"connect":{"request_id":1,"ssid":"cafe","bssid":"aa:bb","frequency":2437}}`
	if string(req) != want {
		t.Errorf("connect payload:\ngot:  %s\nwant: %s", req, want)
	}

	d.deliver(t, d.topics.ConnectReply(), `{"request_id":1,"success":false,"reason":"late"}`)
	if last, _ := pub.LastPost(); last.Notification.Kind != notifier.KindConnected {
		t.Errorf("a reply after connecting must be ignored, last post %s", last.Notification.Kind)
	}
}

// TestIntegrationLockSuppresses verifies the lock switch takes down the
// notification and blocks new ones.
func TestIntegrationLockSuppresses(t *testing.T) {
	script := append(samples(gpio.Sample{ScreenOn: true}, 4), samples(gpio.Sample{ScreenOn: true, Locked: true}, 4)...)
	d := newDevice(t, script, &notifier.FakeStore{}, nil)
	d.poll(t, 4)
	d.deliver(t, d.topics.Scan(), openScan)

	events := d.poll(t, 4)
	if len(events) != 1 || events[0].Type != input.EventLockOn {
		t.Fatalf("expected LOCK_ON, got %v", events)
	}
	d.deliver(t, d.topics.Scan(), openScan)

	if len(d.publisher.Posts) != 1 || len(d.publisher.Cancels) != 1 {
		t.Errorf("posts=%d cancels=%d, want 1 and 1", len(d.publisher.Posts), len(d.publisher.Cancels))
	}
}

// TestIntegrationBlacklistSurvivesRestart dismisses a network, flushes the
// file store and checks a fresh notifier seeded from it skips the network.
func TestIntegrationBlacklistSurvivesRestart(t *testing.T) {
	cfg := store.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "blacklist.json")}
	ctx := context.Background()

	st, err := store.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := newDevice(t, samples(gpio.Sample{ScreenOn: true}, 4), st, nil)
	d.poll(t, 4)
	d.deliver(t, d.topics.Scan(), openScan)
	d.deliver(t, d.topics.Action(), `{"action":"USER_DISMISSED_NOTIFICATION"}`)
	if !st.Dirty() {
		t.Fatal("dismiss should leave a pending write")
	}
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = store.Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	blacklist, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(blacklist) != 1 || blacklist[0] != "cafe" {
		t.Fatalf("blacklist: got %v", blacklist)
	}

	d = newDevice(t, samples(gpio.Sample{ScreenOn: true}, 4), st, blacklist)
	d.poll(t, 4)
	d.deliver(t, d.topics.Scan(), openScan)
	if len(d.publisher.Posts) != 0 {
		t.Errorf("blacklisted network recommended after restart: %+v", d.publisher.Posts)
	}
}

// TestIntegrationUtilizationReport decodes counters, estimates and formats
// the report.
func TestIntegrationUtilizationReport(t *testing.T) {
	topics := mqtt.NewTopics("")
	clk := clock.NewFake()
	est := utilization.NewEstimator(clk)
	pub := mqtt.NewFakePublisher()
	reporter := mqtt.NewReporter(pub, time.Minute)

	feed := func(payload string) {
		t.Helper()
		in, err := topics.Decode(topics.LinkStats(), []byte(payload))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		stats := in.(mqtt.LinkStatsMsg).Stats
		est.Refresh(&stats)
	}
	report := func(at time.Time) bool {
		sent, err := reporter.Report(mqtt.UtilizationReport{
			Timestamp: at,
			Mobility:  est.DeviceMobilityState(),
			Ratios:    est.Ratios(),
		})
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		return sent
	}

	clk.Advance(1000)
	feed(`{"channels":[{"frequency":2412,"radio_on_time_ms":1000,"cca_busy_time_ms":250}]}`)
	if !report(startTime) {
		t.Fatal("first report should be sent")
	}

	clk.Advance(1000)
	feed(`{"channels":[{"frequency":2412,"radio_on_time_ms":2000,"cca_busy_time_ms":1500}]}`)
	if report(startTime.Add(time.Second)) {
		t.Error("report inside the interval should be throttled")
	}
	if !report(startTime.Add(time.Minute)) {
		t.Error("report after the interval should be sent")
	}

	if len(pub.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(pub.Reports))
	}
	payload, err := mqtt.FormatUtilizationPayload(pub.Reports[1])
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := `{"utilization":{"timestamp":"2026-01-01T12:01:00Z","mobility":"UNKNOWN","counter_resets":0,"channels":[{"frequency":2412,"ratio":191}]}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot:  %s\nwant: %s", payload, want)
	}
}
