// Command wifi-sensor recommends open Wi-Fi networks, estimates channel
// utilization from radio counters and publishes both over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/wifi-sensor/internal/clock"
	"github.com/sweeney/wifi-sensor/internal/config"
	"github.com/sweeney/wifi-sensor/internal/gpio"
	"github.com/sweeney/wifi-sensor/internal/input"
	"github.com/sweeney/wifi-sensor/internal/logx"
	"github.com/sweeney/wifi-sensor/internal/mqtt"
	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/status"
	"github.com/sweeney/wifi-sensor/internal/store"
	"github.com/sweeney/wifi-sensor/internal/utilization"
	"github.com/sweeney/wifi-sensor/internal/web"
)

const defaultConfigPath = "/etc/wifi-sensor/config.yaml"

// overrides are command-line values that win over the config file.
type overrides struct {
	broker   string
	httpAddr string
	logLevel string
}

func (o overrides) apply(cfg *config.Config) {
	if o.broker != "" {
		cfg.MQTT.Broker = o.broker
	}
	if o.httpAddr != "" {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to YAML config file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	printState := flag.Bool("print-state", false, "Print current GPIO state and exit")

	flag.Parse()

	ov := overrides{broker: *broker, httpAddr: *httpAddr, logLevel: *logLevel}
	if err := run(*configPath, ov, *printState); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path. A missing file at the default location means
// "defaults only" and disables reloading.
func loadConfig(path string, ov overrides) (cfg *config.Config, watch bool, err error) {
	cfg, err = config.Load(path)
	switch {
	case err == nil:
		watch = true
	case errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath:
		cfg = config.Default()
	default:
		return nil, false, err
	}
	ov.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, watch, nil
}

func run(configPath string, ov overrides, printState bool) error {
	cfg, watch, err := loadConfig(configPath, ov)
	if err != nil {
		return err
	}

	log, err := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Warn().Err(err).Msg("logger config")
	}

	gpioCfg := gpio.Config{
		Chip:            cfg.GPIO.Chip,
		ScreenPin:       cfg.GPIO.ScreenPin,
		LockPin:         cfg.GPIO.LockPin,
		ScreenActiveLow: cfg.GPIO.ScreenActiveLow,
		LockActiveLow:   cfg.GPIO.LockActiveLow,
	}

	// Print state mode
	if printState {
		reader, err := gpio.NewRealReader(gpioCfg)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()
		screen, locked, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("SCREEN: %s, LOCK: %s\n", stateString(screen), stateString(locked))
		return nil
	}

	var reader gpio.Reader
	if cfg.GPIO.Enabled {
		r, err := gpio.NewRealReader(gpioCfg)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
	}

	blacklistStore, err := store.Open(store.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path}, logx.Component(log, "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := blacklistStore.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	blacklist, err := blacklistStore.Load(context.Background())
	switch {
	case errors.Is(err, store.ErrDisabled):
	case err != nil:
		log.Error().Err(err).Msg("load blacklist, starting empty")
	default:
		log.Info().Int("count", len(blacklist)).Msg("loaded blacklist")
	}

	publisher := mqtt.NewRealPublisher(mqtt.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		BufferSize:  cfg.MQTT.BufferSize,
	}, logx.Component(log, "mqtt"))
	defer publisher.Close()

	startTime := time.Now()
	tracker := status.NewTracker(startTime, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	done := make(chan struct{})
	defer close(done)
	sched := newTimerScheduler(done)

	detector := input.NewDetector(cfg.GPIO.Debounce.D(), startTime)
	n := notifier.New(notifier.Deps{
		Clock:        clock.Real{},
		Recommender:  notifier.StrongestRecommender{MinLevel: cfg.Notifier.MinRSSI},
		Sink:         publisher,
		Store:        blacklistStore,
		Control:      publisher,
		Picker:       publisher,
		Restrictions: detector,
		Scheduler:    sched,
		Log:          logx.Component(log, "notifier"),
	}, notifierSettings(cfg), blacklist)

	l := &loop{
		reader:     reader,
		publisher:  publisher,
		mqttStatus: publisher,
		stats:      publisher.Stats,
		inbound:    publisher.Inbound(),
		store:      blacklistStore,
		tracker:    tracker,
		log:        log,
		detector:   detector,
		notifier:   n,
		estimator:  utilization.NewEstimator(clock.Real{}),
		reporter:   mqtt.NewReporter(publisher, cfg.MQTT.UtilizationInterval.D()),
		events:     sched.Events(),
		cfg:        cfg,
		overrides:  ov.apply,
		now:        time.Now,
		sdNotify: func(state string) {
			if _, err := daemon.SdNotify(false, state); err != nil {
				log.Debug().Err(err).Msg("sd_notify")
			}
		},
	}

	// Publish startup event with full status snapshot
	l.publishStatus("STARTUP", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads <-chan *config.Config
	if watch {
		w := config.NewWatcher(configPath, cfg, logx.Component(log, "config"))
		reloads = w.Updates()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	var tick <-chan time.Time
	if reader != nil {
		ticker := time.NewTicker(cfg.GPIO.Poll.D())
		defer ticker.Stop()
		tick = ticker.C
	}

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hbTicker := time.NewTicker(cfg.Heartbeat.D())
		defer hbTicker.Stop()
		heartbeat = hbTicker.C
	}

	var flush <-chan time.Time
	if blacklistStore.Enabled() {
		flushTicker := time.NewTicker(cfg.Store.FlushInterval.D())
		defer flushTicker.Stop()
		flush = flushTicker.C
	}

	var watchdog <-chan time.Time
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		wd := time.NewTicker(interval / 2)
		defer wd.Stop()
		watchdog = wd.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Bool("gpio", reader != nil).
		Str("broker", cfg.MQTT.Broker).
		Str("store", cfg.Store.Driver).
		Dur("heartbeat", cfg.Heartbeat.D()).
		Msg("started")
	l.sdNotify(daemon.SdNotifyReady)

	return l.run(channels{tick: tick, heartbeat: heartbeat, flush: flush, watchdog: watchdog, reloads: reloads, sig: sigCh})
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:        cfg.GPIO.Poll.D().Milliseconds(),
		DebounceMs:    cfg.GPIO.Debounce.D().Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.D().Milliseconds(),
		RepeatDelayMs: cfg.Notifier.RepeatDelay.D().Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		TopicPrefix:   mqtt.NewTopics(cfg.MQTT.TopicPrefix).Prefix(),
		HTTPAddr:      cfg.HTTP.Addr,
		StoreDriver:   cfg.Store.Driver,
		GPIOEnabled:   cfg.GPIO.Enabled,
	}
}

func notifierSettings(cfg *config.Config) notifier.Settings {
	return notifier.Settings{
		Enabled:     cfg.Notifier.Enabled,
		RepeatDelay: cfg.Notifier.RepeatDelay.D(),
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
