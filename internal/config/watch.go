package config

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	defaultDebounce    = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watcher reloads the config file when it changes and delivers each new
// valid configuration on Updates. Invalid or unchanged files are skipped.
type Watcher struct {
	path     string
	log      zerolog.Logger
	debounce time.Duration

	mu       sync.Mutex
	lastHash uint64
	timer    *time.Timer

	updates chan *Config
}

// NewWatcher watches path. current is the configuration already in effect.
func NewWatcher(path string, current *Config, log zerolog.Logger) *Watcher {
	w := &Watcher{
		path:     path,
		log:      log,
		debounce: defaultDebounce,
		updates:  make(chan *Config, 1),
	}
	if current != nil {
		w.lastHash = current.Hash()
	}
	return w
}

// Updates delivers reloaded configurations. Only the latest pending one is
// kept when the reader falls behind.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Run watches the file's directory until ctx is done. Editors that replace
// the file by rename are handled because the directory, not the file, is
// watched. A broken fsnotify watcher is recreated with jittered backoff.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	defer w.stopTimer()
	for ctx.Err() == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn().Err(err).Str("dir", dir).Msg("config watch init failed")
			if !wait() {
				return nil
			}
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			w.log.Warn().Err(err).Str("dir", dir).Msg("config watch add failed")
			if !wait() {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		w.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")
		w.loop(ctx, fw, file)
		fw.Close()

		if ctx.Err() != nil {
			return nil
		}
		w.log.Warn().Str("dir", dir).Msg("config watcher stopped; restarting")
		if !wait() {
			return nil
		}
	}
	return nil
}

// loop runs until ctx is done or the watcher breaks.
func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, file string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn().Err(err).Msg("config watch overflow; forcing reload")
				w.schedule()
				continue
			}
			w.log.Warn().Err(err).Msg("config watch error")
			if strings.Contains(strings.ToLower(err.Error()), "closed") {
				return
			}
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// reload parses the file and publishes it if valid and changed.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}

	h := cfg.Hash()
	w.mu.Lock()
	unchanged := h != 0 && h == w.lastHash
	if !unchanged {
		w.lastHash = h
	}
	w.mu.Unlock()
	if unchanged {
		w.log.Debug().Str("path", w.path).Msg("config unchanged; skipping")
		return
	}

	w.publish(cfg)
	w.log.Info().Str("path", w.path).Msg("config reloaded")
}

// publish replaces any undelivered config with cfg.
func (w *Watcher) publish(cfg *Config) {
	select {
	case w.updates <- cfg:
		return
	default:
	}
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	default:
	}
}
