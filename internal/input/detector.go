package input

import "time"

// line is the debounce state of a single sense line.
type line struct {
	on, off EventType

	stable       Level
	pending      Level
	pendingSince time.Time
	baselined    bool
}

// observe feeds one level into the line and returns the transition, if any.
// No transition is ever reported while establishing the baseline.
func (l *line) observe(level Level, now time.Time, debounce time.Duration) (EventType, bool) {
	if !l.baselined {
		if l.pending != level {
			l.pending = level
			l.pendingSince = now
			return "", false
		}
		if now.Sub(l.pendingSince) >= debounce {
			l.stable = level
			l.baselined = true
			l.pending = ""
		}
		return "", false
	}

	if level == l.stable {
		l.pending = ""
		return "", false
	}
	if l.pending != level {
		l.pending = level
		l.pendingSince = now
		return "", false
	}
	if now.Sub(l.pendingSince) < debounce {
		return "", false
	}

	l.stable = level
	l.pending = ""
	if level == LevelOn {
		return l.on, true
	}
	return l.off, true
}

// Detector turns raw samples into debounced screen and lock transitions.
type Detector struct {
	debounce  time.Duration
	screen    line
	lock      line
	baselined bool
	startTime time.Time
	counts    Counts
}

// NewDetector creates a detector with the given debounce duration. startTime
// anchors the heartbeat uptime.
func NewDetector(debounce time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounce:  debounce,
		screen:    line{on: EventScreenOn, off: EventScreenOff},
		lock:      line{on: EventLockOn, off: EventLockOff},
		startTime: startTime,
	}
}

// Process feeds a sample and returns the resulting events: screen first, then
// lock when both change together. Nothing is returned until both lines have
// a baseline.
func (d *Detector) Process(s Sample) []Event {
	screenType, screenChanged := d.screen.observe(levelOf(s.ScreenOn), s.Time, d.debounce)
	lockType, lockChanged := d.lock.observe(levelOf(s.Locked), s.Time, d.debounce)

	if !d.baselined {
		d.baselined = d.screen.baselined && d.lock.baselined
		return nil
	}

	var events []Event
	if screenChanged {
		events = append(events, d.event(screenType, s.Time))
	}
	if lockChanged {
		events = append(events, d.event(lockType, s.Time))
	}
	for _, e := range events {
		d.count(e.Type)
	}
	return events
}

func (d *Detector) event(t EventType, now time.Time) Event {
	return Event{Timestamp: now, Type: t, Screen: d.screen.stable, Lock: d.lock.stable}
}

func (d *Detector) count(t EventType) {
	switch t {
	case EventScreenOn:
		d.counts.ScreenOn++
	case EventScreenOff:
		d.counts.ScreenOff++
	case EventLockOn:
		d.counts.LockOn++
	case EventLockOff:
		d.counts.LockOff++
	}
}

func levelOf(on bool) Level {
	if on {
		return LevelOn
	}
	return LevelOff
}

// IsBaselined returns whether both lines have a stable baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the stable levels. Both are empty before baseline.
func (d *Detector) CurrentState() (screen, lock Level) {
	return d.screen.stable, d.lock.stable
}

// ScreenOn reports the debounced display state.
func (d *Detector) ScreenOn() bool {
	return d.screen.stable == LevelOn
}

// Locked reports the debounced lock switch state.
func (d *Detector) Locked() bool {
	return d.lock.stable == LevelOn
}

// ConfigWifiDisallowed reports whether the lock switch is engaged.
func (d *Detector) ConfigWifiDisallowed() bool {
	return d.Locked()
}

// Counts returns the event counts since startup.
func (d *Detector) Counts() Counts {
	return d.counts
}

// Summary returns the liveness summary at now. It does not need a baseline:
// counts stay zero until transitions are seen.
func (d *Detector) Summary(now time.Time) Heartbeat {
	return Heartbeat{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
