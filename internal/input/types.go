// Package input debounces the two hardware sense lines of the device: display
// power and the Wi-Fi configuration lock switch.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected through Sample.Time.
package input

import "time"

// Level is the debounced logical level of a line.
type Level string

const (
	LevelOn  Level = "ON"
	LevelOff Level = "OFF"
)

// EventType is a debounced transition of one line.
type EventType string

const (
	EventScreenOn  EventType = "SCREEN_ON"
	EventScreenOff EventType = "SCREEN_OFF"
	EventLockOn    EventType = "LOCK_ON"
	EventLockOff   EventType = "LOCK_OFF"
)

// Event is a transition along with the stable levels of both lines after it.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Screen    Level
	Lock      Level
}

// ScreenEvent reports whether the event concerns the display line.
func (e Event) ScreenEvent() bool {
	return e.Type == EventScreenOn || e.Type == EventScreenOff
}

// Sample is one reading of both lines, already in logical form.
type Sample struct {
	ScreenOn bool
	Locked   bool
	Time     time.Time
}

// Counts tracks the number of each event type since startup.
type Counts struct {
	ScreenOn  int
	ScreenOff int
	LockOn    int
	LockOff   int
}

// Heartbeat is the periodic liveness summary.
type Heartbeat struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
