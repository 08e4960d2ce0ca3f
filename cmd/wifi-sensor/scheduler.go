package main

import (
	"time"

	"github.com/sweeney/wifi-sensor/internal/notifier"
)

// timerScheduler delivers notifier timers back to the run loop. Deliveries
// after done is closed are dropped.
type timerScheduler struct {
	events chan notifier.Event
	done   <-chan struct{}
}

func newTimerScheduler(done <-chan struct{}) *timerScheduler {
	return &timerScheduler{events: make(chan notifier.Event, 4), done: done}
}

// After implements notifier.Scheduler.
func (s *timerScheduler) After(d time.Duration, ev notifier.Event) {
	time.AfterFunc(d, func() {
		select {
		case s.events <- ev:
		case <-s.done:
		}
	})
}

// Events is read by the run loop.
func (s *timerScheduler) Events() <-chan notifier.Event {
	return s.events
}
