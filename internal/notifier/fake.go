package notifier

import (
	"time"
)

// FakeClock is a settable wall clock.
type FakeClock struct {
	Wall int64
}

// WallClockMillis returns the configured wall time.
func (c *FakeClock) WallClockMillis() int64 {
	return c.Wall
}

// Posted is one recorded Post call.
type Posted struct {
	ID           int
	Notification Notification
}

// FakeSink records posted and cancelled notifications.
type FakeSink struct {
	Posts   []Posted
	Cancels []int

	// PostError, if set, is returned by Post after recording.
	PostError error
}

// Post records the notification.
func (f *FakeSink) Post(id int, n Notification) error {
	f.Posts = append(f.Posts, Posted{ID: id, Notification: n})
	return f.PostError
}

// Cancel records the cancellation.
func (f *FakeSink) Cancel(id int) error {
	f.Cancels = append(f.Cancels, id)
	return nil
}

// PostsOf returns how many notifications of kind were posted.
func (f *FakeSink) PostsOf(kind NotificationKind) int {
	count := 0
	for _, p := range f.Posts {
		if p.Notification.Kind == kind {
			count++
		}
	}
	return count
}

// FakeStore records blacklist writes.
type FakeStore struct {
	Writes [][]string
	Forced []bool
}

// Persist records the write.
func (f *FakeStore) Persist(ssids []string, forceFlush bool) error {
	f.Writes = append(f.Writes, append([]string(nil), ssids...))
	f.Forced = append(f.Forced, forceFlush)
	return nil
}

// FakeControlPlane records connect requests.
type FakeControlPlane struct {
	Requests []ConnectRequest

	// ConnectError, if set, is returned by Connect.
	ConnectError error
}

// Connect records the request.
func (f *FakeControlPlane) Connect(req ConnectRequest) error {
	f.Requests = append(f.Requests, req)
	return f.ConnectError
}

// FakePicker counts picker requests.
type FakePicker struct {
	Opened int
}

// OpenNetworkPicker records the request.
func (f *FakePicker) OpenNetworkPicker() error {
	f.Opened++
	return nil
}

// FakeRestrictions reports a settable restriction.
type FakeRestrictions struct {
	Disallowed bool
}

// ConfigWifiDisallowed returns the configured value.
func (f *FakeRestrictions) ConfigWifiDisallowed() bool {
	return f.Disallowed
}

// Scheduled is one recorded After call.
type Scheduled struct {
	Delay time.Duration
	Event Event
}

// FakeScheduler records timers without firing them.
type FakeScheduler struct {
	Pending []Scheduled
}

// After records the timer.
func (f *FakeScheduler) After(d time.Duration, ev Event) {
	f.Pending = append(f.Pending, Scheduled{Delay: d, Event: ev})
}

// TakeAll returns and clears the recorded timers.
func (f *FakeScheduler) TakeAll() []Scheduled {
	out := f.Pending
	f.Pending = nil
	return out
}

// FakeRecommender returns a fixed result and records its inputs.
type FakeRecommender struct {
	Result *ScanResult

	Calls      int
	LastInput  []ScanResult
	Blacklists []map[string]struct{}
}

// Recommend records the call and returns Result.
func (f *FakeRecommender) Recommend(results []ScanResult, blacklist map[string]struct{}) *ScanResult {
	f.Calls++
	f.LastInput = results
	f.Blacklists = append(f.Blacklists, blacklist)
	if f.Result == nil {
		return nil
	}
	r := *f.Result
	return &r
}
