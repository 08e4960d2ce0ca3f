package mqtt

import "github.com/sweeney/wifi-sensor/internal/notifier"

// Posted is one notification published through a FakePublisher.
type Posted struct {
	ID           int
	Notification notifier.Notification
}

// FakePublisher records everything published, for test assertions.
type FakePublisher struct {
	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Reports contains all utilization reports that were published.
	Reports []UtilizationReport

	// Posts and Cancels record the notification sink calls.
	Posts   []Posted
	Cancels []int

	// Connects records the connect requests.
	Connects []notifier.ConnectRequest

	// PickerOpens counts OpenNetworkPicker calls.
	PickerOpens int

	// PublishError, if set, is returned by every publish call.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// PublishUtilization records the report.
func (f *FakePublisher) PublishUtilization(report UtilizationReport) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Reports = append(f.Reports, report)
	return nil
}

// Post records the notification.
func (f *FakePublisher) Post(id int, n notifier.Notification) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Posts = append(f.Posts, Posted{ID: id, Notification: n})
	return nil
}

// Cancel records the cancellation.
func (f *FakePublisher) Cancel(id int) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Cancels = append(f.Cancels, id)
	return nil
}

// Connect records the request.
func (f *FakePublisher) Connect(req notifier.ConnectRequest) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Connects = append(f.Connects, req)
	return nil
}

// OpenNetworkPicker counts the call.
func (f *FakePublisher) OpenNetworkPicker() error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.PickerOpens++
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// LastPost returns the most recent notification, if any.
func (f *FakePublisher) LastPost() (Posted, bool) {
	if len(f.Posts) == 0 {
		return Posted{}, false
	}
	return f.Posts[len(f.Posts)-1], true
}

// Reset clears recorded calls.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
