package mqtt

import (
	"maps"
	"time"

	"golang.org/x/time/rate"
)

// UtilizationPublisher is the subset of Publisher the Reporter needs.
type UtilizationPublisher interface {
	PublishUtilization(report UtilizationReport) error
}

// Reporter throttles utilization reports to one per interval. A report whose
// ratios are unchanged from the last one sent is skipped.
type Reporter struct {
	pub     UtilizationPublisher
	limiter *rate.Limiter
	last    map[int]int
	sent    int
}

// NewReporter creates a reporter. An interval <= 0 disables throttling.
func NewReporter(pub UtilizationPublisher, interval time.Duration) *Reporter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Reporter{pub: pub, limiter: rate.NewLimiter(limit, 1)}
}

// Report publishes r if the interval has elapsed and the ratios changed.
// It reports whether r was sent.
func (r *Reporter) Report(report UtilizationReport) (bool, error) {
	if r.last != nil && maps.Equal(r.last, report.Ratios) {
		return false, nil
	}
	if !r.limiter.AllowN(report.Timestamp, 1) {
		return false, nil
	}
	if err := r.pub.PublishUtilization(report); err != nil {
		return false, err
	}
	r.last = maps.Clone(report.Ratios)
	r.sent++
	return true, nil
}

// Sent returns the number of reports published.
func (r *Reporter) Sent() int {
	return r.sent
}
