// Package utilization estimates per-channel busy ratios from cumulative
// radio link-layer counters.
// This package has NO external dependencies (no MQTT, OS, or time.Sleep).
// Time is always injectable via the Clock interface.
package utilization

const (
	// RadioOnTimeDiffMinMs is the minimum radio-on window needed for a
	// meaningful ratio.
	RadioOnTimeDiffMinMs = 250

	// ChannelStatsCacheSize is the number of past samples kept per frequency.
	ChannelStatsCacheSize = 5

	// CacheUpdateIntervalMinMs is the minimum time between two cache
	// appends for one frequency.
	CacheUpdateIntervalMinMs = 5 * 60 * 1000

	// MaxChannelUtilization is the ratio reported for a fully busy channel.
	MaxChannelUtilization = 255

	// InvalidUtilization is returned when no valid measurement window exists.
	InvalidUtilization = -1
)

// Clock supplies the boot-relative time in milliseconds.
type Clock interface {
	ElapsedSinceBootMillis() int64
}

// ChannelStats is one cumulative counter sample for a frequency.
type ChannelStats struct {
	Frequency     int   // MHz
	RadioOnTimeMs int64 // cumulative radio-on time
	CcaBusyTimeMs int64 // cumulative CCA busy time
}

// LinkLayerStats is one batch of samples keyed by frequency.
type LinkLayerStats struct {
	Channels map[int]ChannelStats
}

// MobilityState is the device motion classification reported by the radio agent.
type MobilityState string

const (
	MobilityUnknown    MobilityState = "UNKNOWN"
	MobilityHighMvmt   MobilityState = "HIGH_MVMT"
	MobilityLowMvmt    MobilityState = "LOW_MVMT"
	MobilityStationary MobilityState = "STATIONARY"
)

// ParseMobilityState maps a wire value to a MobilityState.
// Unrecognized values map to MobilityUnknown.
func ParseMobilityState(s string) MobilityState {
	switch m := MobilityState(s); m {
	case MobilityHighMvmt, MobilityLowMvmt, MobilityStationary:
		return m
	default:
		return MobilityUnknown
	}
}
