package utilization

import (
	"github.com/sweeney/wifi-sensor/internal/ring"
)

// channelHistory is the cached sample window for one frequency.
type channelHistory struct {
	cache *ring.Buffer[ChannelStats]
	// Boot time of the last cache append (or Init).
	lastUpdateMs int64
	// Mobility state in effect at the last cache append.
	lastMobility MobilityState
}

// Estimator tracks channel utilization ratios per frequency.
// Not safe for concurrent use: all calls must come from one goroutine.
type Estimator struct {
	clock         Clock
	histories     map[int]*channelHistory
	ratios        map[int]int
	mobility      MobilityState
	initTimeMs    int64
	counterResets int
}

// NewEstimator creates an Estimator reading time from clock. It starts out
// initialized with no reference samples.
func NewEstimator(clock Clock) *Estimator {
	e := &Estimator{clock: clock}
	e.Init(nil)
	return e
}

// Init resets all caches and ratios. If last is non-nil its samples become
// the first cached reference for their frequencies. No ratio is computed.
func (e *Estimator) Init(last *LinkLayerStats) {
	e.histories = make(map[int]*channelHistory)
	e.ratios = make(map[int]int)
	e.mobility = MobilityUnknown
	e.initTimeMs = e.clock.ElapsedSinceBootMillis()

	if last == nil {
		return
	}
	for freq, cs := range last.Channels {
		h := e.history(freq)
		h.cache.Push(cs)
	}
}

// Refresh folds a new batch of samples into the estimate. A nil or empty
// batch is a no-op.
func (e *Estimator) Refresh(current *LinkLayerStats) {
	if current == nil || len(current.Channels) == 0 {
		return
	}
	now := e.clock.ElapsedSinceBootMillis()

	for freq, cs := range current.Channels {
		h := e.history(freq)

		if newest, ok := h.cache.Newest(); ok && cs.RadioOnTimeMs < newest.RadioOnTimeMs {
			// Radio counters restarted: older samples are no longer comparable.
			e.counterResets++
			h.cache.Reset()
			e.computeRatio(freq, h, cs)
			e.store(h, cs, now)
			continue
		}

		e.computeRatio(freq, h, cs)
		if e.shouldUpdateCache(h, now) {
			e.store(h, cs, now)
		}
	}
}

// computeRatio updates the ratio for freq against the best cached reference.
// The ratio is left untouched when no reference gives a long enough window.
func (e *Estimator) computeRatio(freq int, h *channelHistory, cs ChannelStats) {
	ref := findReference(h, cs)
	onDiff := cs.RadioOnTimeMs - ref.RadioOnTimeMs
	if onDiff < RadioOnTimeDiffMinMs {
		return
	}
	busyDiff := cs.CcaBusyTimeMs - ref.CcaBusyTimeMs
	e.ratios[freq] = ratio(busyDiff, onDiff)
}

// findReference walks the cache newest to oldest and returns the first sample
// leaving at least RadioOnTimeDiffMinMs of on-time. Falls back to the counter
// origin when none qualifies.
func findReference(h *channelHistory, cs ChannelStats) ChannelStats {
	for i := h.cache.Len() - 1; i >= 0; i-- {
		ref := h.cache.At(i)
		if cs.RadioOnTimeMs-ref.RadioOnTimeMs >= RadioOnTimeDiffMinMs {
			return ref
		}
	}
	return ChannelStats{Frequency: cs.Frequency}
}

// shouldUpdateCache applies the per-frequency append throttle. While the
// device stays stationary the pre-stationary sample is kept as reference.
func (e *Estimator) shouldUpdateCache(h *channelHistory, now int64) bool {
	if now-h.lastUpdateMs < CacheUpdateIntervalMinMs {
		return false
	}
	if e.mobility == MobilityStationary && h.lastMobility == MobilityStationary {
		return false
	}
	return true
}

func (e *Estimator) store(h *channelHistory, cs ChannelStats, now int64) {
	h.cache.Push(cs)
	h.lastUpdateMs = now
	h.lastMobility = e.mobility
}

func (e *Estimator) history(freq int) *channelHistory {
	h, ok := e.histories[freq]
	if !ok {
		h = &channelHistory{
			cache:        ring.New[ChannelStats](ChannelStatsCacheSize),
			lastUpdateMs: e.initTimeMs,
			lastMobility: MobilityUnknown,
		}
		e.histories[freq] = h
	}
	return h
}

func ratio(busyDiff, onDiff int64) int {
	r := busyDiff * MaxChannelUtilization / onDiff
	if r < 0 {
		return 0
	}
	if r > MaxChannelUtilization {
		return MaxChannelUtilization
	}
	return int(r)
}

// UtilizationRatio returns the last computed ratio for freq, or
// InvalidUtilization if none exists.
func (e *Estimator) UtilizationRatio(freq int) int {
	if r, ok := e.ratios[freq]; ok {
		return r
	}
	return InvalidUtilization
}

// SetUtilizationRatio overwrites the stored ratio for freq without touching
// the cache.
func (e *Estimator) SetUtilizationRatio(freq, value int) {
	e.ratios[freq] = value
}

// SetDeviceMobilityState records the current mobility classification.
func (e *Estimator) SetDeviceMobilityState(state MobilityState) {
	e.mobility = state
}

// DeviceMobilityState returns the current mobility classification.
func (e *Estimator) DeviceMobilityState() MobilityState {
	return e.mobility
}

// Ratios returns a copy of all valid ratios keyed by frequency.
func (e *Estimator) Ratios() map[int]int {
	out := make(map[int]int, len(e.ratios))
	for f, r := range e.ratios {
		out[f] = r
	}
	return out
}

// CacheLen returns the number of cached samples for freq.
func (e *Estimator) CacheLen(freq int) int {
	if h, ok := e.histories[freq]; ok {
		return h.cache.Len()
	}
	return 0
}

// CounterResets returns how many counter resets were detected since creation.
func (e *Estimator) CounterResets() int {
	return e.counterResets
}
