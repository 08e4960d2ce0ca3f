package utilization

import (
	"testing"

	"github.com/sweeney/wifi-sensor/internal/clock"
)

const testFreq = 5180

func newTestEstimator(t *testing.T) (*Estimator, *clock.Fake) {
	t.Helper()
	c := clock.NewFake()
	return NewEstimator(c), c
}

// stats builds a single-frequency batch.
func stats(on, busy int64) *LinkLayerStats {
	return &LinkLayerStats{Channels: map[int]ChannelStats{
		testFreq: {Frequency: testFreq, RadioOnTimeMs: on, CcaBusyTimeMs: busy},
	}}
}

// refreshAt sets the boot clock and refreshes.
func refreshAt(e *Estimator, c *clock.Fake, boot int64, s *LinkLayerStats) {
	c.Boot = boot
	e.Refresh(s)
}

func expectRatio(t *testing.T, e *Estimator, want int) {
	t.Helper()
	if got := e.UtilizationRatio(testFreq); got != want {
		t.Errorf("UtilizationRatio(%d): got %d, want %d", testFreq, got, want)
	}
}

func TestNilLinkLayerStats(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.Refresh(nil)
	expectRatio(t, e, InvalidUtilization)
}

func TestEmptyChannelMap(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.Refresh(&LinkLayerStats{})
	expectRatio(t, e, InvalidUtilization)
}

func TestEmptyBatchKeepsOtherRatios(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.Refresh(stats(RadioOnTimeDiffMinMs+1, 20))
	before := e.UtilizationRatio(testFreq)

	e.Refresh(&LinkLayerStats{Channels: map[int]ChannelStats{}})
	expectRatio(t, e, before)
}

func TestUnseenFrequencyIsInvalid(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.Refresh(stats(RadioOnTimeDiffMinMs*4, 100))
	if got := e.UtilizationRatio(2412); got != InvalidUtilization {
		t.Errorf("unseen frequency: got %d, want %d", got, InvalidUtilization)
	}
}

func TestOneReadShortRadioOnTime(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.Refresh(stats(RadioOnTimeDiffMinMs/2, 2))
	expectRatio(t, e, InvalidUtilization)
}

func TestOneReadLongRadioOnTime(t *testing.T) {
	e, _ := newTestEstimator(t)
	on, busy := int64(RadioOnTimeDiffMinMs+1), int64(20)
	e.Refresh(stats(on, busy))
	expectRatio(t, e, int(busy*MaxChannelUtilization/on))
}

func TestOneReadDoubleWindow(t *testing.T) {
	e, _ := newTestEstimator(t)
	on := int64(2*RadioOnTimeDiffMinMs + 1)
	e.Refresh(stats(on, 20))
	expectRatio(t, e, int(20*MaxChannelUtilization/on))
}

func TestTwoReadsReferenceLast(t *testing.T) {
	e, c := newTestEstimator(t)
	on1, busy1 := int64(RadioOnTimeDiffMinMs), int64(20)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs, stats(on1, busy1))

	on2, busy2 := int64(RadioOnTimeDiffMinMs*2+1), int64(30)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs*2, stats(on2, busy2))

	expectRatio(t, e, int((busy2-busy1)*MaxChannelUtilization/(on2-on1)))
}

func TestTwoReadsReferenceZero(t *testing.T) {
	e, c := newTestEstimator(t)
	refreshAt(e, c, CacheUpdateIntervalMinMs/2, stats(RadioOnTimeDiffMinMs+1, 20))

	// First sample was too recent to be cached, so the origin is the reference.
	on2, busy2 := int64(RadioOnTimeDiffMinMs*2+2), int64(30)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs, stats(on2, busy2))

	expectRatio(t, e, int(busy2*MaxChannelUtilization/on2))
}

func TestThreeReadsReferenceSecondLast(t *testing.T) {
	e, c := newTestEstimator(t)
	on1, busy1 := int64(RadioOnTimeDiffMinMs/2), int64(20)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs, stats(on1, busy1))

	refreshAt(e, c, 2+CacheUpdateIntervalMinMs*2, stats(RadioOnTimeDiffMinMs+4, 30))

	on3, busy3 := int64(RadioOnTimeDiffMinMs*3/2+4), int64(70)
	refreshAt(e, c, 3+CacheUpdateIntervalMinMs*3, stats(on3, busy3))

	if ChannelStatsCacheSize > 1 {
		expectRatio(t, e, int((busy3-busy1)*MaxChannelUtilization/(on3-on1)))
	} else {
		expectRatio(t, e, int(busy3*MaxChannelUtilization/on3))
	}
}

func TestThreeReadsReferenceLast(t *testing.T) {
	e, c := newTestEstimator(t)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs, stats(RadioOnTimeDiffMinMs/4, 20))

	on2, busy2 := int64(RadioOnTimeDiffMinMs/2), int64(30)
	refreshAt(e, c, 2+CacheUpdateIntervalMinMs*2, stats(on2, busy2))
	expectRatio(t, e, InvalidUtilization)

	on3, busy3 := int64(RadioOnTimeDiffMinMs*3), int64(70)
	refreshAt(e, c, 3+CacheUpdateIntervalMinMs*3, stats(on3, busy3))

	expectRatio(t, e, int((busy3-busy2)*MaxChannelUtilization/(on3-on2)))
}

func TestThreeReadsFirstTwoTooRecent(t *testing.T) {
	e, c := newTestEstimator(t)
	s1 := stats(RadioOnTimeDiffMinMs/4, 20)
	refreshAt(e, c, CacheUpdateIntervalMinMs/4, s1)
	refreshAt(e, c, CacheUpdateIntervalMinMs/2, s1)

	if n := e.CacheLen(testFreq); n != 0 {
		t.Fatalf("expected no cached samples before interval, got %d", n)
	}

	on3, busy3 := int64(RadioOnTimeDiffMinMs*3), int64(70)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(on3, busy3))

	expectRatio(t, e, int(busy3*MaxChannelUtilization/on3))
	if n := e.CacheLen(testFreq); n != 1 {
		t.Errorf("expected one cached sample after interval, got %d", n)
	}
}

func TestThreeReadsInitAfterOneRead(t *testing.T) {
	e, c := newTestEstimator(t)
	s1 := stats(RadioOnTimeDiffMinMs/4, 20)
	refreshAt(e, c, CacheUpdateIntervalMinMs+1, s1)

	e.Init(s1)

	on2, busy2 := int64(RadioOnTimeDiffMinMs/2+1), int64(40)
	refreshAt(e, c, CacheUpdateIntervalMinMs*2+1, stats(on2, busy2))
	expectRatio(t, e, InvalidUtilization)

	// Clock moves backwards; the second sample is still the newest reference.
	on3, busy3 := int64(RadioOnTimeDiffMinMs*3+1), int64(70)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(on3, busy3))

	expectRatio(t, e, int((busy3-busy2)*MaxChannelUtilization/(on3-on2)))
}

func TestInitNilThenOneShortSampleIsInvalid(t *testing.T) {
	e, c := newTestEstimator(t)
	e.SetUtilizationRatio(testFreq, 100)

	e.Init(nil)
	refreshAt(e, c, 10, stats(RadioOnTimeDiffMinMs-1, 5))

	expectRatio(t, e, InvalidUtilization)
}

func TestThreeReadsAlwaysStationary(t *testing.T) {
	e, c := newTestEstimator(t)
	e.SetDeviceMobilityState(MobilityStationary)

	s1 := stats(RadioOnTimeDiffMinMs/4, 20)
	e.Refresh(s1)
	e.Refresh(s1)

	on3, busy3 := int64(RadioOnTimeDiffMinMs*2), int64(70)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(on3, busy3))

	expectRatio(t, e, int(busy3*MaxChannelUtilization/on3))
}

func TestThreeReadsStationaryAfterFirstRead(t *testing.T) {
	e, c := newTestEstimator(t)
	refreshAt(e, c, 0, &LinkLayerStats{Channels: map[int]ChannelStats{testFreq: {}}})

	e.SetDeviceMobilityState(MobilityStationary)

	on2, busy2 := int64(RadioOnTimeDiffMinMs/4), int64(20)
	refreshAt(e, c, 1+CacheUpdateIntervalMinMs, stats(on2, busy2))

	on3, busy3 := int64(RadioOnTimeDiffMinMs*2), int64(70)
	refreshAt(e, c, 5+CacheUpdateIntervalMinMs, stats(on3, busy3))

	expectRatio(t, e, int((busy3-busy2)*MaxChannelUtilization/(on3-on2)))
}

func TestStationaryKeepsPreStationaryReference(t *testing.T) {
	e, c := newTestEstimator(t)
	on1, busy1 := int64(1000), int64(100)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(on1, busy1))

	e.SetDeviceMobilityState(MobilityStationary)
	// First stationary append is allowed; later ones are suppressed.
	refreshAt(e, c, CacheUpdateIntervalMinMs*2, stats(on1+100, busy1+10))
	refreshAt(e, c, CacheUpdateIntervalMinMs*3, stats(on1+150, busy1+15))
	refreshAt(e, c, CacheUpdateIntervalMinMs*4, stats(on1+200, busy1+20))

	if n := e.CacheLen(testFreq); n != 2 {
		t.Fatalf("expected 2 cached samples while stationary, got %d", n)
	}

	on, busy := on1+1000, busy1+500
	refreshAt(e, c, CacheUpdateIntervalMinMs*4+1, stats(on, busy))
	// Newest cached entry (on1+100) leaves a long enough window.
	expectRatio(t, e, int((busy-(busy1+10))*MaxChannelUtilization/(on-(on1+100))))
}

func TestLeavingStationaryResumesCaching(t *testing.T) {
	e, c := newTestEstimator(t)
	e.SetDeviceMobilityState(MobilityStationary)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(1000, 100))
	refreshAt(e, c, CacheUpdateIntervalMinMs*2, stats(2000, 200))
	if n := e.CacheLen(testFreq); n != 1 {
		t.Fatalf("expected 1 cached sample, got %d", n)
	}

	e.SetDeviceMobilityState(MobilityLowMvmt)
	refreshAt(e, c, CacheUpdateIntervalMinMs*3, stats(3000, 300))
	if n := e.CacheLen(testFreq); n != 2 {
		t.Errorf("expected caching to resume after leaving stationary, got %d", n)
	}
}

func TestCounterResetClearsCache(t *testing.T) {
	e, c := newTestEstimator(t)
	for i := int64(1); i <= 3; i++ {
		refreshAt(e, c, i*CacheUpdateIntervalMinMs, stats(i*10000, i*1000))
	}
	if n := e.CacheLen(testFreq); n != 3 {
		t.Fatalf("expected 3 cached samples, got %d", n)
	}

	// Counters restart below the newest cached value.
	on, busy := int64(RadioOnTimeDiffMinMs*2), int64(100)
	refreshAt(e, c, 3*CacheUpdateIntervalMinMs+10, stats(on, busy))

	if n := e.CacheLen(testFreq); n != 1 {
		t.Errorf("expected cache reset to a single sample, got %d", n)
	}
	if e.CounterResets() != 1 {
		t.Errorf("expected 1 counter reset, got %d", e.CounterResets())
	}
	expectRatio(t, e, int(busy*MaxChannelUtilization/on))
}

func TestShortWindowKeepsPreviousRatio(t *testing.T) {
	e, c := newTestEstimator(t)
	e.SetUtilizationRatio(testFreq, 42)

	// Neither the cache nor the counter origin leaves a long enough window.
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(RadioOnTimeDiffMinMs-1, 200))
	expectRatio(t, e, 42)
}

func TestOriginFallbackWhenCacheWindowTooShort(t *testing.T) {
	e, c := newTestEstimator(t)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(10000, 5000))

	// The cached sample is too close, so the counter origin is used.
	on, busy := int64(10000+RadioOnTimeDiffMinMs-1), int64(5000)
	refreshAt(e, c, CacheUpdateIntervalMinMs+1, stats(on, busy))
	expectRatio(t, e, int(busy*MaxChannelUtilization/on))
}

func TestCacheUpdateThrottle(t *testing.T) {
	e, c := newTestEstimator(t)
	refreshAt(e, c, CacheUpdateIntervalMinMs, stats(1000, 10))
	for i := int64(1); i < 10; i++ {
		refreshAt(e, c, CacheUpdateIntervalMinMs+i*1000, stats(1000+i*1000, 10+i*100))
	}
	if n := e.CacheLen(testFreq); n != 1 {
		t.Errorf("expected 1 cached sample inside one interval, got %d", n)
	}

	refreshAt(e, c, 2*CacheUpdateIntervalMinMs, stats(20000, 2000))
	if n := e.CacheLen(testFreq); n != 2 {
		t.Errorf("expected 2 cached samples after interval, got %d", n)
	}
}

func TestCacheCapacity(t *testing.T) {
	e, c := newTestEstimator(t)
	for i := int64(1); i <= ChannelStatsCacheSize+3; i++ {
		refreshAt(e, c, i*CacheUpdateIntervalMinMs, stats(i*1000, i*10))
	}
	if n := e.CacheLen(testFreq); n != ChannelStatsCacheSize {
		t.Errorf("expected cache capped at %d, got %d", ChannelStatsCacheSize, n)
	}
}

func TestRatioClamp(t *testing.T) {
	tests := []struct {
		name     string
		busyDiff int64
		onDiff   int64
		want     int
	}{
		{"negative busy", -50, 1000, 0},
		{"zero busy", 0, 1000, 0},
		{"half busy", 500, 1000, 127},
		{"full busy", 1000, 1000, MaxChannelUtilization},
		{"busy exceeds on", 3000, 1000, MaxChannelUtilization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ratio(tt.busyDiff, tt.onDiff); got != tt.want {
				t.Errorf("ratio(%d, %d): got %d, want %d", tt.busyDiff, tt.onDiff, got, tt.want)
			}
		})
	}
}

func TestMultipleFrequenciesIndependent(t *testing.T) {
	e, c := newTestEstimator(t)
	c.Boot = 1
	e.Refresh(&LinkLayerStats{Channels: map[int]ChannelStats{
		2412: {Frequency: 2412, RadioOnTimeMs: 1000, CcaBusyTimeMs: 1000},
		5180: {Frequency: 5180, RadioOnTimeMs: 100, CcaBusyTimeMs: 10},
	}})

	if got := e.UtilizationRatio(2412); got != MaxChannelUtilization {
		t.Errorf("2412: got %d, want %d", got, MaxChannelUtilization)
	}
	if got := e.UtilizationRatio(5180); got != InvalidUtilization {
		t.Errorf("5180: got %d, want %d", got, InvalidUtilization)
	}

	ratios := e.Ratios()
	if len(ratios) != 1 {
		t.Errorf("expected 1 valid ratio, got %d", len(ratios))
	}
	ratios[2412] = 0
	if e.UtilizationRatio(2412) != MaxChannelUtilization {
		t.Error("Ratios must return a copy")
	}
}

func TestSetGetUtilizationRatio(t *testing.T) {
	e, _ := newTestEstimator(t)
	e.SetUtilizationRatio(testFreq, 24)
	expectRatio(t, e, 24)
	if e.CacheLen(testFreq) != 0 {
		t.Error("SetUtilizationRatio must not touch the cache")
	}
}

func TestParseMobilityState(t *testing.T) {
	tests := []struct {
		in   string
		want MobilityState
	}{
		{"STATIONARY", MobilityStationary},
		{"LOW_MVMT", MobilityLowMvmt},
		{"HIGH_MVMT", MobilityHighMvmt},
		{"", MobilityUnknown},
		{"walking", MobilityUnknown},
	}
	for _, tt := range tests {
		if got := ParseMobilityState(tt.in); got != tt.want {
			t.Errorf("ParseMobilityState(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}
}
