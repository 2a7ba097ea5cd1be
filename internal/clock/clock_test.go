package clock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedNow(v int64) NowFunc {
	return func() int64 { return v }
}

// Scenario 1: steady state, no drift.
func TestUpdateSteadyStateNoDrift(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)

	c.Update(0, 1_000_000, true, true)
	require.True(t, c.hasReference)

	for k := int64(1); k <= 10; k++ {
		c.Update(k*33_333, 1_000_000+k*33_333, true, true)
	}

	require.Equal(t, int64(0), c.drift.get())
	require.Equal(t, int64(62_500), c.bufferingDur)
}

// Buffering saturates at bufferingTarget with enough samples.
func TestUpdateBufferingSaturates(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)

	c.Update(0, 1_000_000, true, true)
	for k := int64(1); k <= 200; k++ {
		c.Update(k*33_333, 1_000_000+k*33_333, true, true)
		require.GreaterOrEqual(t, c.bufferingDur, int64(0))
		require.LessOrEqual(t, c.bufferingDur, int64(bufferingTarget))
	}
	require.Equal(t, int64(bufferingTarget), c.bufferingDur)
}

// Scenario 2: discontinuity.
func TestUpdateDiscontinuityResets(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)

	c.Update(0, 1_000_000, true, true)
	c.Update(70*Freq, 1_000_100, true, true)

	require.True(t, c.hasReference)
	require.Equal(t, int64(70*Freq), c.ref.stream)
	require.Equal(t, InvalidTS, c.tsMax)
}

func TestUpdateDiscontinuityWarns(t *testing.T) {
	var warnings []string
	warner := warnFunc(func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	})

	c := New(RateDefault, fixedNow(0), warner)
	c.Update(0, 1_000_000, true, true)
	c.Update(70*Freq, 1_000_100, true, true)

	require.NotEmpty(t, warnings)
}

// P1: after Update(s, t, ...), last == (s, t).
func TestUpdateSetsLast(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)
	c.Update(10_000, 1_010_000, true, true)

	require.Equal(t, int64(10_000), c.last.stream)
	require.Equal(t, int64(1_010_000), c.last.system)
}

// P4: with default rate and zero drift, streamToSystem/systemToStream
// round-trip.
func TestRoundTripStreamSystemAtDefaultRate(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	for _, x := range []int64{0, 1000, 33_333, 999_999} {
		sys := c.streamToSystem(x)
		back := c.systemToStream(sys)
		require.Equal(t, x, back)
	}
}

// Property P5: pausing then resuming with no intervening updates shifts a
// subsequent conversion by exactly the pause duration, regardless of the
// (unchanged) jitter/decoder-latency delay budget.
func TestChangePauseShiftsConversionByPauseDuration(t *testing.T) {
	c := New(RateDefault, fixedNow(5_000_000), nil)
	c.Update(0, 1_000_000, true, true)

	rate, ts0Before, _, err := c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
	require.NoError(t, err)
	require.Equal(t, int64(RateDefault), rate)

	c.ChangePause(true, 1_500_000)
	c.ChangePause(false, 2_000_000)

	_, ts0After, _, err := c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
	require.NoError(t, err)

	require.Equal(t, int64(500_000), ts0After-ts0Before)
}

// Literal scenario 3 from spec.md, with the decoder-latency/jitter
// accumulators pinned to zero so the "zero delays" assumption holds.
func TestChangePauseLiteralScenario(t *testing.T) {
	c := New(RateDefault, fixedNow(5_000_000), nil)
	c.Update(0, 1_000_000, true, true)
	c.stat.max = 0
	c.drift.maxOffset = 0

	c.ChangePause(true, 1_500_000)
	c.ChangePause(false, 2_000_000)

	_, ts0, _, err := c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
	require.NoError(t, err)
	require.Equal(t, int64(1_500_000), ts0)
}

func TestChangePauseIgnoresRedundantCalls(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	c.ChangePause(true, 1_000_000)
	c.ChangePause(true, 2_000_000) // redundant: already paused, must be a no-op
	c.ChangePause(false, 3_000_000)

	require.Equal(t, int64(2_000_000), c.ref.system-1_000_000)
}

// Scenario 4: rate halving rotates the reference around last.system.
func TestChangeRateHalving(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)
	c.Update(1_000_000, 2_000_000, true, true)

	require.Equal(t, int64(1_000_000), c.last.stream)
	require.Equal(t, int64(2_000_000), c.last.system)

	c.ChangeRate(500)

	require.Equal(t, int64(1_500_000), c.ref.system)
	require.Equal(t, int64(500), c.rate)
}

// Scenario 5: 133 consecutive late conversions force a reset.
func TestContinuousLateWatchdogForcesReset(t *testing.T) {
	const now = 100_000_000
	c := New(RateDefault, fixedNow(now), nil)
	c.Update(0, now-10_000_000, true, true)

	for i := 0; i < 132; i++ {
		_, _, _, err := c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
		require.NoError(t, err)
		require.True(t, c.hasReference)
	}

	_, _, _, err := c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
	require.NoError(t, err)
	require.False(t, c.hasReference)

	_, _, _, err = c.ConvertTS(0, InvalidTS, false, math.MaxInt64, false)
	require.ErrorIs(t, err, ErrGeneric)
}

// Scenario 6: SetJitter rebases the lateness ring by the delay delta.
func TestSetJitterRebasesLateRing(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.late = [lateCount]int64{5000, 7000, 4000}
	c.lateIndex = 2
	c.ptsDelay = 2000

	c.SetJitter(3000, 10)

	require.Equal(t, [lateCount]int64{4000, 6000, 3000}, c.late)
	require.Equal(t, 0, c.lateIndex)
	require.Equal(t, int64(3000), c.ptsDelay)
}

func TestSetJitterNeverLowersPTSDelay(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.ptsDelay = 5000

	c.SetJitter(1000, 10)

	require.Equal(t, int64(5000), c.ptsDelay)
}

func TestSetJitterClampsCRAverageFloor(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.SetJitter(1000, 1)
	require.Equal(t, int64(minCRAverage), c.drift.divider)
}

// P7: GetJitter == ptsDelay + median3(late).
func TestGetJitterIsPTSDelayPlusMedian(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.ptsDelay = 1000
	c.late = [lateCount]int64{10, 50, 30}

	require.Equal(t, int64(1030), c.GetJitter())
}

func TestConvertTSWithoutReferenceFails(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	_, ts0, ts1, err := c.ConvertTS(1000, 2000, true, math.MaxInt64, false)
	require.ErrorIs(t, err, ErrGeneric)
	require.Equal(t, InvalidTS, ts0)
	require.Equal(t, InvalidTS, ts1)
}

func TestConvertTSBoundCheckFails(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)
	c.stat.max = 0
	c.drift.maxOffset = 0

	_, _, _, err := c.ConvertTS(10_000_000, InvalidTS, false, 1000, false)
	require.ErrorIs(t, err, ErrGeneric)
}

// P2: ts_max is monotone nondecreasing across a convert sequence without
// reset or discontinuity.
func TestTSMaxMonotoneWithoutReset(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	var prev int64 = InvalidTS
	for _, s := range []int64{0, 10_000, 20_000, 30_000} {
		_, _, _, err := c.ConvertTS(s, InvalidTS, false, math.MaxInt64, false)
		require.NoError(t, err)
		require.GreaterOrEqual(t, c.TSMax(), prev)
		prev = c.TSMax()
	}
}

func TestResetClearsReferenceOnly(t *testing.T) {
	c := New(500, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)
	c.ptsDelay = 4000
	c.paused = true

	c.Reset()

	require.False(t, c.hasReference)
	require.Equal(t, int64(500), c.rate)
	require.Equal(t, int64(4000), c.ptsDelay)
	require.True(t, c.paused)
}

func TestGetStateWithoutReference(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	_, _, _, _, err := c.GetState()
	require.ErrorIs(t, err, ErrGeneric)
}

func TestGetStateReturnsElapsedDurations(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)
	c.Update(50_000, 1_050_000, true, true)

	streamStart, systemStart, streamDur, systemDur, err := c.GetState()
	require.NoError(t, err)
	require.Equal(t, int64(0), streamStart)
	require.Equal(t, int64(1_000_000), systemStart)
	require.Equal(t, int64(50_000), streamDur)
	require.Equal(t, int64(50_000), systemDur)
}

func TestChangeSystemOriginAbsolute(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	c.ChangeSystemOrigin(true, 2_000_000)

	system, _, err := c.GetSystemOrigin()
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), system)
}

func TestChangeSystemOriginRelativeUsesFirstCallAsBaseline(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	c.ChangeSystemOrigin(false, 5_000_000)
	system1, _, _ := c.GetSystemOrigin()
	require.Equal(t, int64(1_000_000), system1) // offset = 5_000_000 - 5_000_000 == 0

	c.ChangeSystemOrigin(false, 5_100_000)
	system2, _, _ := c.GetSystemOrigin()
	require.Equal(t, int64(1_100_000), system2) // offset = 5_100_000 - 5_000_000 == 100_000
}

func TestChangeDriftStartPointSuspendsSampling(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, true, true)

	c.ChangeDriftStartPoint(2_000_000)
	require.Equal(t, int64(2_033_000), c.nextDriftUpdate)
}

func TestBufferingResetsWhenSourceDoesNotPace(t *testing.T) {
	c := New(RateDefault, fixedNow(0), nil)
	c.Update(0, 1_000_000, false, true)
	c.Update(100_000, 1_100_000, false, true)
	require.Equal(t, int64(0), c.bufferingDur)
}

type warnFunc func(format string, args ...interface{})

func (f warnFunc) Warnf(format string, args ...interface{}) {
	f(format, args...)
}
