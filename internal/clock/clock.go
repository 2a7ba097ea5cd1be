package clock

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrGeneric is returned by ConvertTS when there is no reference point yet,
// or when a converted timestamp falls outside its requested bound, and by
// GetState when there is no reference point yet. It is the clock's only
// error: every other operation succeeds unconditionally.
var ErrGeneric = errors.New("clock: no reference, or timestamp out of bound")

// Warner receives non-fatal diagnostics from the clock's local-recovery
// paths: a reference reset on an unexpected stream discontinuity, and a
// forced reset from the continuous-late watchdog. Warnf must not block and
// must not retain format or args past the call.
type Warner interface {
	Warnf(format string, args ...interface{})
}

type nopWarner struct{}

func (nopWarner) Warnf(string, ...interface{}) {}

// NowFunc returns the host monotonic clock, in microseconds. It is the
// clock's only external dependency.
type NowFunc func() int64

// Clock reconciles a stream clock against the host system clock. It is fed
// through Update, queried through ConvertTS and GetWakeup, and steered
// through Reset, ChangeRate, ChangePause, ChangeSystemOrigin and SetJitter.
// One mutex serializes every method; there is no blocking inside the core.
type Clock struct {
	now    NowFunc
	warner Warner

	mu sync.Mutex

	ref          point
	hasReference bool
	last         point
	tsMax        int64
	bufferingDur int64

	nextDriftUpdate int64
	drift           average

	late      [lateCount]int64
	lateIndex int

	continuousLate int

	externalClock int64
	hasExternal   bool

	paused    bool
	pauseDate int64

	rate     int64
	ptsDelay int64

	points pointRing
	stat   latencyStats
}

// New allocates a Clock with no reference point yet, at the given initial
// rate (RateDefault for 1.0x playback). now supplies the host monotonic
// clock; warner, if non-nil, receives recovery diagnostics.
func New(rate int64, now NowFunc, warner Warner) *Clock {
	if warner == nil {
		warner = nopWarner{}
	}

	c := &Clock{
		now:             now,
		warner:          warner,
		ref:             invalidPoint,
		last:            invalidPoint,
		tsMax:           InvalidTS,
		nextDriftUpdate: InvalidTS,
		rate:            rate,
	}
	c.drift.init(defaultCRAverage)
	c.stat.init()
	return c
}

// Update feeds the clock with a freshly observed (stream, system) pair.
// canPace reports whether the caller controls the source's pace (e.g. a
// file or pipe, as opposed to a live network feed); bufferingAllowed
// requests that the buffering controller keep accreting extra buffer.
// stream and system must both be valid (greater than InvalidTS).
func (c *Clock) Update(stream, system int64, canPace, bufferingAllowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resetReference := false

	switch {
	case !c.hasReference:
		resetReference = true

	case c.last.stream > InvalidTS:
		gap := c.last.stream - stream
		if gap > maxGap || gap < -maxGap {
			c.warner.Warnf("clock gap, unexpected stream discontinuity")
			c.tsMax = InvalidTS
			c.warner.Warnf("feeding synchro with a new reference point trying to recover from clock gap")
			resetReference = true
		}
	}

	if resetReference {
		c.nextDriftUpdate = InvalidTS
		c.drift.reset()
		c.stat.init()
		c.hasReference = true
		c.ref = newPoint(stream, max64(c.tsMax+meanPTSGap, system))
		c.hasExternal = false
	}

	if !canPace && c.nextDriftUpdate < system {
		converted := c.systemToStream(system)
		c.drift.update(converted - stream)
		c.nextDriftUpdate = system
	}

	if !canPace || resetReference {
		c.bufferingDur = 0
	} else if bufferingAllowed {
		duration := max64(stream-c.last.stream, 0)
		c.bufferingDur += (duration*bufferingRateNum + (bufferingRateDen - 1)) / bufferingRateDen
		if c.bufferingDur > bufferingTarget {
			c.bufferingDur = bufferingTarget
		}
	}

	c.last = newPoint(stream, system)
	c.points.push(c.last)
}

// streamToSystem converts a stream-domain timestamp to the system domain
// using the current reference and rate. Caller must hold c.mu.
func (c *Clock) streamToSystem(stream int64) int64 {
	if !c.hasReference {
		return InvalidTS
	}
	return (stream-c.ref.stream)*c.rate/RateDefault + c.ref.system
}

// systemToStream is the inverse of streamToSystem. Caller must hold c.mu
// and must have verified hasReference.
func (c *Clock) systemToStream(system int64) int64 {
	return (system-c.ref.system)*RateDefault/c.rate + c.ref.stream
}

// tsOffset returns the extra system-domain offset introduced by playing at
// a rate other than RateDefault, so that currently converted dates are not
// disturbed by a rate change. Caller must hold c.mu.
func (c *Clock) tsOffset() int64 {
	return c.ptsDelay * (c.rate - RateDefault) / RateDefault
}

func (c *Clock) updateDecoderLatency(stream int64) {
	arrival := c.points.arrivalSystem(stream)
	latency := c.now() + decoderLatencyBias - arrival
	c.stat.update(latency)
}

// ConvertTS converts ts0, and ts1 when hasTS1 is true, from the stream
// domain to the system domain, adding the jitter/decoder-latency delay
// budget. isVideo feeds the decoder-latency estimator from ts0 first.
// tsBound caps how far into the future the converted ts0 may land relative
// to now; pass math.MaxInt64 to disable the bound check. It returns the
// rate active at conversion time, the two converted timestamps (InvalidTS
// where not applicable), and ErrGeneric if there is no reference point yet
// or the bound check failed.
func (c *Clock) ConvertTS(ts0, ts1 int64, hasTS1 bool, tsBound int64, isVideo bool) (rate, out0, out1 int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate = c.rate

	if !c.hasReference {
		return rate, InvalidTS, InvalidTS, ErrGeneric
	}

	if isVideo {
		c.updateDecoderLatency(ts0)
	}

	tsBuffering := c.bufferingDur * c.rate / RateDefault
	tsDelay := c.tsOffset() + c.drift.maxOffset + c.stat.max

	out0 = InvalidTS
	if ts0 > InvalidTS {
		out0 = c.streamToSystem(ts0 + c.drift.get())
		c.tsMax = max64(c.tsMax, out0)
		out0 += tsDelay
	}

	out1 = InvalidTS
	if hasTS1 && ts1 > InvalidTS {
		out1 = c.streamToSystem(ts1+c.drift.get()) + tsDelay
	}

	now := c.now()

	if out0 > InvalidTS && now-out0 >= lateThreshold {
		c.continuousLate++
		if c.continuousLate > continuousLateLimit {
			c.warner.Warnf("convert stream to system time continuously late, algorithm error, resetting clock: %s", c.debugStringLocked())
			c.resetLocked()
			c.continuousLate = 0
		}
	} else {
		c.continuousLate = 0
	}

	if tsBound != math.MaxInt64 && out0 > InvalidTS && out0 >= now+tsDelay+tsBuffering+tsBound {
		return rate, out0, out1, ErrGeneric
	}

	return rate, out0, out1, nil
}

func (c *Clock) resetLocked() {
	c.hasReference = false
	c.ref = invalidPoint
	c.hasExternal = false
	c.tsMax = InvalidTS
}

// Reset clears the reference point, forcing the next Update to start a
// fresh mapping. It does not touch rate, pause state or pts delay.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// ChangeRate sets a new playback rate, rotating the reference point around
// last.system so that timestamps already converted are not disturbed.
func (c *Clock) ChangeRate(newRate int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasReference {
		c.ref.system = c.last.system - (c.last.system-c.ref.system)*newRate/c.rate
	}
	c.rate = newRate
}

// ChangePause toggles pause state. On resume (pausing == false after a
// paused state), it shifts the reference and last points forward by the
// elapsed pause duration so the mapping does not jump.
func (c *Clock) ChangePause(pausing bool, date int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused == pausing {
		return
	}

	if c.paused {
		duration := date - c.pauseDate
		if c.hasReference && duration > 0 {
			c.ref.system += duration
			c.last.system += duration
		}
	}
	c.pauseDate = date
	c.paused = pausing
}

// ChangeSystemOrigin shifts the reference and last points so that the
// reference's system coordinate lands at a new origin. With absolute set,
// system is taken as an absolute system-domain target. Otherwise, system is
// relative to an external clock whose first-seen value becomes the
// baseline for every subsequent relative call, until the next discontinuity
// clears it. A no-op without a reference point.
func (c *Clock) ChangeSystemOrigin(absolute bool, system int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasReference {
		return
	}

	var offset int64
	if absolute {
		offset = system - c.ref.system - c.tsOffset()
	} else {
		if !c.hasExternal {
			c.hasExternal = true
			c.externalClock = system
		}
		offset = system - c.externalClock
	}

	c.ref.system += offset
	c.last.system += offset
}

// GetSystemOrigin returns the reference point's system coordinate and the
// configured PTS delay. It returns ErrGeneric without a reference point.
func (c *Clock) GetSystemOrigin() (system, ptsDelay int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasReference {
		return 0, 0, ErrGeneric
	}
	return c.ref.system, c.ptsDelay, nil
}

// SetJitter raises the configured PTS delay (it never lowers it) and
// rebases the rolling lateness ring by the delta, so that stale lateness
// samples measured under a smaller delay don't overstate jitter under a
// larger one. crAverage rescales the drift estimator's IIR divider, clamped
// to a floor of minCRAverage.
func (c *Clock) SetJitter(newPTSDelay, crAverage int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delayDelta := newPTSDelay - c.ptsDelay

	var rebased [lateCount]int64
	for i := 0; i < lateCount; i++ {
		v := c.late[(c.lateIndex+1+i)%lateCount] - delayDelta
		rebased[i] = max64(v, 0)
	}

	c.late = [lateCount]int64{}
	c.lateIndex = 0
	for _, v := range rebased {
		if v <= 0 {
			continue
		}
		c.late[c.lateIndex] = v
		c.lateIndex = (c.lateIndex + 1) % lateCount
	}

	if c.ptsDelay < newPTSDelay {
		c.ptsDelay = newPTSDelay
	}

	if crAverage < minCRAverage {
		crAverage = minCRAverage
	}
	if c.drift.divider != crAverage {
		c.drift.rescale(crAverage)
	}
}

// GetJitter returns the configured PTS delay plus the median of the last
// three recorded lateness samples.
func (c *Clock) GetJitter() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.late
	median := p[0] + p[1] + p[2] - min3(p[0], p[1], p[2]) - max3(p[0], p[1], p[2])
	return c.ptsDelay + median
}

// GetWakeup returns an advisory system time at which the caller may want
// to wake up to deliver the next sample, or 0 without a reference point.
func (c *Clock) GetWakeup() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasReference {
		return 0
	}
	return c.streamToSystem(c.last.stream + c.drift.get() - c.bufferingDur)
}

// GetState returns the reference point and the elapsed stream/system
// duration since it was set. It returns ErrGeneric without a reference
// point.
func (c *Clock) GetState() (streamStart, systemStart, streamDuration, systemDuration int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasReference {
		return 0, 0, 0, 0, ErrGeneric
	}
	return c.ref.stream, c.ref.system, c.last.stream - c.ref.stream, c.last.system - c.ref.system, nil
}

// GetRate returns the current playback rate.
func (c *Clock) GetRate() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// ChangeDriftStartPoint suspends drift sampling until system+33ms, to
// absorb a known transient after the caller performs some adjustment (e.g.
// a seek) whose effects shouldn't be folded into the drift estimate.
func (c *Clock) ChangeDriftStartPoint(system int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextDriftUpdate = system + driftStartDelay
}

// NetworkJitter returns the drift estimator's current weighted maximum
// offset, used as part of ConvertTS's delay budget.
func (c *Clock) NetworkJitter() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drift.maxOffset
}

// DecoderLatency returns the decoder-latency estimator's current weighted
// peak, used as part of ConvertTS's delay budget.
func (c *Clock) DecoderLatency() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stat.max
}

// BufferingDuration returns the current extra stream-domain buffer target.
func (c *Clock) BufferingDuration() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferingDur
}

// TSMax returns the largest converted ts0 that ConvertTS has produced since
// the last reset or discontinuity, taken before the delay budget is added.
func (c *Clock) TSMax() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tsMax
}

func (c *Clock) debugStringLocked() string {
	return fmt.Sprintf(
		"tsMax=%d drift(value=%d means=%d variance=%d count=%d maxOffset=%d startCount=%d) "+
			"latency(means=%d max=%d count=%d maxCount=%d) ref(stream=%d system=%d) last(stream=%d system=%d)",
		c.tsMax,
		c.drift.value, c.drift.means, c.drift.variance, c.drift.count, c.drift.maxOffset, c.drift.startCount,
		c.stat.means, c.stat.max, c.stat.count, c.stat.maxCount,
		c.ref.stream, c.ref.system, c.last.stream, c.last.system,
	)
}

// DebugString dumps the clock's internal counters, for diagnostics.
func (c *Clock) DebugString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debugStringLocked()
}
