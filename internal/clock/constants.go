package clock

// InvalidTS is the sentinel for an unset stream- or system-domain
// timestamp. A timestamp is valid when it is greater than InvalidTS.
const InvalidTS int64 = -1

const (
	// Freq is the tick rate shared by the stream and system domains: both
	// are expressed in microseconds.
	Freq = 1_000_000

	// RateDefault is the rate value that corresponds to 1.0x playback.
	RateDefault = 1000

	// maxGap is the maximum stream-domain gap tolerated between two
	// consecutive updates before it is treated as a discontinuity.
	maxGap = 60 * Freq

	// meanPTSGap is the minimum system-domain distance enforced between a
	// freshly reset reference point and the last timestamp returned by
	// ConvertTS, to absorb chapter-change-style PTS resets.
	meanPTSGap = 300_000

	// bufferingRateNum/bufferingRateDen express, in 1/256ths, how much
	// faster than real time the buffering controller tries to accrete
	// extra buffer while the source paces delivery.
	bufferingRateNum = 48
	bufferingRateDen = 256

	// bufferingTarget caps the extra stream-domain buffer the controller
	// will try to accumulate.
	bufferingTarget = 100_000

	// initDecoderLatency seeds the decoder-latency estimator before any
	// real sample has been observed.
	initDecoderLatency = 1_000_000

	// decoderLatencyMaxCountSentinel seeds latencyStats.maxCount far in the
	// future so the weighted-peak decay never fires before the first real
	// sample updates it for real.
	decoderLatencyMaxCountSentinel = 205_000

	// decoderLatencyBias guards against a zero latency sample on hosts
	// whose clock has millisecond (rather than microsecond) resolution.
	decoderLatencyBias = 500

	// lateCount is the size of the rolling lateness ring used by
	// GetJitter's median.
	lateCount = 3

	// bufferedPointCount is the size of the (stream, system) ring used to
	// back-solve the arrival time of a past stream timestamp.
	bufferedPointCount = 100

	// continuousLateLimit is the number of consecutive late ConvertTS
	// calls, at roughly 66 Hz, that is tolerated: the next consecutive late
	// call triggers a forced Reset.
	continuousLateLimit = 132

	// lateThreshold is how far in the past, in microseconds, a converted
	// timestamp must be for it to count as "late" for the watchdog.
	lateThreshold = 16_000

	// driftWindow is the window, in samples, over which the drift
	// estimator's windowed mean and variance are computed.
	driftWindow = 300

	// latencyWindow is the window, in samples, over which the
	// decoder-latency estimator's windowed mean is computed.
	latencyWindow = 180

	// driftStartDelay is how long ChangeDriftStartPoint suspends drift
	// sampling for, in microseconds.
	driftStartDelay = 33_000

	// defaultCRAverage is the initial divider of the drift estimator's
	// legacy IIR accumulator.
	defaultCRAverage = 10

	// minCRAverage is the floor SetJitter clamps its cr_average argument to.
	minCRAverage = 10
)
