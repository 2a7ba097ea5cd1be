// Package hostclock supplies the host monotonic clock, in microseconds, to
// the clock package. It exists so production code reads time.Now and tests
// substitute a deterministic stand-in, without clock importing the time
// package itself.
package hostclock

import "time"

// base anchors Now to the Unix epoch at process start; time elapsed since
// base is measured on the monotonic clock reading that time.Now carries.
var base = time.Now()

// Now returns the host monotonic clock in microseconds, suitable for
// clock.NowFunc. Its values start out equal to Unix-epoch microseconds and
// do not follow later adjustments of the system's wall clock.
func Now() int64 {
	return base.Add(time.Since(base)).UnixMicro()
}
