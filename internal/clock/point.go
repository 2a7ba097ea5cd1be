package clock

// point is a (stream, system) pair, both in microseconds of their
// respective domains.
type point struct {
	stream int64
	system int64
}

var invalidPoint = point{stream: InvalidTS, system: InvalidTS}

func newPoint(stream, system int64) point {
	return point{stream: stream, system: system}
}

// pointRing is a fixed-capacity ring of recently observed points, used to
// back-solve the system-domain arrival time of a stream timestamp that was
// seen in a previous Update call.
type pointRing struct {
	values [bufferedPointCount]point
	index  int
}

func (r *pointRing) push(p point) {
	r.values[r.index] = p
	r.index = (r.index + 1) % bufferedPointCount
}

// arrivalSystem searches backward from the most recently pushed point for
// an exact stream match. Failing that, it snaps to the newest entry whose
// stream value is still below the query and extrapolates at real speed.
// Slots not yet written hold a zero (0, 0) point and take part in the
// search like any other entry. It returns 0 if no entry matches or lies
// below the query.
func (r *pointRing) arrivalSystem(stream int64) int64 {
	newest := (r.index - 1 + bufferedPointCount) % bufferedPointCount

	for n := 0; n < bufferedPointCount; n++ {
		i := (newest - n + bufferedPointCount) % bufferedPointCount
		cur := r.values[i]

		if cur.stream == stream {
			return cur.system
		}
		if cur.stream < stream {
			return stream - cur.stream + cur.system
		}
	}

	return 0
}
