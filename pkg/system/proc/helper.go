package proc

// ClampedDelta returns now-prev for a cumulative counter. When the counter
// went backwards (reset, pid reuse) the freshly observed value is the delta,
// so a tick never reports a negative amount.
func ClampedDelta(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	return now
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
