package remux

// progressTracker deduplicates repeated identical percent values before
// forwarding them, so a chatty ffmpeg run does not flood logs or callbacks.
// Scoped per operation; there is deliberately no shared state between jobs.
type progressTracker struct {
	fn   func(int)
	last int
}

func newProgressTracker(fn func(int)) *progressTracker {
	return &progressTracker{fn: fn, last: -1}
}

func (t *progressTracker) Report(percent int) {
	if t.fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent == t.last {
		return
	}
	t.last = percent
	t.fn(percent)
}
