package core

// MonotonicClock returns a free-running counter in arbitrary units.
// Only differences are meaningful.
type MonotonicClock func() uint32

// WaitBound limits a hardware polling loop. The loop gives up after
// MaxPolls iterations, or earlier once Clock has advanced by Timeout
// units when a clock is supplied.
type WaitBound struct {
	MaxPolls uint32
	Clock    MonotonicClock
	Timeout  uint32
}

// Until polls cond until it holds or the bound is exhausted.
// Returns whether cond held.
func (b WaitBound) Until(cond func() bool) bool {
	var start uint32
	if b.Clock != nil {
		start = b.Clock()
	}
	for polls := b.MaxPolls; polls > 0; polls-- {
		if cond() {
			return true
		}
		if b.Clock != nil && b.Timeout > 0 && b.Clock()-start >= b.Timeout {
			break
		}
	}
	// One last look after the budget runs out, the flag may have landed
	// on the final iteration
	return cond()
}
