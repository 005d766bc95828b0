package sim

// SysTick is a simulated 24-bit down-counter clocked at HCLK/8. Polling the
// count flag is what moves virtual time during a blocking delay. It
// implements core.DownCounter.
type SysTick struct {
	board *Board

	// PollNS is the virtual time one poll of the count flag takes
	PollNS uint64

	running  bool
	deadline uint64

	// Starts counts counter runs; Cycles sums their reload values
	Starts int
	Cycles uint64
	// Overflows counts reload values that did not fit 24 bits
	Overflows int
}

// Start loads the counter with load cycles and enables it
func (s *SysTick) Start(load uint32) {
	b := s.board
	if b.inIRQ {
		b.IRQViolations++
	}
	if load > 0xFFFFFF {
		s.Overflows++
		load &= 0xFFFFFF
	}
	hz := uint64(b.CoreHz()) / 8
	s.running = true
	s.deadline = b.now + (uint64(load)*nsPerSecond+hz-1)/hz
	s.Starts++
	s.Cycles += uint64(load)
}

// Running reads ENABLE
func (s *SysTick) Running() bool {
	return s.running
}

// CountFlag reads COUNTFLAG. Each read lets one poll interval of virtual
// time pass.
func (s *SysTick) CountFlag() bool {
	if !s.running {
		return false
	}
	b := s.board
	if b.now >= s.deadline {
		return true
	}
	step := s.PollNS
	if left := s.deadline - b.now; step == 0 || step > left {
		step = left
	}
	b.Advance(step)
	return b.now >= s.deadline
}

// Stop disables the counter
func (s *SysTick) Stop() {
	s.running = false
}
