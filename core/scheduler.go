package core

// SoftTimer is a millisecond software timer driven by the TimeBase tick
type SoftTimer struct {
	Period  uint32 // ms
	Mode    uint8  // TimerOnce or TimerPeriodic
	Handler func(*SoftTimer)

	wakeTick uint32
	active   bool
	next     *SoftTimer
}

const (
	TimerOnce     = 0
	TimerPeriodic = 1
)

// SoftTimers is the list of armed software timers, kept sorted by wake tick
type SoftTimers struct {
	head *SoftTimer
}

// tickBefore reports a < b on the wrapping tick line
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Start arms t to fire Period ms after now. Restarting an armed timer
// moves it.
func (s *SoftTimers) Start(t *SoftTimer, now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.active {
		s.remove(t)
	}
	t.wakeTick = now + t.Period
	t.active = true
	s.insert(t)
}

// Stop disarms t
func (s *SoftTimers) Stop(t *SoftTimer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.active {
		s.remove(t)
		t.active = false
	}
}

// Remaining returns the ms until t fires, 0 if it is not armed
func (s *SoftTimers) Remaining(t *SoftTimer, now uint32) uint32 {
	if !t.active || !tickBefore(now, t.wakeTick) {
		return 0
	}
	return t.wakeTick - now
}

// Active reports whether t is armed
func (t *SoftTimer) Active() bool {
	return t.active
}

// insert inserts a timer in sorted order by wake tick
func (s *SoftTimers) insert(t *SoftTimer) {
	if s.head == nil || tickBefore(t.wakeTick, s.head.wakeTick) {
		t.next = s.head
		s.head = t
		return
	}

	current := s.head
	for current.next != nil && !tickBefore(t.wakeTick, current.next.wakeTick) {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

func (s *SoftTimers) remove(t *SoftTimer) {
	if s.head == t {
		s.head = t.next
		t.next = nil
		return
	}
	for current := s.head; current != nil; current = current.next {
		if current.next == t {
			current.next = t.next
			t.next = nil
			return
		}
	}
}

// Dispatch fires every timer due at now. Called from the tick interrupt,
// so handlers must be short and must not block.
func (s *SoftTimers) Dispatch(now uint32) {
	for s.head != nil && !tickBefore(now, s.head.wakeTick) {
		timer := s.head
		s.head = timer.next
		timer.next = nil // Clear next pointer to avoid circular references
		timer.active = false

		if timer.Mode == TimerPeriodic && timer.Period > 0 {
			timer.wakeTick += timer.Period
			timer.active = true
			s.insert(timer)
		}

		if timer.Handler != nil {
			timer.Handler(timer)
		}
	}
}
