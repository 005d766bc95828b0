package core

// TickRate is the TimeBase interrupt rate in Hz (1ms period)
const TickRate = 1000

// TimeBase keeps the monotonic millisecond tick. The tick counter wraps at
// 2^32; consumers only ever compare differences.
type TimeBase struct {
	timer TickTimer

	tick        uint32
	prescaler   uint16
	reload      uint16
	timerClock  uint32
	initialized bool

	onSecond func()
	timers   SoftTimers
}

// NewTimeBase creates a TimeBase on top of a hardware tick timer
func NewTimeBase(timer TickTimer) *TimeBase {
	return &TimeBase{timer: timer}
}

// Init programs the timer for a 1ms period at the given core frequency.
// A second call is a no-op.
func (tb *TimeBase) Init(coreHz uint32) error {
	if tb.initialized {
		return nil
	}
	if err := tb.program(coreHz); err != nil {
		return err
	}
	tb.tick = 0
	tb.initialized = true
	return nil
}

// Reconfigure recomputes prescaler/reload so the period stays 1ms at the
// new core frequency. Idempotent; falls back to Init when not yet started.
func (tb *TimeBase) Reconfigure(coreHz uint32) error {
	if !tb.initialized {
		return tb.Init(coreHz)
	}
	return tb.program(coreHz)
}

func (tb *TimeBase) program(coreHz uint32) error {
	clk := TimerClock(coreHz, tb.timer.APB1Divider())
	psc, arr, ok := CalcTimerParams(clk)
	if !ok {
		return ErrInvalidFrequency
	}
	if tb.initialized && clk == tb.timerClock && psc == tb.prescaler && arr == tb.reload {
		return nil
	}
	tb.timer.Configure(psc, arr)
	tb.prescaler = psc
	tb.reload = arr
	tb.timerClock = clk
	return nil
}

// Initialized reports whether Init has run
func (tb *TimeBase) Initialized() bool {
	return tb.initialized
}

// GetTick returns the current tick in ms
func (tb *TimeBase) GetTick() uint32 {
	return loadTick(&tb.tick)
}

// Params returns the active prescaler and reload pair
func (tb *TimeBase) Params() (prescaler, reload uint16) {
	return tb.prescaler, tb.reload
}

// OnSecond installs a hook run from the interrupt once every 1000 ticks
func (tb *TimeBase) OnSecond(fn func()) {
	tb.onSecond = fn
}

// Timers returns the software timer service driven by this tick
func (tb *TimeBase) Timers() *SoftTimers {
	return &tb.timers
}

// StartTimer arms a software timer relative to the current tick
func (tb *TimeBase) StartTimer(t *SoftTimer) {
	tb.timers.Start(t, tb.GetTick())
}

// HandleInterrupt is the timer update interrupt body
func (tb *TimeBase) HandleInterrupt() {
	now := incTick(&tb.tick)

	if now%TickRate == 0 && tb.onSecond != nil {
		tb.onSecond()
	}

	tb.timers.Dispatch(now)
}

// Elapsed returns now-then on the wrapping tick line
func Elapsed(now, then uint32) uint32 {
	return now - then
}

// Expired reports whether ms have passed since start (non-blocking delay)
func (tb *TimeBase) Expired(start, ms uint32) bool {
	return Elapsed(tb.GetTick(), start) >= ms
}

// TimerClock returns the TIM2 input clock for a core frequency: timers on
// APB1 run at twice the bus clock whenever the bus is divided.
func TimerClock(coreHz uint32, apb1Div uint8) uint32 {
	if apb1Div <= 1 {
		return coreHz
	}
	return coreHz / uint32(apb1Div) * 2
}

// CalcTimerParams finds a prescaler/reload pair giving a TickRate interrupt
// from timerClock. An exact pair is preferred, smallest prescaler first so
// the counter resolution stays high; otherwise the first pair from
// prescaler 71 upwards is used.
func CalcTimerParams(timerClock uint32) (prescaler, reload uint16, ok bool) {
	total := timerClock / TickRate
	if total < 2 {
		return 0, 0, false
	}

	for div := uint32(1); div <= 65536; div++ {
		if total%div != 0 {
			continue
		}
		count := total / div
		if count > 65536 {
			continue
		}
		if count < 2 {
			break
		}
		return uint16(div - 1), uint16(count - 1), true
	}

	for _, start := range [2]uint32{71, 1} {
		for psc := start; psc <= 65535; psc++ {
			count := total / (psc + 1)
			if count >= 2 && count <= 65536 {
				return uint16(psc), uint16(count - 1), true
			}
		}
	}
	return 0, 0, false
}
