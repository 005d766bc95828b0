package sim

// TIM2 is a simulated general purpose timer in up-counting mode. An update
// interrupt fires every (PSC+1)*(ARR+1) timer clock cycles; the timer clock
// follows SYSCLK through the APB1 prescaler. It implements core.TickTimer.
type TIM2 struct {
	board   *Board
	apb1Div uint8

	enabled   bool
	prescaler uint16
	reload    uint16
	// acc is elapsed timer-clock cycles scaled by 1e9
	acc uint64

	// Configurations counts prescaler/reload writes
	Configurations int
}

// Configure writes PSC and ARR, generates an update event to load them and
// starts the counter from zero
func (t *TIM2) Configure(prescaler, reload uint16) {
	t.prescaler = prescaler
	t.reload = reload
	t.enabled = true
	t.acc = 0
	t.Configurations++
}

// APB1Divider returns the APB1 prescaler the board runs with
func (t *TIM2) APB1Divider() uint8 {
	return t.apb1Div
}

// SetAPB1Divider changes the APB1 prescaler
func (t *TIM2) SetAPB1Divider(div uint8) {
	t.apb1Div = div
}

// Params returns the programmed prescaler and reload
func (t *TIM2) Params() (prescaler, reload uint16) {
	return t.prescaler, t.reload
}

// clock returns the timer input clock in Hz
func (t *TIM2) clock() uint64 {
	hz := uint64(t.board.CoreHz())
	if t.apb1Div > 1 {
		hz = hz / uint64(t.apb1Div) * 2
	}
	return hz
}

// PeriodNS returns the current update period in ns at the running SYSCLK
func (t *TIM2) PeriodNS() uint64 {
	if !t.enabled {
		return 0
	}
	cycles := (uint64(t.prescaler) + 1) * (uint64(t.reload) + 1)
	return cycles * nsPerSecond / t.clock()
}

// nextUpdate consumes up to ns of virtual time. It returns the time
// consumed and whether an update event is due at its end.
func (t *TIM2) nextUpdate(ns uint64) (uint64, bool) {
	if !t.enabled {
		return ns, false
	}
	clk := t.clock()
	full := (uint64(t.prescaler) + 1) * (uint64(t.reload) + 1) * nsPerSecond
	remaining := full - t.acc
	need := (remaining + clk - 1) / clk
	if need > ns {
		t.acc += ns * clk
		return ns, false
	}
	t.acc = t.acc + need*clk - full
	return need, true
}
