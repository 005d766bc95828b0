package core

// mockClockDriver is an ideal clock tree: every oscillator is ready at once
// and SWS follows SW immediately. Calls are logged in order.
type mockClockDriver struct {
	calls []string

	hseOn, hsiOn, pllOn bool
	mul                 uint8
	latency             uint8
	sws                 ClockSource

	noHSE        bool
	pllNeverLock bool
	rejectMul    uint8

	// maskedSelects counts SW writes made with interrupts disabled
	maskedSelects int
	selects       int
}

func newMockClockDriver() *mockClockDriver {
	return &mockClockDriver{hseOn: true, hsiOn: true, pllOn: true, mul: 9, latency: 2, sws: SourcePLL}
}

func (d *mockClockDriver) log(s string) { d.calls = append(d.calls, s) }

func (d *mockClockDriver) StartOscillator(src ClockSource) {
	d.log("start " + src.String())
	if src == SourceHSE {
		d.hseOn = true
	} else {
		d.hsiOn = true
	}
}

func (d *mockClockDriver) StopOscillator(src ClockSource) {
	d.log("stop " + src.String())
	if src == SourceHSE {
		d.hseOn = false
	} else {
		d.hsiOn = false
	}
}

func (d *mockClockDriver) OscillatorReady(src ClockSource) bool {
	if src == SourceHSE {
		return d.hseOn && !d.noHSE
	}
	return d.hsiOn
}

func (d *mockClockDriver) PLLEnabled() bool { return d.pllOn }
func (d *mockClockDriver) PLLReady() bool   { return d.pllOn && !d.pllNeverLock }

func (d *mockClockDriver) EnablePLL() {
	d.log("pll on")
	d.pllOn = true
}

func (d *mockClockDriver) DisablePLL() {
	d.log("pll off")
	d.pllOn = false
}

func (d *mockClockDriver) ConfigurePLL(mul uint8) error {
	d.log("mul " + utoa(uint32(mul)))
	if mul == d.rejectMul {
		return ErrInvalidFrequency
	}
	d.mul = mul
	return nil
}

func (d *mockClockDriver) PLLMultiplier() uint8 { return d.mul }

func (d *mockClockDriver) SetFlashLatency(ws uint8) {
	d.log("latency " + utoa(uint32(ws)))
	d.latency = ws
}

func (d *mockClockDriver) FlashLatency() uint8 { return d.latency }

func (d *mockClockDriver) SelectSystemClock(src ClockSource) {
	d.log("select " + src.String())
	d.selects++
	if InterruptsMasked() {
		d.maskedSelects++
	}
	if src == SourcePLL && !d.PLLReady() {
		return
	}
	d.sws = src
}

func (d *mockClockDriver) SystemClockSource() ClockSource { return d.sws }

// mockTickTimer records prescaler/reload writes
type mockTickTimer struct {
	apb1Div    uint8
	prescaler  uint16
	reload     uint16
	configured int
}

func (t *mockTickTimer) Configure(prescaler, reload uint16) {
	t.prescaler = prescaler
	t.reload = reload
	t.configured++
}

func (t *mockTickTimer) APB1Divider() uint8 { return t.apb1Div }

// mockDownCounter completes every run after a fixed number of polls
type mockDownCounter struct {
	loads   []uint32
	running bool
	polls   int
}

func (c *mockDownCounter) Start(load uint32) {
	c.loads = append(c.loads, load)
	c.running = true
	c.polls = 0
}

func (c *mockDownCounter) Running() bool { return c.running }

func (c *mockDownCounter) CountFlag() bool {
	c.polls++
	return c.polls >= 3
}

func (c *mockDownCounter) Stop() { c.running = false }

// newTestManager wires a manager to mocks at 72MHz
func newTestManager(cfg Config) (*ClockManager, *mockClockDriver, *TimeBase) {
	drv := newMockClockDriver()
	tb := NewTimeBase(&mockTickTimer{apb1Div: 2})
	tb.Init(72000000)
	delay, _ := NewDelay(&mockDownCounter{}, 72000000)
	m := NewClockManager(drv, tb, delay, cfg)
	m.Init()
	return m, drv, tb
}

// advance fires n tick interrupts
func advance(tb *TimeBase, n int) {
	for i := 0; i < n; i++ {
		tb.HandleInterrupt()
	}
}
