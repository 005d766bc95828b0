package core

// Mode selects how the operating level is chosen
type Mode uint8

const (
	ModeManual    Mode = 0 // Fixed level set through the API
	ModeAutomatic Mode = 1 // Level follows measured CPU load
)

func (m Mode) String() string {
	if m == ModeAutomatic {
		return "auto"
	}
	return "manual"
}

// ClockManager owns the operating level of the core clock. There is one
// per device; it is created once at boot and lives until power-off.
//
// AdaptiveTask, the hooks and all level changes belong to the main loop.
// Only the load estimator entry point (CalculateLoad1Sec) runs from the
// tick interrupt.
type ClockManager struct {
	driver   ClockDriver
	timebase *TimeBase
	delay    *Delay
	cfg      Config
	bound    WaitBound

	initialized    bool
	mode           Mode
	level          Level
	floor          Level
	freq           uint32
	hasSwitched    bool
	lastSwitchTick uint32 // last committed switch; the manual guard
	autoSince      uint32 // entry into automatic mode

	load LoadCounter

	events           EventRing
	switches         uint32
	failedSwitches   uint32
	rollbacks        uint32
	rollbackFailures uint32
}

// Stats are cumulative switch counters
type Stats struct {
	Switches         uint32
	FailedSwitches   uint32
	Rollbacks        uint32
	RollbackFailures uint32
}

// NewClockManager wires a clock manager to its hardware and the timing
// modules it recalibrates after every switch
func NewClockManager(driver ClockDriver, tb *TimeBase, delay *Delay, cfg Config) *ClockManager {
	cfg.applyDefaults()
	m := &ClockManager{
		driver:   driver,
		timebase: tb,
		delay:    delay,
		cfg:      cfg,
		bound:    WaitBound{MaxPolls: cfg.WaitPolls},
	}
	m.load.loopsPerSecond = cfg.LoopsPerSecond
	return m
}

// SetWaitClock attaches a monotonic clock to the hardware wait bound so
// ready-flag waits also give up after timeout clock units
func (m *ClockManager) SetWaitClock(clock MonotonicClock, timeout uint32) {
	m.bound.Clock = clock
	m.bound.Timeout = timeout
}

// Init puts the manager in manual mode at the highest level and hooks the
// one-second load estimator into the TimeBase. The clock tree is not
// touched; the cached frequency is read back from hardware. A second call
// is a no-op.
func (m *ClockManager) Init() error {
	if m.initialized {
		return nil
	}

	m.mode = ModeManual
	m.level = Level72MHz
	m.floor = NumLevels - 1
	m.freq = m.snapshot().frequency()
	m.load.reset(m.now())
	m.timebase.OnSecond(m.CalculateLoad1Sec)
	m.initialized = true

	DebugAsync("[CLKM] init at " + formatMHz(m.freq))
	return nil
}

func (m *ClockManager) now() uint32 {
	return m.timebase.GetTick()
}

// SetMode switches between manual and automatic operation.
//
// Manual: param is the level to switch to immediately.
// Automatic: param is the floor, the slowest level downshifting may reach;
// out-of-range values select the slowest level. Load accounting restarts
// and the policy waits a full interval before its first switch; the manual
// guard keeps counting from the last real switch.
func (m *ClockManager) SetMode(mode Mode, param uint8) error {
	if !m.initialized {
		return ErrNotInitialized
	}

	switch mode {
	case ModeManual:
		if int(param) >= NumLevels {
			return ErrInvalidFrequency
		}
		if err := m.manualSwitch(Level(param)); err != nil {
			return err
		}
		m.mode = ModeManual

	case ModeAutomatic:
		floor := Level(param)
		if int(param) >= NumLevels {
			floor = NumLevels - 1
		}
		now := m.now()
		m.mode = ModeAutomatic
		m.floor = floor
		m.load.reset(now)
		m.autoSince = now

	default:
		return ErrModeConflict
	}

	m.events.Record(ClockEvent{
		Type:   EvtMode,
		Level:  uint8(m.level),
		Tick:   m.now(),
		Value1: uint32(m.mode),
		Value2: uint32(m.floor),
	})
	return nil
}

// SetFixedLevel switches to level; manual mode only
func (m *ClockManager) SetFixedLevel(level Level) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.mode != ModeManual {
		return ErrModeConflict
	}
	if int(level) >= NumLevels {
		return ErrInvalidFrequency
	}
	return m.manualSwitch(level)
}

// AdjustLevel moves step levels (positive = slower), clamped to the table;
// manual mode only
func (m *ClockManager) AdjustLevel(step int) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.mode != ModeManual {
		return ErrModeConflict
	}
	return m.manualSwitch(clampLevel(m.level, step))
}

// manualSwitch applies the minimum switch interval then switches
func (m *ClockManager) manualSwitch(level Level) error {
	now := m.now()
	if m.hasSwitched && Elapsed(now, m.lastSwitchTick) < m.cfg.UpInterval {
		return ErrSwitchTooFast
	}
	if err := m.switchTo(level); err != nil {
		return err
	}
	m.hasSwitched = true
	m.lastSwitchTick = now
	return nil
}

// AdaptiveTask runs the load policy. Call it from the main loop, ideally
// every SampleInterval ms; it returns immediately otherwise.
func (m *ClockManager) AdaptiveTask() {
	if !m.initialized || m.mode != ModeAutomatic || m.cfg.AdaptiveDisabled {
		return
	}

	now := m.now()
	window := Elapsed(now, m.load.lastSample)
	if window < m.cfg.SampleInterval {
		return
	}

	load := m.load.sample(now)
	m.events.Record(ClockEvent{Type: EvtLoad, Level: uint8(m.level), Tick: now, Value1: uint32(load), Value2: window})

	target, ok := m.policy(load, m.sinceSwitch(now))
	if !ok {
		return
	}
	// A failed switch keeps the last good level; the policy retries on a
	// later window
	if m.switchTo(target) == nil {
		m.hasSwitched = true
		m.lastSwitchTick = now
	}
}

// sinceSwitch is the time the policy has waited: since the last switch or
// since automatic mode was entered, whichever is later
func (m *ClockManager) sinceSwitch(now uint32) uint32 {
	since := Elapsed(now, m.autoSince)
	if m.hasSwitched {
		if s := Elapsed(now, m.lastSwitchTick); s < since {
			since = s
		}
	}
	return since
}

// policy decides the next level for a load sample. The second result is
// false when no switch should happen.
func (m *ClockManager) policy(load uint8, since uint32) (Level, bool) {
	switch {
	case load >= m.cfg.HighThreshold:
		if since < m.cfg.UpInterval || m.level == Level72MHz {
			return 0, false
		}
		return clampLevel(m.level, -int(m.cfg.UpJump)), true

	case load < m.cfg.LowThreshold:
		if since < m.cfg.DownInterval || m.level >= m.floor {
			return 0, false
		}
		target := clampLevel(m.level, int(m.cfg.DownStep))
		if target > m.floor {
			target = m.floor
		}
		return target, true
	}
	return 0, false
}

// IdleHook counts one idle pass of the main loop (automatic mode only)
func (m *ClockManager) IdleHook() {
	if m.hooksActive() {
		m.load.idle()
	}
}

// BusyHook counts one busy pass of the main loop (automatic mode only)
func (m *ClockManager) BusyHook() {
	if m.hooksActive() {
		m.load.busy()
	}
}

func (m *ClockManager) hooksActive() bool {
	return m.initialized && m.mode == ModeAutomatic && !m.cfg.HooksDisabled
}

// CalculateLoad1Sec updates the best-effort one-second load estimate.
// Installed on the TimeBase by Init; runs in interrupt context.
func (m *ClockManager) CalculateLoad1Sec() {
	if !m.hooksActive() {
		return
	}
	m.load.estimate()
}

// ProbeExternalOscillator starts HSE and reports whether it becomes ready
// within polls iterations. Used at boot to decide whether PLL levels are
// usable at all.
func (m *ClockManager) ProbeExternalOscillator(polls uint32) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	m.driver.StartOscillator(SourceHSE)
	return WaitBound{MaxPolls: polls}.Until(func() bool {
		return m.driver.OscillatorReady(SourceHSE)
	})
}

// GetCurrentLevel returns the current level
func (m *ClockManager) GetCurrentLevel() Level {
	return m.level
}

// GetCurrentMode returns the current mode
func (m *ClockManager) GetCurrentMode() Mode {
	return m.mode
}

// GetCurrentFrequency returns the core clock in Hz. Peripherals whose
// timing derives from it poll this and re-derive their settings on change.
func (m *ClockManager) GetCurrentFrequency() uint32 {
	return m.freq
}

// GetCPULoad returns the load percentage of the last sampling window
func (m *ClockManager) GetCPULoad() uint8 {
	return m.load.load
}

// EstimatedCPULoad returns the one-second estimate. It assumes the main
// loop calls IdleHook LoopsPerSecond times per second when idle and is
// only a rough indicator; the policy never uses it.
func (m *ClockManager) EstimatedCPULoad() uint8 {
	return m.load.estimated
}

// Floor returns the slowest level automatic mode may select
func (m *ClockManager) Floor() Level {
	return m.floor
}

// Initialized reports whether Init has run
func (m *ClockManager) Initialized() bool {
	return m.initialized
}

// Stats returns the cumulative switch counters
func (m *ClockManager) Stats() Stats {
	return Stats{
		Switches:         m.switches,
		FailedSwitches:   m.failedSwitches,
		Rollbacks:        m.rollbacks,
		RollbackFailures: m.rollbackFailures,
	}
}

// Events returns the clock event ring
func (m *ClockManager) Events() *EventRing {
	return &m.events
}

// DumpEvents writes the event ring through the debug writer
func (m *ClockManager) DumpEvents() {
	m.events.Dump(debugPrintln)
}

// Config returns the active configuration
func (m *ClockManager) Config() Config {
	return m.cfg
}

// FrequencyWatcher lets a peripheral notice core clock changes by polling
type FrequencyWatcher struct {
	last uint32
}

// Changed returns the frequency and true when it differs from the last call
func (w *FrequencyWatcher) Changed(hz uint32) (uint32, bool) {
	if hz == w.last {
		return hz, false
	}
	w.last = hz
	return hz, true
}
