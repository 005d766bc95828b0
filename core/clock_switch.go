package core

// clockSnapshot is the clock-tree configuration read back from hardware
// before a switch, used to roll back a failed attempt.
type clockSnapshot struct {
	source   ClockSource
	mul      uint8
	latency  uint8
	pllOn    bool
	hseReady bool
}

func (m *ClockManager) snapshot() clockSnapshot {
	return clockSnapshot{
		source:   m.driver.SystemClockSource(),
		mul:      m.driver.PLLMultiplier(),
		latency:  m.driver.FlashLatency(),
		pllOn:    m.driver.PLLEnabled(),
		hseReady: m.driver.OscillatorReady(SourceHSE),
	}
}

func (s clockSnapshot) descriptor() FrequencyDescriptor {
	d := FrequencyDescriptor{Source: s.source, FlashLatency: s.latency}
	if s.source == SourcePLL {
		d.PLLMul = s.mul
	}
	return d
}

// frequency returns the SYSCLK frequency a snapshot produces
func (s clockSnapshot) frequency() uint32 {
	switch s.source {
	case SourcePLL:
		return HSEFrequency * uint32(s.mul)
	case SourceHSE:
		return HSEFrequency
	default:
		return HSIFrequency
	}
}

func (m *ClockManager) wait(cond func() bool) bool {
	return m.bound.Until(cond)
}

// switchTo moves SYSCLK to the given level. The whole hardware sequence
// runs with interrupts disabled; on failure the previous configuration is
// re-applied and no manager state changes. If even that fails, the cached
// level and frequency follow whatever the hardware is left running and
// dependent timing is recalibrated to it.
func (m *ClockManager) switchTo(target Level) error {
	d, ok := Descriptor(target)
	if !ok {
		return ErrInvalidFrequency
	}

	old := m.level
	resynced := false
	err := criticalSection(func() error {
		prev := m.snapshot()
		step, err := m.apply(d)
		if err != nil {
			m.failedSwitches++
			m.events.Record(ClockEvent{
				Type:   EvtSwitchFail,
				Level:  uint8(target),
				Tick:   m.now(),
				Value1: uint32(step),
				Value2: errorCode(err),
			})
			if step > StepStartHSE && !m.rollback(prev) {
				m.resync()
				resynced = true
			} else {
				m.releaseHSE(prev)
			}
			return &SwitchError{Step: step, Level: uint8(target), Err: err}
		}

		// Commit confirmed; cache the new operating point
		m.level = target
		m.freq = d.Frequency
		return nil
	})
	if err != nil {
		DebugAsync("[CLKM] " + err.Error())
		if resynced {
			m.timebase.Reconfigure(m.freq)
			m.delay.Reconfigure(m.freq)
			DebugAsync("[CLKM] rollback failed, running at " + formatMHz(m.freq))
		}
		return err
	}

	m.switches++
	m.events.Record(ClockEvent{
		Type:   EvtSwitch,
		Level:  uint8(target),
		Tick:   m.now(),
		Value1: uint32(old),
		Value2: d.Frequency,
	})

	// Dependent timing is recalibrated only once the new clock is running
	m.timebase.Reconfigure(d.Frequency)
	m.delay.Reconfigure(d.Frequency)

	DebugAsync("[CLKM] level " + utoa(uint32(old)) + " -> " + utoa(uint32(target)) + " " + formatMHz(d.Frequency))
	return nil
}

// apply runs the ordered switch sequence for d. It returns the failing
// step together with the error.
func (m *ClockManager) apply(d FrequencyDescriptor) (SwitchStep, error) {
	drv := m.driver

	// 1. External oscillator first, everything else depends on it
	if d.needsHSE() {
		drv.StartOscillator(SourceHSE)
		if !m.wait(func() bool { return drv.OscillatorReady(SourceHSE) }) {
			return StepStartHSE, ErrOscillatorNotFound
		}
	}

	// 2. The PLL cannot be touched while it drives SYSCLK; park on HSI
	if drv.SystemClockSource() == SourcePLL {
		drv.StartOscillator(SourceHSI)
		if !m.wait(func() bool { return drv.OscillatorReady(SourceHSI) }) {
			return StepLeavePLL, ErrOscillatorNotFound
		}
		drv.SelectSystemClock(SourceHSI)
		if !m.wait(func() bool { return drv.SystemClockSource() == SourceHSI }) {
			return StepLeavePLL, ErrOscillatorNotFound
		}
	}

	// 3. Multiplier changes require the PLL off
	if drv.PLLEnabled() {
		drv.DisablePLL()
		if !m.wait(func() bool { return !drv.PLLReady() }) {
			return StepStopPLL, ErrPLLLockTimeout
		}
	}

	// 4. SYSCLK is at most 8MHz here, any wait-state count is safe
	drv.SetFlashLatency(d.FlashLatency)

	// 5. Program the multiplier
	if d.Source == SourcePLL {
		if err := drv.ConfigurePLL(d.PLLMul); err != nil {
			return StepConfigurePLL, err
		}
	}

	// 6. Bring up the target source
	switch d.Source {
	case SourcePLL:
		drv.EnablePLL()
		if !m.wait(drv.PLLReady) {
			return StepEnableSource, ErrPLLLockTimeout
		}
	case SourceHSI:
		drv.StartOscillator(SourceHSI)
		if !m.wait(func() bool { return drv.OscillatorReady(SourceHSI) }) {
			return StepEnableSource, ErrOscillatorNotFound
		}
	}

	// 7. Commit and wait for SWS to follow SW
	drv.SelectSystemClock(d.Source)
	if !m.wait(func() bool { return drv.SystemClockSource() == d.Source }) {
		if d.Source == SourcePLL {
			return StepCommit, ErrPLLLockTimeout
		}
		return StepCommit, ErrOscillatorNotFound
	}

	return 0, nil
}

// rollback re-applies a snapshot taken before a failed switch and reports
// whether the hardware is back in it
func (m *ClockManager) rollback(prev clockSnapshot) bool {
	m.rollbacks++
	var err error
	if cur := m.snapshot(); cur.source == prev.source && cur.mul == prev.mul &&
		cur.latency == prev.latency && cur.pllOn == prev.pllOn {
		// SYSCLK never left the old configuration; only SW may be stale
		m.driver.SelectSystemClock(prev.source)
	} else {
		_, err = m.apply(prev.descriptor())
	}
	ok := uint32(1)
	if err != nil {
		ok = 0
		m.rollbackFailures++
	}
	m.events.Record(ClockEvent{
		Type:   EvtRollback,
		Level:  uint8(m.level),
		Tick:   m.now(),
		Value1: ok,
		Value2: prev.frequency(),
	})
	return err == nil
}

// resync reloads the cached operating point from the clock tree after a
// failed rollback. The level is only updated when the running frequency
// is a table entry.
func (m *ClockManager) resync() {
	m.freq = m.snapshot().frequency()
	if l, ok := LevelForFrequency(m.freq); ok {
		m.level = l
	}
}

// releaseHSE stops an external oscillator the failed attempt started when
// nothing in the restored configuration runs from it
func (m *ClockManager) releaseHSE(prev clockSnapshot) {
	drv := m.driver
	if prev.hseReady || drv.SystemClockSource() != SourceHSI || drv.PLLEnabled() {
		return
	}
	drv.StopOscillator(SourceHSE)
}

// errorCode maps sentinel errors to the event ring value
func errorCode(err error) uint32 {
	switch ErrorName(err) {
	case "not_initialized":
		return 10
	case "invalid_frequency":
		return 11
	case "pll_lock_timeout":
		return 12
	case "switch_too_fast":
		return 13
	case "oscillator_not_found":
		return 14
	case "mode_conflict":
		return 15
	default:
		return 1
	}
}
