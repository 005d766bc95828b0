package core

import (
	"errors"
	"strings"
	"testing"
)

func TestInitIdempotent(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	if !m.Initialized() {
		t.Fatal("Manager not initialized")
	}
	if m.GetCurrentLevel() != Level72MHz || m.GetCurrentMode() != ModeManual {
		t.Errorf("Expected level 0 manual, got %d %s", m.GetCurrentLevel(), m.GetCurrentMode())
	}
	if m.GetCurrentFrequency() != 72000000 {
		t.Errorf("Expected 72MHz, got %d", m.GetCurrentFrequency())
	}

	m.SetFixedLevel(Level48MHz)
	advance(tb, 10)
	if err := m.Init(); err != nil {
		t.Errorf("Second Init failed: %v", err)
	}
	if m.GetCurrentLevel() != Level48MHz {
		t.Errorf("Second Init reset level to %d", m.GetCurrentLevel())
	}
	if m.Stats().Switches != 1 {
		t.Errorf("Expected 1 switch, got %d", m.Stats().Switches)
	}
}

func TestNotInitialized(t *testing.T) {
	drv := newMockClockDriver()
	tb := NewTimeBase(&mockTickTimer{apb1Div: 2})
	delay, _ := NewDelay(&mockDownCounter{}, 72000000)
	m := NewClockManager(drv, tb, delay, DefaultConfig())

	if err := m.SetMode(ModeAutomatic, 8); err != ErrNotInitialized {
		t.Errorf("SetMode: expected ErrNotInitialized, got %v", err)
	}
	if err := m.SetFixedLevel(3); err != ErrNotInitialized {
		t.Errorf("SetFixedLevel: expected ErrNotInitialized, got %v", err)
	}
	if err := m.AdjustLevel(1); err != ErrNotInitialized {
		t.Errorf("AdjustLevel: expected ErrNotInitialized, got %v", err)
	}

	m.BusyHook()
	m.AdaptiveTask()
	if len(drv.calls) != 0 {
		t.Errorf("Hardware touched before Init: %v", drv.calls)
	}
}

func TestSwitchSequenceOrder(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())

	if err := m.SetFixedLevel(Level48MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}

	want := []string{
		"start HSE",
		"start HSI", "select HSI",
		"pll off",
		"latency 1",
		"mul 6",
		"pll on",
		"select PLL",
	}
	if strings.Join(drv.calls, ",") != strings.Join(want, ",") {
		t.Errorf("Expected sequence %v, got %v", want, drv.calls)
	}
}

func TestSwitchToInternalOscillator(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())

	if err := m.SetFixedLevel(Level8MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}

	want := []string{
		"start HSI", "select HSI",
		"pll off",
		"latency 0",
		"start HSI",
		"select HSI",
	}
	if strings.Join(drv.calls, ",") != strings.Join(want, ",") {
		t.Errorf("Expected sequence %v, got %v", want, drv.calls)
	}
	if drv.pllOn {
		t.Error("PLL left running at 8MHz")
	}
	if m.GetCurrentFrequency() != 8000000 {
		t.Errorf("Expected 8MHz, got %d", m.GetCurrentFrequency())
	}
}

func TestSwitchRunsWithInterruptsMasked(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())

	if err := m.SetFixedLevel(Level24MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}
	if drv.selects == 0 || drv.maskedSelects != drv.selects {
		t.Errorf("%d of %d SYSCLK writes were made with interrupts enabled", drv.selects-drv.maskedSelects, drv.selects)
	}
	if InterruptsMasked() {
		t.Error("Interrupts still masked after switch")
	}
}

func TestSwitchRecalibratesTimeBase(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	if psc, arr := tb.Params(); psc != 1 || arr != 35999 {
		t.Errorf("Expected 1/35999 at 72MHz, got %d/%d", psc, arr)
	}
	if err := m.SetFixedLevel(Level8MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}
	if psc, arr := tb.Params(); psc != 0 || arr != 7999 {
		t.Errorf("Expected 0/7999 at 8MHz, got %d/%d", psc, arr)
	}
	if m.delay.perMS != 1000 {
		t.Errorf("Expected delay factor 1000/ms at 8MHz, got %d", m.delay.perMS)
	}
}

func TestInvalidLevelChangesNothing(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())

	if err := m.SetMode(ModeAutomatic, 8); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := m.SetMode(ModeManual, NumLevels); err != ErrInvalidFrequency {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
	if m.GetCurrentMode() != ModeAutomatic {
		t.Error("Invalid level changed the mode")
	}

	m.SetMode(ModeManual, 0)
	drv.calls = nil
	advance(m.timebase, 1000)
	if err := m.SetFixedLevel(NumLevels + 3); err != ErrInvalidFrequency {
		t.Errorf("Expected ErrInvalidFrequency, got %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("Hardware touched for invalid level: %v", drv.calls)
	}
}

func TestModeConflict(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	if err := m.SetMode(Mode(7), 0); err != ErrModeConflict {
		t.Errorf("Unknown mode: expected ErrModeConflict, got %v", err)
	}

	m.SetMode(ModeAutomatic, 8)
	if err := m.SetFixedLevel(Level40MHz); err != ErrModeConflict {
		t.Errorf("SetFixedLevel: expected ErrModeConflict, got %v", err)
	}
	if err := m.AdjustLevel(1); err != ErrModeConflict {
		t.Errorf("AdjustLevel: expected ErrModeConflict, got %v", err)
	}
}

func TestManualSwitchInterval(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	if err := m.SetFixedLevel(Level48MHz); err != nil {
		t.Fatalf("First switch failed: %v", err)
	}
	advance(tb, 999)
	if err := m.SetFixedLevel(Level32MHz); err != ErrSwitchTooFast {
		t.Errorf("Expected ErrSwitchTooFast, got %v", err)
	}
	if m.GetCurrentLevel() != Level48MHz || m.GetCurrentFrequency() != 48000000 {
		t.Errorf("Refused switch changed state: %d %d", m.GetCurrentLevel(), m.GetCurrentFrequency())
	}

	advance(tb, 1)
	if err := m.SetFixedLevel(Level32MHz); err != nil {
		t.Errorf("Switch after interval failed: %v", err)
	}
}

func TestAdjustLevelClamps(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	if err := m.AdjustLevel(-5); err != nil {
		t.Fatalf("AdjustLevel failed: %v", err)
	}
	if m.GetCurrentLevel() != Level72MHz {
		t.Errorf("Expected clamp at 0, got %d", m.GetCurrentLevel())
	}

	advance(tb, 1000)
	if err := m.AdjustLevel(20); err != nil {
		t.Fatalf("AdjustLevel failed: %v", err)
	}
	if m.GetCurrentLevel() != Level8MHz {
		t.Errorf("Expected clamp at 8, got %d", m.GetCurrentLevel())
	}
}

func TestRejectedMultiplierRollsBack(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())
	drv.rejectMul = 6

	err := m.SetFixedLevel(Level48MHz)
	var swErr *SwitchError
	if !errors.As(err, &swErr) {
		t.Fatalf("Expected SwitchError, got %v", err)
	}
	if swErr.Step != StepConfigurePLL || !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Expected configure_pll/invalid_frequency, got %v", err)
	}

	if drv.sws != SourcePLL || drv.mul != 9 || drv.latency != 2 {
		t.Errorf("Hardware not restored: %s x%d ws%d", drv.sws, drv.mul, drv.latency)
	}
	if m.GetCurrentLevel() != Level72MHz || m.GetCurrentFrequency() != 72000000 {
		t.Errorf("Manager state changed: %d %d", m.GetCurrentLevel(), m.GetCurrentFrequency())
	}

	evts := m.Events().Snapshot()
	if len(evts) != 2 || evts[0].Type != EvtSwitchFail || evts[1].Type != EvtRollback {
		t.Fatalf("Expected fail+rollback events, got %+v", evts)
	}
	if evts[0].Value1 != uint32(StepConfigurePLL) || evts[1].Value1 != 1 {
		t.Errorf("Unexpected event values %+v", evts)
	}
}

func TestMissingHSEFailsBeforeTouchingSysclk(t *testing.T) {
	m, drv, _ := newTestManager(Config{WaitPolls: 100})
	drv.noHSE = true

	err := m.SetFixedLevel(Level64MHz)
	if !errors.Is(err, ErrOscillatorNotFound) {
		t.Fatalf("Expected ErrOscillatorNotFound, got %v", err)
	}
	if len(drv.calls) != 1 || drv.calls[0] != "start HSE" {
		t.Errorf("Expected only HSE start, got %v", drv.calls)
	}
	if s := m.Stats(); s.FailedSwitches != 1 || s.Rollbacks != 0 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestPLLLockTimeout(t *testing.T) {
	m, drv, tb := newTestManager(Config{WaitPolls: 100})
	drv.pllNeverLock = true

	err := m.SetFixedLevel(Level16MHz)
	if !errors.Is(err, ErrPLLLockTimeout) {
		t.Fatalf("Expected ErrPLLLockTimeout, got %v", err)
	}
	if ErrorName(err) != "pll_lock_timeout" {
		t.Errorf("Expected pll_lock_timeout, got %s", ErrorName(err))
	}
	// The rollback needs the PLL too
	if s := m.Stats(); s.RollbackFailures != 1 {
		t.Errorf("Expected rollback failure, got %+v", s)
	}

	// Stuck on HSI: the cached state and the tick follow the hardware
	if drv.sws != SourceHSI {
		t.Fatalf("Expected SYSCLK parked on HSI, got %s", drv.sws)
	}
	if m.GetCurrentLevel() != Level8MHz || m.GetCurrentFrequency() != 8000000 {
		t.Errorf("Expected level 8 at 8MHz, got %d %d", m.GetCurrentLevel(), m.GetCurrentFrequency())
	}
	if psc, arr := tb.Params(); psc != 0 || arr != 7999 {
		t.Errorf("Expected 0/7999 after failed rollback, got %d/%d", psc, arr)
	}
	if m.delay.perMS != 1000 {
		t.Errorf("Expected delay factor 1000/ms, got %d", m.delay.perMS)
	}
}

func TestSuccessfulRollbackKeepsCachedState(t *testing.T) {
	m, drv, tb := newTestManager(DefaultConfig())
	drv.rejectMul = 4

	if err := m.SetFixedLevel(Level32MHz); err == nil {
		t.Fatal("Expected switch to fail")
	}
	if m.GetCurrentLevel() != Level72MHz || m.GetCurrentFrequency() != 72000000 {
		t.Errorf("Manager state changed: %d %d", m.GetCurrentLevel(), m.GetCurrentFrequency())
	}
	if psc, arr := tb.Params(); psc != 1 || arr != 35999 {
		t.Errorf("TimeBase reprogrammed after rollback: %d/%d", psc, arr)
	}
}

func TestFailedHSEStartStopsOscillator(t *testing.T) {
	m, drv, tb := newTestManager(Config{WaitPolls: 100})

	if err := m.SetFixedLevel(Level8MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}
	advance(tb, 1000)

	// Crystal gone while running from HSI
	drv.hseOn = false
	drv.noHSE = true
	drv.calls = nil

	err := m.SetFixedLevel(Level64MHz)
	var swErr *SwitchError
	if !errors.As(err, &swErr) || swErr.Step != StepStartHSE {
		t.Fatalf("Expected start_hse failure, got %v", err)
	}
	want := []string{"start HSE", "stop HSE"}
	if strings.Join(drv.calls, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, drv.calls)
	}
	if drv.hseOn {
		t.Error("HSE left on")
	}
}

func TestManualAfterAutoUsesLastSwitch(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	if err := m.SetFixedLevel(Level48MHz); err != nil {
		t.Fatalf("SetFixedLevel failed: %v", err)
	}
	advance(tb, 5000)
	if err := m.SetMode(ModeAutomatic, 8); err != nil {
		t.Fatalf("SetMode auto failed: %v", err)
	}
	advance(tb, 100)

	if err := m.SetMode(ModeManual, uint8(Level32MHz)); err != nil {
		t.Fatalf("SetMode manual 100ms after auto failed: %v", err)
	}
	if m.GetCurrentMode() != ModeManual || m.GetCurrentLevel() != Level32MHz {
		t.Errorf("Expected manual at level 5, got %s %d", m.GetCurrentMode(), m.GetCurrentLevel())
	}

	// The guard still counts from the switch just made
	if err := m.SetMode(ModeManual, uint8(Level16MHz)); err != ErrSwitchTooFast {
		t.Errorf("Expected ErrSwitchTooFast, got %v", err)
	}
}

func TestAutoEntryRestartsPolicyInterval(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	advance(tb, 10000)
	m.SetMode(ModeAutomatic, 8)
	advance(tb, 4000)
	m.IdleHook()
	m.AdaptiveTask()
	if m.GetCurrentLevel() != Level72MHz {
		t.Errorf("Downshift 4s after entering auto: %d", m.GetCurrentLevel())
	}

	advance(tb, 1000)
	m.IdleHook()
	m.AdaptiveTask()
	if m.GetCurrentLevel() != Level64MHz {
		t.Errorf("Expected downshift 5s after entering auto, got %d", m.GetCurrentLevel())
	}
}

func TestUpshiftAtExactlyHighThreshold(t *testing.T) {
	tests := []struct {
		busy, idle int
		want       Level
	}{
		{50, 50, Level32MHz},
		{49, 51, Level8MHz},
	}

	for _, tt := range tests {
		m, _, tb := newTestManager(DefaultConfig())
		if err := m.SetFixedLevel(Level8MHz); err != nil {
			t.Fatalf("SetFixedLevel failed: %v", err)
		}
		m.SetMode(ModeAutomatic, 8)
		advance(tb, 1000)

		for i := 0; i < tt.busy; i++ {
			m.BusyHook()
		}
		for i := 0; i < tt.idle; i++ {
			m.IdleHook()
		}
		m.AdaptiveTask()

		if m.GetCPULoad() != uint8(tt.busy) {
			t.Errorf("Expected load %d, got %d", tt.busy, m.GetCPULoad())
		}
		if m.GetCurrentLevel() != tt.want {
			t.Errorf("Load %d%%: expected level %d, got %d", tt.busy, tt.want, m.GetCurrentLevel())
		}
	}
}

func TestAutoModeFloor(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	m.SetMode(ModeAutomatic, 200)
	if m.Floor() != Level8MHz {
		t.Errorf("Expected floor 8, got %d", m.Floor())
	}
	m.SetMode(ModeAutomatic, 4)
	if m.Floor() != Level40MHz {
		t.Errorf("Expected floor 4, got %d", m.Floor())
	}
}

func TestHooksIgnoredInManual(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	m.BusyHook()
	m.IdleHook()
	if m.load.busyTicks != 0 || m.load.idleTicks != 0 {
		t.Errorf("Hooks counted in manual mode: %d/%d", m.load.busyTicks, m.load.idleTicks)
	}
}

func TestHooksDisabled(t *testing.T) {
	m, _, _ := newTestManager(Config{HooksDisabled: true})
	m.SetMode(ModeAutomatic, 8)

	m.BusyHook()
	if m.load.busyTicks != 0 {
		t.Error("BusyHook counted while disabled")
	}
}

func TestAdaptiveTaskSamplesOnWindow(t *testing.T) {
	m, drv, tb := newTestManager(DefaultConfig())
	m.SetMode(ModeAutomatic, 8)

	for i := 0; i < 10; i++ {
		m.BusyHook()
	}
	advance(tb, 49)
	m.AdaptiveTask()
	if m.GetCPULoad() != 0 {
		t.Errorf("Sampled before window closed: %d", m.GetCPULoad())
	}

	advance(tb, 1)
	m.AdaptiveTask()
	if m.GetCPULoad() != 100 {
		t.Errorf("Expected load 100, got %d", m.GetCPULoad())
	}
	if len(drv.calls) != 0 {
		t.Errorf("Switched at level 0: %v", drv.calls)
	}
}

func TestAdaptiveDisabled(t *testing.T) {
	m, _, tb := newTestManager(Config{AdaptiveDisabled: true})
	m.SetMode(ModeAutomatic, 8)

	advance(tb, 6000)
	m.AdaptiveTask()
	if m.GetCurrentLevel() != Level72MHz {
		t.Errorf("Switched while adaptive disabled: %d", m.GetCurrentLevel())
	}
}

func TestPolicy(t *testing.T) {
	m, _, _ := newTestManager(DefaultConfig())

	tests := []struct {
		name   string
		level  Level
		floor  Level
		load   uint8
		since  uint32
		want   Level
		wantOK bool
	}{
		{"upshift", Level8MHz, Level8MHz, 70, 1000, Level32MHz, true},
		{"upshift at threshold", Level40MHz, Level8MHz, 50, 1000, Level64MHz, true},
		{"upshift clamps", Level64MHz, Level8MHz, 90, 5000, Level72MHz, true},
		{"upshift too soon", Level8MHz, Level8MHz, 90, 999, 0, false},
		{"already fastest", Level72MHz, Level8MHz, 100, 5000, 0, false},
		{"downshift", Level72MHz, Level8MHz, 0, 5000, Level64MHz, true},
		{"downshift too soon", Level72MHz, Level8MHz, 0, 4999, 0, false},
		{"at floor", Level32MHz, Level32MHz, 0, 9000, 0, false},
		{"below floor", Level16MHz, Level32MHz, 0, 9000, 0, false},
		{"low threshold is dead band", Level40MHz, Level8MHz, 30, 9000, 0, false},
		{"dead band", Level40MHz, Level8MHz, 49, 9000, 0, false},
	}

	for _, tt := range tests {
		m.level = tt.level
		m.floor = tt.floor
		got, ok := m.policy(tt.load, tt.since)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("%s: expected (%d, %v), got (%d, %v)", tt.name, tt.want, tt.wantOK, got, ok)
		}
	}
}

func TestPolicyCustomSteps(t *testing.T) {
	m, _, _ := newTestManager(Config{UpJump: 1, DownStep: 4})
	m.level = Level40MHz
	m.floor = Level16MHz

	if got, ok := m.policy(80, 1000); !ok || got != Level48MHz {
		t.Errorf("Expected upshift to 3, got %d %v", got, ok)
	}
	if got, ok := m.policy(0, 5000); !ok || got != Level16MHz {
		t.Errorf("Expected downshift clamped to floor 7, got %d %v", got, ok)
	}
}

func TestOneSecondEstimate(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())
	m.SetMode(ModeAutomatic, 8)

	for i := 0; i < 4; i++ {
		m.IdleHook()
	}
	advance(tb, 1000)

	if m.EstimatedCPULoad() != 60 {
		t.Errorf("Expected estimate 60, got %d", m.EstimatedCPULoad())
	}
	if m.GetCPULoad() != 0 {
		t.Errorf("Estimate leaked into sampled load: %d", m.GetCPULoad())
	}

	for i := 0; i < 25; i++ {
		m.IdleHook()
	}
	advance(tb, 1000)
	if m.EstimatedCPULoad() != 0 {
		t.Errorf("Expected estimate 0 when idle above loop rate, got %d", m.EstimatedCPULoad())
	}
}

func TestProbeExternalOscillator(t *testing.T) {
	m, drv, _ := newTestManager(DefaultConfig())
	if !m.ProbeExternalOscillator(10) {
		t.Error("Probe failed with HSE present")
	}
	drv.noHSE = true
	if m.ProbeExternalOscillator(10) {
		t.Error("Probe succeeded without HSE")
	}
	if InterruptsMasked() {
		t.Error("Probe left interrupts masked")
	}
}

func TestFrequencyWatcher(t *testing.T) {
	var w FrequencyWatcher

	if _, changed := w.Changed(72000000); !changed {
		t.Error("First reading not reported")
	}
	if _, changed := w.Changed(72000000); changed {
		t.Error("Unchanged frequency reported")
	}
	if hz, changed := w.Changed(8000000); !changed || hz != 8000000 {
		t.Errorf("Change not reported: %d %v", hz, changed)
	}
}

func TestSwitchEvents(t *testing.T) {
	m, _, tb := newTestManager(DefaultConfig())

	advance(tb, 7)
	m.SetFixedLevel(Level24MHz)

	evts := m.Events().Snapshot()
	if len(evts) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(evts))
	}
	e := evts[0]
	if e.Type != EvtSwitch || e.Level != uint8(Level24MHz) || e.Tick != 7 || e.Value1 != 0 || e.Value2 != 24000000 {
		t.Errorf("Unexpected switch event %+v", e)
	}
}
