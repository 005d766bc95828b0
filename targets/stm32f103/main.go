//go:build stm32f103

package main

import (
	"device/arm"
	"freqscale/core"
	"machine"
	"runtime"
	"strconv"
)

const (
	hseProbePolls    = 50000
	waitTimeoutCyc   = 7200000 // 100ms at 72MHz, 900ms at 8MHz
	statusIntervalMS = 1000
	drawIntervalMS   = 250
	ledPeriodMS      = 500
)

var (
	uart    = machine.UART1
	led     = machine.LED
	lineBuf [64]byte
	lineLen int
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: consoleBaud})
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.I2C1.Configure(machine.I2CConfig{Frequency: i2cBusHz})

	// The runtime leaves SYSCLK on PLL x9; PCLK1 must stay within 36MHz
	setAPB1Div2()

	driver := NewF1ClockDriver()
	bootHz := uint32(72000000)
	if driver.SystemClockSource() != core.SourcePLL {
		bootHz = core.HSIFrequency
	}

	tb := core.NewTimeBase(&TIM2Timer{})
	if err := tb.Init(bootHz); err != nil {
		halt("timebase: " + err.Error())
	}
	enableTickInterrupt(tb)

	delay, err := core.NewDelay(&SysTickCounter{}, bootHz)
	if err != nil {
		halt("delay: " + err.Error())
	}

	manager := core.NewClockManager(driver, tb, delay, core.DefaultConfig())
	enableCycleCounter()
	manager.SetWaitClock(cycles, waitTimeoutCyc)
	if err := manager.Init(); err != nil {
		halt("clock manager: " + err.Error())
	}

	// Pick the fastest level the board can reach
	if manager.ProbeExternalOscillator(hseProbePolls) {
		if err := manager.SetFixedLevel(core.Level72MHz); err != nil {
			core.DebugAsync("[CLKM] 72MHz failed, falling back: " + err.Error())
			fallbackToHSI(manager)
		}
	} else {
		core.DebugAsync("[CLKM] no HSE, running on HSI")
		fallbackToHSI(manager)
	}

	var watcher core.FrequencyWatcher
	watcher.Changed(bootHz)
	retunePeripherals(&watcher, manager)

	display := newStatusDisplay(machine.I2C1)

	blink := &core.SoftTimer{Period: ledPeriodMS, Mode: core.TimerPeriodic, Handler: func(*core.SoftTimer) {
		led.Set(!led.Get())
	}}
	tb.StartTimer(blink)

	if err := manager.SetMode(core.ModeAutomatic, uint8(core.Level8MHz)); err != nil {
		core.DebugAsync("[CLKM] auto mode: " + err.Error())
	}

	gen := newLoadGenerator(tb.GetTick()^0x9E3779B9, tb.GetTick())
	lastStatus := tb.GetTick()
	lastDraw := tb.GetTick()

	for {
		pollConsole(manager)

		now := tb.GetTick()
		if gen.busy(now) {
			manager.BusyHook()
			delay.DelayMilliseconds(1)
		} else {
			manager.IdleHook()
			for tb.GetTick() == now {
				arm.Asm("wfi")
			}
		}

		manager.AdaptiveTask()
		retunePeripherals(&watcher, manager)

		if tb.Expired(lastStatus, statusIntervalMS) {
			lastStatus = tb.GetTick()
			core.DebugAsync(manager.StatusLine())
		}
		if tb.Expired(lastDraw, drawIntervalMS) {
			lastDraw = tb.GetTick()
			display.draw(manager, gen)
		}

		// Let the debug worker drain
		runtime.Gosched()
	}
}

// fallbackToHSI selects the internal 8MHz level. A failure is reported and
// the board keeps whatever clock it is on.
func fallbackToHSI(m *core.ClockManager) {
	if m.GetCurrentFrequency() == core.HSIFrequency && m.GetCurrentLevel() == core.Level8MHz {
		return
	}
	if err := m.SetFixedLevel(core.Level8MHz); err != nil {
		core.DebugAsync("[CLKM] 8MHz fallback failed: " + err.Error() + ", running at " +
			strconv.Itoa(int(m.GetCurrentFrequency()/1000000)) + "MHz")
	}
}

// retunePeripherals re-derives bus timing after a core clock change
func retunePeripherals(w *core.FrequencyWatcher, m *core.ClockManager) {
	if hz, changed := w.Changed(m.GetCurrentFrequency()); changed {
		retuneUART(hz)
		retuneI2C(hz)
	}
}

// pollConsole collects one line from the UART and runs it
func pollConsole(m *core.ClockManager) {
	for uart.Buffered() > 0 {
		c, err := uart.ReadByte()
		if err != nil {
			return
		}
		switch c {
		case '\r', '\n':
			if lineLen > 0 {
				reply := m.HandleConsoleCommand(string(lineBuf[:lineLen]))
				lineLen = 0
				core.DebugAsync(reply)
			}
		default:
			if lineLen < len(lineBuf) {
				lineBuf[lineLen] = c
				lineLen++
			}
		}
	}
}

func halt(msg string) {
	core.DebugPrintln("[CLKM] fatal: " + msg)
	for {
		arm.Asm("wfi")
	}
}
