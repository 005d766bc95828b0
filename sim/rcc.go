package sim

import (
	"errors"

	"freqscale/core"
)

// Settle times in ready-flag polls
const (
	HSESettlePolls = 4
	HSISettlePolls = 1
	PLLLockPolls   = 3
)

// MaxSysclk is the STM32F103 SYSCLK limit
const MaxSysclk = 72000000

// ErrPLLWriteProtected is returned when the multiplier is written with the
// PLL running
var ErrPLLWriteProtected = errors.New("PLL configuration written while PLL is on")

// RCC is a simulated reset-and-clock-control block with the flash access
// control register folded in. It implements core.ClockDriver.
//
// Every operation the reference manual forbids is recorded in Violations
// instead of silently corrupting the model.
type RCC struct {
	board *Board

	// HSEPresent is false on boards without an external crystal
	HSEPresent bool
	// HSIBroken keeps HSIRDY low forever
	HSIBroken bool
	// PLLLockFailures makes the next n PLL enables never lock
	PLLLockFailures int
	// SwitchFailures makes the next n SYSCLK selections never take effect
	SwitchFailures int

	hseOn, hsiOn, pllOn bool
	hsePolls, hsiPolls  int
	pllPolls            int
	pllDoomed           bool

	mul     uint8
	latency uint8
	sws     core.ClockSource

	// Violations lists every illegal register access in order
	Violations []string
	// Selections counts SYSCLK source writes
	Selections int
}

func newRCC(b *Board) *RCC {
	return &RCC{board: b, HSEPresent: true}
}

// systemInit mirrors the vendor startup code
func (r *RCC) systemInit() {
	r.hsiOn = true
	r.hsiPolls = HSISettlePolls
	r.sws = core.SourceHSI
	if !r.HSEPresent {
		return
	}
	r.hseOn = true
	r.hsePolls = HSESettlePolls
	r.latency = 2
	r.mul = 9
	r.pllOn = true
	r.pllPolls = PLLLockPolls
	r.sws = core.SourcePLL
}

func (r *RCC) violate(msg string) {
	r.Violations = append(r.Violations, msg)
}

// sysclk returns the frequency SYSCLK is running at
func (r *RCC) sysclk() uint32 {
	switch r.sws {
	case core.SourcePLL:
		return core.HSEFrequency * uint32(r.mul)
	case core.SourceHSE:
		return core.HSEFrequency
	default:
		return core.HSIFrequency
	}
}

func (r *RCC) hseReady() bool {
	return r.hseOn && r.HSEPresent && r.hsePolls >= HSESettlePolls
}

func (r *RCC) hsiReady() bool {
	return r.hsiOn && !r.HSIBroken && r.hsiPolls >= HSISettlePolls
}

func (r *RCC) pllLocked() bool {
	return r.pllOn && !r.pllDoomed && r.hseReady() && r.pllPolls >= PLLLockPolls
}

// StartOscillator sets HSEON or HSION
func (r *RCC) StartOscillator(src core.ClockSource) {
	switch src {
	case core.SourceHSE:
		if !r.hseOn {
			r.hseOn = true
			r.hsePolls = 0
		}
	case core.SourceHSI:
		if !r.hsiOn {
			r.hsiOn = true
			r.hsiPolls = 0
		}
	}
}

// StopOscillator clears HSEON or HSION. Hardware ignores the write while
// the oscillator drives SYSCLK or feeds the running PLL.
func (r *RCC) StopOscillator(src core.ClockSource) {
	switch src {
	case core.SourceHSE:
		if r.sws == core.SourceHSE || r.sws == core.SourcePLL || r.pllOn {
			r.violate("HSE stopped while in use")
			return
		}
		r.hseOn = false
		r.hsePolls = 0
	case core.SourceHSI:
		if r.sws == core.SourceHSI {
			r.violate("HSI stopped while driving SYSCLK")
			return
		}
		r.hsiOn = false
		r.hsiPolls = 0
	}
}

// HSEEnabled reads HSEON
func (r *RCC) HSEEnabled() bool {
	return r.hseOn
}

// OscillatorReady reads HSERDY or HSIRDY; each read is one poll
func (r *RCC) OscillatorReady(src core.ClockSource) bool {
	switch src {
	case core.SourceHSE:
		if r.hseOn {
			r.hsePolls++
		}
		return r.hseReady()
	case core.SourceHSI:
		if r.hsiOn {
			r.hsiPolls++
		}
		return r.hsiReady()
	case core.SourcePLL:
		return r.PLLReady()
	}
	return false
}

// PLLEnabled reads PLLON
func (r *RCC) PLLEnabled() bool {
	return r.pllOn
}

// PLLReady reads PLLRDY; each read is one poll
func (r *RCC) PLLReady() bool {
	if r.pllOn {
		r.pllPolls++
	}
	return r.pllLocked()
}

// EnablePLL sets PLLON
func (r *RCC) EnablePLL() {
	if r.pllOn {
		return
	}
	r.pllOn = true
	r.pllPolls = 0
	r.pllDoomed = false
	if r.PLLLockFailures > 0 {
		r.PLLLockFailures--
		r.pllDoomed = true
	}
	if !r.hseOn {
		r.violate("PLL enabled without HSE")
	}
}

// DisablePLL clears PLLON. Hardware ignores the write while the PLL drives
// SYSCLK.
func (r *RCC) DisablePLL() {
	if r.sws == core.SourcePLL {
		r.violate("PLL disabled while driving SYSCLK")
		return
	}
	r.pllOn = false
	r.pllPolls = 0
}

// ConfigurePLL writes PLLMUL with HSE as the PLL input
func (r *RCC) ConfigurePLL(mul uint8) error {
	if mul < 2 || mul > 16 {
		return core.ErrInvalidFrequency
	}
	if r.pllOn {
		r.violate("PLL multiplier written while PLL on")
		return ErrPLLWriteProtected
	}
	r.mul = mul
	return nil
}

// PLLMultiplier reads PLLMUL
func (r *RCC) PLLMultiplier() uint8 {
	return r.mul
}

// SetFlashLatency writes FLASH_ACR LATENCY. Lowering it below what the
// running SYSCLK needs is a violation.
func (r *RCC) SetFlashLatency(ws uint8) {
	if ws < core.FlashLatencyFor(r.sysclk()) {
		r.violate("flash latency too low for running SYSCLK")
	}
	r.latency = ws
}

// FlashLatency reads FLASH_ACR LATENCY
func (r *RCC) FlashLatency() uint8 {
	return r.latency
}

// SelectSystemClock writes SW. SWS follows at once when the source is
// ready, otherwise the hardware keeps the old source.
func (r *RCC) SelectSystemClock(src core.ClockSource) {
	r.Selections++
	if r.SwitchFailures > 0 {
		r.SwitchFailures--
		return
	}

	var ready bool
	switch src {
	case core.SourceHSI:
		ready = r.hsiReady()
	case core.SourceHSE:
		ready = r.hseReady()
	case core.SourcePLL:
		ready = r.pllLocked()
	}
	if !ready {
		return
	}

	r.sws = src
	hz := r.sysclk()
	if hz > MaxSysclk {
		r.violate("SYSCLK above 72MHz")
	}
	if r.latency < core.FlashLatencyFor(hz) {
		r.violate("SYSCLK raised above flash latency")
	}
}

// SystemClockSource reads SWS
func (r *RCC) SystemClockSource() core.ClockSource {
	return r.sws
}
