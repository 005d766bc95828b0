//go:build stm32f103

package main

import (
	"freqscale/core"
	"runtime/volatile"
	"unsafe"
)

// RCC and FLASH interface memory map (RM0008)
const (
	rccBase    = 0x40021000
	rccCR      = rccBase + 0x00
	rccCFGR    = rccBase + 0x04
	rccAPB1ENR = rccBase + 0x1C

	flashACR = 0x40022000
)

// RCC_CR bits
const (
	crHSION  = 1 << 0
	crHSIRDY = 1 << 1
	crHSEON  = 1 << 16
	crHSERDY = 1 << 17
	crPLLON  = 1 << 24
	crPLLRDY = 1 << 25
)

// RCC_CFGR fields
const (
	cfgrSWMask      = 0x3
	cfgrSWSShift    = 2
	cfgrPPRE1Shift  = 8
	cfgrPPRE1Mask   = 0x7 << cfgrPPRE1Shift
	cfgrPLLSRC      = 1 << 16
	cfgrPLLXTPRE    = 1 << 17
	cfgrPLLMULShift = 18
	cfgrPLLMULMask  = 0xF << cfgrPLLMULShift
)

// FLASH_ACR fields
const (
	acrLatencyMask = 0x7
	acrPRFTBE      = 1 << 4
)

var (
	regCR      = (*volatile.Register32)(unsafe.Pointer(uintptr(rccCR)))
	regCFGR    = (*volatile.Register32)(unsafe.Pointer(uintptr(rccCFGR)))
	regAPB1ENR = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1ENR)))
	regACR     = (*volatile.Register32)(unsafe.Pointer(uintptr(flashACR)))
)

// F1ClockDriver implements core.ClockDriver on the STM32F1 RCC
type F1ClockDriver struct{}

// NewF1ClockDriver constructs the driver
func NewF1ClockDriver() *F1ClockDriver {
	return &F1ClockDriver{}
}

func oscBits(src core.ClockSource) (on, rdy uint32) {
	if src == core.SourceHSE {
		return crHSEON, crHSERDY
	}
	return crHSION, crHSIRDY
}

func (d *F1ClockDriver) StartOscillator(src core.ClockSource) {
	on, _ := oscBits(src)
	regCR.SetBits(on)
}

func (d *F1ClockDriver) StopOscillator(src core.ClockSource) {
	on, _ := oscBits(src)
	regCR.ClearBits(on)
}

func (d *F1ClockDriver) OscillatorReady(src core.ClockSource) bool {
	if src == core.SourcePLL {
		return d.PLLReady()
	}
	_, rdy := oscBits(src)
	return regCR.HasBits(rdy)
}

func (d *F1ClockDriver) PLLEnabled() bool {
	return regCR.HasBits(crPLLON)
}

func (d *F1ClockDriver) PLLReady() bool {
	return regCR.HasBits(crPLLRDY)
}

func (d *F1ClockDriver) EnablePLL() {
	regCR.SetBits(crPLLON)
}

func (d *F1ClockDriver) DisablePLL() {
	regCR.ClearBits(crPLLON)
}

// ConfigurePLL selects HSE undivided as PLL input and writes PLLMUL
func (d *F1ClockDriver) ConfigurePLL(mul uint8) error {
	if mul < 2 || mul > 16 {
		return core.ErrInvalidFrequency
	}
	cfgr := regCFGR.Get()
	cfgr &^= cfgrPLLMULMask | cfgrPLLXTPRE
	cfgr |= cfgrPLLSRC | uint32(mul-2)<<cfgrPLLMULShift
	regCFGR.Set(cfgr)
	return nil
}

func (d *F1ClockDriver) PLLMultiplier() uint8 {
	field := (regCFGR.Get() & cfgrPLLMULMask) >> cfgrPLLMULShift
	mul := uint8(field) + 2
	if mul > 16 {
		mul = 16 // 0b1111 also means x16
	}
	return mul
}

// SetFlashLatency writes the wait states and keeps the prefetch buffer on
func (d *F1ClockDriver) SetFlashLatency(ws uint8) {
	acr := regACR.Get()
	acr &^= acrLatencyMask
	acr |= uint32(ws)&acrLatencyMask | acrPRFTBE
	regACR.Set(acr)
}

func (d *F1ClockDriver) FlashLatency() uint8 {
	return uint8(regACR.Get() & acrLatencyMask)
}

func (d *F1ClockDriver) SelectSystemClock(src core.ClockSource) {
	cfgr := regCFGR.Get()
	cfgr &^= cfgrSWMask
	cfgr |= uint32(src) & cfgrSWMask
	regCFGR.Set(cfgr)
}

func (d *F1ClockDriver) SystemClockSource() core.ClockSource {
	return core.ClockSource((regCFGR.Get() >> cfgrSWSShift) & cfgrSWMask)
}

// apb1Divider decodes PPRE1
func apb1Divider() uint8 {
	ppre := (regCFGR.Get() & cfgrPPRE1Mask) >> cfgrPPRE1Shift
	if ppre < 4 {
		return 1
	}
	return 2 << (ppre - 4)
}

// setAPB1Div2 keeps PCLK1 at SYSCLK/2, within the 36MHz limit at 72MHz
func setAPB1Div2() {
	cfgr := regCFGR.Get()
	cfgr &^= cfgrPPRE1Mask
	cfgr |= 4 << cfgrPPRE1Shift
	regCFGR.Set(cfgr)
}
