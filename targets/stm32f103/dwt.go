//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"
)

// DWT cycle counter, free running with interrupts masked
const (
	dwtCTRL   = 0xE0001000
	dwtCYCCNT = 0xE0001004
	scbDEMCR  = 0xE000EDFC

	demcrTRCENA    = 1 << 24
	dwtCtrlCYCCNTE = 1 << 0
)

var (
	regDWTCTRL = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCTRL)))
	regCYCCNT  = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCYCCNT)))
	regDEMCR   = (*volatile.Register32)(unsafe.Pointer(uintptr(scbDEMCR)))
)

func enableCycleCounter() {
	regDEMCR.SetBits(demcrTRCENA)
	regCYCCNT.Set(0)
	regDWTCTRL.SetBits(dwtCtrlCYCCNTE)
}

// cycles is a core.MonotonicClock in core clock cycles
func cycles() uint32 {
	return regCYCCNT.Get()
}
