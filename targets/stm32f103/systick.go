//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"
)

// SysTick register map (Cortex-M3)
const (
	systickCTRL = 0xE000E010
	systickLOAD = 0xE000E014
	systickVAL  = 0xE000E018

	ctrlENABLE    = 1 << 0
	ctrlCOUNTFLAG = 1 << 16
)

var (
	stCTRL = (*volatile.Register32)(unsafe.Pointer(uintptr(systickCTRL)))
	stLOAD = (*volatile.Register32)(unsafe.Pointer(uintptr(systickLOAD)))
	stVAL  = (*volatile.Register32)(unsafe.Pointer(uintptr(systickVAL)))
)

// SysTickCounter implements core.DownCounter on SysTick clocked at HCLK/8
// (CLKSOURCE=0) with its interrupt disabled
type SysTickCounter struct{}

func (s *SysTickCounter) Start(load uint32) {
	stLOAD.Set(load & 0xFFFFFF)
	stVAL.Set(0)
	stCTRL.Set(ctrlENABLE)
}

func (s *SysTickCounter) Running() bool {
	return stCTRL.HasBits(ctrlENABLE)
}

func (s *SysTickCounter) CountFlag() bool {
	return stCTRL.HasBits(ctrlCOUNTFLAG)
}

func (s *SysTickCounter) Stop() {
	stCTRL.Set(0)
	stVAL.Set(0)
}
