//go:build stm32f103

package main

import (
	"device/stm32"
	"freqscale/core"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// TIM2 register map
const (
	tim2Base = 0x40000000
	timCR1   = tim2Base + 0x00
	timDIER  = tim2Base + 0x0C
	timSR    = tim2Base + 0x10
	timEGR   = tim2Base + 0x14
	timPSC   = tim2Base + 0x28
	timARR   = tim2Base + 0x2C

	apb1enrTIM2 = 1 << 0
	cr1CEN      = 1 << 0
	cr1ARPE     = 1 << 7
	dierUIE     = 1 << 0
	srUIF       = 1 << 0
	egrUG       = 1 << 0
)

var (
	tim2CR1  = (*volatile.Register32)(unsafe.Pointer(uintptr(timCR1)))
	tim2DIER = (*volatile.Register32)(unsafe.Pointer(uintptr(timDIER)))
	tim2SR   = (*volatile.Register32)(unsafe.Pointer(uintptr(timSR)))
	tim2EGR  = (*volatile.Register32)(unsafe.Pointer(uintptr(timEGR)))
	tim2PSC  = (*volatile.Register32)(unsafe.Pointer(uintptr(timPSC)))
	tim2ARR  = (*volatile.Register32)(unsafe.Pointer(uintptr(timARR)))
)

// TIM2Timer implements core.TickTimer on TIM2
type TIM2Timer struct{}

// Configure stops the counter, loads PSC/ARR through an update event and
// restarts it with the update interrupt enabled
func (t *TIM2Timer) Configure(prescaler, reload uint16) {
	regAPB1ENR.SetBits(apb1enrTIM2)

	tim2CR1.ClearBits(cr1CEN)
	tim2PSC.Set(uint32(prescaler))
	tim2ARR.Set(uint32(reload))
	tim2EGR.Set(egrUG)
	tim2SR.ClearBits(srUIF) // UG sets UIF; drop it
	tim2DIER.SetBits(dierUIE)
	tim2CR1.SetBits(cr1ARPE | cr1CEN)
}

func (t *TIM2Timer) APB1Divider() uint8 {
	return apb1Divider()
}

var timebase *core.TimeBase

// enableTickInterrupt routes the TIM2 update interrupt to tb
func enableTickInterrupt(tb *core.TimeBase) {
	timebase = tb
	irq := interrupt.New(stm32.IRQ_TIM2, func(interrupt.Interrupt) {
		if !tim2SR.HasBits(srUIF) {
			return
		}
		tim2SR.ClearBits(srUIF)
		timebase.HandleInterrupt()
	})
	irq.SetPriority(0xC0)
	irq.Enable()
}
