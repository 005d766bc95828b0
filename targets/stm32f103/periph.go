//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"
)

// TinyGo derives UART and I2C timing from a fixed CPU frequency; these
// registers are rewritten whenever the core clock moves.
const (
	usart1BRR = 0x40013800 + 0x08 // USART1 on APB2 (PCLK2 = SYSCLK)

	i2c1Base  = 0x40005400 // I2C1 on APB1 (PCLK1 = SYSCLK/2)
	i2c1CR1   = i2c1Base + 0x00
	i2c1CR2   = i2c1Base + 0x04
	i2c1CCR   = i2c1Base + 0x1C
	i2c1TRISE = i2c1Base + 0x20

	i2cCR1PE      = 1 << 0
	i2cCR2FreqMsk = 0x3F

	consoleBaud = 115200
	i2cBusHz    = 100000
)

var (
	regUSART1BRR = (*volatile.Register32)(unsafe.Pointer(uintptr(usart1BRR)))
	regI2C1CR1   = (*volatile.Register32)(unsafe.Pointer(uintptr(i2c1CR1)))
	regI2C1CR2   = (*volatile.Register32)(unsafe.Pointer(uintptr(i2c1CR2)))
	regI2C1CCR   = (*volatile.Register32)(unsafe.Pointer(uintptr(i2c1CCR)))
	regI2C1TRISE = (*volatile.Register32)(unsafe.Pointer(uintptr(i2c1TRISE)))
)

// retuneUART recomputes the USART1 baud divider for a new SYSCLK
func retuneUART(coreHz uint32) {
	regUSART1BRR.Set((coreHz + consoleBaud/2) / consoleBaud)
}

// retuneI2C recomputes the I2C1 standard-mode timing for a new SYSCLK.
// The peripheral must be disabled while CCR and TRISE change.
func retuneI2C(coreHz uint32) {
	pclk1 := coreHz / uint32(apb1Divider())
	mhz := pclk1 / 1000000

	regI2C1CR1.ClearBits(i2cCR1PE)

	cr2 := regI2C1CR2.Get()
	cr2 &^= i2cCR2FreqMsk
	cr2 |= mhz & i2cCR2FreqMsk
	regI2C1CR2.Set(cr2)

	ccr := pclk1 / (2 * i2cBusHz)
	if ccr < 4 {
		ccr = 4
	}
	regI2C1CCR.Set(ccr)
	regI2C1TRISE.Set(mhz + 1)

	regI2C1CR1.SetBits(i2cCR1PE)
}
