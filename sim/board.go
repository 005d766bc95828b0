// Package sim models the parts of an STM32F1 that the clock manager
// touches: the RCC clock tree with flash wait states, TIM2 as the TimeBase
// interrupt source and SysTick as the delay counter. Time is virtual and
// only moves when the board is advanced or a delay spins.
package sim

import (
	"freqscale/core"
)

const nsPerSecond = 1000000000

// Board ties the simulated peripherals to one virtual clock
type Board struct {
	RCC     *RCC
	TIM2    *TIM2
	SysTick *SysTick

	now      uint64 // virtual time in ns
	inIRQ    bool
	handler  func()
	irqCount uint64

	// IRQViolations counts blocking-delay use from the tick interrupt
	IRQViolations int
}

// Option adjusts a board before reset
type Option func(*Board)

// WithoutHSE models a board with no external crystal fitted. It boots on
// the internal oscillator.
func WithoutHSE() Option {
	return func(b *Board) {
		b.RCC.HSEPresent = false
	}
}

// WithPLLLockFailures makes the first n PLL enables never lock
func WithPLLLockFailures(n int) Option {
	return func(b *Board) {
		b.RCC.PLLLockFailures = n
	}
}

// WithHSIBroken keeps HSIRDY low. The board still boots on the PLL, but
// every switch that has to park on the internal oscillator fails.
func WithHSIBroken() Option {
	return func(b *Board) {
		b.RCC.HSIBroken = true
	}
}

// WithSwitchFailures makes the first n SYSCLK selections never take effect
func WithSwitchFailures(n int) Option {
	return func(b *Board) {
		b.RCC.SwitchFailures = n
	}
}

// WithAPB1Divider sets the APB1 prescaler feeding TIM2
func WithAPB1Divider(div uint8) Option {
	return func(b *Board) {
		b.TIM2.apb1Div = div
	}
}

// NewBoard returns a board in the state the startup code leaves it: HSE on,
// PLL x9 locked and driving SYSCLK at 72MHz with two flash wait states.
// Without HSE it stays on HSI at 8MHz.
func NewBoard(opts ...Option) *Board {
	b := &Board{}
	b.RCC = newRCC(b)
	b.TIM2 = &TIM2{board: b, apb1Div: 2}
	b.SysTick = &SysTick{board: b, PollNS: 10000}
	for _, opt := range opts {
		opt(b)
	}
	b.RCC.systemInit()
	return b
}

// Now returns the virtual time in ns
func (b *Board) Now() uint64 {
	return b.now
}

// NowMicros is a MonotonicClock in microseconds
func (b *Board) NowMicros() uint32 {
	return uint32(b.now / 1000)
}

// CoreHz returns the current SYSCLK frequency
func (b *Board) CoreHz() uint32 {
	return b.RCC.sysclk()
}

// AttachTimeBase routes the TIM2 update interrupt to tb
func (b *Board) AttachTimeBase(tb *core.TimeBase) {
	b.handler = tb.HandleInterrupt
}

// Interrupts returns how many TIM2 update interrupts have fired
func (b *Board) Interrupts() uint64 {
	return b.irqCount
}

// Advance moves virtual time forward by ns, firing every TIM2 update
// interrupt that falls due on the way at its exact time
func (b *Board) Advance(ns uint64) {
	for ns > 0 {
		step, fire := b.TIM2.nextUpdate(ns)
		b.now += step
		ns -= step
		if fire {
			b.fireIRQ()
		}
	}
}

// AdvanceMillis advances by ms milliseconds of real time
func (b *Board) AdvanceMillis(ms uint32) {
	b.Advance(uint64(ms) * 1000000)
}

func (b *Board) fireIRQ() {
	b.irqCount++
	if b.handler == nil {
		return
	}
	b.inIRQ = true
	b.handler()
	b.inIRQ = false
}

// System bundles a booted board with a wired TimeBase, Delay and
// ClockManager, the way the firmware main sets them up
type System struct {
	Board    *Board
	TimeBase *core.TimeBase
	Delay    *core.Delay
	Manager  *core.ClockManager
}

// NewSystem boots a board and initializes the timing stack on it
func NewSystem(cfg core.Config, opts ...Option) (*System, error) {
	b := NewBoard(opts...)

	tb := core.NewTimeBase(b.TIM2)
	if err := tb.Init(b.CoreHz()); err != nil {
		return nil, err
	}
	b.AttachTimeBase(tb)

	delay, err := core.NewDelay(b.SysTick, b.CoreHz())
	if err != nil {
		return nil, err
	}

	m := core.NewClockManager(b.RCC, tb, delay, cfg)
	if err := m.Init(); err != nil {
		return nil, err
	}

	return &System{Board: b, TimeBase: tb, Delay: delay, Manager: m}, nil
}
