package core

// ClockSource identifies a raw clock feeding the system clock mux
type ClockSource uint8

const (
	SourceHSI ClockSource = 0 // Internal 8MHz RC oscillator
	SourceHSE ClockSource = 1 // External crystal oscillator
	SourcePLL ClockSource = 2 // PLL output (HSE multiplied)
)

// String returns the short register-style name of the source
func (s ClockSource) String() string {
	switch s {
	case SourceHSI:
		return "HSI"
	case SourceHSE:
		return "HSE"
	case SourcePLL:
		return "PLL"
	default:
		return "???"
	}
}

// ClockDriver is the abstract clock-tree interface the clock manager uses.
// Platform-specific implementations poke RCC and FLASH registers; the
// simulator implements it for host tests.
type ClockDriver interface {
	// StartOscillator turns on an oscillator (HSEON/HSION). Starting the
	// PLL is done with EnablePLL instead.
	StartOscillator(src ClockSource)

	// StopOscillator clears HSEON/HSION. Illegal for the source driving
	// SYSCLK or feeding a running PLL.
	StopOscillator(src ClockSource)

	// OscillatorReady reports the oscillator ready flag (HSERDY/HSIRDY)
	OscillatorReady(src ClockSource) bool

	// PLLEnabled reports the PLLON bit
	PLLEnabled() bool

	// PLLReady reports the PLL lock flag (PLLRDY)
	PLLReady() bool

	// EnablePLL sets PLLON
	EnablePLL()

	// DisablePLL clears PLLON. Illegal while the PLL drives SYSCLK.
	DisablePLL()

	// ConfigurePLL selects HSE as PLL input and programs the multiplier.
	// Only legal while the PLL is disabled. Returns ErrInvalidFrequency for
	// a factor the hardware cannot produce.
	ConfigurePLL(mul uint8) error

	// PLLMultiplier returns the currently programmed multiplier
	PLLMultiplier() uint8

	// SetFlashLatency programs the flash wait-state count
	SetFlashLatency(waitStates uint8)

	// FlashLatency returns the programmed wait-state count
	FlashLatency() uint8

	// SelectSystemClock writes the SW field
	SelectSystemClock(src ClockSource)

	// SystemClockSource reads the SWS status field
	SystemClockSource() ClockSource
}

// TickTimer is the periodic hardware timer behind the TimeBase (TIM2 on STM32F1)
type TickTimer interface {
	// Configure stops the timer, programs prescaler and auto-reload, clears
	// any pending update and restarts it with the update interrupt enabled.
	Configure(prescaler, reload uint16)

	// APB1Divider returns the APB1 bus prescaler (1, 2, 4, 8 or 16)
	APB1Divider() uint8
}

// DownCounter is the free-running 24-bit down-counter used for blocking
// delays (SysTick clocked at HCLK/8).
type DownCounter interface {
	// Start loads the reload value, clears the current value and enables counting
	Start(load uint32)

	// Running reports the counter enable bit
	Running() bool

	// CountFlag reports that the counter reached zero since the last read
	CountFlag() bool

	// Stop disables counting and clears the current value
	Stop()
}
