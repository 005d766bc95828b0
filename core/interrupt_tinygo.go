//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts disables interrupts and returns the previous state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// InterruptsMasked reports whether interrupts are currently disabled.
// On hardware this is only meaningful inside a critical section, where it
// always holds.
func InterruptsMasked() bool {
	state := interrupt.Disable()
	interrupt.Restore(state)
	return state != 0
}
