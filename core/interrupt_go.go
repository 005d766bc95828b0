//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMasked tracks critical-section nesting on the host so tests can
// assert that a clock switch ran with interrupts masked.
var irqMasked int

// disableInterrupts records the masking on regular Go (for testing)
func disableInterrupts() State {
	irqMasked++
	return 0
}

// restoreInterrupts undoes one level of masking on regular Go
func restoreInterrupts(state State) {
	if irqMasked > 0 {
		irqMasked--
	}
}

// InterruptsMasked reports whether a critical section is active
func InterruptsMasked() bool {
	return irqMasked > 0
}
