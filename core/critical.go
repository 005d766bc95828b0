package core

// criticalSection runs fn with interrupts globally disabled
func criticalSection(fn func() error) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return fn()
}
