//go:build tinygo

package core

import "sync/atomic"

// loadTick returns the tick counter
func loadTick(p *uint32) uint32 {
	return atomic.LoadUint32(p)
}

// incTick increments the tick counter from the timer interrupt
func incTick(p *uint32) uint32 {
	return atomic.AddUint32(p, 1)
}
