//go:build !tinygo

package core

// loadTick returns the tick counter (regular Go implementation)
func loadTick(p *uint32) uint32 {
	return *p
}

// incTick increments the tick counter (regular Go implementation)
func incTick(p *uint32) uint32 {
	*p++
	return *p
}
