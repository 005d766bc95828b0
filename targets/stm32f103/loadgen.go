//go:build stm32f103

package main

// Demo load profile: one 60-70% burst of 1-5s somewhere in every minute
const (
	burstWindowMS = 60000
	burstMinMS    = 1000
	burstMaxMS    = 5000
	burstMinLoad  = 60
	burstMaxLoad  = 70
	baseLoad      = 5
)

// loadGenerator decides per main-loop pass whether the pass burns CPU
type loadGenerator struct {
	seed        uint32
	windowStart uint32
	burstStart  uint32
	burstLen    uint32
	burstLoad   uint32
	acc         uint32
	now         uint32
}

func newLoadGenerator(seed, now uint32) *loadGenerator {
	g := &loadGenerator{seed: seed | 1}
	g.plan(now)
	return g
}

// next is a 32-bit xorshift
func (g *loadGenerator) next() uint32 {
	x := g.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	g.seed = x
	return x
}

func (g *loadGenerator) plan(now uint32) {
	g.windowStart = now
	g.burstLen = burstMinMS + g.next()%(burstMaxMS-burstMinMS+1)
	g.burstLoad = burstMinLoad + g.next()%(burstMaxLoad-burstMinLoad+1)
	g.burstStart = g.next() % (burstWindowMS - g.burstLen)
}

func (g *loadGenerator) burstActive() bool {
	off := g.now - g.windowStart
	return off >= g.burstStart && off < g.burstStart+g.burstLen
}

// busy reports whether the pass at tick now should be a busy one
func (g *loadGenerator) busy(now uint32) bool {
	g.now = now
	if now-g.windowStart >= burstWindowMS {
		g.plan(now)
	}

	load := uint32(baseLoad)
	if g.burstActive() {
		load = g.burstLoad
	}
	g.acc += load
	if g.acc >= 100 {
		g.acc -= 100
		return true
	}
	return false
}
