package core

// LoadCounter accumulates the cooperative idle/busy marks of the main loop.
//
// Two estimates are kept. The canonical one is the busy share of hook calls
// over each AdaptiveTask window. The second counts idle calls per second
// from the tick interrupt and assumes a fixed main-loop rate; it is only
// reported, never acted on.
type LoadCounter struct {
	idleTicks  uint32
	busyTicks  uint32
	lastSample uint32
	load       uint8

	secondIdle     uint32
	estimated      uint8
	loopsPerSecond uint32
}

func (c *LoadCounter) idle() {
	c.idleTicks++
	c.secondIdle++
}

func (c *LoadCounter) busy() {
	c.busyTicks++
}

// reset clears both accumulators and starts a new window at now
func (c *LoadCounter) reset(now uint32) {
	c.idleTicks = 0
	c.busyTicks = 0
	c.load = 0
	c.secondIdle = 0
	c.estimated = 0
	c.lastSample = now
}

// sample closes the current window: load = busy / (busy + idle). An empty
// window counts as idle.
func (c *LoadCounter) sample(now uint32) uint8 {
	idle, busy := c.idleTicks, c.busyTicks
	c.idleTicks = 0
	c.busyTicks = 0
	c.lastSample = now

	total := uint64(idle) + uint64(busy)
	if total == 0 {
		c.load = 0
	} else {
		c.load = uint8(uint64(busy) * 100 / total)
	}
	return c.load
}

// estimate turns the idle calls of the last second into a load figure
func (c *LoadCounter) estimate() (uint8, uint32) {
	idle := c.secondIdle
	c.secondIdle = 0

	if c.loopsPerSecond == 0 || idle >= c.loopsPerSecond {
		c.estimated = 0
		return 0, idle
	}
	c.estimated = uint8(100 - idle*100/c.loopsPerSecond)
	return c.estimated, idle
}
