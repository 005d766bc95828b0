package sim

import (
	"freqscale/core"
)

// SliceNS is the virtual time one main-loop pass takes
const SliceNS = 1000000

// Switch records one level change seen by the loop
type Switch struct {
	Tick  uint32
	From  core.Level
	To    core.Level
	Freq  uint32
	Load  uint8
	Delta int
}

// Loop emulates the cooperative firmware main loop. Every pass is one
// millisecond slice, either busy or idle, followed by AdaptiveTask.
type Loop struct {
	sys *System
	acc uint32

	// OnSwitch is called for every level change the loop observes
	OnSwitch func(Switch)
	// OnPass is called after every pass with the current tick
	OnPass func(tick uint32)
}

// NewLoop creates a main loop driver for sys
func NewLoop(sys *System) *Loop {
	return &Loop{sys: sys}
}

// Run executes passes for ms milliseconds with busy passes spread evenly
// to give loadPct percent load
func (l *Loop) Run(ms uint32, loadPct uint8) {
	if loadPct > 100 {
		loadPct = 100
	}
	m := l.sys.Manager
	for i := uint32(0); i < ms; i++ {
		l.acc += uint32(loadPct)
		if l.acc >= 100 {
			l.acc -= 100
			m.BusyHook()
		} else {
			m.IdleHook()
		}
		l.sys.Board.Advance(SliceNS)

		before := m.GetCurrentLevel()
		m.AdaptiveTask()
		if after := m.GetCurrentLevel(); after != before && l.OnSwitch != nil {
			l.OnSwitch(Switch{
				Tick:  l.sys.TimeBase.GetTick(),
				From:  before,
				To:    after,
				Freq:  m.GetCurrentFrequency(),
				Load:  m.GetCPULoad(),
				Delta: int(after) - int(before),
			})
		}
		if l.OnPass != nil {
			l.OnPass(l.sys.TimeBase.GetTick())
		}
	}
}

// RunProfile runs each phase of a load profile in order
func (l *Loop) RunProfile(p Profile) {
	for _, ph := range p {
		l.Run(ph.Duration, ph.Load)
	}
}
