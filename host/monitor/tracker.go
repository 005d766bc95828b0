package monitor

import "freqscale/core"

// Transition is a level change seen between two status lines
type Transition struct {
	Tick uint32
	From core.Level
	To   core.Level
	Load uint8
}

// Tracker follows a stream of status lines and summarises it
type Tracker struct {
	last    *Status
	samples int

	// Transitions in arrival order
	Transitions []Transition
	// Time spent per level in ms, attributed to the earlier sample
	Residency [core.NumLevels]uint64
	// Inconsistent counts lines whose frequency disagrees with the level
	Inconsistent int
	// Restarts counts tick counter resets (device reboots)
	Restarts int
}

// Add records one status line
func (t *Tracker) Add(s Status) {
	t.samples++
	if !s.Consistent() {
		t.Inconsistent++
	}
	if t.last != nil {
		prev := *t.last
		if s.Tick < prev.Tick {
			t.Restarts++
		} else {
			t.Residency[prev.Level] += uint64(s.Tick - prev.Tick)
			if s.Level != prev.Level {
				t.Transitions = append(t.Transitions, Transition{Tick: s.Tick, From: prev.Level, To: s.Level, Load: s.Load})
			}
		}
	}
	t.last = &s
}

// Samples returns the number of status lines seen
func (t *Tracker) Samples() int {
	return t.samples
}

// Last returns the most recent status
func (t *Tracker) Last() (Status, bool) {
	if t.last == nil {
		return Status{}, false
	}
	return *t.last, true
}

// AverageFrequency is the residency-weighted mean core clock in Hz
func (t *Tracker) AverageFrequency() uint32 {
	var total, weighted uint64
	for l, ms := range t.Residency {
		d, _ := core.Descriptor(core.Level(l))
		total += ms
		weighted += ms * uint64(d.Frequency)
	}
	if total == 0 {
		return 0
	}
	return uint32(weighted / total)
}
