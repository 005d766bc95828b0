package core

// DownCounterMax is the largest SysTick reload value (24 bits)
const DownCounterMax = 0xFFFFFF

// DownCounterDivider is the SysTick prescale from HCLK
const DownCounterDivider = 8

// Delay provides blocking microsecond/millisecond delays on a hardware
// down-counter. It must never be used from the TimeBase interrupt.
type Delay struct {
	counter DownCounter
	perUS   uint32 // counter cycles per microsecond
	perMS   uint32 // counter cycles per millisecond
}

// NewDelay creates a Delay calibrated for coreHz
func NewDelay(counter DownCounter, coreHz uint32) (*Delay, error) {
	d := &Delay{counter: counter}
	if err := d.Reconfigure(coreHz); err != nil {
		return nil, err
	}
	return d, nil
}

// Reconfigure recomputes the calibration factor for a new core frequency.
// Frequencies below 8MHz cannot be timed in whole counter cycles per
// microsecond; the previous factor is kept and ErrInvalidFrequency returned.
func (d *Delay) Reconfigure(coreHz uint32) error {
	perUS := coreHz / DownCounterDivider / 1000000
	perMS := coreHz / DownCounterDivider / 1000
	if perUS == 0 || perMS == 0 {
		return ErrInvalidFrequency
	}
	d.perUS = perUS
	d.perMS = perMS
	return nil
}

// MaxMicroseconds is the longest single DelayMicroseconds at the current frequency
func (d *Delay) MaxMicroseconds() uint32 {
	return DownCounterMax/d.perUS - 1
}

// MaxMilliseconds is the longest single counter run in ms at the current frequency
func (d *Delay) MaxMilliseconds() uint32 {
	return DownCounterMax/d.perMS - 1
}

// DelayMicroseconds busy-waits for us microseconds, clamped to MaxMicroseconds
func (d *Delay) DelayMicroseconds(us uint32) {
	if max := d.MaxMicroseconds(); us > max {
		us = max
	}
	d.spin(us * d.perUS)
}

// DelayMilliseconds busy-waits for ms milliseconds, splitting long delays
// into counter-sized chunks
func (d *Delay) DelayMilliseconds(ms uint32) {
	max := d.MaxMilliseconds()
	for ms > max {
		d.spin(max * d.perMS)
		ms -= max
	}
	d.spin(ms * d.perMS)
}

// DelaySeconds busy-waits for s seconds
func (d *Delay) DelaySeconds(s uint32) {
	for ; s > 0; s-- {
		d.DelayMilliseconds(1000)
	}
}

func (d *Delay) spin(cycles uint32) {
	if cycles == 0 {
		return
	}
	d.counter.Start(cycles)
	for d.counter.Running() && !d.counter.CountFlag() {
	}
	d.counter.Stop()
}
