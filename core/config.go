package core

// Config holds the tunables of the clock manager. On firmware these are
// fixed at build time through DefaultConfig; the host simulator loads them
// from a file.
type Config struct {
	SampleInterval uint32 // ms between load samples in AdaptiveTask
	HighThreshold  uint8  // load % at or above which the policy upshifts
	LowThreshold   uint8  // load % below which the policy downshifts
	UpInterval     uint32 // ms since last switch before an upshift; also the manual guard
	DownInterval   uint32 // ms since last switch before a downshift
	UpJump         uint8  // levels gained per upshift
	DownStep       uint8  // levels dropped per downshift

	AdaptiveDisabled bool // AdaptiveTask becomes a no-op
	HooksDisabled    bool // IdleHook/BusyHook become no-ops

	// WaitPolls bounds every hardware ready-flag wait
	WaitPolls uint32

	// LoopsPerSecond is the number of main-loop idle calls per second the
	// one-second estimator treats as fully idle
	LoopsPerSecond uint32
}

// Stock tunables
const (
	DefaultSampleInterval = 50
	DefaultHighThreshold  = 50
	DefaultLowThreshold   = 30
	DefaultUpInterval     = 1000
	DefaultDownInterval   = 5000
	DefaultUpJump         = 3
	DefaultDownStep       = 1
	DefaultWaitPolls      = 500000
	DefaultLoopsPerSecond = 10
)

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing configuration values
func (c *Config) applyDefaults() {
	if c.SampleInterval == 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.HighThreshold == 0 {
		c.HighThreshold = DefaultHighThreshold
	}
	if c.LowThreshold == 0 {
		c.LowThreshold = DefaultLowThreshold
	}
	if c.UpInterval == 0 {
		c.UpInterval = DefaultUpInterval
	}
	if c.DownInterval == 0 {
		c.DownInterval = DefaultDownInterval
	}
	if c.UpJump == 0 {
		c.UpJump = DefaultUpJump
	}
	if c.DownStep == 0 {
		c.DownStep = DefaultDownStep
	}
	if c.WaitPolls == 0 {
		c.WaitPolls = DefaultWaitPolls
	}
	if c.LoopsPerSecond == 0 {
		c.LoopsPerSecond = DefaultLoopsPerSecond
	}
	// A dead band needs low < high; fall back to stock thresholds otherwise
	if c.LowThreshold >= c.HighThreshold || c.HighThreshold > 100 {
		c.HighThreshold = DefaultHighThreshold
		c.LowThreshold = DefaultLowThreshold
	}
}
