package core

import "errors"

var (
	ErrNotInitialized     = errors.New("clock manager not initialized")
	ErrInvalidFrequency   = errors.New("invalid frequency level")
	ErrPLLLockTimeout     = errors.New("PLL lock timeout")
	ErrSwitchTooFast      = errors.New("clock switch too fast")
	ErrOscillatorNotFound = errors.New("oscillator not ready")
	ErrModeConflict       = errors.New("operation not allowed in current mode")
)

// SwitchStep names a stage of the clock switch sequence
type SwitchStep uint8

const (
	StepStartHSE SwitchStep = iota + 1
	StepLeavePLL
	StepStopPLL
	StepFlashLatency
	StepConfigurePLL
	StepEnableSource
	StepCommit
)

var stepNames = [...]string{
	"",
	"start_hse",
	"leave_pll",
	"stop_pll",
	"flash_latency",
	"configure_pll",
	"enable_source",
	"commit",
}

func (s SwitchStep) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return "unknown"
}

// SwitchError reports which step of a clock switch failed
type SwitchError struct {
	Step  SwitchStep
	Level uint8
	Err   error
}

func (e *SwitchError) Error() string {
	return "switch to level " + utoa(uint32(e.Level)) + " failed at " + e.Step.String() + ": " + e.Err.Error()
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}

// ErrorName returns the short console name of a clock manager error
func ErrorName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrInvalidFrequency):
		return "invalid_frequency"
	case errors.Is(err, ErrPLLLockTimeout):
		return "pll_lock_timeout"
	case errors.Is(err, ErrSwitchTooFast):
		return "switch_too_fast"
	case errors.Is(err, ErrOscillatorNotFound):
		return "oscillator_not_found"
	case errors.Is(err, ErrModeConflict):
		return "mode_conflict"
	default:
		return "error"
	}
}
