// Package monitor parses what a device prints on its console: periodic
// status lines, command replies and clock event dumps.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"freqscale/core"
)

// ErrNotStatus is returned for lines that are not status lines
var ErrNotStatus = errors.New("not a status line")

// Status is one parsed "clkm ..." line
type Status struct {
	Mode      core.Mode
	Level     core.Level
	Frequency uint32
	Load      uint8
	Estimated uint8
	Tick      uint32
}

// String renders the status in device format
func (s Status) String() string {
	return fmt.Sprintf("clkm mode=%s level=%d freq=%d load=%d est=%d tick=%d",
		s.Mode, s.Level, s.Frequency, s.Load, s.Estimated, s.Tick)
}

// ParseStatus decodes a status line. Unknown keys are ignored so newer
// firmware can add fields.
func ParseStatus(line string) (Status, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "clkm" {
		return Status{}, ErrNotStatus
	}

	var s Status
	seen := 0
	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return Status{}, fmt.Errorf("status field %q: missing value", f)
		}
		switch key {
		case "mode":
			switch val {
			case "auto":
				s.Mode = core.ModeAutomatic
			case "manual":
				s.Mode = core.ModeManual
			default:
				return Status{}, fmt.Errorf("status mode %q: unknown", val)
			}
		case "level":
			n, err := parseUint(key, val, 8)
			if err != nil {
				return Status{}, err
			}
			if n >= core.NumLevels {
				return Status{}, fmt.Errorf("status level %d: out of range", n)
			}
			s.Level = core.Level(n)
		case "freq":
			n, err := parseUint(key, val, 32)
			if err != nil {
				return Status{}, err
			}
			s.Frequency = uint32(n)
		case "load":
			n, err := parseUint(key, val, 8)
			if err != nil {
				return Status{}, err
			}
			s.Load = uint8(n)
		case "est":
			n, err := parseUint(key, val, 8)
			if err != nil {
				return Status{}, err
			}
			s.Estimated = uint8(n)
		case "tick":
			n, err := parseUint(key, val, 32)
			if err != nil {
				return Status{}, err
			}
			s.Tick = uint32(n)
		default:
			continue
		}
		seen++
	}
	if seen == 0 {
		return Status{}, ErrNotStatus
	}
	return s, nil
}

func parseUint(key, val string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(val, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("status %s: %w", key, err)
	}
	return n, nil
}

// Consistent reports whether the frequency matches the level's table entry
func (s Status) Consistent() bool {
	d, ok := core.Descriptor(s.Level)
	return ok && d.Frequency == s.Frequency
}
