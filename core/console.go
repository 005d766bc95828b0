package core

import "strings"

// StatusLine renders the manager state as a single console line:
//
//	clkm mode=auto level=3 freq=48000000 load=42 est=40 tick=123456
func (m *ClockManager) StatusLine() string {
	return "clkm mode=" + m.mode.String() +
		" level=" + utoa(uint32(m.level)) +
		" freq=" + utoa(m.freq) +
		" load=" + utoa(uint32(m.GetCPULoad())) +
		" est=" + utoa(uint32(m.EstimatedCPULoad())) +
		" tick=" + utoa(m.now())
}

// HandleConsoleCommand executes one line typed on the device console and
// returns the single response line.
//
//	status | mode manual <level> | mode auto <floor> | level <level> |
//	adjust <step> | events | stats | help
func (m *ClockManager) HandleConsoleCommand(line string) string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return ""
	}

	switch args[0] {
	case "status":
		return m.StatusLine()

	case "mode":
		if len(args) != 3 {
			return "err usage: mode manual|auto <level>"
		}
		n, ok := atoi(args[2])
		if !ok || n < 0 || n > 255 {
			return "err bad level"
		}
		var mode Mode
		switch args[1] {
		case "manual":
			mode = ModeManual
		case "auto":
			mode = ModeAutomatic
		default:
			return "err usage: mode manual|auto <level>"
		}
		return result(m.SetMode(mode, uint8(n)))

	case "level":
		if len(args) != 2 {
			return "err usage: level <level>"
		}
		n, ok := atoi(args[1])
		if !ok || n < 0 || n > 255 {
			return "err bad level"
		}
		return result(m.SetFixedLevel(Level(n)))

	case "adjust":
		if len(args) != 2 {
			return "err usage: adjust <step>"
		}
		n, ok := atoi(args[1])
		if !ok {
			return "err bad step"
		}
		return result(m.AdjustLevel(n))

	case "events":
		m.DumpEvents()
		return "ok " + itoa(m.events.Len())

	case "stats":
		s := m.Stats()
		return "stats switches=" + utoa(s.Switches) +
			" failed=" + utoa(s.FailedSwitches) +
			" rollbacks=" + utoa(s.Rollbacks) +
			" rollback_failures=" + utoa(s.RollbackFailures)

	case "help":
		return "commands: status, mode manual|auto <n>, level <n>, adjust <step>, events, stats"

	default:
		return "err unknown command " + args[0]
	}
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return "err " + ErrorName(err)
}
