package monitor

import (
	"fmt"
	"strings"

	"freqscale/core"
)

// Event is one line of a device event dump
type Event struct {
	Name  string
	Event core.ClockEvent
}

var eventTypes = map[string]uint8{
	core.EventName(core.EvtSwitch):     core.EvtSwitch,
	core.EventName(core.EvtSwitchFail): core.EvtSwitchFail,
	core.EventName(core.EvtRollback):   core.EvtRollback,
	core.EventName(core.EvtMode):       core.EvtMode,
	core.EventName(core.EvtLoad):       core.EvtLoad,
}

// ParseEvent decodes "[CLKM] NAME lvl=.. tick=.. v1=.. v2=..". ok is false
// for any other line, including the dump header and footer.
func ParseEvent(line string) (Event, bool, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 || fields[0] != "[CLKM]" {
		return Event{}, false, nil
	}
	typ, known := eventTypes[fields[1]]
	if !known {
		return Event{}, false, nil
	}

	e := Event{Name: fields[1], Event: core.ClockEvent{Type: typ}}
	targets := []struct {
		key  string
		bits int
		set  func(uint64)
	}{
		{"lvl", 8, func(n uint64) { e.Event.Level = uint8(n) }},
		{"tick", 32, func(n uint64) { e.Event.Tick = uint32(n) }},
		{"v1", 32, func(n uint64) { e.Event.Value1 = uint32(n) }},
		{"v2", 32, func(n uint64) { e.Event.Value2 = uint32(n) }},
	}
	for i, tgt := range targets {
		key, val, ok := strings.Cut(fields[2+i], "=")
		if !ok || key != tgt.key {
			return Event{}, false, fmt.Errorf("event field %q: expected %s=", fields[2+i], tgt.key)
		}
		n, err := parseUint(key, val, tgt.bits)
		if err != nil {
			return Event{}, false, err
		}
		tgt.set(n)
	}
	return e, true, nil
}

// Describe renders an event for people
func (e Event) Describe() string {
	ev := e.Event
	switch ev.Type {
	case core.EvtSwitch:
		return fmt.Sprintf("t=%dms switch %d -> %d (%d MHz)", ev.Tick, ev.Value1, ev.Level, ev.Value2/1000000)
	case core.EvtSwitchFail:
		return fmt.Sprintf("t=%dms switch to %d failed at %s (code %d)", ev.Tick, ev.Level, core.SwitchStep(ev.Value1), ev.Value2)
	case core.EvtRollback:
		result := "restored"
		if ev.Value1 == 0 {
			result = "FAILED"
		}
		return fmt.Sprintf("t=%dms rollback to %d MHz %s", ev.Tick, ev.Value2/1000000, result)
	case core.EvtMode:
		return fmt.Sprintf("t=%dms mode %s floor %d", ev.Tick, core.Mode(ev.Value1), ev.Value2)
	case core.EvtLoad:
		return fmt.Sprintf("t=%dms load %d%% over %dms at level %d", ev.Tick, ev.Value1, ev.Value2, ev.Level)
	}
	return e.Name
}
