package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ClockEvent captures a clock-manager event for post-mortem analysis
type ClockEvent struct {
	Type   uint8  // Event type code
	Level  uint8  // Level involved (target for switches)
	Tick   uint32 // TimeBase tick at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSwitch     = 1 // Switch committed: Value1=old level, Value2=new frequency
	EvtSwitchFail = 2 // Switch failed: Value1=step, Value2=error code
	EvtRollback   = 3 // Previous config re-applied: Value1=1 if restore succeeded
	EvtMode       = 4 // Mode change: Value1=mode, Value2=floor level
	EvtLoad       = 5 // Load sample: Value1=load %, Value2=window ms
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking).
// Falls back to a direct write when the async worker is not running;
// drops the message when the channel is full.
func DebugAsync(msg string) {
	if !debugEnabled {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// EventRing is a fixed-size ring of clock events
type EventRing struct {
	events [EventRingSize]ClockEvent
	head   uint8 // Next write position
	count  uint8
}

// Record stores an event, overwriting the oldest when full
func (r *EventRing) Record(evt ClockEvent) {
	r.events[r.head] = evt
	r.head = (r.head + 1) % EventRingSize
	if r.count < EventRingSize {
		r.count++
	}
}

// Len returns the number of stored events
func (r *EventRing) Len() int {
	return int(r.count)
}

// Snapshot returns the stored events oldest first
func (r *EventRing) Snapshot() []ClockEvent {
	out := make([]ClockEvent, 0, r.count)
	start := (r.head + EventRingSize - r.count) % EventRingSize
	for i := uint8(0); i < r.count; i++ {
		out = append(out, r.events[(start+i)%EventRingSize])
	}
	return out
}

// Clear empties the ring
func (r *EventRing) Clear() {
	*r = EventRing{}
}

// EventName returns the dump label of an event type
func EventName(t uint8) string {
	switch t {
	case EvtSwitch:
		return "SWITCH"
	case EvtSwitchFail:
		return "SWITCH_FAIL!"
	case EvtRollback:
		return "ROLLBACK"
	case EvtMode:
		return "MODE"
	case EvtLoad:
		return "LOAD"
	default:
		return "UNKNOWN"
	}
}

// Dump writes the ring through w, oldest first
func (r *EventRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[CLKM] === Event Dump ===")
	for _, evt := range r.Snapshot() {
		w("[CLKM] " + EventName(evt.Type) +
			" lvl=" + utoa(uint32(evt.Level)) +
			" tick=" + utoa(evt.Tick) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[CLKM] === End Dump ===")
}
