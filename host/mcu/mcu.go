package mcu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"freqscale/host/monitor"
	"freqscale/host/serial"
)

var (
	ErrNotConnected = errors.New("not connected to MCU")
	ErrClosed       = errors.New("MCU connection closed")
)

// MCU is a connection to the console of a device running the clock manager.
// A background reader splits the byte stream into lines and sorts them into
// command replies, status lines, event dump lines and debug output.
type MCU struct {
	port serial.Port

	// Serialises commands; the console answers one line per command
	cmdMu         sync.Mutex
	pending       atomic.Bool
	pendingStatus atomic.Bool

	replies  chan string
	statuses chan monitor.Status
	events   chan monitor.Event
	logs     chan string
	done     chan struct{}

	readErr error

	// Dropped counts lines discarded because nobody was reading them
	Dropped atomic.Uint32

	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		connected: false,
	}
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.Attach(port)
	return nil
}

// Attach starts talking over an already open port
func (m *MCU) Attach(port serial.Port) {
	m.port = port
	m.replies = make(chan string, 1)
	m.statuses = make(chan monitor.Status, 64)
	m.events = make(chan monitor.Event, 64)
	m.logs = make(chan string, 64)
	m.done = make(chan struct{})
	m.connected = true

	go m.readLoop()
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.port.Close()
}

// Done is closed when the reader stops
func (m *MCU) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that stopped the reader, if any
func (m *MCU) Err() error {
	select {
	case <-m.done:
		return m.readErr
	default:
		return nil
	}
}

// Statuses delivers parsed status lines
func (m *MCU) Statuses() <-chan monitor.Status {
	return m.statuses
}

// Events delivers parsed event dump lines
func (m *MCU) Events() <-chan monitor.Event {
	return m.events
}

// Logs delivers debug output
func (m *MCU) Logs() <-chan string {
	return m.logs
}

// SendCommand writes one console command and waits for its reply line
func (m *MCU) SendCommand(ctx context.Context, line string) (string, error) {
	if !m.connected {
		return "", ErrNotConnected
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}

	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	// Drop a late reply to an earlier command that timed out
	select {
	case <-m.replies:
	default:
	}

	m.pendingStatus.Store(line == "status")
	m.pending.Store(true)
	defer m.pending.Store(false)

	if err := serial.WriteLine(m.port, line); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", line, err)
	}

	select {
	case reply := <-m.replies:
		return reply, nil
	case <-m.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for reply to %q: %w", line, ctx.Err())
	}
}

// Command is SendCommand with a plain timeout
func (m *MCU) Command(line string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.SendCommand(ctx, line)
}

func (m *MCU) readLoop() {
	defer close(m.done)

	scanner := bufio.NewScanner(m.port)
	for scanner.Scan() {
		m.dispatch(strings.TrimRight(scanner.Text(), "\r"))
	}
	m.readErr = scanner.Err()
}

// dispatch sorts one console line
func (m *MCU) dispatch(line string) {
	if line == "" {
		return
	}

	if ev, ok, err := monitor.ParseEvent(line); ok && err == nil {
		offer(m, m.events, ev)
		return
	}
	if strings.HasPrefix(line, "[CLKM]") {
		offer(m, m.logs, line)
		return
	}
	if st, err := monitor.ParseStatus(line); err == nil {
		offer(m, m.statuses, st)
		if !m.pendingStatus.Load() {
			return
		}
	}
	if m.pending.Load() {
		offer(m, m.replies, line)
		return
	}
	offer(m, m.logs, line)
}

// offer sends without blocking the reader
func offer[T any](m *MCU, ch chan T, v T) {
	select {
	case ch <- v:
	default:
		m.Dropped.Add(1)
	}
}
