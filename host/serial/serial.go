package serial

import (
	"errors"
	"fmt"
	"io"
)

// ConsoleBaud is the USART1 rate the firmware console runs at
const ConsoleBaud = 115200

// LineEnding terminates every line sent to the device console
const LineEnding = "\r\n"

var ErrNoDevice = errors.New("no serial device given")

// Port is a byte stream to a device console. NativePort talks to a real
// serial device; tests use an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards received data that has not been read yet
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the device console
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the device console settings: USART1 at 115200 8N1
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        ConsoleBaud,
		ReadTimeout: 100,
	}
}

// Validate checks the settings before a port is opened. The console baud
// rate is re-derived from the core clock after every switch, so only rates
// the USART can still produce at 8MHz are accepted.
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	switch c.Baud {
	case 9600, 19200, 38400, 57600, 115200, 230400:
	default:
		return fmt.Errorf("unsupported console baud rate %d", c.Baud)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout %d", c.ReadTimeout)
	}
	return nil
}

// WriteLine sends one console line with the line ending the firmware expects
func WriteLine(p Port, line string) error {
	_, err := io.WriteString(p, line+LineEnding)
	return err
}
