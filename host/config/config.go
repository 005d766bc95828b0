// Package config loads the YAML configuration shared by the host tools:
// clock manager tunables, simulated board faults, the load profile to
// replay and the serial link to a real device.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"freqscale/core"
	"freqscale/host/serial"
	"freqscale/sim"
)

// Config is the top-level file layout
type Config struct {
	Manager ManagerConfig `yaml:"manager"`
	Board   BoardConfig   `yaml:"board"`
	Profile ProfileConfig `yaml:"profile"`
	Serial  SerialConfig  `yaml:"serial"`
}

// ManagerConfig mirrors core.Config plus the start-up mode
type ManagerConfig struct {
	SampleIntervalMS uint32 `yaml:"sample_interval_ms"`
	HighThreshold    uint8  `yaml:"high_threshold"`
	LowThreshold     uint8  `yaml:"low_threshold"`
	UpIntervalMS     uint32 `yaml:"up_interval_ms"`
	DownIntervalMS   uint32 `yaml:"down_interval_ms"`
	UpJump           uint8  `yaml:"up_jump"`
	DownStep         uint8  `yaml:"down_step"`
	WaitPolls        uint32 `yaml:"wait_polls"`
	LoopsPerSecond   uint32 `yaml:"loops_per_second"`

	Mode       string `yaml:"mode"`        // "auto" or "manual"
	Floor      *uint8 `yaml:"floor"`       // auto mode floor, default slowest level
	StartLevel uint8  `yaml:"start_level"` // level set before the mode is entered
}

// BoardConfig describes the simulated hardware
type BoardConfig struct {
	HSE             *bool `yaml:"hse"` // external crystal fitted, default true
	APB1Divider     uint8 `yaml:"apb1_divider"`
	PLLLockFailures int   `yaml:"pll_lock_failures"`
	SwitchFailures  int   `yaml:"switch_failures"`
}

// ProfileConfig is either an explicit phase list or random bursts
type ProfileConfig struct {
	Phases []sim.Phase    `yaml:"phases"`
	Random *RandomProfile `yaml:"random"`
}

// RandomProfile parameters for sim.RandomBursts
type RandomProfile struct {
	Seed     int64 `yaml:"seed"`
	Windows  int   `yaml:"windows"`
	BaseLoad uint8 `yaml:"base_load"`
}

// SerialConfig is the link to a device console
type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMS int    `yaml:"read_timeout_ms"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Manager.Mode == "" {
		c.Manager.Mode = "auto"
	}
	if c.Manager.Floor == nil {
		floor := uint8(core.NumLevels - 1)
		c.Manager.Floor = &floor
	}
	if c.Board.HSE == nil {
		hse := true
		c.Board.HSE = &hse
	}
	if c.Board.APB1Divider == 0 {
		c.Board.APB1Divider = 2
	}
	if len(c.Profile.Phases) == 0 && c.Profile.Random == nil {
		c.Profile.Random = &RandomProfile{Seed: 1, Windows: 2, BaseLoad: 5}
	}
	if c.Profile.Random != nil && c.Profile.Random.Windows == 0 {
		c.Profile.Random.Windows = 1
	}
	if c.Serial.Device == "" {
		c.Serial.Device = "/dev/ttyUSB0"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = serial.ConsoleBaud
	}
	if c.Serial.ReadTimeoutMS == 0 {
		c.Serial.ReadTimeoutMS = 100
	}
}

// Validate rejects values the clock manager cannot run with
func (c *Config) Validate() error {
	switch c.Manager.Mode {
	case "auto", "manual":
	default:
		return fmt.Errorf("manager.mode: unknown mode %q", c.Manager.Mode)
	}
	if int(c.Manager.StartLevel) >= core.NumLevels {
		return fmt.Errorf("manager.start_level: %d out of range", c.Manager.StartLevel)
	}
	if c.Manager.HighThreshold > 100 || c.Manager.LowThreshold > 100 {
		return fmt.Errorf("manager: thresholds must be percentages")
	}
	switch c.Board.APB1Divider {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("board.apb1_divider: %d is not a valid prescaler", c.Board.APB1Divider)
	}
	if err := c.SerialPort().Validate(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	for i, ph := range c.Profile.Phases {
		if ph.Load > 100 {
			return fmt.Errorf("profile.phases[%d]: load %d above 100", i, ph.Load)
		}
	}
	return nil
}

// CoreConfig converts the manager section to core.Config. Zero fields
// take the core defaults.
func (c *Config) CoreConfig() core.Config {
	m := c.Manager
	return core.Config{
		SampleInterval: m.SampleIntervalMS,
		HighThreshold:  m.HighThreshold,
		LowThreshold:   m.LowThreshold,
		UpInterval:     m.UpIntervalMS,
		DownInterval:   m.DownIntervalMS,
		UpJump:         m.UpJump,
		DownStep:       m.DownStep,
		WaitPolls:      m.WaitPolls,
		LoopsPerSecond: m.LoopsPerSecond,
	}
}

// Mode returns the configured manager mode
func (c *Config) Mode() core.Mode {
	if c.Manager.Mode == "manual" {
		return core.ModeManual
	}
	return core.ModeAutomatic
}

// BoardOptions converts the board section to simulator options
func (c *Config) BoardOptions() []sim.Option {
	opts := []sim.Option{sim.WithAPB1Divider(c.Board.APB1Divider)}
	if !*c.Board.HSE {
		opts = append(opts, sim.WithoutHSE())
	}
	if c.Board.PLLLockFailures > 0 {
		opts = append(opts, sim.WithPLLLockFailures(c.Board.PLLLockFailures))
	}
	if c.Board.SwitchFailures > 0 {
		opts = append(opts, sim.WithSwitchFailures(c.Board.SwitchFailures))
	}
	return opts
}

// SerialPort converts the serial section to port settings
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeoutMS,
	}
}

// BuildProfile returns the load profile to replay
func (c *Config) BuildProfile() sim.Profile {
	if len(c.Profile.Phases) > 0 {
		return sim.Profile(c.Profile.Phases)
	}
	r := c.Profile.Random
	return sim.RandomBursts(r.Seed, r.Windows, r.BaseLoad)
}
